// =============================================================================
// Donation Ledger - Import Command
// =============================================================================
//
// COMMAND USAGE:
//   donledger import [--display-result] [--email-result]
//
// Imports every pending file in the intake area. Files that import are moved
// to the processed area; files that fail stay where they are and are listed
// in the summary. An empty intake area produces no summary.
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"
)

var importFlags resultFlags

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import pending intake files into the ledger",
	Long: `The import command scans the intake area, reads each file with the source
profile its name matches, and inserts the records into the ledger as one block
per file, newest first.

On success:
  - The records are inserted at the configured insertion point
  - The file is moved to the processed area

On error:
  - The file remains in the intake area
  - The error is listed in the summary
  - Processing continues with the next file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		return env.runImport(cmd.Context(), importFlags.options())
	},
}

func init() {
	importFlags.register(importCmd)
	rootCmd.AddCommand(importCmd)
}
