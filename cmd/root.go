// =============================================================================
// Donation Ledger - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (donledger)
//   ├── importCmd       (donledger import)
//   ├── acknowledgeCmd  (donledger acknowledge)
//   ├── rollupCmd       (donledger rollup)
//   ├── scheduleCmd     (donledger schedule)
//   ├── serveCmd        (donledger serve)
//   ├── exportCmd       (donledger export)
//   ├── settingsCmd     (donledger settings get|set)
//   └── versionCmd      (donledger version)
//
// Configuration and logging are set up in PersistentPreRunE, so every
// subcommand starts with cfg loaded and zap.L() configured.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/report"
)

// cfgFile holds the path to the main configuration file. Empty searches the
// working directory for config.yaml.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// cfg is the loaded configuration, set before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "donledger",
	Short: "Donation ledger - import gifts, send acknowledgements, build annual rollups",
	Long: `donledger keeps a nonprofit's donation ledger.

It imports card-processor exports and check ledger workbooks into one ordered
ledger, acknowledges every gift exactly once by email or stored letter, and
builds a yearly summary record for each recurring donor.

Example Usage:
  donledger import --display-result          # Import pending intake files
  donledger acknowledge --email-result       # Acknowledge new gifts, email a summary
  donledger rollup --year 2024               # Build 2024 recurring gift summaries
  donledger serve                            # Accept run triggers over HTTP`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if verbose {
			c.Log.Level = "debug"
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Path to the main configuration file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
}

// =============================================================================
// SHARED RESULT FLAGS
// =============================================================================

// resultFlags are the delivery flags shared by the run commands.
type resultFlags struct {
	display bool
	email   bool
}

func (f *resultFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.display, "display-result", true, "Print the run summary to the terminal")
	cmd.Flags().BoolVar(&f.email, "email-result", false, "Email the run summary to report.recipients")
}

func (f *resultFlags) options() report.Options {
	return report.Options{Display: f.display, Email: f.email}
}
