package cmd

import (
	"github.com/spf13/cobra"
)

var (
	rollupFlags resultFlags
	rollupYear  int
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Build annual summaries of recurring gifts",
	Long: `The rollup command adds one annual summary record per recurring donor for
the tax year (the previous calendar year unless --year is given). Donors that
already have a summary for the year are skipped, so the command is safe to run
again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		return env.runRollup(cmd.Context(), rollupYear, rollupFlags.options())
	},
}

func init() {
	rollupFlags.register(rollupCmd)
	rollupCmd.Flags().IntVar(&rollupYear, "year", 0, "Tax year to summarize (default: last year)")
	rootCmd.AddCommand(rollupCmd)
}
