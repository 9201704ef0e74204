package cmd

import (
	"github.com/spf13/cobra"
)

var ackFlags resultFlags

var acknowledgeCmd = &cobra.Command{
	Use:     "acknowledge",
	Aliases: []string{"ack"},
	Short:   "Send acknowledgements for unacknowledged gifts",
	Long: `The acknowledge command emails a thank-you letter to every unacknowledged
donor with an email address and stores a printable letter in the output area
for donors with only a postal address. Each record is marked acknowledged once
its letter is out. Recurring gifts are marked without a letter; they are
acknowledged once a year by the rollup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		return env.runAcknowledge(cmd.Context(), ackFlags.options())
	},
}

func init() {
	ackFlags.register(acknowledgeCmd)
	rootCmd.AddCommand(acknowledgeCmd)
}
