package cmd

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/donation-ledger/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or change named settings stored in the ledger",
	Long: fmt.Sprintf(`Named settings fill pipeline keys the config file leaves empty:

  %-18s intake area
  %-18s processed area
  %-18s output area
  %-18s first data row of the ledger sheet (2 = top)
  %-18s acknowledgement template path`,
		config.SettingIntakeFolder,
		config.SettingProcessedFolder,
		config.SettingOutputFolder,
		config.SettingFirstDataRow,
		config.SettingAckTemplate,
	),
}

var settingsGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print a named setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		v, ok, err := store.Setting(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("setting %q is not set", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set NAME VALUE",
	Short: "Create or replace a named setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		return store.PutSetting(cmd.Context(), args[0], args[1])
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
