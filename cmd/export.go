package cmd

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/filestore"
	"github.com/ginjaninja78/donation-ledger/internal/model"
	"github.com/ginjaninja78/donation-ledger/internal/xlsxparser"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the ledger to an XLSX workbook",
	Long: `The export command writes every ledger record, top row first, to a workbook
with the 16 canonical columns. The data region carries the donation_data
defined name, so the workbook can be read back by the check ledger source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := exportLedger(cmd.Context(), store, filestore.NewLocal(), exportOut)
		if err != nil {
			return err
		}
		zap.L().Info("ledger exported", zap.String("file", exportOut), zap.Int("records", n))
		return nil
	},
}

// recordLister is the part of the ledger export reads.
type recordLister interface {
	All(ctx context.Context) ([]model.Record, error)
}

// exportLedger writes the ledger to path and returns the record count.
func exportLedger(ctx context.Context, store recordLister, files filestore.Store, path string) (int, error) {
	recs, err := store.All(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "export: read ledger")
	}

	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = r.Row()
	}

	data, err := xlsxparser.WriteRegion("Ledger", config.DefaultDataMarker, model.ColumnNames[:], rows)
	if err != nil {
		return 0, eris.Wrap(err, "export: build workbook")
	}

	if err := files.Write(ctx, filepath.Dir(path), filepath.Base(path), data); err != nil {
		return 0, eris.Wrap(err, "export: write workbook")
	}
	return len(recs), nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "ledger.xlsx", "Output workbook path")
	rootCmd.AddCommand(exportCmd)
}
