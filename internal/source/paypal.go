package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/csvparser"
	"github.com/ginjaninja78/donation-ledger/internal/model"
	"github.com/ginjaninja78/donation-ledger/internal/normalize"
)

// Transaction types in the processor export that represent donations.
const (
	TxnDonation     = "Donation Payment"
	TxnSubscription = "Subscription Payment"
	TxnMobile       = "Mobile Payment"
	TxnMassPay      = "Mass Pay Payment"
)

// Export column indexes, 0-based.
const (
	ppColDate         = 0
	ppColName         = 3
	ppColType         = 4
	ppColGross        = 7
	ppColFee          = 8
	ppColNet          = 9
	ppColEmail        = 10
	ppColShippingName = 13
	ppColAddress1     = 30
	ppColAddress2     = 31
	ppColCity         = 32
	ppColState        = 33
	ppColZip          = 34
	ppColNote         = 38
)

// PayPal reads processor CSV exports.
type PayPal struct {
	settings config.CSVSettings
	logger   *zap.Logger
}

// NewPayPal creates a PayPal adapter.
func NewPayPal(settings config.CSVSettings, logger *zap.Logger) *PayPal {
	if logger == nil {
		logger = zap.L()
	}
	if settings.ColumnCount == 0 {
		settings.ColumnCount = config.DefaultPayPalColumnCount
	}
	return &PayPal{settings: settings, logger: logger}
}

// IsDonation reports whether a transaction type is imported.
func IsDonation(txnType string) bool {
	switch txnType {
	case TxnDonation, TxnSubscription, TxnMobile, TxnMassPay:
		return true
	}
	return false
}

// Read parses an export and maps donation rows to records.
func (p *PayPal) Read(ctx context.Context, name string, data []byte) (Batch, error) {
	parsed, err := csvparser.Parse(name, data, p.settings)
	if err != nil {
		return Batch{}, err
	}

	if parsed.ColumnCount() != p.settings.ColumnCount {
		return Batch{}, eris.Wrapf(ErrColumnCount, "%s has %d columns, want %d",
			name, parsed.ColumnCount(), p.settings.ColumnCount)
	}

	rows := normalize.DropBlankRows(parsed.Rows)
	batch := Batch{TotalRowsRead: len(rows)}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return Batch{}, eris.Wrap(err, "source: read cancelled")
		}

		txnType := normalize.Cell(row, ppColType)
		if !IsDonation(txnType) {
			continue
		}

		rec, err := mapPayPalRow(row, txnType)
		if err != nil {
			return Batch{}, eris.Wrapf(err, "%s: data row %d", name, i+1)
		}
		batch.Records = append(batch.Records, rec)
	}

	p.logger.Debug("read export",
		zap.String("file", name),
		zap.Int("rows", batch.TotalRowsRead),
		zap.Int("donations", len(batch.Records)),
	)

	return batch, nil
}

func mapPayPalRow(row []string, txnType string) (model.Record, error) {
	cell := func(i int) string { return normalize.Cell(row, i) }

	date, err := normalize.ParseDate(cell(ppColDate))
	if err != nil {
		return model.Record{}, err
	}

	gross, err := normalize.ParseAmount(cell(ppColGross))
	if err != nil {
		return model.Record{}, err
	}
	fee, err := normalize.ParseAmount(cell(ppColFee))
	if err != nil {
		return model.Record{}, err
	}
	net, err := normalize.ParseAmount(cell(ppColNet))
	if err != nil {
		return model.Record{}, err
	}

	first, last := normalize.SplitName(cell(ppColShippingName), cell(ppColName), txnType == TxnMassPay)
	note := cell(ppColNote)

	return model.Record{
		DonationDate:  date,
		LastName:      last,
		FirstName:     first,
		Gross:         gross,
		Fee:           fee,
		Net:           net,
		PaymentType:   paypalPaymentType(txnType, note),
		PaymentSource: model.SourcePayPal,
		PaymentNote:   note,
		EmailAddress:  normalize.TrimEmail(cell(ppColEmail)),
		StreetAddress: normalize.JoinAddress(cell(ppColAddress1), cell(ppColAddress2)),
		City:          cell(ppColCity),
		State:         cell(ppColState),
		ZipCode:       cell(ppColZip),
	}, nil
}

func paypalPaymentType(txnType, note string) model.PaymentType {
	switch txnType {
	case TxnMassPay:
		return model.PaymentDonorAdvisedFund
	case TxnSubscription:
		return model.PaymentRecurring
	case TxnDonation:
		if note != "" {
			return model.PaymentOneTimeWithNote
		}
	}
	return model.PaymentOneTime
}
