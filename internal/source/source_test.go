package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/model"
	"github.com/ginjaninja78/donation-ledger/internal/xlsxparser"
)

// =============================================================================
// PAYPAL
// =============================================================================

func ppRow(cols map[int]string) []string {
	row := make([]string, config.DefaultPayPalColumnCount)
	for i, v := range cols {
		row[i] = v
	}
	return row
}

func ppExport(t *testing.T, width int, rows ...[]string) []byte {
	t.Helper()

	header := make([]string, width)
	for i := range header {
		header[i] = "col"
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.Write(header))
	for _, r := range rows {
		require.NoError(t, w.Write(r))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return buf.Bytes()
}

func donation(date, name, txnType, gross, note string) []string {
	return ppRow(map[int]string{
		ppColDate:  date,
		ppColName:  name,
		ppColType:  txnType,
		ppColGross: gross,
		ppColFee:   "-1.00",
		ppColNet:   gross,
		ppColEmail: "donor@example.org.",
		ppColNote:  note,
	})
}

func TestPayPal_FiltersAndMaps(t *testing.T) {
	data := ppExport(t, 41,
		donation("3/15/2024", "JANE DOE", TxnDonation, "50.00", ""),
		donation("3/14/2024", "Sam Lee", TxnSubscription, "10.00", ""),
		donation("3/13/2024", "Fidelity Charitable", TxnMassPay, "500.00", ""),
		donation("3/12/2024", "Ann Green", TxnDonation, "20.00", "In memory of Bob"),
		donation("3/11/2024", "Tim Park", TxnMobile, "5.00", "coffee"),
		donation("3/10/2024", "Shop Co", "General Payment", "99.00", ""),
		make([]string, 41),
	)

	batch, err := NewPayPal(config.CSVSettings{}, zap.NewNop()).Read(context.Background(), "paypal.csv", data)
	require.NoError(t, err)

	assert.Equal(t, 6, batch.TotalRowsRead)
	require.Len(t, batch.Records, 5)

	jane := batch.Records[0]
	assert.Equal(t, "Jane", jane.FirstName)
	assert.Equal(t, "Doe", jane.LastName)
	assert.Equal(t, model.PaymentOneTime, jane.PaymentType)
	assert.Equal(t, model.SourcePayPal, jane.PaymentSource)
	assert.Equal(t, "donor@example.org", jane.EmailAddress)
	assert.Equal(t, "2024/03/15", jane.DonationDate.Format(model.DateLayout))
	assert.True(t, decimal.NewFromInt(50).Equal(jane.Gross))

	assert.Equal(t, model.PaymentRecurring, batch.Records[1].PaymentType)

	fund := batch.Records[2]
	assert.Equal(t, model.PaymentDonorAdvisedFund, fund.PaymentType)
	assert.Equal(t, "Fidelity Charitable", fund.LastName)
	assert.Equal(t, "", fund.FirstName)

	assert.Equal(t, model.PaymentOneTimeWithNote, batch.Records[3].PaymentType)
	assert.Equal(t, "In memory of Bob", batch.Records[3].PaymentNote)

	// Only donation payments are promoted to P3.
	assert.Equal(t, model.PaymentOneTime, batch.Records[4].PaymentType)
}

func TestPayPal_ShippingNameAndAddress(t *testing.T) {
	row := ppRow(map[int]string{
		ppColDate:         "03/01/2024",
		ppColName:         "Business Account LLC",
		ppColType:         TxnDonation,
		ppColGross:        "25",
		ppColShippingName: "mary ann, SMITH",
		ppColAddress1:     "1 Main St",
		ppColAddress2:     "Apt 4",
		ppColCity:         "Salem",
		ppColState:        "MA",
		ppColZip:          "01970",
	})

	batch, err := NewPayPal(config.CSVSettings{}, nil).Read(context.Background(), "paypal.csv", ppExport(t, 41, row))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)

	rec := batch.Records[0]
	assert.Equal(t, "Mary ann", rec.FirstName)
	assert.Equal(t, "Smith", rec.LastName)
	assert.Equal(t, "1 Main St, Apt 4", rec.StreetAddress)
	assert.True(t, rec.Addressable())
}

func TestPayPal_ColumnCount(t *testing.T) {
	data := ppExport(t, 40, make([]string, 40))

	_, err := NewPayPal(config.CSVSettings{}, nil).Read(context.Background(), "paypal.csv", data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrColumnCount))
}

func TestPayPal_NoDonations(t *testing.T) {
	data := ppExport(t, 41, donation("3/10/2024", "Shop Co", "General Payment", "99.00", ""))

	batch, err := NewPayPal(config.CSVSettings{}, nil).Read(context.Background(), "paypal.csv", data)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.TotalRowsRead)
	assert.Empty(t, batch.Records)
}

func TestPayPal_BadAmountFailsFile(t *testing.T) {
	data := ppExport(t, 41, donation("3/10/2024", "Jo Ray", TxnDonation, "lots", ""))

	_, err := NewPayPal(config.CSVSettings{}, nil).Read(context.Background(), "paypal.csv", data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data row 1")
}

// =============================================================================
// CHECK LEDGER
// =============================================================================

func checkRow(date, last, first, amount, ptype, zip string) []string {
	row := make([]string, model.ColumnCount)
	row[model.ColDonationDate] = date
	row[model.ColLastName] = last
	row[model.ColFirstName] = first
	row[model.ColGross] = amount
	row[model.ColNet] = amount
	row[model.ColPaymentType] = ptype
	row[model.ColPaymentSource] = "Check"
	row[model.ColStreetAddress] = "9 Elm St"
	row[model.ColCity] = "Boston"
	row[model.ColState] = "MA"
	row[model.ColZipCode] = zip
	return row
}

func checkWorkbook(t *testing.T, marker string, rows ...[]string) []byte {
	t.Helper()
	data, err := xlsxparser.WriteRegion("Checks", marker, model.ColumnNames[:], rows)
	require.NoError(t, err)
	return data
}

func TestCheckLedger_Read(t *testing.T) {
	data := checkWorkbook(t, "donation_data",
		checkRow("20240105", "Smith", "Ann", "100", "C1", "2134"),
		make([]string, model.ColumnCount),
		checkRow("2024/01/06", "Fund", "", "250.00", "D1", "02110"),
	)

	batch, err := NewCheckLedger(config.LedgerSettings{}, zap.NewNop()).Read(context.Background(), "checks.xlsx", data)
	require.NoError(t, err)

	assert.Equal(t, 2, batch.TotalRowsRead)
	require.Len(t, batch.Records, 2)

	first := batch.Records[0]
	assert.Equal(t, "2024/01/05", first.DonationDate.Format(model.DateLayout))
	assert.Equal(t, "02134", first.ZipCode)
	assert.Equal(t, model.PaymentCheck, first.PaymentType)
	assert.Equal(t, model.PaymentSource("Check"), first.PaymentSource)
	assert.Equal(t, model.PaymentDonorAdvisedFund, batch.Records[1].PaymentType)
}

func TestCheckLedger_ValidationFailsFile(t *testing.T) {
	data := checkWorkbook(t, "donation_data",
		checkRow("20240105", "Smith", "Ann", "100", "C1", "02134"),
		checkRow("20240106", "Roll", "Up", "100", "P4", "02134"),
		checkRow("", "Nodate", "Ned", "100", "C1", "02134"),
	)

	_, err := NewCheckLedger(config.LedgerSettings{}, nil).Read(context.Background(), "checks.xlsx", data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "row 3")
	assert.Contains(t, err.Error(), "row 4")
}

func TestCheckLedger_MissingMarker(t *testing.T) {
	data := checkWorkbook(t, "other_range", checkRow("20240105", "Smith", "Ann", "100", "C1", "02134"))

	_, err := NewCheckLedger(config.LedgerSettings{}, nil).Read(context.Background(), "checks.xlsx", data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingMarker))
}

func TestCheckLedger_FirstDataRowOffset(t *testing.T) {
	data := checkWorkbook(t, "donation_data",
		checkRow("20240105", "Skipped", "Sub", "1", "C1", "02134"),
		checkRow("20240106", "Kept", "Row", "2", "C1", "02134"),
	)

	batch, err := NewCheckLedger(config.LedgerSettings{FirstDataRow: 3}, nil).Read(context.Background(), "checks.xlsx", data)
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "Kept", batch.Records[0].LastName)
}

// =============================================================================
// PROFILES
// =============================================================================

func TestForProfile(t *testing.T) {
	profiles := config.DefaultSourceProfiles()

	a, err := ForProfile(config.Classify("paypal-march.csv", profiles), nil)
	require.NoError(t, err)
	assert.IsType(t, &PayPal{}, a)

	a, err = ForProfile(config.Classify("checks.xlsx", profiles), nil)
	require.NoError(t, err)
	assert.IsType(t, &CheckLedger{}, a)

	_, err = ForProfile(config.Classify("budget.xlsx", profiles), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}
