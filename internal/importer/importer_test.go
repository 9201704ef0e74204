package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/filestore"
	"github.com/ginjaninja78/donation-ledger/internal/ledger"
	"github.com/ginjaninja78/donation-ledger/internal/model"
	"github.com/ginjaninja78/donation-ledger/internal/xlsxparser"
)

type env struct {
	intake    string
	processed string
	store     *ledger.SQLiteStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		intake:    filepath.Join(root, "intake"),
		processed: filepath.Join(root, "processed"),
	}
	require.NoError(t, os.MkdirAll(e.intake, 0o755))

	store, err := ledger.NewSQLite(filepath.Join(root, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	e.store = store
	return e
}

func (e *env) importer(t *testing.T, files filestore.Store) *Importer {
	t.Helper()
	if files == nil {
		files = filestore.NewLocal()
	}
	im, err := New(Options{
		IntakeArea:     e.intake,
		ProcessedArea:  e.processed,
		InsertionPoint: 1,
	}, e.store, files, zap.NewNop())
	require.NoError(t, err)
	return im
}

func (e *env) put(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.intake, name), data, 0o644))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func paypalExport(t *testing.T, width int, rows ...[]string) []byte {
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

func paypalRow(date, name, txnType, gross, note string) []string {
	row := make([]string, config.DefaultPayPalColumnCount)
	row[0] = date
	row[3] = name
	row[4] = txnType
	row[7] = gross
	row[8] = "0.00"
	row[9] = gross
	row[10] = "donor@example.org"
	row[38] = note
	return row
}

func checkWorkbook(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	data, err := xlsxparser.WriteRegion("Checks", config.DefaultDataMarker, model.ColumnNames[:], rows)
	require.NoError(t, err)
	return data
}

func checkRow(date, last, gross string) []string {
	return []string{"", date, last, "Pat", "", gross, "0", gross, "C1", "Check", "", "", "1 Main St", "Salem", "MA", "1970"}
}

func TestNew_RequiresConfiguration(t *testing.T) {
	_, err := New(Options{ProcessedArea: "p", InsertionPoint: 1}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingConfig))
	assert.Contains(t, err.Error(), "files.intake")

	_, err = New(Options{IntakeArea: "i", ProcessedArea: "p"}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingConfig))
	assert.Contains(t, err.Error(), "insertion_point")
}

func TestRun_NothingPending(t *testing.T) {
	e := newEnv(t)
	res, err := e.importer(t, nil).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Pending())
	assert.NotEmpty(t, res.RunID)
}

func TestRun_ImportsAndIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.put(t, "PayPal_March.csv", paypalExport(t, 41,
		paypalRow("3/10/2024", "Jane Doe", "Donation Payment", "50.00", ""),
		paypalRow("3/12/2024", "Sam Lee", "Subscription Payment", "10.00", ""),
		paypalRow("3/11/2024", "Ann Green", "Donation Payment", "20.00", "In memory of Bob"),
		paypalRow("3/11/2024", "Shop Co", "General Payment", "99.00", ""),
	))
	e.put(t, "checks_march.xlsx", checkWorkbook(t,
		checkRow("2024/03/01", "Adams", "100"),
		checkRow("2024/03/05", "Baker", "75"),
	))

	ctx := context.Background()
	res, err := e.importer(t, nil).Run(ctx)
	require.NoError(t, err)

	require.Len(t, res.Files, 2)
	assert.Equal(t, "checks_march.xlsx", res.Files[0].File)
	assert.Equal(t, model.KindCheckLedger, res.Files[0].Kind)
	assert.Equal(t, "PayPal_March.csv", res.Files[1].File)
	assert.True(t, res.Files[0].Succeeded)
	assert.True(t, res.Files[1].Succeeded)
	assert.Equal(t, 4, res.Files[1].TotalRowsRead)
	assert.Equal(t, 3, res.Files[1].RecordsInserted)
	assert.Equal(t, 5, res.Inserted())

	require.Len(t, res.PaymentNotes, 1)
	assert.Equal(t, "Green", res.PaymentNotes[0].LastName)
	assert.Equal(t, "In memory of Bob", res.PaymentNotes[0].Note)

	assert.False(t, exists(filepath.Join(e.intake, "PayPal_March.csv")))
	assert.True(t, exists(filepath.Join(e.processed, "PayPal_March.csv")))
	assert.True(t, exists(filepath.Join(e.processed, "checks_march.xlsx")))

	// The PayPal block went in last, at the top, newest first; the check
	// block sits below it and is not merged by date.
	all, err := e.store.All(ctx)
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, r := range all {
		names[i] = r.LastName
	}
	assert.Equal(t, []string{"Lee", "Green", "Doe", "Baker", "Adams"}, names)
	assert.Equal(t, "PayPal_March.csv", all[0].SourceFile)
	assert.Equal(t, "01970", all[3].ZipCode)

	res, err = e.importer(t, nil).Run(ctx)
	require.NoError(t, err)
	assert.False(t, res.Pending())

	all, err = e.store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRun_UnsupportedFileLeftInPlace(t *testing.T) {
	e := newEnv(t)
	e.put(t, "bank_statement.pdf", []byte("%PDF"))

	res, err := e.importer(t, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Files, 1)
	assert.False(t, res.Files[0].Succeeded)
	assert.Equal(t, model.KindUnsupported, res.Files[0].Kind)
	assert.Contains(t, res.Files[0].ErrorDetail, "unsupported")
	assert.True(t, exists(filepath.Join(e.intake, "bank_statement.pdf")))
}

func TestRun_BadColumnCountFailsFileOnly(t *testing.T) {
	e := newEnv(t)
	e.put(t, "paypal_a.csv", paypalExport(t, 40))
	e.put(t, "paypal_b.csv", paypalExport(t, 41,
		paypalRow("3/10/2024", "Jane Doe", "Donation Payment", "50.00", ""),
	))

	res, err := e.importer(t, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Files, 2)
	assert.False(t, res.Files[0].Succeeded)
	assert.Contains(t, res.Files[0].ErrorDetail, "column count")
	assert.True(t, res.Files[1].Succeeded)
	assert.Equal(t, 1, res.Failed())

	assert.True(t, exists(filepath.Join(e.intake, "paypal_a.csv")))
	assert.False(t, exists(filepath.Join(e.intake, "paypal_b.csv")))
}

func TestRun_InvalidCheckRowsFailWholeFile(t *testing.T) {
	e := newEnv(t)
	bad := checkRow("2024/03/01", "Adams", "100")
	bad[model.ColPaymentType] = "P4"
	e.put(t, "checks.xlsx", checkWorkbook(t, checkRow("2024/03/02", "Baker", "10"), bad))

	res, err := e.importer(t, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.False(t, res.Files[0].Succeeded)
	assert.Contains(t, res.Files[0].ErrorDetail, "row 3")

	all, err := e.store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

type failingMove struct {
	*filestore.Local
}

func (failingMove) Move(context.Context, string, string, string) error {
	return errors.New("permission denied")
}

func TestRun_MoveFailureKeepsInsertedRecords(t *testing.T) {
	e := newEnv(t)
	e.put(t, "paypal.csv", paypalExport(t, 41,
		paypalRow("3/10/2024", "Jane Doe", "Donation Payment", "50.00", ""),
	))

	res, err := e.importer(t, failingMove{filestore.NewLocal()}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Files, 1)
	fr := res.Files[0]
	assert.True(t, fr.Succeeded)
	assert.Equal(t, 1, fr.RecordsInserted)
	assert.Contains(t, fr.ErrorDetail, "permission denied")
	assert.True(t, exists(filepath.Join(e.intake, "paypal.csv")))

	all, err := e.store.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRun_MissingIntakeIsFatal(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.RemoveAll(e.intake))

	_, err := e.importer(t, nil).Run(context.Background())
	require.Error(t, err)
}

func TestSortNewestFirst_Stable(t *testing.T) {
	recs := []model.Record{
		{LastName: "A", DonationDate: mustDate(t, "2024/03/01")},
		{LastName: "B", DonationDate: mustDate(t, "2024/03/05")},
		{LastName: "C", DonationDate: mustDate(t, "2024/03/01")},
	}
	SortNewestFirst(recs)
	assert.Equal(t, "B", recs[0].LastName)
	assert.Equal(t, "A", recs[1].LastName)
	assert.Equal(t, "C", recs[2].LastName)
}

func mustDate(t *testing.T, s string) (d time.Time) {
	t.Helper()
	d, err := time.Parse(model.DateLayout, s)
	require.NoError(t, err)
	return d
}
