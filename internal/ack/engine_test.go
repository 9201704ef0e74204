package ack

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/filestore"
	"github.com/ginjaninja78/donation-ledger/internal/ledger"
	"github.com/ginjaninja78/donation-ledger/internal/mailer"
	"github.com/ginjaninja78/donation-ledger/internal/model"
	"github.com/ginjaninja78/donation-ledger/internal/render"
)

// =============================================================================
// FAKES
// =============================================================================

type memLedger struct {
	recs []model.Record
}

func (m *memLedger) Unacknowledged(context.Context) ([]model.Record, error) {
	var out []model.Record
	for _, r := range m.recs {
		if !r.Acknowledged {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memLedger) MarkAcknowledged(_ context.Context, id string) error {
	for i := range m.recs {
		if m.recs[i].ID == id {
			m.recs[i].Acknowledged = true
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (m *memLedger) acknowledged(id string) bool {
	for _, r := range m.recs {
		if r.ID == id {
			return r.Acknowledged
		}
	}
	return false
}

type flakyMailer struct {
	failFor string
	sent    []mailer.Message
}

func (f *flakyMailer) Send(_ context.Context, msg mailer.Message) error {
	if msg.To[0] == f.failFor {
		return errors.New("550 mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type memDocs struct {
	files map[string][]byte
}

func (m *memDocs) Write(_ context.Context, area, name string, data []byte) error {
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[area+"/"+name] = data
	return nil
}

func (m *memDocs) Exists(_ context.Context, area, name string) (bool, error) {
	_, ok := m.files[area+"/"+name]
	return ok, nil
}

func (m *memDocs) names() []string {
	var out []string
	for k := range m.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// brokenBody renders normally except for one donor's letter body.
type brokenBody struct {
	*render.Renderer
	lastName string
}

func (b brokenBody) Body(data render.AckData) (string, error) {
	if data.LastName == b.lastName {
		return "", errors.New("template: body: missing key")
	}
	return b.Renderer.Body(data)
}

// =============================================================================
// HELPERS
// =============================================================================

func record(id, last string, pt model.PaymentType, email string) model.Record {
	return model.Record{
		ID:           id,
		DonationDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		LastName:     last,
		FirstName:    "Pat",
		Gross:        decimal.RequireFromString("100"),
		Fee:          decimal.RequireFromString("3.20"),
		Net:          decimal.RequireFromString("96.80"),
		PaymentType:  pt,
		EmailAddress: email,
	}
}

func withAddress(r model.Record) model.Record {
	r.StreetAddress = "1 Main St"
	r.City = "Salem"
	r.State = "MA"
	r.ZipCode = "01970"
	return r
}

func newEngine(t *testing.T, l Ledger, m mailer.Mailer, docs DocumentStore, opts Options) *Engine {
	t.Helper()
	r, err := render.New("", "")
	require.NoError(t, err)
	if opts.OutputArea == "" {
		opts.OutputArea = "output"
	}
	if opts.OrgName == "" {
		opts.OrgName = "Friends of the Library"
	}
	e, err := New(opts, l, r, m, docs, zap.NewNop())
	require.NoError(t, err)
	return e
}

// =============================================================================
// TESTS
// =============================================================================

func TestNew_RequiresOutputArea(t *testing.T) {
	_, err := New(Options{}, &memLedger{}, nil, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingConfig))
}

func TestRun_RecurringIsMarkedWithoutSending(t *testing.T) {
	l := &memLedger{recs: []model.Record{record("r1", "Lee", model.PaymentRecurring, "lee@example.org")}}
	m := &flakyMailer{}
	docs := &memDocs{}

	res, err := newEngine(t, l, m, docs, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.TotalEligible)
	assert.Equal(t, 1, res.SkippedRecurring)
	assert.Zero(t, res.Emailed)
	assert.Empty(t, m.sent)
	assert.Empty(t, docs.files)
	assert.True(t, l.acknowledged("r1"))
}

func TestRun_UnaddressedStaysPendingAcrossRuns(t *testing.T) {
	l := &memLedger{recs: []model.Record{record("r1", "Doe", model.PaymentOneTime, "")}}
	e := newEngine(t, l, &flakyMailer{}, &memDocs{}, Options{})

	for run := 0; run < 2; run++ {
		res, err := e.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, res.TotalEligible)
		assert.Equal(t, 1, res.SkippedUnaddressed)
		assert.False(t, l.acknowledged("r1"))
	}
}

func TestRun_ErrorIsolation(t *testing.T) {
	l := &memLedger{recs: []model.Record{
		record("r1", "Adams", model.PaymentOneTime, "adams@example.org"),
		record("r2", "Baker", model.PaymentOneTime, "baker@example.org"),
		record("r3", "Clark", model.PaymentOneTime, "clark@example.org"),
		record("r4", "Davis", model.PaymentOneTime, "davis@example.org"),
		record("r5", "Evans", model.PaymentOneTime, "evans@example.org"),
	}}
	m := &flakyMailer{failFor: "clark@example.org"}

	res, err := newEngine(t, l, m, &memDocs{}, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, res.TotalEligible)
	assert.Equal(t, 4, res.Emailed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "r3", res.Errors[0].RecordID)
	assert.Equal(t, "Pat Clark", res.Errors[0].Donor)
	assert.Contains(t, res.Errors[0].Detail, "550")

	assert.False(t, l.acknowledged("r3"))
	for _, id := range []string{"r1", "r2", "r4", "r5"} {
		assert.True(t, l.acknowledged(id), id)
	}

	// The failed record is retried on the next run.
	m.failFor = ""
	res, err = newEngine(t, l, m, &memDocs{}, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalEligible)
	assert.Equal(t, 1, res.Emailed)
	assert.True(t, l.acknowledged("r3"))
}

func TestRun_RenderFailureIsIsolated(t *testing.T) {
	l := &memLedger{recs: []model.Record{
		record("r1", "Adams", model.PaymentOneTime, "adams@example.org"),
		record("r2", "Baker", model.PaymentOneTime, "baker@example.org"),
		record("r3", "Clark", model.PaymentOneTime, "clark@example.org"),
		record("r4", "Davis", model.PaymentOneTime, "davis@example.org"),
		record("r5", "Evans", model.PaymentOneTime, "evans@example.org"),
	}}
	m := &flakyMailer{}

	base, err := render.New("", "")
	require.NoError(t, err)
	e, err := New(Options{OutputArea: "output", OrgName: "Friends of the Library"},
		l, brokenBody{Renderer: base, lastName: "Baker"}, m, &memDocs{}, zap.NewNop())
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, res.TotalEligible)
	assert.Equal(t, 4, res.Emailed)
	assert.Len(t, m.sent, 4)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "r2", res.Errors[0].RecordID)
	assert.Contains(t, res.Errors[0].Detail, "missing key")

	assert.False(t, l.acknowledged("r2"))
	for _, id := range []string{"r1", "r3", "r4", "r5"} {
		assert.True(t, l.acknowledged(id), id)
	}
}

func TestRun_ExcludedFundIsNotCounted(t *testing.T) {
	l := &memLedger{recs: []model.Record{
		record("r1", "Fidelity", model.PaymentDonorAdvisedFund, "Grants@Fund.example.org"),
		record("r2", "Schwab", model.PaymentDonorAdvisedFund, "daf@schwab.example.org"),
	}}
	m := &flakyMailer{}

	res, err := newEngine(t, l, m, &memDocs{}, Options{
		ExcludedFundEmails: []string{"grants@fund.example.org"},
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.TotalEligible)
	assert.Equal(t, 1, res.Emailed)
	assert.False(t, l.acknowledged("r1"))
	assert.True(t, l.acknowledged("r2"))
}

func TestRun_AmountQuotedByPaymentType(t *testing.T) {
	l := &memLedger{recs: []model.Record{
		record("r1", "Gross", model.PaymentOneTime, "gross@example.org"),
		record("r2", "Net", model.PaymentCheck, "net@example.org"),
	}}
	m := &flakyMailer{}

	_, err := newEngine(t, l, m, &memDocs{}, Options{ReplyTo: "office@example.org", SenderName: "The Library"}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, m.sent, 2)
	assert.Contains(t, m.sent[0].HTMLBody, "$100.00")
	assert.Contains(t, m.sent[1].HTMLBody, "$96.80")
	assert.Equal(t, "office@example.org", m.sent[0].ReplyTo)
	assert.Equal(t, "The Library", m.sent[0].SenderName)
	assert.Equal(t, "Thank you for your gift to Friends of the Library", m.sent[0].Subject)
}

func TestRun_DocumentForPostalDonor(t *testing.T) {
	l := &memLedger{recs: []model.Record{
		withAddress(record("r1", "O'Brien", model.PaymentIRADistribution, "")),
		withAddress(record("r2", "O'Brien", model.PaymentCheck, "")),
	}}
	docs := &memDocs{}

	res, err := newEngine(t, l, &flakyMailer{}, docs, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Documented)
	assert.Equal(t, []string{
		"output/O-Brien_Pat_2024-03-15.html",
		"output/O-Brien_Pat_2024-03-15_2.html",
	}, docs.names())
	assert.True(t, strings.Contains(string(docs.files["output/O-Brien_Pat_2024-03-15.html"]), "1 Main St"))
	assert.True(t, l.acknowledged("r1"))
}

func TestRun_DocumentsFromEarlierRunsAreKept(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "output")
	files := filestore.NewLocal()

	first := withAddress(record("r1", "Smith", model.PaymentCheck, ""))
	l := &memLedger{recs: []model.Record{first}}
	e := newEngine(t, l, &flakyMailer{}, files, Options{OutputArea: out})

	res, err := e.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Documented)
	letter, err := files.Read(ctx, out, "Smith_Pat_2024-03-15.html")
	require.NoError(t, err)

	second := withAddress(record("r2", "Smith", model.PaymentCheck, ""))
	second.Net = decimal.RequireFromString("5000")
	l.recs = append(l.recs, second)

	res, err = e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documented)

	entries, err := files.List(ctx, out)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	kept, err := files.Read(ctx, out, "Smith_Pat_2024-03-15.html")
	require.NoError(t, err)
	assert.Equal(t, letter, kept)

	next, err := files.Read(ctx, out, "Smith_Pat_2024-03-15_2.html")
	require.NoError(t, err)
	assert.Contains(t, string(next), "$5,000.00")
}

func TestRun_UnknownTypeIsRecordError(t *testing.T) {
	l := &memLedger{recs: []model.Record{record("r1", "Doe", model.PaymentType("Z9"), "doe@example.org")}}

	res, err := newEngine(t, l, &flakyMailer{}, &memDocs{}, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalEligible)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Detail, "Z9")
	assert.False(t, l.acknowledged("r1"))
}

func TestRun_NothingPending(t *testing.T) {
	res, err := newEngine(t, &memLedger{}, &flakyMailer{}, &memDocs{}, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Units())
}

func TestDocumentName(t *testing.T) {
	r := model.Record{LastName: "van der Berg", FirstName: "Ann-Marie", DonationDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "van-der-Berg_Ann-Marie_2024-01-02.html", DocumentName(r))
	assert.Equal(t, "unknown_unknown_undated.html", DocumentName(model.Record{LastName: "../"}))
}
