// =============================================================================
// Donation Ledger - Canonical Record Types
// =============================================================================
//
// This package contains the canonical donation record shared by every stage of
// the pipeline. Types defined here are used by:
//   - source adapters (produce records)
//   - ledger stores (persist records)
//   - the acknowledgement engine and rollup generator (consume records)
//
// CANONICAL SCHEMA:
//   Every record has exactly 16 canonical columns in a fixed order. The order
//   is the wire format between adapters, the ledger, exports and the
//   acknowledgement engine. Reordering ColumnNames breaks all of them.
//
// =============================================================================

package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/donation-ledger/internal/normalize"
)

// =============================================================================
// CANONICAL COLUMNS
// =============================================================================

// ColumnCount is the number of canonical columns in a ledger row.
const ColumnCount = 16

// ColumnNames lists the canonical column headers in ledger order.
var ColumnNames = [ColumnCount]string{
	"Admin",
	"Donation date",
	"Last name",
	"First name",
	"Salutation/Other names",
	"Gross",
	"Fee",
	"Net",
	"Payment type",
	"Payment source",
	"Payment notes",
	"Email address",
	"Street address",
	"City",
	"State",
	"Zip code",
}

// Column indexes into a canonical row.
const (
	ColAcknowledged = iota
	ColDonationDate
	ColLastName
	ColFirstName
	ColSalutation
	ColGross
	ColFee
	ColNet
	ColPaymentType
	ColPaymentSource
	ColPaymentNote
	ColEmailAddress
	ColStreetAddress
	ColCity
	ColState
	ColZipCode
)

// DateLayout is the layout used for donation dates in ledger rows and reports.
const DateLayout = "2006/01/02"

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// PaymentType classifies a donation and drives the acknowledgement decision.
type PaymentType string

const (
	// PaymentOneTime is a regular tax deductible one-time gift from the processor.
	PaymentOneTime PaymentType = "P1"

	// PaymentRecurring is a monthly recurring gift from the processor.
	// Recurring gifts are acknowledged once a year through a rollup record.
	PaymentRecurring PaymentType = "P2"

	// PaymentOneTimeWithNote is a one-time processor gift carrying a donor note.
	PaymentOneTimeWithNote PaymentType = "P3"

	// PaymentAnnualRollup is a synthesized yearly summary of P2 gifts.
	PaymentAnnualRollup PaymentType = "P4"

	// PaymentCheck is a regular tax deductible check.
	PaymentCheck PaymentType = "C1"

	// PaymentDonorAdvisedFund is a donor advised fund check or EFT.
	PaymentDonorAdvisedFund PaymentType = "D1"

	// PaymentIRADistribution is an IRA distribution check.
	PaymentIRADistribution PaymentType = "I1"
)

var paymentTypeDescriptions = map[PaymentType]string{
	PaymentOneTime:          "one-time gift",
	PaymentRecurring:        "recurring gift",
	PaymentOneTimeWithNote:  "one-time gift with note",
	PaymentAnnualRollup:     "annual recurring gift summary",
	PaymentCheck:            "check",
	PaymentDonorAdvisedFund: "donor advised fund",
	PaymentIRADistribution:  "IRA distribution",
}

// ParsePaymentType converts ledger text into a PaymentType.
// The second return value is false if the text names no known type.
func ParsePaymentType(s string) (PaymentType, bool) {
	pt := PaymentType(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := paymentTypeDescriptions[pt]
	return pt, ok
}

// Valid reports whether the payment type is one of the known codes.
func (p PaymentType) Valid() bool {
	_, ok := paymentTypeDescriptions[p]
	return ok
}

// Description returns a human-readable description of the payment type.
func (p PaymentType) Description() string {
	if d, ok := paymentTypeDescriptions[p]; ok {
		return d
	}
	return string(p)
}

// UsesNetAmount reports whether acknowledgements for this type quote the net
// amount rather than the gross amount.
func (p PaymentType) UsesNetAmount() bool {
	switch p {
	case PaymentDonorAdvisedFund, PaymentCheck, PaymentIRADistribution:
		return true
	}
	return false
}

// =============================================================================
// PAYMENT SOURCES
// =============================================================================

// PaymentSource names where a donation came from. Ledger sources carry the
// value as free text, so any string is accepted.
type PaymentSource string

const (
	SourcePayPal PaymentSource = "PayPal"
	SourceCheck  PaymentSource = "Check"
	SourceEFT    PaymentSource = "EFT"
)

// =============================================================================
// DONATION RECORD
// =============================================================================

// Record is the canonical unit of the ledger, one per contribution.
type Record struct {
	// ID is the stable identifier assigned when the record enters the ledger.
	ID string

	// Position is the ledger row order, 1 being the top row.
	Position int

	// SourceFile is the intake file the record was imported from.
	// Empty for synthesized records.
	SourceFile string

	// CreatedAt is when the record was inserted into the ledger.
	CreatedAt time.Time

	// Canonical fields, in ledger order.
	Acknowledged  bool
	DonationDate  time.Time
	LastName      string
	FirstName     string
	Salutation    string
	Gross         decimal.Decimal
	Fee           decimal.Decimal
	Net           decimal.Decimal
	PaymentType   PaymentType
	PaymentSource PaymentSource
	PaymentNote   string
	EmailAddress  string
	StreetAddress string
	City          string
	State         string
	ZipCode       string
}

// Addressable reports whether the record has enough contact information to
// receive an acknowledgement: an email address, or a complete postal address.
func (r Record) Addressable() bool {
	if strings.TrimSpace(r.EmailAddress) != "" {
		return true
	}
	for _, v := range []string{r.StreetAddress, r.City, r.State, r.ZipCode} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// AcknowledgementAmount returns the amount quoted to the donor.
func (r Record) AcknowledgementAmount() decimal.Decimal {
	if r.PaymentType.UsesNetAmount() {
		return r.Net
	}
	return r.Gross
}

// DonorName returns "First Last" for logs and reports.
func (r Record) DonorName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Row returns the 16 canonical cells in ledger order.
func (r Record) Row() []string {
	ack := "FALSE"
	if r.Acknowledged {
		ack = "TRUE"
	}

	date := ""
	if !r.DonationDate.IsZero() {
		date = r.DonationDate.Format(DateLayout)
	}

	return []string{
		ack,
		date,
		r.LastName,
		r.FirstName,
		r.Salutation,
		r.Gross.StringFixed(2),
		r.Fee.StringFixed(2),
		r.Net.StringFixed(2),
		string(r.PaymentType),
		string(r.PaymentSource),
		r.PaymentNote,
		r.EmailAddress,
		r.StreetAddress,
		r.City,
		r.State,
		r.ZipCode,
	}
}

// RecordFromRow parses 16 canonical cells back into a record. Dates go
// through normalize.ParseDate, amounts through normalize.ParseAmount and the
// zip code through normalize.PadZip. The payment type must be a known code.
func RecordFromRow(row []string) (Record, error) {
	if len(row) < ColumnCount {
		return Record{}, eris.Errorf("model: row has %d cells, want %d", len(row), ColumnCount)
	}

	cell := func(i int) string { return normalize.Cell(row, i) }

	date, err := normalize.ParseDate(cell(ColDonationDate))
	if err != nil {
		return Record{}, eris.Wrap(err, "model: donation date")
	}

	amounts := make([]decimal.Decimal, 3)
	for i, col := range []int{ColGross, ColFee, ColNet} {
		amounts[i], err = normalize.ParseAmount(cell(col))
		if err != nil {
			return Record{}, eris.Wrapf(err, "model: %s", strings.ToLower(ColumnNames[col]))
		}
	}

	pt, ok := ParsePaymentType(cell(ColPaymentType))
	if !ok {
		return Record{}, eris.Errorf("model: unknown payment type %q", cell(ColPaymentType))
	}

	return Record{
		Acknowledged:  ParseFlag(cell(ColAcknowledged)),
		DonationDate:  date,
		LastName:      cell(ColLastName),
		FirstName:     cell(ColFirstName),
		Salutation:    cell(ColSalutation),
		Gross:         amounts[0],
		Fee:           amounts[1],
		Net:           amounts[2],
		PaymentType:   pt,
		PaymentSource: PaymentSource(cell(ColPaymentSource)),
		PaymentNote:   cell(ColPaymentNote),
		EmailAddress:  normalize.TrimEmail(cell(ColEmailAddress)),
		StreetAddress: cell(ColStreetAddress),
		City:          cell(ColCity),
		State:         cell(ColState),
		ZipCode:       normalize.PadZip(cell(ColZipCode)),
	}, nil
}

// ParseFlag reads the Admin column. Spreadsheet checkboxes export as TRUE,
// hand-kept ledgers tend to use x or yes.
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "x", "yes", "y", "1":
		return true
	}
	return false
}
