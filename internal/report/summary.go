// =============================================================================
// Donation Ledger - Run Summaries
// =============================================================================
//
// This module turns the result of a pipeline run into a Summary: a titled list
// of statistics plus detail sections. A Summary renders three ways:
//   - Text:    plain text, used for log files in the output area
//   - HTML:    used as the body of summary emails
//   - Console: lipgloss-styled output for interactive runs
//
// =============================================================================

package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ginjaninja78/donation-ledger/internal/model"
)

// Kind names the run a summary describes.
type Kind string

const (
	KindImport      Kind = "Import"
	KindAcknowledge Kind = "Acknowledgement"
	KindRollup      Kind = "Annual rollup"
)

// Stat is one labelled figure.
type Stat struct {
	Label string
	Value string
}

// Section is a titled list of detail lines. Failure sections are styled as
// errors on the console.
type Section struct {
	Title   string
	Lines   []string
	Failure bool
}

// Summary describes one run independently of how it is rendered.
type Summary struct {
	Kind       Kind
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Units is the amount of work the run found. A summary with zero units
	// is never delivered.
	Units int

	Stats    []Stat
	Sections []Section
}

// Title returns the heading used by every rendering.
func (s Summary) Title() string {
	return fmt.Sprintf("%s summary", s.Kind)
}

// Duration returns the run's wall time.
func (s Summary) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)
}

func stat(label string, n int) Stat {
	return Stat{Label: label, Value: strconv.Itoa(n)}
}

// =============================================================================
// BUILDERS
// =============================================================================

// FromImport summarizes an import run. Units is the number of intake files.
func FromImport(r *model.ImportBatchResult) Summary {
	s := Summary{
		Kind:       KindImport,
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Units:      len(r.Files),
		Stats: []Stat{
			stat("Files", len(r.Files)),
			stat("Imported", len(r.Files)-r.Failed()),
			stat("Failed", r.Failed()),
			stat("Records inserted", r.Inserted()),
		},
	}

	var imported, failed []string
	for _, f := range r.Files {
		switch {
		case f.Succeeded && f.ErrorDetail == "":
			imported = append(imported, fmt.Sprintf("%s: %d rows read, %d records inserted",
				f.File, f.TotalRowsRead, f.RecordsInserted))
		case f.Succeeded:
			failed = append(failed, fmt.Sprintf("%s: %d records inserted, %s",
				f.File, f.RecordsInserted, f.ErrorDetail))
		default:
			failed = append(failed, fmt.Sprintf("%s: %s", f.File, f.ErrorDetail))
		}
	}
	if len(imported) > 0 {
		s.Sections = append(s.Sections, Section{Title: "Imported files", Lines: imported})
	}
	if len(failed) > 0 {
		s.Sections = append(s.Sections, Section{Title: "Failed files", Lines: failed, Failure: true})
	}

	if len(r.PaymentNotes) > 0 {
		notes := make([]string, 0, len(r.PaymentNotes))
		for _, n := range r.PaymentNotes {
			notes = append(notes, fmt.Sprintf("%s %s, %s (%s): %s",
				n.DonationDate.Format(model.DateLayout), n.LastName, n.FirstName, n.File, n.Note))
		}
		s.Sections = append(s.Sections, Section{Title: "Payment notes", Lines: notes})
	}
	return s
}

// FromAck summarizes an acknowledgement run. Units is the eligible count.
func FromAck(r *model.AckBatchResult) Summary {
	s := Summary{
		Kind:       KindAcknowledge,
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Units:      r.Units(),
		Stats: []Stat{
			stat("Eligible", r.TotalEligible),
			stat("Emailed", r.Emailed),
			stat("Documents stored", r.Documented),
			stat("Recurring skipped", r.SkippedRecurring),
			stat("Missing address", r.SkippedUnaddressed),
			stat("Errors", len(r.Errors)),
		},
	}

	if len(r.Errors) > 0 {
		lines := make([]string, 0, len(r.Errors))
		for _, e := range r.Errors {
			lines = append(lines, fmt.Sprintf("%s (%s): %s", e.Donor, e.RecordID, e.Detail))
		}
		s.Sections = append(s.Sections, Section{Title: "Errors", Lines: lines, Failure: true})
	}
	return s
}

// FromRollup summarizes a rollup run. Units is the number of donor groups.
func FromRollup(r *model.RollupResult) Summary {
	s := Summary{
		Kind:  KindRollup,
		RunID: r.RunID,
		Units: r.Groups,
		Stats: []Stat{
			{Label: "Tax year", Value: strconv.Itoa(r.TaxYear)},
			stat("Donors", r.Groups),
			stat("Summary records inserted", r.RecordsInserted),
			stat("Already summarized", r.SkippedExisting),
		},
	}

	if len(r.Records) > 0 {
		lines := make([]string, 0, len(r.Records))
		for _, rec := range r.Records {
			lines = append(lines, fmt.Sprintf("%s, %s: %s (last gift %s)",
				rec.LastName, rec.FirstName, rec.Gross.StringFixed(2), rec.DonationDate.Format(model.DateLayout)))
		}
		s.Sections = append(s.Sections, Section{Title: "Summary records", Lines: lines})
	}
	return s
}
