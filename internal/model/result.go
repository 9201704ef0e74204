package model

import (
	"time"
)

// =============================================================================
// SOURCE FILES
// =============================================================================

// SourceKind classifies an intake file by its filename prefix.
type SourceKind string

const (
	KindPayPalExport SourceKind = "PayPalExport"
	KindCheckLedger  SourceKind = "CheckLedger"
	KindUnsupported  SourceKind = "Unsupported"
)

// SourceFile is a file found in the intake area.
type SourceFile struct {
	Name    string
	Kind    SourceKind
	ModTime time.Time
}

// =============================================================================
// IMPORT RESULTS
// =============================================================================

// FileResult is the outcome of importing one intake file.
type FileResult struct {
	File            string
	Kind            SourceKind
	Succeeded       bool
	TotalRowsRead   int
	RecordsInserted int

	// ErrorDetail is set when Succeeded is false, or when the records were
	// inserted but the file could not be moved out of the intake area.
	ErrorDetail string
}

// NoteEntry is an inserted record carrying a payment note, listed for
// operator review.
type NoteEntry struct {
	File         string
	LastName     string
	FirstName    string
	DonationDate time.Time
	Note         string
}

// ImportBatchResult summarizes one import run.
type ImportBatchResult struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Files        []FileResult
	PaymentNotes []NoteEntry
}

// Pending reports whether the run found at least one intake file.
func (r *ImportBatchResult) Pending() bool {
	return len(r.Files) > 0
}

// Inserted returns the total number of records inserted by the run.
func (r *ImportBatchResult) Inserted() int {
	n := 0
	for _, f := range r.Files {
		n += f.RecordsInserted
	}
	return n
}

// Failed returns the number of files that did not import.
func (r *ImportBatchResult) Failed() int {
	n := 0
	for _, f := range r.Files {
		if !f.Succeeded {
			n++
		}
	}
	return n
}

// =============================================================================
// ACKNOWLEDGEMENT RESULTS
// =============================================================================

// RecordError captures a per-record acknowledgement failure. The record stays
// unacknowledged and is retried on the next run.
type RecordError struct {
	RecordID string
	Donor    string
	Detail   string
}

// AckBatchResult summarizes one acknowledgement run.
type AckBatchResult struct {
	RunID              string
	StartedAt          time.Time
	FinishedAt         time.Time
	TotalEligible      int
	Emailed            int
	Documented         int
	SkippedRecurring   int
	SkippedUnaddressed int
	Errors             []RecordError
}

// Units returns the number of records the run had to consider.
func (r *AckBatchResult) Units() int {
	return r.TotalEligible
}

// =============================================================================
// ROLLUP RESULTS
// =============================================================================

// RollupResult summarizes one annual rollup run.
type RollupResult struct {
	RunID           string
	TaxYear         int
	Groups          int
	RecordsInserted int
	SkippedExisting int
	Records         []Record
}
