// =============================================================================
// Donation Ledger - Validation Engine
// =============================================================================
//
// This module validates canonical ledger rows read from a source before they
// are turned into records. Errors are collected, not returned on the first
// failure, so one pass reports every bad row in a file.
//
// RULES:
//   - Donation date is required and must parse
//   - Gross, fee and net must be numeric when present
//   - Payment type must be a known code
//   - Payment type must not be a synthesized type (P4 comes only from the rollup)
//   - At least one of last name and first name must be present
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/donation-ledger/internal/model"
	"github.com/ginjaninja78/donation-ledger/internal/normalize"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation error.
type ValidationError struct {
	// RowNumber is the sheet row number, for error reporting.
	RowNumber int

	// Field is the canonical column name that failed validation.
	Field string

	// Value is the actual value that failed validation.
	Value string

	// Message is a human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d, %s: %s (value: '%s')", e.RowNumber, e.Field, e.Message, e.Value)
}

// =============================================================================
// VALIDATION FUNCTIONS
// =============================================================================

// ValidateRow checks a canonical row.
//
// PARAMETERS:
//   - rowNumber: The sheet row number, copied into each error.
//   - row: The 16 canonical cells. Short rows are treated as blank-padded.
//
// RETURNS:
//   - Every rule violation found, or nil for a valid row.
func ValidateRow(rowNumber int, row []string) []*ValidationError {
	var errs []*ValidationError
	add := func(col int, msg string) {
		errs = append(errs, &ValidationError{
			RowNumber: rowNumber,
			Field:     model.ColumnNames[col],
			Value:     normalize.Cell(row, col),
			Message:   msg,
		})
	}

	if normalize.Cell(row, model.ColDonationDate) == "" {
		add(model.ColDonationDate, "required")
	} else if _, err := normalize.ParseDate(normalize.Cell(row, model.ColDonationDate)); err != nil {
		add(model.ColDonationDate, "not a recognizable date")
	}

	if normalize.Cell(row, model.ColLastName) == "" && normalize.Cell(row, model.ColFirstName) == "" {
		add(model.ColLastName, "donor name required")
	}

	for _, col := range []int{model.ColGross, model.ColFee, model.ColNet} {
		if _, err := normalize.ParseAmount(normalize.Cell(row, col)); err != nil {
			add(col, "not numeric")
		}
	}

	raw := normalize.Cell(row, model.ColPaymentType)
	pt, ok := model.ParsePaymentType(raw)
	switch {
	case raw == "":
		add(model.ColPaymentType, "required")
	case !ok:
		add(model.ColPaymentType, "unknown payment type")
	case pt == model.PaymentAnnualRollup:
		add(model.ColPaymentType, "annual rollup records cannot be imported")
	}

	return errs
}

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errs []*ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%d validation error(s): ", len(errs)))

	for i, err := range errs {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(err.Error())
	}

	return builder.String()
}
