// =============================================================================
// Donation Ledger - Field Normalizer
// =============================================================================
//
// This package converts raw source fields into canonical values. Every
// function is pure and stateless, so adapters can call them in any order.
//
// NORMALIZATIONS:
//   - Date decoding      : 20240315 -> 2024/03/15, then parsed to a date
//   - Name splitting     : shipping name "First, Last" or payer name tokens
//   - Email trimming     : trailing punctuation removed, lower-cased
//   - Zip padding        : 2134 -> 02134
//   - Address join       : "line 1, line 2"
//   - Blank-row filtering: rows whose cells are all empty are dropped
//   - Amount parsing     : "$1,234.50" -> decimal 1234.50
//
// =============================================================================

package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// AddressJoinSeparator joins the two street address lines of a processor row.
const AddressJoinSeparator = ", "

var (
	encodedDatePattern = regexp.MustCompile(`^\d{8}$`)
	serialDatePattern  = regexp.MustCompile(`^\d{5}(\.\d+)?$`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	commaSplitPattern  = regexp.MustCompile(`\s*,\s*`)
)

// dateLayouts are tried in order after DecodeDate.
var dateLayouts = []string{
	"2006/01/02",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1/2/06",
	"01-02-06",
}

// =============================================================================
// DATES
// =============================================================================

// DecodeDate rewrites an 8-digit YYYYMMDD value to YYYY/MM/DD.
// Any other value is returned unchanged.
func DecodeDate(s string) string {
	s = strings.TrimSpace(s)
	if !encodedDatePattern.MatchString(s) {
		return s
	}
	return s[0:4] + "/" + s[4:6] + "/" + s[6:8]
}

// ParseDate decodes and parses a donation date.
//
// Accepted forms, after DecodeDate:
//   - YYYY/MM/DD and YYYY-MM-DD
//   - MM/DD/YYYY, M/D/YYYY, M/D/YY (processor exports)
//   - five digit spreadsheet serial numbers (e.g. 45366)
func ParseDate(s string) (time.Time, error) {
	v := DecodeDate(s)
	if v == "" {
		return time.Time{}, eris.New("normalize: empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}

	if serialDatePattern.MatchString(v) {
		serial, err := strconv.ParseFloat(v, 64)
		if err == nil {
			t, err := excelize.ExcelDateToTime(serial, false)
			if err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
			}
		}
	}

	return time.Time{}, eris.Errorf("normalize: unrecognized date %q", s)
}

// =============================================================================
// NAMES
// =============================================================================

// SplitName derives (first, last) from processor name fields.
//
// PARAMETERS:
//   - shippingName: the structured "First, Last" shipping name, preferred when set.
//   - payerName: the free-text payer name used as a fallback.
//   - massPayment: mass payments come from funds, so the whole payer name is
//     treated as the surname.
//
// RULES:
//   - shipping name is split on the comma: token 0 is the given name, token 1 the surname
//   - otherwise the last whitespace token of the payer name is the surname and
//     the rest, joined by single spaces, is the given name
//   - a single-token payer name is entirely surname
//
// Each resulting part is passed through Capitalize.
func SplitName(shippingName, payerName string, massPayment bool) (first, last string) {
	shippingName = strings.TrimSpace(shippingName)
	payerName = strings.TrimSpace(payerName)

	switch {
	case shippingName != "":
		tokens := commaSplitPattern.Split(shippingName, -1)
		first = tokens[0]
		if len(tokens) > 1 {
			last = tokens[1]
		}
	case massPayment:
		last = payerName
	default:
		tokens := whitespacePattern.Split(payerName, -1)
		if len(tokens) > 1 {
			last = tokens[len(tokens)-1]
			first = strings.Join(tokens[:len(tokens)-1], " ")
		} else {
			last = tokens[0]
		}
	}

	return Capitalize(first), Capitalize(last)
}

// Capitalize upper-cases the first letter of a name part. Single-token values
// are lower-cased first to undo all-caps exports; multi-token values keep
// their remaining case.
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if !strings.ContainsFunc(s, unicode.IsSpace) {
		s = strings.ToLower(s)
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// =============================================================================
// CONTACT FIELDS
// =============================================================================

// TrimEmail strips trailing characters that are not letters or digits and
// lower-cases the result.
func TrimEmail(s string) string {
	s = strings.TrimRightFunc(strings.TrimSpace(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToLower(s)
}

// PadZip restores the leading zero lost when a zip code was exported as a number.
func PadZip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 4 {
		return PadLeft(s, 5, '0')
	}
	return s
}

// JoinAddress joins two street address lines.
func JoinAddress(line1, line2 string) string {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)
	if line2 == "" {
		return line1
	}
	return line1 + AddressJoinSeparator + line2
}

// PadLeft pads a string with a character on the left to reach the target length.
func PadLeft(s string, length int, padChar rune) string {
	if len(s) >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-len(s)) + s
}

// =============================================================================
// ROWS
// =============================================================================

// IsBlankRow reports whether every cell is empty after trimming.
func IsBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// DropBlankRows returns the rows that are not blank, preserving order.
func DropBlankRows(rows [][]string) [][]string {
	kept := make([][]string, 0, len(rows))
	for _, row := range rows {
		if !IsBlankRow(row) {
			kept = append(kept, row)
		}
	}
	return kept
}

// Cell returns row[i] trimmed, or "" when the row is short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// =============================================================================
// AMOUNTS
// =============================================================================

// ParseAmount parses a loosely formatted money value.
// Currency symbols, thousands separators and surrounding spaces are ignored,
// parentheses denote a negative value, and a blank value is zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return decimal.Zero, nil
	}

	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = strings.TrimSuffix(strings.TrimPrefix(v, "("), ")")
	}

	v = strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "normalize: invalid amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
