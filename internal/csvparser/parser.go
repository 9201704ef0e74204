// =============================================================================
// Donation Ledger - CSV Parser Module
// =============================================================================
//
// This module parses delimited exports from card processors. It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Different encodings (UTF-8 with or without BOM, Windows-1252, ISO-8859-1)
//   - Ragged rows and loosely quoted fields
//
// The parser returns raw cells. Mapping cells to donation fields is the job
// of the source adapters.
//
// =============================================================================

package csvparser

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/donation-ledger/internal/config"
)

// ErrEmpty is returned when the input holds no rows at all.
var ErrEmpty = eris.New("csvparser: file is empty")

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents a parsed export.
type CSVData struct {
	// Headers contains the cells of the first row, trimmed.
	Headers []string

	// Rows contains every row after the header, including blank rows.
	Rows [][]string

	// SourceFile is the name the data was read from.
	SourceFile string
}

// ColumnCount returns the number of header columns.
func (d *CSVData) ColumnCount() int {
	return len(d.Headers)
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse decodes and parses an export.
//
// PARAMETERS:
//   - name: The file name, kept for error messages.
//   - data: The raw file bytes.
//   - settings: The CSV settings from the source profile.
//
// RETURNS:
//   - The header row and the remaining rows.
//   - An error if the encoding is unknown or the data is not valid CSV.
//
// PARSING PROCESS:
//  1. Wrap the bytes in a decoder for the configured encoding
//  2. Configure the CSV reader with the configured delimiter
//  3. Read all rows, the first being the header
func Parse(name string, data []byte, settings config.CSVSettings) (*CSVData, error) {
	dec, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(transform.NewReader(bytes.NewReader(data), dec))
	configureReader(reader, settings)

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "csvparser: read %s", name)
	}
	if len(allRows) == 0 {
		return nil, eris.Wrap(ErrEmpty, name)
	}

	return &CSVData{
		Headers:    cleanHeaders(allRows[0]),
		Rows:       allRows[1:],
		SourceFile: name,
	}, nil
}

// decoderFor returns a decoder for the named encoding. UTF-8 input may carry
// a byte order mark, which is stripped.
func decoderFor(name string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "WINDOWS-1252", "CP1252":
		enc = charmap.Windows1252
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		enc = charmap.ISO8859_1
	default:
		return nil, eris.Errorf("csvparser: unsupported encoding %q", name)
	}
	return enc.NewDecoder(), nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Processor exports end rows with trailing commas inconsistently.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// cleanHeaders trims whitespace and stray BOM runes from header cells.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, h := range headers {
		cleaned[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return cleaned
}
