// =============================================================================
// Donation Ledger - XLSX Region Module
// =============================================================================
//
// This module reads and writes the data region of a ledger workbook. The
// region is located by a workbook defined name (the "marker") rather than by
// sheet position, so staff can add notes, totals or extra sheets around it
// without breaking intake.
//
// REGION LAYOUT:
//   - The defined name refers to a rectangular range, e.g. 'Checks'!$A$1:$P$200
//   - The first rows of the range are headers (see LedgerSettings.FirstDataRow)
//   - Columns are read left to right starting at the range's first column
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// ErrMissingMarker is returned when the workbook has no defined name matching
// the configured marker.
var ErrMissingMarker = eris.New("xlsxparser: data marker not found")

// maxRows bounds column-only references such as 'Checks'!$A:$P.
const maxRows = 1048576

// =============================================================================
// REGION STRUCTURE
// =============================================================================

// Region is the rectangular block of cells a marker refers to.
type Region struct {
	// Sheet is the worksheet holding the region.
	Sheet string

	// StartRow is the 1-based sheet row of the region's first row.
	StartRow int

	// Width is the number of columns in the region.
	Width int

	// Rows holds the region's cells as raw values, each row padded to Width.
	// Trailing rows past the last used sheet row are not included.
	Rows [][]string
}

// =============================================================================
// READING
// =============================================================================

// ReadRegion opens a workbook and returns the region named by marker.
//
// PARAMETERS:
//   - name: The file name, kept for error messages.
//   - data: The raw workbook bytes.
//   - marker: The defined name locating the region, matched case-insensitively.
//
// RETURNS:
//   - The region with raw cell values. Dates come back as spreadsheet serial
//     numbers unless the cell holds text.
//   - ErrMissingMarker if no such defined name exists.
func ReadRegion(name string, data []byte, marker string) (*Region, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrapf(err, "xlsxparser: open %s", name)
	}
	defer f.Close()

	ref := ""
	for _, dn := range f.GetDefinedName() {
		if strings.EqualFold(dn.Name, marker) {
			ref = dn.RefersTo
			break
		}
	}
	if ref == "" {
		return nil, eris.Wrapf(ErrMissingMarker, "%s: %s", name, marker)
	}

	sheet, startCol, startRow, endCol, endRow, err := parseRefersTo(ref)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsxparser: %s", name)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, eris.Wrapf(err, "xlsxparser: read sheet %s", sheet)
	}

	region := &Region{
		Sheet:    sheet,
		StartRow: startRow,
		Width:    endCol - startCol + 1,
	}

	for r := startRow; r <= endRow && r <= len(rows); r++ {
		src := rows[r-1]
		cells := make([]string, region.Width)
		for c := startCol; c <= endCol && c <= len(src); c++ {
			cells[c-startCol] = src[c-1]
		}
		region.Rows = append(region.Rows, cells)
	}

	return region, nil
}

// parseRefersTo splits a defined name reference like 'My Sheet'!$A$1:$P$100
// into its sheet and 1-based bounds.
func parseRefersTo(ref string) (sheet string, startCol, startRow, endCol, endRow int, err error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "=")

	bang := strings.LastIndex(ref, "!")
	if bang < 0 {
		return "", 0, 0, 0, 0, eris.Errorf("reference %q has no sheet", ref)
	}
	sheet = strings.Trim(ref[:bang], "'")
	sheet = strings.ReplaceAll(sheet, "''", "'")

	cells := strings.Split(strings.ReplaceAll(ref[bang+1:], "$", ""), ":")
	if len(cells) == 1 {
		cells = append(cells, cells[0])
	}

	startCol, startRow, err = parseEndpoint(cells[0], 1)
	if err != nil {
		return "", 0, 0, 0, 0, err
	}
	endCol, endRow, err = parseEndpoint(cells[1], maxRows)
	if err != nil {
		return "", 0, 0, 0, 0, err
	}
	if endCol < startCol || endRow < startRow {
		return "", 0, 0, 0, 0, eris.Errorf("reference %q is inverted", ref)
	}

	return sheet, startCol, startRow, endCol, endRow, nil
}

// parseEndpoint parses "B7" or a bare column "B", using defaultRow for the latter.
func parseEndpoint(cell string, defaultRow int) (col, row int, err error) {
	if strings.IndexFunc(cell, func(r rune) bool { return r >= '0' && r <= '9' }) < 0 {
		col, err = excelize.ColumnNameToNumber(cell)
		if err != nil {
			return 0, 0, eris.Wrapf(err, "reference column %q", cell)
		}
		return col, defaultRow, nil
	}
	col, row, err = excelize.CellNameToCoordinates(cell)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "reference cell %q", cell)
	}
	return col, row, nil
}

// =============================================================================
// WRITING
// =============================================================================

// WriteRegion builds a single-sheet workbook holding header and rows starting
// at A1, with marker defined over the whole block so ReadRegion can find it.
func WriteRegion(sheet, marker string, header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, eris.Wrap(err, "xlsxparser: name sheet")
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, eris.Wrap(err, "xlsxparser: write header")
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, eris.Wrap(err, "xlsxparser: cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return nil, eris.Wrapf(err, "xlsxparser: write row %d", i+2)
		}
	}

	endCell, err := excelize.CoordinatesToCellName(len(header), len(rows)+1, true)
	if err != nil {
		return nil, eris.Wrap(err, "xlsxparser: cell name")
	}
	if err := f.SetDefinedName(&excelize.DefinedName{
		Name:     marker,
		RefersTo: "'" + strings.ReplaceAll(sheet, "'", "''") + "'!$A$1:" + endCell,
	}); err != nil {
		return nil, eris.Wrap(err, "xlsxparser: define marker")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, eris.Wrap(err, "xlsxparser: write workbook")
	}
	return buf.Bytes(), nil
}
