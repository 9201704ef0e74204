package xlsxparser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook places a three-column region at B3 under a title row.
func buildWorkbook(t *testing.T, marker, refersTo string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Check Log"))
	require.NoError(t, f.SetCellValue("Check Log", "A1", "Deposits 2024"))
	require.NoError(t, f.SetSheetRow("Check Log", "B3", &[]string{"Date", "Last", "Amount"}))
	require.NoError(t, f.SetSheetRow("Check Log", "B4", &[]string{"20240105", "Smith", "100"}))
	require.NoError(t, f.SetSheetRow("Check Log", "B5", &[]string{"20240106", "Jones"}))
	require.NoError(t, f.SetCellValue("Check Log", "F4", "outside"))

	if marker != "" {
		require.NoError(t, f.SetDefinedName(&excelize.DefinedName{Name: marker, RefersTo: refersTo}))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadRegion(t *testing.T) {
	data := buildWorkbook(t, "donation_data", "'Check Log'!$B$3:$D$50")

	region, err := ReadRegion("checks.xlsx", data, "DONATION_DATA")
	require.NoError(t, err)

	assert.Equal(t, "Check Log", region.Sheet)
	assert.Equal(t, 3, region.StartRow)
	assert.Equal(t, 3, region.Width)
	require.Len(t, region.Rows, 3)
	assert.Equal(t, []string{"Date", "Last", "Amount"}, region.Rows[0])
	assert.Equal(t, []string{"20240105", "Smith", "100"}, region.Rows[1])
	assert.Equal(t, []string{"20240106", "Jones", ""}, region.Rows[2])
}

func TestReadRegion_MissingMarker(t *testing.T) {
	data := buildWorkbook(t, "", "")

	_, err := ReadRegion("checks.xlsx", data, "donation_data")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingMarker))
}

func TestReadRegion_NotAWorkbook(t *testing.T) {
	_, err := ReadRegion("checks.xlsx", []byte("plain text"), "donation_data")
	require.Error(t, err)
}

func TestParseRefersTo(t *testing.T) {
	sheet, c1, r1, c2, r2, err := parseRefersTo("='It''s'!$A$2:$P$9")
	require.NoError(t, err)
	assert.Equal(t, "It's", sheet)
	assert.Equal(t, []int{1, 2, 16, 9}, []int{c1, r1, c2, r2})

	_, c1, r1, c2, r2, err = parseRefersTo("Sheet1!$A:$C")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 3, maxRows}, []int{c1, r1, c2, r2})

	_, _, _, _, _, err = parseRefersTo("$A$1:$B$2")
	require.Error(t, err)

	_, _, _, _, _, err = parseRefersTo("Sheet1!$C$5:$A$1")
	require.Error(t, err)
}

func TestWriteRegion_RoundTrip(t *testing.T) {
	header := []string{"Date", "Last", "Amount"}
	rows := [][]string{
		{"2024/01/05", "Smith", "100.00"},
		{"2024/01/04", "O'Neil", "25.00"},
	}

	data, err := WriteRegion("Ledger", "donation_data", header, rows)
	require.NoError(t, err)

	region, err := ReadRegion("export.xlsx", data, "donation_data")
	require.NoError(t, err)
	require.Len(t, region.Rows, 3)
	assert.Equal(t, header, region.Rows[0])
	assert.Equal(t, rows[1], region.Rows[2])
}
