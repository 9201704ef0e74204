package csvparser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/donation-ledger/internal/config"
)

func TestParse_UTF8WithBOM(t *testing.T) {
	data := []byte("\xef\xbb\xbfDate,Name\n2024/03/15,Jane Doe\n,\n")

	got, err := Parse("paypal.csv", data, config.CSVSettings{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Name"}, got.Headers)
	assert.Equal(t, 2, got.ColumnCount())
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "Jane Doe", got.Rows[0][1])
}

func TestParse_Windows1252(t *testing.T) {
	data := []byte("Name;City\nRen\xe9e;Montr\xe9al\n")

	got, err := Parse("paypal.csv", data, config.CSVSettings{Delimiter: "semicolon", Encoding: "Windows-1252"})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, []string{"Renée", "Montréal"}, got.Rows[0])
}

func TestParse_TabsAndRaggedRows(t *testing.T) {
	data := []byte("a\tb\tc\n1\t2\n")

	got, err := Parse("x.tsv", data, config.CSVSettings{Delimiter: "tab", Encoding: "latin1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, got.Rows[0])
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("empty.csv", nil, config.CSVSettings{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmpty))

	_, err = Parse("x.csv", []byte("a\n"), config.CSVSettings{Encoding: "EBCDIC"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}
