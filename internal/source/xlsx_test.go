package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeXLSX(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().Value = v
		}
	}
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestXLSXSource_Load(t *testing.T) {
	path := writeXLSX(t, "obs", [][]string{
		{"presence", "bio1", "bio12"},
		{"1", "12.5", "800"},
		{"0", "25", "150"},
		{"1", "13", ""},
	})

	ds, err := NewXLSX(path, Options{ResponseColumns: []string{"presence"}}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bio1", "bio12"}, ds.Table.Names())
	assert.Equal(t, 3, ds.Table.Rows())
	assert.Equal(t, []float64{1, 0, 1}, ds.Responses[0].Values)
}

func TestXLSXSource_SheetByName(t *testing.T) {
	path := writeXLSX(t, "obs", [][]string{{"x"}, {"1"}})

	_, err := NewXLSX(path, Options{Sheet: "missing"}).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "missing" not found`)

	ds, err := NewXLSX(path, Options{Sheet: "obs"}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, ds.Table.Vars[0].Values)
}

func TestXLSXSource_EmptySheet(t *testing.T) {
	path := writeXLSX(t, "obs", nil)
	_, err := NewXLSX(path, Options{}).Load(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptySource))
}

func TestPadRow(t *testing.T) {
	assert.Equal(t, []string{"a", "", ""}, padRow([]string{"a"}, 3))
	assert.True(t, isBlank([]string{"", ""}))
	assert.False(t, isBlank([]string{"", "x"}))
}
