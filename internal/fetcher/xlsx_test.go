package fetcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"CNPJ do Fundo", "Data", "Valor da Cota"},
			{"11.111.111/0001-11", "02/01/2024", "1,5"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"CNPJ do Fundo", "Data", "Valor da Cota"}, rows[0])
}

func TestReadXLSX_SkipRowsAndTrim(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Relatório B3"},
			{"a", "b", "", ""},
			{"", ""},
			{"1", " 2 "},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b"}, rows[0])
	assert.Equal(t, []string{"1", "2"}, rows[1])
}

func TestReadXLSX_SheetNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSXBytes(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"x", "y"}}})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	rows, err := ReadXLSXBytes(data, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x", "y"}}, rows)
}

func TestReadXLSX_DateCells(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	row := sheet.AddRow()
	row.AddCell().SetDate(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	row.AddCell().SetDateTime(time.Date(2024, 6, 3, 9, 15, 0, 0, time.UTC))
	row.AddCell().SetFloat(45446)
	row.AddCell().SetString("06-03-24")
	path := filepath.Join(t.TempDir(), "dates.xlsx")
	require.NoError(t, f.Save(path))

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"2024-06-03", "2024-06-03 09:15:00", "45446", "06-03-24"}, rows[0])
}
