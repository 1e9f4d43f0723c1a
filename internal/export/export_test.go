package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
)

func sampleRecords() []datagov.Record {
	return []datagov.Record{
		{
			"state_name":             "Jharkhand",
			"district_name":          "Ranchi",
			"fin_year":               "2025-2026",
			"month":                  "Oct",
			"Total_Exp":              1234.56,
			"Approved_Labour_Budget": 90000.0,
		},
		{
			"state_name":    "Jharkhand",
			"district_name": "Dhanbad",
			"fin_year":      "2025-2026",
			"month":         "Oct",
			"Total_Exp":     987.0,
		},
	}
}

func TestColumnsOrdering(t *testing.T) {
	cols := Columns(sampleRecords())

	// Preferred fields lead in fixed order, extras follow alphabetically.
	assert.Equal(t, []string{
		"state_name", "district_name", "fin_year", "month", "Total_Exp",
		"Approved_Labour_Budget",
	}, cols)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "district_name", rows[0][1])
	assert.Equal(t, "Ranchi", rows[1][1])
	assert.Equal(t, "Dhanbad", rows[2][1])
	// The second record has no labour budget: empty cell, not a shifted row.
	assert.Equal(t, "", rows[2][5])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "", sampleRecords()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	assert.Equal(t, "Employment Data", f.Sheets[0].Name)

	rows := f.Sheets[0].Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "state_name", rows[0].Cells[0].String())
	assert.Equal(t, "Ranchi", rows[1].Cells[1].String())

	exp, err := rows[1].Cells[4].Float()
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, exp, 0.001)
}

func TestWriteXLSXCustomSheetName(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "Ranchi Oct", sampleRecords()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Ranchi Oct", f.Sheets[0].Name)
}
