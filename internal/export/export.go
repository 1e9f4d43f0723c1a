// Package export renders query results as CSV or XLSX downloads for offline
// use, where the dashboard's audience often has no reliable connectivity.
package export

import (
	"encoding/csv"
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/opengov-in/mgnrega-dashboard/internal/mgnrega"
	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
)

// preferredColumns come first, in this order; every other field follows
// alphabetically so no data is silently dropped.
var preferredColumns = []string{
	"state_name",
	mgnrega.FieldDistrict,
	mgnrega.FieldFinYear,
	mgnrega.FieldMonth,
	mgnrega.FieldTotalExp,
	mgnrega.FieldIndividualsWorked,
	mgnrega.FieldHouseholdsWorked,
	mgnrega.FieldJobCardsIssued,
	mgnrega.FieldTotalWorkers,
}

// Columns computes the header for a record set.
func Columns(records []datagov.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, c := range preferredColumns {
		for _, r := range records {
			if _, ok := r[c]; ok {
				cols = append(cols, c)
				seen[c] = true
				break
			}
		}
	}

	var rest []string
	for _, r := range records {
		for field := range r {
			if !seen[field] {
				rest = append(rest, field)
				seen[field] = true
			}
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []datagov.Record) error {
	cols := Columns(records)
	cw := csv.NewWriter(w)

	if err := cw.Write(cols); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range records {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = r.String(c)
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes records as a single-sheet XLSX workbook.
func WriteXLSX(w io.Writer, sheetName string, records []datagov.Record) error {
	if sheetName == "" {
		sheetName = "Employment Data"
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	cols := Columns(records)
	header := sheet.AddRow()
	for _, c := range cols {
		header.AddCell().SetString(c)
	}

	for _, r := range records {
		row := sheet.AddRow()
		for _, c := range cols {
			cell := row.AddCell()
			switch v := r[c].(type) {
			case float64:
				cell.SetFloat(v)
			case int:
				cell.SetInt(v)
			default:
				cell.SetString(r.String(c))
			}
		}
	}

	return eris.Wrap(f.Write(w), "export: write workbook")
}
