// Package mgnrega implements the data reconciliation and caching pipeline
// for MGNREGA monthly statistics: fetching from the data.gov.in resource API,
// recovering from empty results, merging paginated result sets, deduplicating
// snapshot rows, and serving everything through a layered cache.
package mgnrega

import (
	"strconv"
	"strings"
	"time"
)

// Indian fiscal years run April through March and are labeled "YYYY-YYYY+1".

// fiscalOrder lists short month names in fiscal-year order.
var fiscalOrder = []string{"Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec", "Jan", "Feb", "Mar"}

// MonthIndex maps a reporting-period label to its fiscal-year position
// (Apr=0 .. Mar=11). Only the first three characters are compared,
// case-insensitively; unrecognized labels sort after March.
func MonthIndex(label string) int {
	label = strings.TrimSpace(label)
	if len(label) > 3 {
		label = label[:3]
	}
	for i, m := range fiscalOrder {
		if strings.EqualFold(label, m) {
			return i
		}
	}
	return len(fiscalOrder)
}

// FiscalYearLabel returns the "YYYY-YYYY+1" label covering the given calendar
// year and month (April through March belong to the year starting in April).
func FiscalYearLabel(year int, month time.Month) string {
	if month < time.April {
		year--
	}
	return fiscalLabel(year)
}

// CurrentFiscalYear returns the fiscal-year label for t.
func CurrentFiscalYear(t time.Time) string {
	return FiscalYearLabel(t.Year(), t.Month())
}

// Period is one reporting period: a short month name within a fiscal year.
type Period struct {
	Month   string // "Jan".."Dec"
	FinYear string // "2025-2026"
}

// Time returns the first day of the period's calendar month, or false when
// the labels cannot be interpreted.
func (p Period) Time() (time.Time, bool) {
	idx := MonthIndex(p.Month)
	if idx >= len(fiscalOrder) {
		return time.Time{}, false
	}
	month := time.Month((idx+3)%12 + 1) // fiscal Apr=0 back to calendar April
	startYear, err := strconv.Atoi(strings.SplitN(strings.TrimSpace(p.FinYear), "-", 2)[0])
	if err != nil {
		return time.Time{}, false
	}
	year := startYear
	if month < time.April {
		year = startYear + 1
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}

// PeriodsBefore returns up to n reporting periods walking backward from t,
// starting one month before t. Used by the temporal fallback.
func PeriodsBefore(t time.Time, n int) []Period {
	periods := make([]Period, 0, n)
	for i := 1; i <= n; i++ {
		d := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		periods = append(periods, Period{
			Month:   d.Format("Jan"),
			FinYear: FiscalYearLabel(d.Year(), d.Month()),
		})
	}
	return periods
}

func fiscalLabel(startYear int) string {
	return strconv.Itoa(startYear) + "-" + strconv.Itoa(startYear+1)
}
