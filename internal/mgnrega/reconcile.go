package mgnrega

import (
	"sort"
	"strings"

	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
)

// Dataset field names used by reconciliation. Everything else in a record is
// passed through opaquely.
const (
	FieldMonth             = "month"
	FieldFinYear           = "fin_year"
	FieldDistrict          = "district_name"
	FieldTotalExp          = "Total_Exp"
	FieldIndividualsWorked = "Total_Individuals_Worked"
	FieldHouseholdsWorked  = "Total_Households_Worked"
	FieldJobCardsIssued    = "Total_No_of_JobCards_issued"
	FieldTotalWorkers      = "Total_No_of_Workers"
)

// Score ranks snapshots for the same reporting period by apparent data
// maturity. The weighted fields are cumulative counters that only grow as the
// upstream re-submits a period, so the highest score is the most complete
// snapshot. Weights follow the dashboard's established ranking.
func Score(r datagov.Record) float64 {
	return r.Number(FieldTotalExp)*1000 +
		r.Number(FieldIndividualsWorked)*10 +
		r.Number(FieldHouseholdsWorked) +
		r.Number(FieldJobCardsIssued)*0.01 +
		r.Number(FieldTotalWorkers)*0.01
}

// periodKey identifies one logical observation slot. District is included
// only when reconciling across districts (merged multi-page fetches).
func periodKey(r datagov.Record, withDistrict bool) string {
	key := strings.TrimSpace(r.String(FieldMonth)) + "__" + strings.TrimSpace(r.String(FieldFinYear))
	if withDistrict {
		key += "__" + strings.TrimSpace(r.String(FieldDistrict))
	}
	return key
}

// Reconcile deduplicates snapshot rows and orders the survivors by fiscal
// month (Apr..Mar). Within each period key exactly one record survives: the
// one with the strictly highest completeness score, first-seen winning ties.
// The sort is stable, so reconciling an already-deduplicated list returns it
// unchanged.
func Reconcile(records []datagov.Record, withDistrict bool) []datagov.Record {
	type slot struct {
		rec   datagov.Record
		score float64
		order int
	}

	byPeriod := make(map[string]slot, len(records))
	keys := make([]string, 0, len(records))

	for i, r := range records {
		key := periodKey(r, withDistrict)
		score := Score(r)
		cur, seen := byPeriod[key]
		if !seen {
			byPeriod[key] = slot{rec: r, score: score, order: i}
			keys = append(keys, key)
			continue
		}
		if score > cur.score {
			byPeriod[key] = slot{rec: r, score: score, order: cur.order}
		}
	}

	out := make([]datagov.Record, 0, len(keys))
	for _, key := range keys {
		out = append(out, byPeriod[key].rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return MonthIndex(out[i].String(FieldMonth)) < MonthIndex(out[j].String(FieldMonth))
	})
	return out
}
