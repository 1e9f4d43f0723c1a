package mgnrega

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
)

// Fallback records which recovery strategy produced the data, so the
// dashboard can tell the user "showing nearest available data".
type Fallback struct {
	Used    bool   `json:"used_fallback,omitempty"`
	Month   string `json:"fallback_month,omitempty"`
	FinYear string `json:"fallback_year,omitempty"`
	// AvailableFields is populated by the schema probe when every attempt
	// came back empty; it helps diagnose filter-field mismatches.
	AvailableFields []string `json:"available_fields,omitempty"`
}

// Resolver recovers from empty query results. Every individual attempt is
// best-effort: failures are logged and swallowed, only total exhaustion is
// visible to the caller, and even that surfaces as an empty success.
type Resolver struct {
	client   datagov.Client
	fields   FieldNames
	lookback int // temporal fallback depth in months
}

// FieldNames maps the dataset's filterable schema fields. The defaults match
// the known MGNREGA resource but every name is configurable because the
// upstream schema is not under our control.
type FieldNames struct {
	State    string
	District string
	Month    string
	FinYear  string
}

// DefaultFieldNames returns the field names of the published MGNREGA dataset.
func DefaultFieldNames() FieldNames {
	return FieldNames{
		State:    "state_name",
		District: FieldDistrict,
		Month:    FieldMonth,
		FinYear:  FieldFinYear,
	}
}

// NewResolver creates a Resolver. lookback <= 0 defaults to 6 periods.
func NewResolver(client datagov.Client, fields FieldNames, lookback int) *Resolver {
	if lookback <= 0 {
		lookback = 6
	}
	return &Resolver{client: client, fields: fields, lookback: lookback}
}

// ResolveCase reissues req with the state/district filter values upper-cased.
// The dataset sometimes stores names in uppercase, so a correctly-cased query
// can miss rows an uppercase one finds. Returns nil when the retry found
// nothing or failed.
func (r *Resolver) ResolveCase(ctx context.Context, req datagov.QueryRequest) *datagov.QueryResult {
	retry := req
	retry.Filters = make([]datagov.Filter, len(req.Filters))
	changed := false
	for i, f := range req.Filters {
		if f.Field == r.fields.State || f.Field == r.fields.District {
			upper := strings.ToUpper(f.Value)
			if upper != f.Value {
				changed = true
			}
			retry.Filters[i] = datagov.Filter{Field: f.Field, Value: upper}
			continue
		}
		retry.Filters[i] = f
	}
	if !changed {
		return nil
	}

	res, err := r.client.Query(ctx, retry)
	if err != nil {
		zap.L().Warn("case fallback attempt failed", zap.Error(err))
		return nil
	}
	if res.Empty() {
		return nil
	}
	zap.L().Info("case fallback recovered records", zap.Int("count", len(res.Records)))
	return res
}

// ResolveTemporal walks backward through prior reporting periods, reissuing
// the query with each period's month and fiscal-year filters until one
// returns data. The walk starts one period before `from`. base filters
// (state/district) are kept as-is; callers that want case fallback too apply
// it to the primary query first.
func (r *Resolver) ResolveTemporal(ctx context.Context, base []datagov.Filter, from time.Time, limit int) (*datagov.QueryResult, *Fallback) {
	for _, p := range PeriodsBefore(from, r.lookback) {
		filters := make([]datagov.Filter, 0, len(base)+2)
		filters = append(filters, base...)
		filters = append(filters,
			datagov.Filter{Field: r.fields.Month, Value: p.Month},
			datagov.Filter{Field: r.fields.FinYear, Value: p.FinYear},
		)

		res, err := r.client.Query(ctx, datagov.QueryRequest{Filters: filters, Limit: limit})
		if err != nil {
			zap.L().Warn("temporal fallback attempt failed",
				zap.String("month", p.Month),
				zap.String("fin_year", p.FinYear),
				zap.Error(err),
			)
			continue
		}
		if res.Empty() {
			continue
		}
		zap.L().Info("temporal fallback recovered records",
			zap.String("month", p.Month),
			zap.String("fin_year", p.FinYear),
			zap.Int("count", len(res.Records)),
		)
		return res, &Fallback{Used: true, Month: p.Month, FinYear: p.FinYear}
	}
	return nil, nil
}

// ProbeFields asks the upstream for one unfiltered record and reports its
// field names. Diagnostic only; failures are swallowed.
func (r *Resolver) ProbeFields(ctx context.Context) []string {
	fields, err := r.client.Probe(ctx)
	if err != nil {
		zap.L().Warn("schema probe failed", zap.Error(err))
		return nil
	}
	return fields
}
