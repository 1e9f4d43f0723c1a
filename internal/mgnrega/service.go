package mgnrega

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/opengov-in/mgnrega-dashboard/internal/cache"
	"github.com/opengov-in/mgnrega-dashboard/internal/store"
	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
)

// Source labels where a result came from, so the dashboard can tell the user
// how fresh the data is.
type Source string

const (
	SourceCache      Source = "cache"
	SourceUpstream   Source = "upstream"
	SourceCacheStale Source = "cache-stale"
	SourceUnknown    Source = "unknown"
)

// ErrNotConfigured means the data.gov.in credential or resource ID is
// missing. No upstream call can be attempted, so no fallback applies.
var ErrNotConfigured = eris.New("mgnrega: missing data.gov.in api key or resource id")

// Result is the outcome of one orchestrated request. The pipeline guarantees
// the best available data: fresh upstream, else labeled stale cache, else an
// explicit error outcome — never a panic or unhandled failure.
type Result struct {
	Source   Source           `json:"source"`
	Records  []datagov.Record `json:"records"`
	Count    int              `json:"count"`
	Total    int              `json:"total,omitempty"`
	CachedAt int64            `json:"cachedAt,omitempty"` // epoch ms
	Meta     *Fallback        `json:"meta,omitempty"`
	Error    string           `json:"error,omitempty"`
	Details  string           `json:"details,omitempty"`
}

// Params are the external inputs of the query path.
type Params struct {
	State    string
	District string
	FinYear  string
	Limit    int
	Offset   int
}

// MonthlyParams are the inputs of the monthly-lookup path.
type MonthlyParams struct {
	State    string
	District string
	Month    string // short month name, e.g. "Oct"
	FinYear  string // e.g. "2025-2026"
	Limit    int
}

// Options configures a Service.
type Options struct {
	Client    datagov.Client // nil when credentials are missing
	Snapshots store.Store    // optional persistent layer
	Fields    FieldNames

	DefaultState string
	PageSize     int
	MaxPages     int
	Lookback     int

	QueryTTL   time.Duration // hot query cache, default 1h
	MonthlyTTL time.Duration // monthly lookup cache, default 24h

	Now func() time.Time
}

// Service is the cache-fallback orchestrator: it wires the upstream client,
// the fallback resolver, the pagination merger and the reconciler behind a
// layered cache.
type Service struct {
	client    datagov.Client
	snapshots store.Store
	resolver  *Resolver
	fields    FieldNames

	queryCache   *cache.Cache[cachedPage]
	monthlyCache *cache.Cache[cachedPage]

	defaultState string
	pageSize     int
	maxPages     int
	queryTTL     time.Duration
	monthlyTTL   time.Duration
	now          func() time.Time

	// seenData flips once any query returns records. The schema probe only
	// fires while the dataset is wholly unfamiliar; once we have seen real
	// rows an empty result is just an empty result.
	seenData atomic.Bool
}

type cachedPage struct {
	records []datagov.Record
	total   int
	meta    *Fallback
}

// NewService creates the orchestrator. A nil client is allowed; every
// operation then fails fast with ErrNotConfigured.
func NewService(opts Options) *Service {
	if opts.Fields == (FieldNames{}) {
		opts.Fields = DefaultFieldNames()
	}
	if opts.DefaultState == "" {
		opts.DefaultState = "Jharkhand"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 200
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 25
	}
	if opts.QueryTTL <= 0 {
		opts.QueryTTL = time.Hour
	}
	if opts.MonthlyTTL <= 0 {
		opts.MonthlyTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		client:       opts.Client,
		snapshots:    opts.Snapshots,
		fields:       opts.Fields,
		queryCache:   cache.New[cachedPage](opts.QueryTTL),
		monthlyCache: cache.New[cachedPage](opts.MonthlyTTL),
		defaultState: opts.DefaultState,
		pageSize:     opts.PageSize,
		maxPages:     opts.MaxPages,
		queryTTL:     opts.QueryTTL,
		monthlyTTL:   opts.MonthlyTTL,
		now:          opts.Now,
	}
	if opts.Client != nil {
		s.resolver = NewResolver(opts.Client, opts.Fields, opts.Lookback)
	}
	s.queryCache.WithNow(func() time.Time { return s.now() })
	s.monthlyCache.WithNow(func() time.Time { return s.now() })
	return s
}

// Query serves one page of records for (state, district, fiscal year),
// reconciled, through the cache-fallback state machine.
func (s *Service) Query(ctx context.Context, p Params) (*Result, error) {
	p = s.normalize(p)
	key := fmt.Sprintf("%s::%s::%s::%d::%d", p.State, p.District, p.FinYear, p.Limit, p.Offset)

	return s.run(ctx, key, s.queryCache, s.queryTTL, func(ctx context.Context) (*datagov.QueryResult, *Fallback, error) {
		req := datagov.QueryRequest{Filters: s.filters(p), Limit: p.Limit, Offset: p.Offset}

		res, err := s.client.Query(ctx, req)
		if err != nil {
			return nil, nil, err
		}

		var meta *Fallback
		if res.Empty() {
			// The dataset sometimes stores names uppercase; retry once that
			// way before giving up.
			if recovered := s.resolver.ResolveCase(ctx, req); recovered != nil {
				res = recovered
				meta = &Fallback{Used: true}
			}
		}
		if res.Empty() && !s.seenData.Load() {
			meta = &Fallback{AvailableFields: s.resolver.ProbeFields(ctx)}
		}
		return res, meta, nil
	}, p.District == "")
}

// QueryAll is Query with pagination merged: every page for the filters is
// fetched and reconciled into one list.
func (s *Service) QueryAll(ctx context.Context, p Params) (*Result, error) {
	p = s.normalize(p)
	p.Offset = 0
	key := fmt.Sprintf("%s::%s::%s::%d::all", p.State, p.District, p.FinYear, p.Limit)

	return s.run(ctx, key, s.queryCache, s.queryTTL, func(ctx context.Context) (*datagov.QueryResult, *Fallback, error) {
		req := datagov.QueryRequest{Filters: s.filters(p), Limit: p.Limit}

		res, err := FetchAllPages(ctx, s.client, req, s.maxPages)
		if err != nil {
			return nil, nil, err
		}

		var meta *Fallback
		if res.Empty() {
			if recovered := s.resolver.ResolveCase(ctx, req); recovered != nil {
				res = recovered
				meta = &Fallback{Used: true}
			}
		}
		return res, meta, nil
	}, true)
}

// Monthly looks up a single reporting period. When the requested period has
// no data yet (monthly statistics land with delay), it walks backward up to
// the configured number of periods and reports which one it settled on.
func (s *Service) Monthly(ctx context.Context, p MonthlyParams) (*Result, error) {
	if p.State == "" {
		p.State = s.defaultState
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	month := strings.TrimSpace(p.Month)
	finYear := strings.TrimSpace(p.FinYear)
	key := strings.ToLower(fmt.Sprintf("mgnrega:%s:%s:%s-%s", p.State, p.District, orAll(finYear), orAll(month)))

	return s.run(ctx, key, s.monthlyCache, s.monthlyTTL, func(ctx context.Context) (*datagov.QueryResult, *Fallback, error) {
		base := []datagov.Filter{
			{Field: s.fields.State, Value: p.State},
			{Field: s.fields.District, Value: p.District},
		}
		filters := append([]datagov.Filter{}, base...)
		if month != "" {
			filters = append(filters, datagov.Filter{Field: s.fields.Month, Value: month})
		}
		if finYear != "" {
			filters = append(filters, datagov.Filter{Field: s.fields.FinYear, Value: finYear})
		}

		res, err := s.client.Query(ctx, datagov.QueryRequest{Filters: filters, Limit: p.Limit})
		if err != nil {
			return nil, nil, err
		}

		var meta *Fallback
		if res.Empty() {
			anchor := s.now()
			if t, ok := (Period{Month: month, FinYear: finYear}).Time(); ok {
				anchor = t
			}
			if recovered, fb := s.resolver.ResolveTemporal(ctx, base, anchor, p.Limit); recovered != nil {
				res, meta = recovered, fb
			}
		}
		if res.Empty() && !s.seenData.Load() {
			meta = &Fallback{AvailableFields: s.resolver.ProbeFields(ctx)}
		}
		return res, meta, nil
	}, p.District == "")
}

// run is the shared state machine: cache check, fetch, reconcile, cache
// write, degrade to stale on upstream failure.
func (s *Service) run(
	ctx context.Context,
	key string,
	c *cache.Cache[cachedPage],
	ttl time.Duration,
	fetch func(ctx context.Context) (*datagov.QueryResult, *Fallback, error),
	withDistrict bool,
) (*Result, error) {
	if e, ok := c.GetEntry(key); ok {
		return &Result{
			Source:   SourceCache,
			Records:  e.Value.records,
			Count:    len(e.Value.records),
			Total:    e.Value.total,
			CachedAt: epochMillis(e.StoredAt),
			Meta:     e.Value.meta,
		}, nil
	}

	if s.client == nil {
		return &Result{Source: SourceUnknown, Error: ErrNotConfigured.Error()}, ErrNotConfigured
	}

	res, meta, err := fetch(ctx)
	if err != nil {
		return s.degrade(ctx, key, c, err)
	}
	if !res.Empty() {
		s.seenData.Store(true)
	}

	records := Reconcile(res.Records, withDistrict)
	total := res.Total
	if !res.TotalKnown {
		total = len(records)
	}

	c.SetTTL(key, cachedPage{records: records, total: total, meta: meta}, ttl)
	if s.snapshots != nil {
		if err := s.snapshots.SetSnapshot(ctx, key, records, total, ttl); err != nil {
			zap.L().Warn("snapshot write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return &Result{
		Source:  SourceUpstream,
		Records: records,
		Count:   len(records),
		Total:   total,
		Meta:    meta,
	}, nil
}

// degrade serves the best stale copy available after an upstream failure:
// the in-memory entry first, then the persistent snapshot, then an explicit
// error outcome.
func (s *Service) degrade(ctx context.Context, key string, c *cache.Cache[cachedPage], cause error) (*Result, error) {
	zap.L().Warn("upstream fetch failed, degrading",
		zap.String("key", key),
		zap.Error(cause),
	)

	if e, ok := c.GetStale(key); ok {
		return &Result{
			Source:   SourceCacheStale,
			Records:  e.Value.records,
			Count:    len(e.Value.records),
			Total:    e.Value.total,
			CachedAt: epochMillis(e.StoredAt),
			Meta:     e.Value.meta,
		}, nil
	}

	if s.snapshots != nil {
		snap, err := s.snapshots.GetSnapshotStale(ctx, key)
		if err != nil {
			zap.L().Warn("snapshot read failed", zap.String("key", key), zap.Error(err))
		} else if snap != nil {
			return &Result{
				Source:   SourceCacheStale,
				Records:  snap.Records,
				Count:    len(snap.Records),
				Total:    snap.Total,
				CachedAt: epochMillis(snap.CachedAt),
			}, nil
		}
	}

	result := &Result{Source: SourceUnknown, Error: "failed to fetch upstream data"}
	var ue *datagov.UpstreamError
	if errors.As(cause, &ue) {
		result.Details = fmt.Sprintf("status %d: %s", ue.Status, ue.Body)
	} else {
		result.Details = cause.Error()
	}
	return result, eris.Wrap(cause, "mgnrega: fetch")
}

func (s *Service) normalize(p Params) Params {
	if p.State == "" {
		p.State = s.defaultState
	}
	if p.Limit <= 0 {
		p.Limit = s.pageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func (s *Service) filters(p Params) []datagov.Filter {
	return []datagov.Filter{
		{Field: s.fields.State, Value: p.State},
		{Field: s.fields.District, Value: p.District},
		{Field: s.fields.FinYear, Value: p.FinYear},
	}
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
