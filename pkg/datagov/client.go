// Package datagov is a minimal client for the data.gov.in resource API.
//
// The API serves open datasets as JSON envelopes of the form
// {"records": [...], "total": N} and accepts equality filters via
// filters[<field>]=<value> query parameters. The client performs no retries
// and no caching; callers layer those on top.
package datagov

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.data.gov.in/resource"

// Client queries a single data.gov.in resource.
type Client interface {
	// Query fetches one page of records matching the request filters.
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)

	// Probe fetches a single unfiltered record and returns its field names.
	// Used to diagnose filter-field mismatches when every query comes back
	// empty.
	Probe(ctx context.Context) ([]string, error)
}

// Filter is one equality constraint on a named dataset field. Filters are
// applied in slice order so request URLs stay deterministic.
type Filter struct {
	Field string
	Value string
}

// QueryRequest describes one page request.
type QueryRequest struct {
	Filters []Filter
	Limit   int
	Offset  int
}

// QueryResult is a parsed response page.
type QueryResult struct {
	Records []Record
	// Total is the upstream-reported total for the query. When the envelope
	// omits it, TotalKnown is false and Total falls back to len(Records).
	Total      int
	TotalKnown bool
}

// Empty reports whether the page contained no records. This is a valid
// outcome, distinct from an error; it is what triggers fallback logic upstream.
func (r *QueryResult) Empty() bool {
	return len(r.Records) == 0
}

// UpstreamError is a non-success response from the API. The raw status and
// body are kept for operator diagnostics.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("datagov: upstream status %d: %s", e.Status, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit replaces the default request rate limit.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

type httpClient struct {
	apiKey     string
	resourceID string
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for the given resource. The API key and resource
// ID are required by the upstream; validation of their presence is left to
// the caller so that a misconfiguration surfaces before any network call.
func NewClient(apiKey, resourceID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		resourceID: resourceID,
		baseURL:    defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.Limit <= 0 {
		req.Limit = 100
	}

	q := url.Values{}
	q.Set("api-key", c.apiKey)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(req.Limit))
	q.Set("offset", strconv.Itoa(req.Offset))
	for _, f := range req.Filters {
		if f.Value == "" {
			continue
		}
		q.Set(fmt.Sprintf("filters[%s]", f.Field), f.Value)
	}

	env, err := c.do(ctx, q)
	if err != nil {
		return nil, err
	}

	res := &QueryResult{Records: env.Records}
	if total, ok := coerceNumber(env.Total); ok && total > 0 {
		res.Total = int(total)
		res.TotalKnown = true
	} else {
		res.Total = len(env.Records)
	}
	return res, nil
}

func (c *httpClient) Probe(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Set("api-key", c.apiKey)
	q.Set("format", "json")
	q.Set("limit", "1")

	env, err := c.do(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(env.Records) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(env.Records[0]))
	for k := range env.Records[0] {
		fields = append(fields, k)
	}
	return fields, nil
}

type envelope struct {
	Records []Record `json:"records"`
	Total   any      `json:"total"`
}

func (c *httpClient) do(ctx context.Context, q url.Values) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "datagov: rate limiter wait")
	}

	u := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(c.resourceID), q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "datagov: create request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "datagov: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "datagov: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// A malformed envelope from a 200 response is still an upstream
		// problem as far as callers are concerned.
		return nil, &UpstreamError{Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return &env, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
