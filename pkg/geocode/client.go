// Package geocode resolves device coordinates to an Indian state and
// district via a Nominatim-compatible reverse geocoding service. The
// dashboard uses it so a rural user never has to type their district name.
package geocode

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/opengov-in/mgnrega-dashboard/internal/cache"
)

// Place is a resolved administrative location.
type Place struct {
	State    string `json:"state"`
	District string `json:"district"`
	Label    string `json:"label,omitempty"`
}

// Client is a reverse geocoding client with an in-memory result cache.
// Results barely change for a given coordinate, so hits are cached for a day.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache[Place]
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the geocoding service URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithUserAgent sets the User-Agent header. Nominatim's usage policy
// requires an identifying agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a reverse geocoding client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    "https://nominatim.openstreetmap.org",
		userAgent:  "mgnrega-dashboard/1.0",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Nominatim's public instance allows at most 1 request/second.
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		cache:   cache.New[Place](24 * time.Hour),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
