package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// reverseResponse is the jsonv2 response of the Nominatim reverse endpoint.
type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		State         string `json:"state"`
		StateDistrict string `json:"state_district"`
		County        string `json:"county"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
	} `json:"address"`
}

// Reverse resolves coordinates to a state and district. Coordinates are
// rounded to ~100 m before the cache lookup so nearby requests share one
// upstream call.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	key := fmt.Sprintf("%.3f,%.3f", lat, lon)
	if p, ok := c.cache.Get(key); ok {
		return &p, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"lat":    {fmt.Sprintf("%f", lat)},
		"lon":    {fmt.Sprintf("%f", lon)},
		"format": {"jsonv2"},
		// zoom 10 resolves to district level, which is all the dashboard needs.
		"zoom": {"10"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: reverse returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var rr reverseResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	place := Place{
		State:    strings.TrimSpace(rr.Address.State),
		District: pickDistrict(rr),
		Label:    rr.DisplayName,
	}
	if place.State == "" && place.District == "" {
		return nil, eris.Errorf("geocode: no administrative area for %.3f,%.3f", lat, lon)
	}

	c.cache.Set(key, place)
	return &place, nil
}

// pickDistrict chooses the best district-level field. Indian responses put
// the district in state_district; county and the settlement names are
// fallbacks for sparse coverage areas.
func pickDistrict(rr reverseResponse) string {
	for _, candidate := range []string{
		rr.Address.StateDistrict,
		rr.Address.County,
		rr.Address.City,
		rr.Address.Town,
		rr.Address.Village,
	} {
		if d := strings.TrimSpace(candidate); d != "" {
			return cleanDistrict(d)
		}
	}
	return ""
}

// cleanDistrict strips the "District" suffix some responses carry, so the
// value matches the names the employment dataset uses.
func cleanDistrict(d string) string {
	d = strings.TrimSpace(strings.TrimSuffix(d, "district"))
	d = strings.TrimSpace(strings.TrimSuffix(d, "District"))
	return d
}
