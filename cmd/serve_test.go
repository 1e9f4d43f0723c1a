package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengov-in/mgnrega-dashboard/internal/mgnrega"
	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
	"github.com/opengov-in/mgnrega-dashboard/pkg/geocode"
)

type scriptedClient struct {
	queryFn func(req datagov.QueryRequest) (*datagov.QueryResult, error)
}

func (s *scriptedClient) Query(_ context.Context, req datagov.QueryRequest) (*datagov.QueryResult, error) {
	return s.queryFn(req)
}

func (s *scriptedClient) Probe(context.Context) ([]string, error) { return nil, nil }

func record(district string) datagov.Record {
	return datagov.Record{
		"state_name":    "Jharkhand",
		"district_name": district,
		"month":         "Oct",
		"fin_year":      "2025-2026",
		"Total_Exp":     100.0,
	}
}

func newTestRouter(t *testing.T, client datagov.Client) http.Handler {
	t.Helper()
	e := &env{
		Service:  mgnrega.NewService(mgnrega.Options{Client: client}),
		Geocoder: geocode.New(),
	}
	return newRouter(e, []string{"*"})
}

func doGET(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, &scriptedClient{})

	rec := doGET(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecordsEndpoint(t *testing.T) {
	h := newTestRouter(t, &scriptedClient{queryFn: func(req datagov.QueryRequest) (*datagov.QueryResult, error) {
		return &datagov.QueryResult{Records: []datagov.Record{record("Ranchi")}, Total: 1, TotalKnown: true}, nil
	}})

	rec := doGET(t, h, "/api/records?state=Jharkhand&district=Ranchi&finYear=2025-2026")
	require.Equal(t, http.StatusOK, rec.Code)

	var res mgnrega.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, mgnrega.SourceUpstream, res.Source)
	assert.Equal(t, 1, res.Count)
}

func TestRecordsEndpointUpstreamFailure(t *testing.T) {
	h := newTestRouter(t, &scriptedClient{queryFn: func(req datagov.QueryRequest) (*datagov.QueryResult, error) {
		return nil, &datagov.UpstreamError{Status: 503, Body: "maintenance"}
	}})

	rec := doGET(t, h, "/api/records?district=Ranchi")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var res mgnrega.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, mgnrega.SourceUnknown, res.Source)
	assert.NotEmpty(t, res.Error)
	assert.Contains(t, res.Details, "503")
}

func TestRecordsEndpointNotConfigured(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := doGET(t, h, "/api/records?district=Ranchi")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDistrictsEndpoint(t *testing.T) {
	h := newTestRouter(t, &scriptedClient{})

	rec := doGET(t, h, "/api/districts")
	require.Equal(t, http.StatusOK, rec.Code)
	var states struct {
		States []string `json:"states"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	assert.Contains(t, states.States, "Jharkhand")

	rec = doGET(t, h, "/api/districts?state=jharkhand")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Districts []string `json:"districts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Districts, 24)

	rec = doGET(t, h, "/api/districts?state=Atlantis")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompareEndpoint(t *testing.T) {
	h := newTestRouter(t, &scriptedClient{queryFn: func(req datagov.QueryRequest) (*datagov.QueryResult, error) {
		var district string
		for _, f := range req.Filters {
			if f.Field == "district_name" {
				district = f.Value
			}
		}
		return &datagov.QueryResult{Records: []datagov.Record{record(district)}, Total: 1, TotalKnown: true}, nil
	}})

	rec := doGET(t, h, "/api/compare?state=Jharkhand&districts=Ranchi,Dhanbad")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results map[string]mgnrega.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, 1, body.Results["Ranchi"].Count)
	assert.Equal(t, 1, body.Results["Dhanbad"].Count)
}

func TestCompareEndpointValidation(t *testing.T) {
	h := newTestRouter(t, &scriptedClient{})

	rec := doGET(t, h, "/api/compare?districts=Ranchi")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGET(t, h, "/api/compare?districts=a,b,c,d,e,f,g")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocateEndpointValidation(t *testing.T) {
	h := newTestRouter(t, &scriptedClient{})

	rec := doGET(t, h, "/api/locate?lat=abc&lon=85.3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEndpointCSV(t *testing.T) {
	h := newTestRouter(t, &scriptedClient{queryFn: func(req datagov.QueryRequest) (*datagov.QueryResult, error) {
		return &datagov.QueryResult{Records: []datagov.Record{record("Ranchi")}, Total: 1, TotalKnown: true}, nil
	}})

	rec := doGET(t, h, "/api/export?state=Jharkhand&district=Ranchi&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "mgnrega_jharkhand_ranchi.csv")
	assert.Contains(t, rec.Body.String(), "district_name")
	assert.Contains(t, rec.Body.String(), "Ranchi")
}

func TestExportEndpointBadFormat(t *testing.T) {
	h := newTestRouter(t, &scriptedClient{queryFn: func(req datagov.QueryRequest) (*datagov.QueryResult, error) {
		return &datagov.QueryResult{}, nil
	}})

	rec := doGET(t, h, "/api/export?format=pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
	assert.Equal(t, []string{"a"}, splitList("a,,"))
	assert.Nil(t, splitList(""))
}
