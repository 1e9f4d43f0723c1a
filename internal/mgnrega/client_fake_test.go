package mgnrega

import (
	"context"

	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
)

// fakeClient scripts upstream behavior per request.
type fakeClient struct {
	queryFn     func(req datagov.QueryRequest) (*datagov.QueryResult, error)
	probeFields []string
	probeErr    error

	calls  []datagov.QueryRequest
	probes int
}

func (f *fakeClient) Query(_ context.Context, req datagov.QueryRequest) (*datagov.QueryResult, error) {
	f.calls = append(f.calls, req)
	return f.queryFn(req)
}

func (f *fakeClient) Probe(context.Context) ([]string, error) {
	f.probes++
	return f.probeFields, f.probeErr
}

func filterValue(req datagov.QueryRequest, field string) string {
	for _, f := range req.Filters {
		if f.Field == field {
			return f.Value
		}
	}
	return ""
}
