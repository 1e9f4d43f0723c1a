package mgnrega

import (
	"context"

	"go.uber.org/zap"

	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
)

// FetchAllPages walks a query through increasing offsets until every record
// is collected. Pages are fetched sequentially: each request needs the
// previous page's outcome to decide whether to continue, and the upstream
// rate limit is easier on a single stream.
//
// The loop stops when the cumulative count reaches the upstream-reported
// total, when a page comes back shorter than the page size (last page), or
// when maxPages is hit (misbehaving-upstream guard). Totals that are unknown
// or drift between pages are tolerated by the short-page rule.
func FetchAllPages(ctx context.Context, client datagov.Client, req datagov.QueryRequest, maxPages int) (*datagov.QueryResult, error) {
	pageSize := req.Limit
	if pageSize <= 0 {
		pageSize = 200
	}
	if maxPages <= 0 {
		maxPages = 25
	}

	merged := &datagov.QueryResult{}
	offset := req.Offset

	for page := 0; page < maxPages; page++ {
		pageReq := req
		pageReq.Limit = pageSize
		pageReq.Offset = offset

		res, err := client.Query(ctx, pageReq)
		if err != nil {
			return nil, err
		}

		merged.Records = append(merged.Records, res.Records...)
		if res.TotalKnown {
			merged.Total = res.Total
			merged.TotalKnown = true
		} else if !merged.TotalKnown {
			merged.Total = offset + len(res.Records)
		}

		if len(res.Records) < pageSize {
			break
		}
		offset += pageSize
		if merged.TotalKnown && offset >= merged.Total {
			break
		}
	}

	zap.L().Debug("merged paginated result",
		zap.Int("records", len(merged.Records)),
		zap.Int("total", merged.Total),
	)
	return merged, nil
}
