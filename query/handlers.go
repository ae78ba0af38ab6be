package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-buildhealth/core"
)

// MetricsReader computes a rollup over the recent build window;
// satisfied by *metrics.Aggregator.
type MetricsReader interface {
	Summarize(ctx context.Context, windowDays int) (core.MetricsSummary, error)
}

type BuildReader interface {
	Get(ctx context.Context, id string) (core.Build, error)
	GetByKey(ctx context.Context, providerID, externalID string) (core.Build, error)
	List(ctx context.Context, limit, offset int) ([]core.Build, error)
}

type GetMetricsSummaryQuery struct {
	reader MetricsReader
}

func NewGetMetricsSummaryQuery(reader MetricsReader) *GetMetricsSummaryQuery {
	return &GetMetricsSummaryQuery{reader: reader}
}

func (q *GetMetricsSummaryQuery) Query(ctx context.Context, msg GetMetricsSummaryMessage) (core.MetricsSummary, error) {
	if q == nil || q.reader == nil {
		return core.MetricsSummary{}, queryDependencyError("query: metrics reader is required")
	}
	return q.reader.Summarize(ctx, msg.WindowDays)
}

type GetBuildQuery struct {
	reader BuildReader
}

func NewGetBuildQuery(reader BuildReader) *GetBuildQuery {
	return &GetBuildQuery{reader: reader}
}

func (q *GetBuildQuery) Query(ctx context.Context, msg GetBuildMessage) (core.Build, error) {
	if q == nil || q.reader == nil {
		return core.Build{}, queryDependencyError("query: build reader is required")
	}
	if strings.TrimSpace(msg.ID) != "" {
		return q.reader.Get(ctx, msg.ID)
	}
	return q.reader.GetByKey(ctx, msg.ProviderID, msg.ExternalID)
}

type ListBuildsQuery struct {
	reader BuildReader
}

func NewListBuildsQuery(reader BuildReader) *ListBuildsQuery {
	return &ListBuildsQuery{reader: reader}
}

func (q *ListBuildsQuery) Query(ctx context.Context, msg ListBuildsMessage) ([]core.Build, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: build reader is required")
	}
	return q.reader.List(ctx, msg.Limit, msg.Offset)
}
