package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-buildhealth/core"
)

var (
	_ gocmd.Querier[GetMetricsSummaryMessage, core.MetricsSummary] = (*GetMetricsSummaryQuery)(nil)
	_ gocmd.Querier[GetBuildMessage, core.Build]                   = (*GetBuildQuery)(nil)
	_ gocmd.Querier[ListBuildsMessage, []core.Build]               = (*ListBuildsQuery)(nil)
)
