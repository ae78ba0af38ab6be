// Package query exposes the read-side operations as dispatchable
// messages paired with Querier handlers.
package query

import (
	"strings"
)

const (
	TypeGetMetricsSummary = "buildhealth.query.metrics.summary"
	TypeGetBuild          = "buildhealth.query.build.get"
	TypeListBuilds        = "buildhealth.query.build.list"
)

type GetMetricsSummaryMessage struct {
	WindowDays int
}

func (GetMetricsSummaryMessage) Type() string { return TypeGetMetricsSummary }

func (m GetMetricsSummaryMessage) Validate() error {
	if m.WindowDays < 0 {
		return queryValidationError("window_days", "window must be >= 0")
	}
	return nil
}

// GetBuildMessage resolves a build either by its row ID or by the
// (provider_id, external_id) key. ID wins when both are set.
type GetBuildMessage struct {
	ID         string
	ProviderID string
	ExternalID string
}

func (GetBuildMessage) Type() string { return TypeGetBuild }

func (m GetBuildMessage) Validate() error {
	if strings.TrimSpace(m.ID) != "" {
		return nil
	}
	if strings.TrimSpace(m.ProviderID) == "" || strings.TrimSpace(m.ExternalID) == "" {
		return queryValidationError("id", "either id or provider_id and external_id are required")
	}
	return nil
}

type ListBuildsMessage struct {
	Limit  int
	Offset int
}

func (ListBuildsMessage) Type() string { return TypeListBuilds }

func (m ListBuildsMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Offset < 0 {
		return queryValidationError("offset", "offset must be >= 0")
	}
	return nil
}
