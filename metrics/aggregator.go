// Package metrics derives build-health summaries from the stored Build
// set. Pure on read: nothing here mutates state, so a summary can be
// recomputed at any time and two concurrent reads cannot disagree about
// anything but the window boundary.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-buildhealth/core"
)

const DefaultWindowDays = 7

type Aggregator struct {
	Builds    core.BuildStore
	Providers core.ProviderStore
	Now       func() time.Time
}

func NewAggregator(builds core.BuildStore, providers core.ProviderStore) *Aggregator {
	return &Aggregator{
		Builds:    builds,
		Providers: providers,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Summarize computes the rolling-window summary over builds whose
// started_at falls inside the window. Rates are computed over completed
// builds only; queued, running, and unknown builds count toward totals
// but never toward a denominator. An empty window yields zero rates, a
// nil average, and last status unknown.
func (a *Aggregator) Summarize(ctx context.Context, windowDays int) (core.MetricsSummary, error) {
	if a == nil || a.Builds == nil {
		return core.MetricsSummary{}, fmt.Errorf("metrics: aggregator requires a build store")
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	now := a.now()
	from := now.AddDate(0, 0, -windowDays)
	builds, err := a.Builds.ListStartedWithin(ctx, from, now)
	if err != nil {
		return core.MetricsSummary{}, fmt.Errorf("metrics: list builds in window: %w", err)
	}

	summary := core.MetricsSummary{
		WindowDays:      windowDays,
		LastBuildStatus: core.BuildStatusUnknown,
		ByProvider:      map[string]core.ProviderBreakdown{},
		AsOf:            now,
	}

	var (
		successes     int
		failures      int
		durationSum   int64
		durationCount int
		latest        *core.Build
	)
	for i := range builds {
		build := builds[i]
		summary.TotalBuilds++

		key := a.providerKey(ctx, build.ProviderID)
		breakdown := summary.ByProvider[key]
		breakdown.Total++

		// Completed means a terminal success or failure with a recorded
		// finish; cancelled builds stay out of the rate denominators.
		completed := build.FinishedAt != nil &&
			(build.Status == core.BuildStatusSuccess || build.Status == core.BuildStatusFailed)
		if completed {
			summary.CompletedBuilds++
			breakdown.Completed++
			if build.Status == core.BuildStatusSuccess {
				successes++
			} else {
				failures++
				breakdown.Failed++
			}
			if build.DurationSeconds != nil {
				durationSum += *build.DurationSeconds
				durationCount++
			}
		}
		summary.ByProvider[key] = breakdown

		if latest == nil || moreRecent(build, *latest) {
			latest = &builds[i]
		}
	}

	if summary.CompletedBuilds > 0 {
		summary.SuccessRate = float64(successes) / float64(summary.CompletedBuilds)
		summary.FailureRate = float64(failures) / float64(summary.CompletedBuilds)
	}
	if durationCount > 0 {
		avg := float64(durationSum) / float64(durationCount)
		summary.AvgBuildTimeSeconds = &avg
	}
	if latest != nil {
		summary.LastBuildStatus = latest.Status
	}
	return summary, nil
}

// moreRecent orders builds by started_at, breaking ties by created_at
// and finally by higher id, so two builds starting the same second
// resolve deterministically even when both rows share a creation time.
func moreRecent(candidate, reference core.Build) bool {
	switch {
	case candidate.StartedAt == nil:
		return false
	case reference.StartedAt == nil:
		return true
	case candidate.StartedAt.After(*reference.StartedAt):
		return true
	case candidate.StartedAt.Before(*reference.StartedAt):
		return false
	}
	switch {
	case candidate.CreatedAt.After(reference.CreatedAt):
		return true
	case candidate.CreatedAt.Before(reference.CreatedAt):
		return false
	}
	return candidate.ID > reference.ID
}

// providerKey resolves the provider name for the breakdown map, falling
// back to the raw id when the provider row cannot be read.
func (a *Aggregator) providerKey(ctx context.Context, providerID string) string {
	if a.Providers == nil {
		return providerID
	}
	provider, err := a.Providers.Get(ctx, providerID)
	if err != nil {
		return providerID
	}
	return provider.Name
}

func (a *Aggregator) now() time.Time {
	if a != nil && a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}
