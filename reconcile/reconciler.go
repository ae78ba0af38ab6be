// Package reconcile merges normalized build events into persisted Build
// aggregates. Correctness across producers rests on the store's
// uniqueness constraint for (provider_id, external_id); the reconciler
// treats a duplicate-insert race as a signal to retry as an update.
package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-buildhealth/core"
)

const defaultConflictRetries = 3

// Outcome reports what one reconciliation did.
type Outcome struct {
	Created        bool
	Changed        bool
	Transitioned   bool
	PreviousStatus core.BuildStatus
}

type Reconciler struct {
	Providers core.ProviderStore
	Builds    core.BuildStore
	Logger    core.Logger
	// ConflictRetries bounds how many times a duplicate-insert race is
	// retried as an update before surfacing a reconciliation failure.
	ConflictRetries int
	Now             func() time.Time
}

func NewReconciler(providers core.ProviderStore, builds core.BuildStore) *Reconciler {
	return &Reconciler{
		Providers:       providers,
		Builds:          builds,
		Logger:          glog.Nop(),
		ConflictRetries: defaultConflictRetries,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Reconcile idempotently merges event into the stored Build aggregate.
// Outcome.Transitioned is true iff the stored status became failed and
// was not failed before (including a first-seen failed build).
func (r *Reconciler) Reconcile(ctx context.Context, event core.BuildEvent) (core.Build, Outcome, error) {
	if r == nil || r.Providers == nil || r.Builds == nil {
		return core.Build{}, Outcome{}, fmt.Errorf("reconcile: reconciler requires provider and build stores")
	}
	if err := event.Validate(); err != nil {
		return core.Build{}, Outcome{}, err
	}

	providerName := strings.TrimSpace(event.ProviderName)
	if providerName == "" {
		providerName = string(event.ProviderKind)
	}
	provider, err := r.Providers.GetOrCreate(ctx, event.ProviderKind, providerName)
	if err != nil {
		return core.Build{}, Outcome{}, err
	}

	var lastConflict error
	for attempt := 0; attempt <= r.conflictRetries(); attempt++ {
		existing, getErr := r.Builds.GetByKey(ctx, provider.ID, event.ExternalID)
		switch {
		case getErr == nil:
			return r.applyUpdate(ctx, existing, event)
		case errors.Is(getErr, core.ErrBuildNotFound):
			build, outcome, insertErr := r.insertNew(ctx, provider.ID, event)
			if insertErr == nil {
				return build, outcome, nil
			}
			if !core.IsConflictError(insertErr) {
				return core.Build{}, Outcome{}, insertErr
			}
			// Lost the insert race to a sibling producer; the row now
			// exists, so loop back around and merge into it.
			lastConflict = insertErr
		default:
			return core.Build{}, Outcome{}, getErr
		}
	}
	return core.Build{}, Outcome{}, core.NewConflictError(
		fmt.Sprintf("reconcile: upsert race on (%s, %s) not resolved after %d attempts",
			provider.ID, event.ExternalID, r.conflictRetries()+1),
		lastConflict,
	)
}

func (r *Reconciler) insertNew(ctx context.Context, providerID string, event core.BuildEvent) (core.Build, Outcome, error) {
	now := r.now()
	build := core.Build{
		ProviderID:      providerID,
		ExternalID:      strings.TrimSpace(event.ExternalID),
		Status:          event.Status,
		Branch:          event.Branch,
		CommitSHA:       event.CommitSHA,
		TriggeredBy:     event.TriggeredBy,
		StartedAt:       event.StartedAt,
		FinishedAt:      event.FinishedAt,
		DurationSeconds: event.Duration(),
		URL:             event.URL,
		RawPayload:      event.RawPayload,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	inserted, err := r.Builds.Insert(ctx, build)
	if err != nil {
		return core.Build{}, Outcome{}, err
	}
	return inserted, Outcome{
		Created:        true,
		Changed:        true,
		Transitioned:   event.Status == core.BuildStatusFailed,
		PreviousStatus: core.BuildStatusUnknown,
	}, nil
}

func (r *Reconciler) applyUpdate(ctx context.Context, existing core.Build, event core.BuildEvent) (core.Build, Outcome, error) {
	previous := existing.Status
	merged := mergeEvent(existing, event)

	if buildEqual(existing, merged) {
		return existing, Outcome{PreviousStatus: previous}, nil
	}

	merged.UpdatedAt = r.now()
	updated, err := r.Builds.Update(ctx, merged)
	if err != nil {
		return core.Build{}, Outcome{}, err
	}
	return updated, Outcome{
		Changed:        true,
		Transitioned:   updated.Status == core.BuildStatusFailed && previous != core.BuildStatusFailed,
		PreviousStatus: previous,
	}, nil
}

// mergeEvent folds event into the stored build. A terminal status only
// moves to a different status when the event's recency anchor is newer
// than the stored one, so a stale snapshot can neither revert a finish
// nor flip one terminal result to another.
func mergeEvent(existing core.Build, event core.BuildEvent) core.Build {
	merged := existing

	newer := isNewer(event.ObservedAt(), existing.ObservedAt())
	stale := existing.Status.Terminal() && event.Status != existing.Status && !newer
	if stale {
		// Out-of-order observation; keep the terminal state and
		// everything recorded with it.
		return existing
	}
	merged.Status = event.Status

	if strings.TrimSpace(event.Branch) != "" {
		merged.Branch = event.Branch
	}
	if strings.TrimSpace(event.CommitSHA) != "" {
		merged.CommitSHA = event.CommitSHA
	}
	if strings.TrimSpace(event.TriggeredBy) != "" {
		merged.TriggeredBy = event.TriggeredBy
	}
	if strings.TrimSpace(event.URL) != "" {
		merged.URL = event.URL
	}
	if event.StartedAt != nil {
		merged.StartedAt = event.StartedAt
	}
	if event.FinishedAt != nil {
		merged.FinishedAt = event.FinishedAt
	}
	merged.DurationSeconds = core.DeriveDuration(merged.StartedAt, merged.FinishedAt)
	if len(event.RawPayload) > 0 {
		merged.RawPayload = event.RawPayload
	}
	return merged
}

func isNewer(candidate, reference *time.Time) bool {
	if candidate == nil {
		return false
	}
	if reference == nil {
		return true
	}
	return candidate.After(*reference)
}

func buildEqual(left, right core.Build) bool {
	return left.Status == right.Status &&
		left.Branch == right.Branch &&
		left.CommitSHA == right.CommitSHA &&
		left.TriggeredBy == right.TriggeredBy &&
		left.URL == right.URL &&
		timePtrEqual(left.StartedAt, right.StartedAt) &&
		timePtrEqual(left.FinishedAt, right.FinishedAt) &&
		int64PtrEqual(left.DurationSeconds, right.DurationSeconds) &&
		bytes.Equal(left.RawPayload, right.RawPayload)
}

func timePtrEqual(left, right *time.Time) bool {
	if left == nil || right == nil {
		return left == right
	}
	return left.Equal(*right)
}

func int64PtrEqual(left, right *int64) bool {
	if left == nil || right == nil {
		return left == right
	}
	return *left == *right
}

func (r *Reconciler) conflictRetries() int {
	if r != nil && r.ConflictRetries > 0 {
		return r.ConflictRetries
	}
	return defaultConflictRetries
}

func (r *Reconciler) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
