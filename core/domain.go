package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidProviderKind = errors.New("core: invalid provider kind")
	ErrInvalidBuildStatus  = errors.New("core: invalid build status")
	ErrBuildNotFound       = errors.New("core: build not found")
	ErrProviderNotFound    = errors.New("core: provider not found")
)

// ProviderKind identifies one supported CI system.
type ProviderKind string

const (
	ProviderKindGitHubActions ProviderKind = "github_actions"
	ProviderKindJenkins       ProviderKind = "jenkins"
)

func (k ProviderKind) Validate() error {
	switch k {
	case ProviderKindGitHubActions, ProviderKindJenkins:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidProviderKind, string(k))
}

// Provider is one registered CI source. Immutable once created; looked up
// or created lazily on the first event from a new source.
type Provider struct {
	ID        string
	Name      string
	Kind      ProviderKind
	CreatedAt time.Time
}

// BuildStatus is the canonical status vocabulary every provider payload
// is normalized into.
type BuildStatus string

const (
	BuildStatusQueued    BuildStatus = "queued"
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusSuccess   BuildStatus = "success"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
	BuildStatusUnknown   BuildStatus = "unknown"
)

func (s BuildStatus) Validate() error {
	switch s {
	case BuildStatusQueued, BuildStatusRunning, BuildStatusSuccess,
		BuildStatusFailed, BuildStatusCancelled, BuildStatusUnknown:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidBuildStatus, string(s))
}

// Terminal reports whether no further transitions are expected.
func (s BuildStatus) Terminal() bool {
	switch s {
	case BuildStatusSuccess, BuildStatusFailed, BuildStatusCancelled:
		return true
	}
	return false
}

// BuildEvent is the normalized, transient representation of a single
// provider status update. Produced by a Normalizer, consumed once by the
// Reconciler; never persisted.
type BuildEvent struct {
	ProviderKind ProviderKind
	ProviderName string
	ExternalID   string
	Status       BuildStatus
	Branch       string
	CommitSHA    string
	TriggeredBy  string
	StartedAt    *time.Time
	FinishedAt   *time.Time
	URL          string
	RawPayload   json.RawMessage
}

func (e BuildEvent) Validate() error {
	if err := e.ProviderKind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.ExternalID) == "" {
		return fmt.Errorf("core: build event external id is required")
	}
	return e.Status.Validate()
}

// Duration derives the build duration in whole seconds, or nil when
// either endpoint is missing or finished precedes started. Never zero by
// default: nil distinguishes "no data" from "instant build".
func (e BuildEvent) Duration() *int64 {
	return DeriveDuration(e.StartedAt, e.FinishedAt)
}

// ObservedAt is the recency anchor for reconciliation ordering:
// finished_at when present, otherwise started_at, otherwise nil.
func (e BuildEvent) ObservedAt() *time.Time {
	if e.FinishedAt != nil {
		return e.FinishedAt
	}
	return e.StartedAt
}

// Build is the persisted aggregate for one external CI run, uniquely
// keyed by (ProviderID, ExternalID). Owned by the Reconciler.
type Build struct {
	ID              string
	ProviderID      string
	ExternalID      string
	Status          BuildStatus
	Branch          string
	CommitSHA       string
	TriggeredBy     string
	StartedAt       *time.Time
	FinishedAt      *time.Time
	DurationSeconds *int64
	URL             string
	RawPayload      json.RawMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ObservedAt mirrors BuildEvent.ObservedAt for the stored side of a
// recency comparison.
func (b Build) ObservedAt() *time.Time {
	if b.FinishedAt != nil {
		return b.FinishedAt
	}
	return b.StartedAt
}

// DeriveDuration computes whole seconds between start and finish, nil
// unless both are present and finish >= start.
func DeriveDuration(startedAt, finishedAt *time.Time) *int64 {
	if startedAt == nil || finishedAt == nil {
		return nil
	}
	if finishedAt.Before(*startedAt) {
		return nil
	}
	seconds := int64(finishedAt.Sub(*startedAt) / time.Second)
	return &seconds
}

// AlertChannel names one notification destination.
type AlertChannel string

const (
	AlertChannelEmail AlertChannel = "email"
	AlertChannelSlack AlertChannel = "slack"
)

const (
	AlertStatusPending = "pending"
	AlertStatusSent    = "sent"
	AlertStatusFailed  = "failed"
)

// AlertRecord is the per-(build, channel) reservation row. The uniqueness
// constraint on (BuildID, Channel) is the at-most-once guarantee.
type AlertRecord struct {
	ID      string
	BuildID string
	Channel AlertChannel
	Status  string
	Success bool
	Message string
	Error   string
	SentAt  *time.Time
}

// MetricsSummary is derived on read from the Build set in a time window;
// never persisted as mutable state.
type MetricsSummary struct {
	WindowDays          int
	SuccessRate         float64
	FailureRate         float64
	AvgBuildTimeSeconds *float64
	LastBuildStatus     BuildStatus
	TotalBuilds         int
	CompletedBuilds     int
	ByProvider          map[string]ProviderBreakdown
	AsOf                time.Time
}

// ProviderBreakdown counts window activity for one provider.
type ProviderBreakdown struct {
	Total     int
	Completed int
	Failed    int
}

// PollSource is one configured repository or job a poll cycle fetches.
type PollSource struct {
	Kind         ProviderKind
	ProviderName string
	Owner        string
	Repo         string
	Job          string
	Branch       string
	Enabled      bool
}

func (s PollSource) Validate() error {
	if err := s.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.ProviderName) == "" {
		return fmt.Errorf("core: poll source provider name is required")
	}
	switch s.Kind {
	case ProviderKindGitHubActions:
		if strings.TrimSpace(s.Owner) == "" || strings.TrimSpace(s.Repo) == "" {
			return fmt.Errorf("core: github poll source requires owner and repo")
		}
	case ProviderKindJenkins:
		if strings.TrimSpace(s.Job) == "" {
			return fmt.Errorf("core: jenkins poll source requires a job name")
		}
	}
	return nil
}

// Label identifies the source in logs and error context.
func (s PollSource) Label() string {
	switch s.Kind {
	case ProviderKindGitHubActions:
		return fmt.Sprintf("%s/%s", s.Owner, s.Repo)
	case ProviderKindJenkins:
		return s.Job
	}
	return s.ProviderName
}
