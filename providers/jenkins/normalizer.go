package jenkins

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-buildhealth/core"
)

const ProviderID = "jenkins"

// buildPayload mirrors the Jenkins build API shape
// (job/<name>/<number>/api/json). Timestamps and durations are epoch
// milliseconds.
type buildPayload struct {
	Number    json.Number `json:"number"`
	URL       string      `json:"url"`
	Result    string      `json:"result"`
	Building  bool        `json:"building"`
	Timestamp int64       `json:"timestamp"`
	Duration  int64       `json:"duration"`
	Actions   []struct {
		Causes []struct {
			UserID   string `json:"userId"`
			UserName string `json:"userName"`
		} `json:"causes"`
	} `json:"actions"`
	ChangeSet struct {
		Items []struct {
			CommitID string `json:"commitId"`
		} `json:"items"`
	} `json:"changeSet"`
}

type Normalizer struct{}

func NewNormalizer() Normalizer {
	return Normalizer{}
}

func (Normalizer) Kind() core.ProviderKind {
	return core.ProviderKindJenkins
}

func (n Normalizer) Normalize(payload []byte, providerName string) (core.BuildEvent, error) {
	var build buildPayload
	if err := json.Unmarshal(payload, &build); err != nil {
		return core.BuildEvent{}, core.NewValidationError("payload",
			fmt.Sprintf("malformed jenkins payload: %v", err))
	}

	externalID := strings.TrimSpace(build.Number.String())
	if externalID == "" || externalID == "0" {
		return core.BuildEvent{}, core.NewValidationError("number", "build number is required")
	}

	status := mapResult(build.Result, build.Building)
	startedAt := fromEpochMillis(build.Timestamp)

	// Jenkins reports no end time; derive it from duration once the
	// build reaches a terminal result. duration=0 on a terminal build
	// still yields an end time equal to the start.
	var finishedAt *time.Time
	if status.Terminal() && startedAt != nil && build.Duration >= 0 {
		ended := startedAt.Add(time.Duration(build.Duration) * time.Millisecond)
		finishedAt = &ended
	}

	event := core.BuildEvent{
		ProviderKind: core.ProviderKindJenkins,
		ProviderName: strings.TrimSpace(providerName),
		ExternalID:   externalID,
		Status:       status,
		TriggeredBy:  firstCause(build),
		CommitSHA:    firstCommit(build),
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		URL:          strings.TrimSpace(build.URL),
		RawPayload:   json.RawMessage(payload),
	}
	if err := event.Validate(); err != nil {
		return core.BuildEvent{}, err
	}
	return event, nil
}

// mapResult translates Jenkins build results into the canonical enum:
//
//	SUCCESS            -> success
//	FAILURE, UNSTABLE  -> failed
//	ABORTED            -> cancelled
//	NOT_BUILT          -> unknown
//	no result, building -> running
//	no result, idle     -> queued
func mapResult(result string, building bool) core.BuildStatus {
	switch strings.ToUpper(strings.TrimSpace(result)) {
	case "SUCCESS":
		return core.BuildStatusSuccess
	case "FAILURE", "UNSTABLE":
		return core.BuildStatusFailed
	case "ABORTED":
		return core.BuildStatusCancelled
	case "NOT_BUILT":
		return core.BuildStatusUnknown
	}
	if building {
		return core.BuildStatusRunning
	}
	return core.BuildStatusQueued
}

func fromEpochMillis(millis int64) *time.Time {
	if millis <= 0 {
		return nil
	}
	parsed := time.UnixMilli(millis).UTC()
	return &parsed
}

func firstCause(build buildPayload) string {
	for _, action := range build.Actions {
		for _, cause := range action.Causes {
			if id := strings.TrimSpace(cause.UserID); id != "" {
				return id
			}
			if name := strings.TrimSpace(cause.UserName); name != "" {
				return name
			}
		}
	}
	return ""
}

func firstCommit(build buildPayload) string {
	for _, item := range build.ChangeSet.Items {
		if sha := strings.TrimSpace(item.CommitID); sha != "" {
			return sha
		}
	}
	return ""
}

var _ core.Normalizer = Normalizer{}
