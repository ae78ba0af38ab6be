package github

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-buildhealth/core"
)

const ProviderID = "github_actions"

// workflowRun mirrors the subset of the Actions workflow-run payload the
// normalizer consumes, shared by webhook deliveries and the poll API.
type workflowRun struct {
	ID           json.Number `json:"id"`
	RunNumber    int         `json:"run_number"`
	Status       string      `json:"status"`
	Conclusion   string      `json:"conclusion"`
	HeadBranch   string      `json:"head_branch"`
	HeadSHA      string      `json:"head_sha"`
	Event        string      `json:"event"`
	HTMLURL      string      `json:"html_url"`
	RunStartedAt string      `json:"run_started_at"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
	Actor        struct {
		Login string `json:"login"`
	} `json:"actor"`
	HeadCommit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"head_commit"`
}

// webhookEnvelope is the push-delivered shape: the run sits under
// "workflow_run". Poll payloads carry the run at the top level.
type webhookEnvelope struct {
	WorkflowRun *workflowRun `json:"workflow_run"`
}

type Normalizer struct{}

func NewNormalizer() Normalizer {
	return Normalizer{}
}

func (Normalizer) Kind() core.ProviderKind {
	return core.ProviderKindGitHubActions
}

func (n Normalizer) Normalize(payload []byte, providerName string) (core.BuildEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return core.BuildEvent{}, core.NewValidationError("payload",
			fmt.Sprintf("malformed github payload: %v", err))
	}

	run := envelope.WorkflowRun
	if run == nil {
		run = &workflowRun{}
		if err := json.Unmarshal(payload, run); err != nil {
			return core.BuildEvent{}, core.NewValidationError("payload",
				fmt.Sprintf("malformed github payload: %v", err))
		}
	}

	externalID := strings.TrimSpace(run.ID.String())
	if externalID == "" || externalID == "0" {
		return core.BuildEvent{}, core.NewValidationError("id", "workflow run id is required")
	}

	status := mapStatus(run.Status, run.Conclusion)
	startedAt := parseTimestamp(run.RunStartedAt)
	if startedAt == nil {
		startedAt = parseTimestamp(run.CreatedAt)
	}
	var finishedAt *time.Time
	if strings.EqualFold(strings.TrimSpace(run.Status), "completed") {
		finishedAt = parseTimestamp(run.UpdatedAt)
	}

	triggeredBy := strings.TrimSpace(run.Actor.Login)
	if triggeredBy == "" {
		triggeredBy = strings.TrimSpace(run.HeadCommit.Author.Name)
	}

	event := core.BuildEvent{
		ProviderKind: core.ProviderKindGitHubActions,
		ProviderName: strings.TrimSpace(providerName),
		ExternalID:   externalID,
		Status:       status,
		Branch:       strings.TrimSpace(run.HeadBranch),
		CommitSHA:    strings.TrimSpace(run.HeadSHA),
		TriggeredBy:  triggeredBy,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		URL:          strings.TrimSpace(run.HTMLURL),
		RawPayload:   json.RawMessage(payload),
	}
	if err := event.Validate(); err != nil {
		return core.BuildEvent{}, err
	}
	return event, nil
}

// mapStatus translates the Actions vocabulary into the canonical enum.
//
// Completed runs are classified by conclusion:
//
//	success, neutral, skipped              -> success
//	failure, timed_out, startup_failure,
//	action_required, stale, cancelled      -> failed
//
// Runs without a conclusion fall back to the run status:
//
//	in_progress                            -> running
//	queued, waiting, pending, requested    -> queued
//	anything else                          -> unknown
func mapStatus(status, conclusion string) core.BuildStatus {
	switch strings.ToLower(strings.TrimSpace(conclusion)) {
	case "success", "neutral", "skipped":
		return core.BuildStatusSuccess
	case "failure", "timed_out", "startup_failure", "action_required", "stale", "cancelled":
		return core.BuildStatusFailed
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "in_progress":
		return core.BuildStatusRunning
	case "queued", "waiting", "pending", "requested":
		return core.BuildStatusQueued
	}
	return core.BuildStatusUnknown
}

// parseTimestamp is forgiving: a value that fails to parse yields nil so
// the event survives with a null duration instead of being rejected.
func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

var _ core.Normalizer = Normalizer{}
