package sqlstore

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-buildhealth/core"
)

func (r *providerRecord) toDomain() core.Provider {
	if r == nil {
		return core.Provider{}
	}
	return core.Provider{
		ID:        r.ID,
		Name:      r.Name,
		Kind:      core.ProviderKind(r.Kind),
		CreatedAt: r.CreatedAt,
	}
}

func newBuildRecord(build core.Build, now time.Time) *buildRecord {
	record := &buildRecord{
		ID:              build.ID,
		ProviderID:      strings.TrimSpace(build.ProviderID),
		ExternalID:      strings.TrimSpace(build.ExternalID),
		Status:          string(build.Status),
		Branch:          build.Branch,
		CommitSHA:       build.CommitSHA,
		TriggeredBy:     build.TriggeredBy,
		StartedAt:       cloneTimePointer(build.StartedAt),
		FinishedAt:      cloneTimePointer(build.FinishedAt),
		DurationSeconds: cloneInt64Pointer(build.DurationSeconds),
		URL:             build.URL,
		RawPayload:      append(json.RawMessage(nil), build.RawPayload...),
		CreatedAt:       build.CreatedAt,
		UpdatedAt:       build.UpdatedAt,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	return record
}

func (r *buildRecord) toDomain() core.Build {
	if r == nil {
		return core.Build{}
	}
	return core.Build{
		ID:              r.ID,
		ProviderID:      r.ProviderID,
		ExternalID:      r.ExternalID,
		Status:          core.BuildStatus(r.Status),
		Branch:          r.Branch,
		CommitSHA:       r.CommitSHA,
		TriggeredBy:     r.TriggeredBy,
		StartedAt:       cloneTimePointer(r.StartedAt),
		FinishedAt:      cloneTimePointer(r.FinishedAt),
		DurationSeconds: cloneInt64Pointer(r.DurationSeconds),
		URL:             r.URL,
		RawPayload:      append(json.RawMessage(nil), r.RawPayload...),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (r *alertRecord) toDomain() core.AlertRecord {
	if r == nil {
		return core.AlertRecord{}
	}
	return core.AlertRecord{
		ID:      r.ID,
		BuildID: r.BuildID,
		Channel: core.AlertChannel(r.Channel),
		Status:  r.Status,
		Success: r.Success,
		Message: r.Message,
		Error:   r.Error,
		SentAt:  cloneTimePointer(r.SentAt),
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func cloneInt64Pointer(input *int64) *int64 {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
