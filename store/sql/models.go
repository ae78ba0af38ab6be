package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

type providerRecord struct {
	bun.BaseModel `bun:"table:ci_providers,alias:cp"`

	ID        string    `bun:"id,pk"`
	Kind      string    `bun:"kind,notnull"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type buildRecord struct {
	bun.BaseModel `bun:"table:ci_builds,alias:cb"`

	ID              string          `bun:"id,pk"`
	ProviderID      string          `bun:"provider_id,notnull"`
	ExternalID      string          `bun:"external_id,notnull"`
	Status          string          `bun:"status,notnull"`
	Branch          string          `bun:"branch"`
	CommitSHA       string          `bun:"commit_sha"`
	TriggeredBy     string          `bun:"triggered_by"`
	StartedAt       *time.Time      `bun:"started_at,nullzero"`
	FinishedAt      *time.Time      `bun:"finished_at,nullzero"`
	DurationSeconds *int64          `bun:"duration_seconds"`
	URL             string          `bun:"url"`
	RawPayload      json.RawMessage `bun:"raw_payload,type:jsonb"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type alertRecord struct {
	bun.BaseModel `bun:"table:ci_build_alerts,alias:cba"`

	ID      string     `bun:"id,pk"`
	BuildID string     `bun:"build_id,notnull"`
	Channel string     `bun:"channel,notnull"`
	Status  string     `bun:"status,notnull"`
	Success bool       `bun:"success,notnull"`
	Message string     `bun:"message,notnull"`
	Error   string     `bun:"error,notnull"`
	SentAt  *time.Time `bun:"sent_at,nullzero"`
}
