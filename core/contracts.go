package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// Normalizer converts one raw provider payload into a BuildEvent or
// rejects it with a validation error. Pure: no side effects, no network.
type Normalizer interface {
	Kind() ProviderKind
	Normalize(payload []byte, providerName string) (BuildEvent, error)
}

// ProviderStore persists Provider rows. GetOrCreate is the lazy lookup
// used on the first event from a new source.
type ProviderStore interface {
	GetOrCreate(ctx context.Context, kind ProviderKind, name string) (Provider, error)
	Get(ctx context.Context, id string) (Provider, error)
}

// BuildStore persists Build aggregates. Uniqueness on
// (provider_id, external_id) is enforced by the store and is the single
// source of truth for cross-process serialization.
type BuildStore interface {
	GetByKey(ctx context.Context, providerID, externalID string) (Build, error)
	Get(ctx context.Context, id string) (Build, error)
	Insert(ctx context.Context, build Build) (Build, error)
	Update(ctx context.Context, build Build) (Build, error)
	ListStartedWithin(ctx context.Context, from, to time.Time) ([]Build, error)
	List(ctx context.Context, limit, offset int) ([]Build, error)
}

// AlertLedger records alert reservations and outcomes. Reserve must be an
// atomic insert-if-absent on (build_id, channel): it reports won=false
// when the row already exists, without error.
type AlertLedger interface {
	Reserve(ctx context.Context, buildID string, channel AlertChannel, message string) (record AlertRecord, won bool, err error)
	RecordOutcome(ctx context.Context, recordID string, success bool, sendErr string, sentAt time.Time) error
	GetByBuild(ctx context.Context, buildID string, channel AlertChannel) (AlertRecord, error)
}

// Notifier delivers one alert on one channel. Implementations must never
// panic; the gate treats every failure uniformly as success=false.
type Notifier interface {
	Send(ctx context.Context, channel AlertChannel, message string, metadata map[string]any) error
}

// ProviderClient fetches recent run payloads for a configured source.
// Implementations carry their own auth; calls must honor ctx deadlines.
type ProviderClient interface {
	FetchRecentRuns(ctx context.Context, source PollSource) ([][]byte, error)
}

// JobExecutionMessage is the deferred-ingestion queue contract: a raw
// payload handed off for asynchronous processing.
type JobExecutionMessage struct {
	JobID          string
	ProviderKind   string
	ProviderName   string
	Payload        []byte
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

// JobWorkerEvent carries the lifecycle snapshot a queue worker reports
// around one execution attempt.
type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

// RawConfigLoader yields the raw configuration map fed into cfgx.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// ConfigProvider loads a validated Config on top of defaults.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}
