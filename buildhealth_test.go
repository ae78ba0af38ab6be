package buildhealth_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	buildhealth "github.com/goliatone/go-buildhealth"
	buildhealthcommand "github.com/goliatone/go-buildhealth/command"
	"github.com/goliatone/go-buildhealth/core"
	buildhealthquery "github.com/goliatone/go-buildhealth/query"
	"github.com/goliatone/go-buildhealth/webhooks"
)

const webhookSecret = "s3cret"

func TestNewServiceComposesWebhookIngestion(t *testing.T) {
	stores := newMemoryStores()
	notifier := &recordingNotifier{}

	svc, err := buildhealth.NewService(buildhealth.Config{
		Webhook: core.WebhookConfig{Secret: webhookSecret},
	},
		buildhealth.WithProviderStore(stores.providers),
		buildhealth.WithBuildStore(stores.builds),
		buildhealth.WithAlertLedger(stores.alerts),
		buildhealth.WithNotifier(notifier),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	receiver := svc.Receiver()
	if receiver == nil {
		t.Fatalf("expected webhook receiver when a secret is configured")
	}

	ctx := context.Background()
	payload := []byte(`{"workflow_run":{"id":42,"status":"completed","conclusion":"failure",` +
		`"head_branch":"main","head_sha":"abcdef1234567890","html_url":"https://ci.example/run/42",` +
		`"run_started_at":"2024-01-10T10:00:00Z","updated_at":"2024-01-10T10:05:00Z"}}`)

	result, err := receiver.Receive(ctx, core.ProviderKindGitHubActions, signedRequest(payload))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !result.Outcome.Created || !result.Outcome.Transitioned {
		t.Fatalf("expected created failing build to transition, got %+v", result.Outcome)
	}
	if !result.Alerted {
		t.Fatalf("expected failure alert on first-seen failure")
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", notifier.count())
	}

	// Redelivery of the same payload must not change state or re-alert.
	replay, err := receiver.Receive(ctx, core.ProviderKindGitHubActions, signedRequest(payload))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.Outcome.Created || replay.Outcome.Changed || replay.Alerted {
		t.Fatalf("expected idempotent replay, got %+v", replay)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected dedupe to hold on replay, got %d notifications", notifier.count())
	}

	svc.Metrics().Now = func() time.Time {
		return time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	}
	summary, err := svc.Metrics().Summarize(ctx, 0)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.TotalBuilds != 1 || summary.FailureRate != 1 {
		t.Fatalf("expected one failed build in window, got %+v", summary)
	}
}

func TestNewServiceRejectsTamperedDelivery(t *testing.T) {
	stores := newMemoryStores()
	svc, err := buildhealth.NewService(buildhealth.Config{
		Webhook: core.WebhookConfig{Secret: webhookSecret},
	},
		buildhealth.WithProviderStore(stores.providers),
		buildhealth.WithBuildStore(stores.builds),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	req := signedRequest([]byte(`{"workflow_run":{"id":42,"status":"completed","conclusion":"failure"}}`))
	req.Body = []byte(`{"workflow_run":{"id":43,"status":"completed","conclusion":"failure"}}`)
	if _, err := svc.Receiver().Receive(context.Background(), core.ProviderKindGitHubActions, req); err == nil {
		t.Fatalf("expected signature mismatch to reject delivery")
	}
	if len(stores.builds.byID) != 0 {
		t.Fatalf("expected no build persisted for rejected delivery")
	}
}

type providerReadCounter struct {
	base             *memoryProviderStore
	getOrCreateCalls int
}

func (c *providerReadCounter) GetOrCreate(ctx context.Context, kind core.ProviderKind, name string) (core.Provider, error) {
	c.getOrCreateCalls++
	return c.base.GetOrCreate(ctx, kind, name)
}

func (c *providerReadCounter) Get(ctx context.Context, id string) (core.Provider, error) {
	return c.base.Get(ctx, id)
}

func TestWithProviderCacheFrontsProviderReads(t *testing.T) {
	stores := newMemoryStores()
	counter := &providerReadCounter{base: stores.providers}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}

	svc, err := buildhealth.NewService(buildhealth.Config{},
		buildhealth.WithProviderStore(counter),
		buildhealth.WithBuildStore(stores.builds),
		buildhealth.WithProviderCache(cacheService),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx := context.Background()
	for _, id := range []int{101, 102} {
		payload := []byte(fmt.Sprintf(`{"id":%d,"status":"completed","conclusion":"success",`+
			`"run_started_at":"2024-01-10T09:00:00Z","updated_at":"2024-01-10T09:04:00Z"}`, id))
		if _, err := svc.Pipeline().Ingest(ctx, core.ProviderKindGitHubActions, "github-main", payload); err != nil {
			t.Fatalf("ingest run %d: %v", id, err)
		}
	}
	if counter.getOrCreateCalls != 1 {
		t.Fatalf("expected the second ingest to hit the provider cache, base calls=%d", counter.getOrCreateCalls)
	}
}

func TestNewServiceRequiresStores(t *testing.T) {
	if _, err := buildhealth.NewService(buildhealth.Config{}); err == nil {
		t.Fatalf("expected configuration error without stores")
	}
}

func TestFacadeBuildsHandlers(t *testing.T) {
	stores := newMemoryStores()
	notifier := &recordingNotifier{}
	svc, err := buildhealth.NewService(buildhealth.Config{},
		buildhealth.WithProviderStore(stores.providers),
		buildhealth.WithBuildStore(stores.builds),
		buildhealth.WithAlertLedger(stores.alerts),
		buildhealth.WithNotifier(notifier),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	facade, err := buildhealth.NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.SendTestAlert == nil || commands.IngestWebhook == nil || commands.RunPollCycle == nil {
		t.Fatalf("expected all command handlers constructed")
	}
	queries := facade.Queries()
	if queries.GetMetricsSummary == nil || queries.GetBuild == nil || queries.ListBuilds == nil {
		t.Fatalf("expected all query handlers constructed")
	}

	if err := commands.SendTestAlert.Execute(context.Background(), buildhealthcommand.SendTestAlertMessage{
		Message: "wiring check",
	}); err != nil {
		t.Fatalf("send test alert: %v", err)
	}
	if notifier.count() == 0 {
		t.Fatalf("expected test alert to reach the notifier")
	}

	summary, err := queries.GetMetricsSummary.Query(context.Background(), buildhealthquery.GetMetricsSummaryMessage{
		WindowDays: 7,
	})
	if err != nil {
		t.Fatalf("metrics query: %v", err)
	}
	if summary.WindowDays != 7 {
		t.Fatalf("expected seven day window, got %+v", summary)
	}

	// No poll clients were configured, so the cycle command must report
	// the missing dependency instead of panicking.
	if err := commands.RunPollCycle.Execute(context.Background(), buildhealthcommand.RunPollCycleMessage{}); err == nil {
		t.Fatalf("expected poll cycle to fail without configured clients")
	}
}

type memoryStores struct {
	providers *memoryProviderStore
	builds    *memoryBuildStore
	alerts    *memoryAlertLedger
}

func newMemoryStores() memoryStores {
	return memoryStores{
		providers: &memoryProviderStore{byKey: map[string]core.Provider{}},
		builds:    &memoryBuildStore{byID: map[string]core.Build{}},
		alerts:    &memoryAlertLedger{records: map[string]core.AlertRecord{}},
	}
}

func signedRequest(payload []byte) webhooks.InboundRequest {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	return webhooks.InboundRequest{
		Headers: map[string]string{
			"X-Hub-Signature-256": "sha256=" + hex.EncodeToString(mac.Sum(nil)),
		},
		Body: payload,
	}
}

type memoryProviderStore struct {
	mu    sync.Mutex
	byKey map[string]core.Provider
}

func (s *memoryProviderStore) GetOrCreate(_ context.Context, kind core.ProviderKind, name string) (core.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(kind) + "/" + name
	if provider, ok := s.byKey[key]; ok {
		return provider, nil
	}
	provider := core.Provider{
		ID:        fmt.Sprintf("prov-%d", len(s.byKey)+1),
		Kind:      kind,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	s.byKey[key] = provider
	return provider, nil
}

func (s *memoryProviderStore) Get(_ context.Context, id string) (core.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, provider := range s.byKey {
		if provider.ID == id {
			return provider, nil
		}
	}
	return core.Provider{}, core.ErrProviderNotFound
}

type memoryBuildStore struct {
	mu   sync.Mutex
	byID map[string]core.Build
}

func (s *memoryBuildStore) GetByKey(_ context.Context, providerID, externalID string) (core.Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, build := range s.byID {
		if build.ProviderID == providerID && build.ExternalID == externalID {
			return build, nil
		}
	}
	return core.Build{}, core.ErrBuildNotFound
}

func (s *memoryBuildStore) Get(_ context.Context, id string) (core.Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	build, ok := s.byID[id]
	if !ok {
		return core.Build{}, core.ErrBuildNotFound
	}
	return build, nil
}

func (s *memoryBuildStore) Insert(_ context.Context, build core.Build) (core.Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.ProviderID == build.ProviderID && existing.ExternalID == build.ExternalID {
			return core.Build{}, core.NewConflictError("build already exists", nil)
		}
	}
	build.ID = fmt.Sprintf("build-%d", len(s.byID)+1)
	now := time.Now().UTC()
	build.CreatedAt = now
	build.UpdatedAt = now
	s.byID[build.ID] = build
	return build, nil
}

func (s *memoryBuildStore) Update(_ context.Context, build core.Build) (core.Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[build.ID]; !ok {
		return core.Build{}, core.ErrBuildNotFound
	}
	build.UpdatedAt = time.Now().UTC()
	s.byID[build.ID] = build
	return build, nil
}

func (s *memoryBuildStore) ListStartedWithin(_ context.Context, from, to time.Time) ([]core.Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Build{}
	for _, build := range s.byID {
		if build.StartedAt == nil {
			continue
		}
		if build.StartedAt.Before(from) || build.StartedAt.After(to) {
			continue
		}
		out = append(out, build)
	}
	return out, nil
}

func (s *memoryBuildStore) List(_ context.Context, limit, offset int) ([]core.Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Build, 0, len(s.byID))
	for _, build := range s.byID {
		out = append(out, build)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type memoryAlertLedger struct {
	mu      sync.Mutex
	records map[string]core.AlertRecord
}

func (s *memoryAlertLedger) Reserve(_ context.Context, buildID string, channel core.AlertChannel, message string) (core.AlertRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := buildID + "/" + string(channel)
	if record, ok := s.records[key]; ok {
		return record, false, nil
	}
	record := core.AlertRecord{
		ID:      fmt.Sprintf("alert-%d", len(s.records)+1),
		BuildID: buildID,
		Channel: channel,
		Status:  core.AlertStatusPending,
		Message: message,
	}
	s.records[key] = record
	return record, true, nil
}

func (s *memoryAlertLedger) RecordOutcome(_ context.Context, recordID string, success bool, sendErr string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, record := range s.records {
		if record.ID != recordID {
			continue
		}
		record.Success = success
		record.Error = sendErr
		record.SentAt = &sentAt
		if success {
			record.Status = core.AlertStatusSent
		} else {
			record.Status = core.AlertStatusFailed
		}
		s.records[key] = record
		return nil
	}
	return fmt.Errorf("alert record %q not found", recordID)
}

func (s *memoryAlertLedger) GetByBuild(_ context.Context, buildID string, channel core.AlertChannel) (core.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[buildID+"/"+string(channel)]
	if !ok {
		return core.AlertRecord{}, fmt.Errorf("alert record not found")
	}
	return record, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Send(_ context.Context, channel core.AlertChannel, message string, _ map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, string(channel)+": "+message)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
