package buildhealth_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	buildhealth "github.com/goliatone/go-buildhealth"
	buildhealthcommand "github.com/goliatone/go-buildhealth/command"
	"github.com/goliatone/go-buildhealth/core"
	buildhealthquery "github.com/goliatone/go-buildhealth/query"
)

type compositionPersistenceConfig struct {
	server string
}

func (c compositionPersistenceConfig) GetDebug() bool                { return false }
func (c compositionPersistenceConfig) GetDriver() string             { return "sqlite3" }
func (c compositionPersistenceConfig) GetServer() string             { return c.server }
func (c compositionPersistenceConfig) GetPingTimeout() time.Duration { return time.Second }
func (c compositionPersistenceConfig) GetOtelIdentifier() string     { return "buildhealth-tests" }

func newCompositionClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:buildhealth-composition-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client, err := persistence.New(compositionPersistenceConfig{server: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	return client, func() { _ = client.Close() }
}

type scriptedPollClient struct {
	payloads [][]byte
	calls    int
}

func (c *scriptedPollClient) FetchRecentRuns(context.Context, core.PollSource) ([][]byte, error) {
	c.calls++
	return c.payloads, nil
}

func TestSetupComposesEndToEndOverSQLite(t *testing.T) {
	client, cleanup := newCompositionClient(t)
	defer cleanup()

	ctx := context.Background()
	notifier := &recordingNotifier{}
	pollClient := &scriptedPollClient{
		payloads: [][]byte{
			[]byte(`{"id":77,"status":"completed","conclusion":"success",` +
				`"head_branch":"main","run_started_at":"2024-01-10T09:00:00Z","updated_at":"2024-01-10T09:04:00Z"}`),
		},
	}

	svc, err := buildhealth.Setup(ctx, buildhealth.Config{
		Webhook: core.WebhookConfig{Secret: webhookSecret},
		Sources: []core.SourceConfig{{
			Kind:     string(core.ProviderKindGitHubActions),
			Provider: "github-main",
			Owner:    "acme",
			Repo:     "platform",
			Enabled:  true,
		}},
	},
		buildhealth.WithPersistenceClient(client),
		buildhealth.WithMigrationDialect("sqlite"),
		buildhealth.WithNotifier(notifier),
		buildhealth.WithProviderClients(map[core.ProviderKind]core.ProviderClient{
			core.ProviderKindGitHubActions: pollClient,
		}),
	)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	facade, err := buildhealth.NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	// Webhook path: a failing run lands in sqlite and fires one alert.
	payload := []byte(`{"workflow_run":{"id":42,"status":"completed","conclusion":"failure",` +
		`"head_branch":"main","head_sha":"abcdef1234567890","html_url":"https://ci.example/run/42",` +
		`"run_started_at":"2024-01-10T10:00:00Z","updated_at":"2024-01-10T10:05:00Z"}}`)
	result, err := svc.Receiver().Receive(ctx, core.ProviderKindGitHubActions, signedRequest(payload))
	if err != nil {
		t.Fatalf("receive webhook: %v", err)
	}
	if !result.Outcome.Created || !result.Alerted {
		t.Fatalf("expected created and alerted failure, got %+v", result)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one alert, got %d", notifier.count())
	}

	replay, err := svc.Receiver().Receive(ctx, core.ProviderKindGitHubActions, signedRequest(payload))
	if err != nil {
		t.Fatalf("replay webhook: %v", err)
	}
	if replay.Alerted || notifier.count() != 1 {
		t.Fatalf("expected at-most-once alert across replays")
	}

	// Poll path: the cycle command fetches the scripted run and persists
	// it alongside the webhook build.
	if err := facade.Commands().RunPollCycle.Execute(ctx, buildhealthcommand.RunPollCycleMessage{}); err != nil {
		t.Fatalf("run poll cycle: %v", err)
	}
	if pollClient.calls != 1 {
		t.Fatalf("expected one poll fetch, got %d", pollClient.calls)
	}

	builds, err := facade.Queries().ListBuilds.Query(ctx, buildhealthquery.ListBuildsMessage{Limit: 10})
	if err != nil {
		t.Fatalf("list builds: %v", err)
	}
	if len(builds) != 2 {
		t.Fatalf("expected webhook and poll builds persisted, got %d", len(builds))
	}

	var polledProviderID string
	for _, build := range builds {
		if build.ExternalID == "77" {
			polledProviderID = build.ProviderID
		}
	}
	polled, err := facade.Queries().GetBuild.Query(ctx, buildhealthquery.GetBuildMessage{
		ProviderID: polledProviderID,
		ExternalID: "77",
	})
	if err != nil {
		t.Fatalf("get polled build: %v", err)
	}
	if polled.Status != core.BuildStatusSuccess {
		t.Fatalf("expected polled run to be successful, got %s", polled.Status)
	}

	svc.Metrics().Now = func() time.Time {
		return time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	}
	summary, err := facade.Queries().GetMetricsSummary.Query(ctx, buildhealthquery.GetMetricsSummaryMessage{WindowDays: 7})
	if err != nil {
		t.Fatalf("metrics summary: %v", err)
	}
	if summary.TotalBuilds != 2 || summary.CompletedBuilds != 2 {
		t.Fatalf("expected both builds in window, got %+v", summary)
	}
	if summary.SuccessRate != 0.5 || summary.FailureRate != 0.5 {
		t.Fatalf("expected even split, got %+v", summary)
	}
}
