// Package poller drives periodic ingestion for configured sources. One
// cycle fans out across sources with bounded concurrency; the scheduler
// keeps cycles single-flight so a slow provider can never stack cycles.
package poller

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-buildhealth/core"
	"github.com/goliatone/go-buildhealth/ingest"
)

// Ingestor is the pipeline surface a poll cycle feeds payloads into.
type Ingestor interface {
	IngestBatch(ctx context.Context, kind core.ProviderKind, providerName string, payloads [][]byte) []ingest.BatchItem
}

// SourceResult reports what one source contributed to a cycle.
type SourceResult struct {
	Source   core.PollSource
	Fetched  int
	Ingested int
	Rejected int
	Err      error
}

// CycleReport aggregates one full poll cycle.
type CycleReport struct {
	Sources   []SourceResult
	StartedAt time.Time
	Duration  time.Duration
}

// Failed counts sources whose fetch ultimately failed.
func (r CycleReport) Failed() int {
	failed := 0
	for _, source := range r.Sources {
		if source.Err != nil {
			failed++
		}
	}
	return failed
}

type Poller struct {
	Clients  map[core.ProviderKind]core.ProviderClient
	Pipeline Ingestor
	Config   core.PollerConfig
	Logger   core.Logger

	sources []core.PollSource
}

// NewPoller validates and retains the enabled sources once. Sources that
// fail validation or name a kind without a client are excluded from
// every cycle and logged a single time here, not once per cycle.
func NewPoller(clients map[core.ProviderKind]core.ProviderClient, pipeline Ingestor, cfg core.PollerConfig, sources []core.PollSource, logger core.Logger) (*Poller, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("poller: an ingest pipeline is required")
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("poller: at least one provider client is required")
	}
	logger = glog.Ensure(logger)

	accepted := make([]core.PollSource, 0, len(sources))
	for _, source := range sources {
		if !source.Enabled {
			continue
		}
		if err := source.Validate(); err != nil {
			logger.Warn("poll source excluded by validation",
				"source", source.Label(),
				"error", err,
			)
			continue
		}
		if _, ok := clients[source.Kind]; !ok {
			logger.Warn("poll source excluded, no client for kind",
				"source", source.Label(),
				"kind", string(source.Kind),
			)
			continue
		}
		accepted = append(accepted, source)
	}

	return &Poller{
		Clients:  clients,
		Pipeline: pipeline,
		Config:   cfg,
		Logger:   logger,
		sources:  accepted,
	}, nil
}

// Sources returns the validated, enabled sources a cycle will poll.
func (p *Poller) Sources() []core.PollSource {
	out := make([]core.PollSource, len(p.sources))
	copy(out, p.sources)
	return out
}

// RunCycle polls every source with bounded fan-out. Source failures are
// isolated: a provider outage on one source never blocks or aborts the
// others, and the report carries the per-source errors.
func (p *Poller) RunCycle(ctx context.Context) (CycleReport, error) {
	if p == nil || p.Pipeline == nil {
		return CycleReport{}, fmt.Errorf("poller: poller is not initialized")
	}
	started := time.Now().UTC()
	report := CycleReport{
		Sources:   make([]SourceResult, len(p.sources)),
		StartedAt: started,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	limit := p.Config.MaxConcurrentSources
	if limit <= 0 {
		limit = 1
	}
	group.SetLimit(limit)

	for i, source := range p.sources {
		group.Go(func() error {
			report.Sources[i] = p.pollSource(groupCtx, source)
			// Always nil so one source cannot cancel groupCtx for the rest.
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return report, err
	}
	report.Duration = time.Since(started)

	p.logger().Info("poll cycle finished",
		"sources", len(report.Sources),
		"failed", report.Failed(),
		"duration", report.Duration.String(),
	)
	return report, ctx.Err()
}

func (p *Poller) pollSource(ctx context.Context, source core.PollSource) SourceResult {
	result := SourceResult{Source: source}

	payloads, err := p.fetchWithRetry(ctx, source)
	if err != nil {
		p.logger().Error("poll source failed",
			"source", source.Label(),
			"kind", string(source.Kind),
			"error", err,
		)
		result.Err = err
		return result
	}
	result.Fetched = len(payloads)

	items := p.Pipeline.IngestBatch(ctx, source.Kind, source.ProviderName, payloads)
	for _, item := range items {
		if item.Err != nil {
			result.Rejected++
			continue
		}
		result.Ingested++
	}
	return result
}

// fetchWithRetry runs the provider fetch under the per-attempt timeout,
// retrying transient failures with exponential backoff. Non-transient
// errors fail immediately.
func (p *Poller) fetchWithRetry(ctx context.Context, source core.PollSource) ([][]byte, error) {
	client := p.Clients[source.Kind]
	attempts := p.Config.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		payloads, err := p.fetchOnce(ctx, client, source)
		if err == nil {
			return payloads, nil
		}
		lastErr = err
		if !core.IsTransientError(err) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		backoff := backoffDelay(attempt)
		p.logger().Warn("transient fetch failure, backing off",
			"source", source.Label(),
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("poller: source %s exhausted %d attempts: %w", source.Label(), attempts, lastErr)
}

func (p *Poller) fetchOnce(ctx context.Context, client core.ProviderClient, source core.PollSource) ([][]byte, error) {
	timeout := p.Config.FetchTimeout()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	payloads, err := client.FetchRecentRuns(ctx, source)
	if err != nil {
		// A blown per-attempt deadline is a provider slowness signal,
		// retried like any other transient fault.
		if ctx.Err() == context.DeadlineExceeded {
			return nil, core.NewTransientProviderError(
				fmt.Sprintf("poller: fetch for %s exceeded %s", source.Label(), timeout), err)
		}
		return nil, err
	}
	return payloads, nil
}

func backoffDelay(attempt int) time.Duration {
	delay := time.Second << (attempt - 1)
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

func (p *Poller) logger() core.Logger {
	if p != nil && p.Logger != nil {
		return p.Logger
	}
	return glog.Nop()
}
