// Package ingest wires the normalize, reconcile, and alert stages into
// the single entry point every payload source (webhook, poller, queue
// worker) funnels through.
package ingest

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-buildhealth/alerts"
	"github.com/goliatone/go-buildhealth/core"
	"github.com/goliatone/go-buildhealth/reconcile"
)

// NormalizerResolver is the lookup surface of the provider registry.
type NormalizerResolver interface {
	Resolve(kind core.ProviderKind) (core.Normalizer, error)
}

// Reconciling is the reconciler surface the pipeline drives.
type Reconciling interface {
	Reconcile(ctx context.Context, event core.BuildEvent) (core.Build, reconcile.Outcome, error)
}

// FailureNotifier is the alert-gate surface the pipeline drives.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, build core.Build) ([]alerts.Delivery, error)
}

// Result summarizes one ingested payload.
type Result struct {
	Build   core.Build
	Outcome reconcile.Outcome
	Alerted bool
}

type Pipeline struct {
	Registry   NormalizerResolver
	Reconciler Reconciling
	AlertGate  FailureNotifier
	Logger     core.Logger
}

func NewPipeline(registry NormalizerResolver, reconciler Reconciling, gate FailureNotifier) *Pipeline {
	return &Pipeline{
		Registry:   registry,
		Reconciler: reconciler,
		AlertGate:  gate,
		Logger:     glog.Nop(),
	}
}

// Ingest processes one raw payload end to end. Alert delivery failures
// are logged and absorbed; the build state is already committed by the
// time the gate runs, and the ledger records what happened.
func (p *Pipeline) Ingest(ctx context.Context, kind core.ProviderKind, providerName string, payload []byte) (Result, error) {
	if p == nil || p.Registry == nil || p.Reconciler == nil {
		return Result{}, fmt.Errorf("ingest: pipeline requires a registry and a reconciler")
	}

	normalizer, err := p.Registry.Resolve(kind)
	if err != nil {
		return Result{}, err
	}
	event, err := normalizer.Normalize(payload, providerName)
	if err != nil {
		return Result{}, err
	}

	build, outcome, err := p.Reconciler.Reconcile(ctx, event)
	if err != nil {
		return Result{}, err
	}
	result := Result{Build: build, Outcome: outcome}

	if outcome.Transitioned && p.AlertGate != nil {
		deliveries, alertErr := p.AlertGate.NotifyFailure(ctx, build)
		if alertErr != nil {
			p.logger().Error("failure alert pass errored",
				"build_id", build.ID,
				"error", alertErr,
			)
		}
		for _, delivery := range deliveries {
			if delivery.Sent {
				result.Alerted = true
			}
		}
	}
	return result, nil
}

// BatchItem is the per-payload outcome of IngestBatch.
type BatchItem struct {
	Index  int
	Result Result
	Err    error
}

// IngestBatch processes payloads independently: one malformed payload
// never blocks its siblings. Items come back in input order.
func (p *Pipeline) IngestBatch(ctx context.Context, kind core.ProviderKind, providerName string, payloads [][]byte) []BatchItem {
	items := make([]BatchItem, 0, len(payloads))
	for i, payload := range payloads {
		result, err := p.Ingest(ctx, kind, providerName, payload)
		if err != nil {
			p.logger().Warn("payload rejected during batch ingest",
				"provider", providerName,
				"index", i,
				"error", err,
			)
		}
		items = append(items, BatchItem{Index: i, Result: result, Err: err})
	}
	return items
}

func (p *Pipeline) logger() core.Logger {
	if p != nil && p.Logger != nil {
		return p.Logger
	}
	return glog.Nop()
}
