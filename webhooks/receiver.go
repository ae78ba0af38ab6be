package webhooks

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-buildhealth/core"
	"github.com/goliatone/go-buildhealth/ingest"
)

// Ingestor is the single-payload surface of the ingest pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, kind core.ProviderKind, providerName string, payload []byte) (ingest.Result, error)
}

// Route binds one provider kind to its verifier and default source
// name.
type Route struct {
	Kind         core.ProviderKind
	ProviderName string
	Verifier     Verifier
}

// Receiver authenticates deliveries and feeds them to the pipeline.
// One receiver serves every registered route; unrouted kinds are
// rejected before any payload parsing.
type Receiver struct {
	Pipeline Ingestor
	Logger   core.Logger

	routes map[core.ProviderKind]Route
}

func NewReceiver(pipeline Ingestor, routes ...Route) (*Receiver, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("webhooks: receiver requires an ingest pipeline")
	}
	byKind := make(map[core.ProviderKind]Route, len(routes))
	for _, route := range routes {
		if err := route.Kind.Validate(); err != nil {
			return nil, err
		}
		if route.Verifier == nil {
			return nil, core.NewConfigurationError(
				fmt.Sprintf("webhooks: route for %s has no verifier", route.Kind), nil)
		}
		if _, exists := byKind[route.Kind]; exists {
			return nil, core.NewConfigurationError(
				fmt.Sprintf("webhooks: duplicate route for %s", route.Kind), nil)
		}
		byKind[route.Kind] = route
	}
	return &Receiver{
		Pipeline: pipeline,
		Logger:   glog.Nop(),
		routes:   byKind,
	}, nil
}

// Receive verifies and ingests one delivery. Verification failures and
// malformed payloads come back as validation errors the transport maps
// to 4xx; reconciliation faults stay 5xx material.
func (r *Receiver) Receive(ctx context.Context, kind core.ProviderKind, req InboundRequest) (ingest.Result, error) {
	if r == nil || r.Pipeline == nil {
		return ingest.Result{}, fmt.Errorf("webhooks: receiver is not initialized")
	}
	route, ok := r.routes[kind]
	if !ok {
		return ingest.Result{}, core.NewValidationError("provider_kind",
			fmt.Sprintf("webhooks: no route registered for %q", kind))
	}
	if err := route.Verifier.Verify(ctx, req); err != nil {
		r.logger().Warn("webhook delivery rejected",
			"kind", string(kind),
			"error", err,
		)
		return ingest.Result{}, err
	}
	if len(req.Body) == 0 {
		return ingest.Result{}, core.NewValidationError("body", "webhooks: delivery body is empty")
	}

	providerName := strings.TrimSpace(route.ProviderName)
	if providerName == "" {
		providerName = string(kind)
	}
	result, err := r.Pipeline.Ingest(ctx, kind, providerName, req.Body)
	if err != nil {
		return ingest.Result{}, err
	}
	r.logger().Info("webhook delivery ingested",
		"kind", string(kind),
		"build_id", result.Build.ID,
		"created", result.Outcome.Created,
		"transitioned", result.Outcome.Transitioned,
	)
	return result, nil
}

func (r *Receiver) logger() core.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return glog.Nop()
}
