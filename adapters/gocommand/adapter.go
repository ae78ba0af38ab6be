// Package gocommand wires the command and query handlers into the
// go-command registry and dispatcher, including the go-job queue
// resolver used for deferred ingestion.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	buildhealthcommand "github.com/goliatone/go-buildhealth/command"
	buildhealthquery "github.com/goliatone/go-buildhealth/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// IngestionHandlers is the full dispatchable surface of the build health
// core. Nil entries are skipped so partial deployments register only
// what they composed.
type IngestionHandlers struct {
	IngestWebhook *buildhealthcommand.IngestWebhookCommand
	RunPollCycle  *buildhealthcommand.RunPollCycleCommand
	SendTestAlert *buildhealthcommand.SendTestAlertCommand

	GetMetricsSummary *buildhealthquery.GetMetricsSummaryQuery
	GetBuild          *buildhealthquery.GetBuildQuery
	ListBuilds        *buildhealthquery.ListBuildsQuery
}

// RegisterIngestionHandlers registers and subscribes every non-nil
// handler. On the first failure it unsubscribes what it already wired
// and returns the error.
func RegisterIngestionHandlers(
	adapter *RegistryAdapter,
	handlers IngestionHandlers,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}

	var subscriptions []commanddispatcher.Subscription
	keep := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			for _, existing := range subscriptions {
				existing.Unsubscribe()
			}
			return err
		}
		subscriptions = append(subscriptions, sub)
		return nil
	}

	if handlers.IngestWebhook != nil {
		if err := keep(RegisterAndSubscribe(adapter, handlers.IngestWebhook, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.RunPollCycle != nil {
		if err := keep(RegisterAndSubscribe(adapter, handlers.RunPollCycle, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.SendTestAlert != nil {
		if err := keep(RegisterAndSubscribe(adapter, handlers.SendTestAlert, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.GetMetricsSummary != nil {
		if err := keep(RegisterAndSubscribeQuery(adapter, handlers.GetMetricsSummary, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.GetBuild != nil {
		if err := keep(RegisterAndSubscribeQuery(adapter, handlers.GetBuild, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.ListBuilds != nil {
		if err := keep(RegisterAndSubscribeQuery(adapter, handlers.ListBuilds, runnerOpts...)); err != nil {
			return nil, err
		}
	}
	return subscriptions, nil
}
