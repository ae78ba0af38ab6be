package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	buildhealthcommand "github.com/goliatone/go-buildhealth/command"
	buildhealthquery "github.com/goliatone/go-buildhealth/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "buildhealth.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "buildhealth.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "buildhealth.command.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "buildhealth.command.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("buildhealth.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterIngestionHandlers(t *testing.T) {
	if _, err := RegisterIngestionHandlers(nil, IngestionHandlers{}); err == nil {
		t.Fatalf("expected missing registry to be rejected")
	}

	adapter := NewRegistryAdapter(command.NewRegistry())
	handlers := IngestionHandlers{
		SendTestAlert:     buildhealthcommand.NewSendTestAlertCommand(nil),
		GetMetricsSummary: buildhealthquery.NewGetMetricsSummaryQuery(nil),
	}

	subscriptions, err := RegisterIngestionHandlers(adapter, handlers)
	if err != nil {
		t.Fatalf("register ingestion handlers: %v", err)
	}
	defer func() {
		for _, sub := range subscriptions {
			sub.Unsubscribe()
		}
	}()
	if len(subscriptions) != 2 {
		t.Fatalf("expected one subscription per non-nil handler, got %d", len(subscriptions))
	}

	empty, err := RegisterIngestionHandlers(adapter, IngestionHandlers{})
	if err != nil {
		t.Fatalf("register empty handler set: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no subscriptions for an empty handler set, got %d", len(empty))
	}
}
