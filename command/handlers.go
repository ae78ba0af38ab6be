package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-buildhealth/core"
	"github.com/goliatone/go-buildhealth/ingest"
	"github.com/goliatone/go-buildhealth/poller"
	"github.com/goliatone/go-buildhealth/webhooks"
)

// WebhookReceiver is the verified-ingestion surface of the webhook
// receiver.
type WebhookReceiver interface {
	Receive(ctx context.Context, kind core.ProviderKind, req webhooks.InboundRequest) (ingest.Result, error)
}

// PollRunner fires one poll cycle; satisfied by *poller.Scheduler.
type PollRunner interface {
	RunOnce(ctx context.Context) (poller.CycleReport, error)
}

// TestAlertSender delivers an unledgered test alert.
type TestAlertSender interface {
	SendTest(ctx context.Context, message string) error
}

type IngestWebhookCommand struct {
	receiver WebhookReceiver
}

func NewIngestWebhookCommand(receiver WebhookReceiver) *IngestWebhookCommand {
	return &IngestWebhookCommand{receiver: receiver}
}

func (c *IngestWebhookCommand) Execute(ctx context.Context, msg IngestWebhookMessage) error {
	if c == nil || c.receiver == nil {
		return commandDependencyError("command: webhook receiver is required")
	}
	out, err := c.receiver.Receive(ctx, msg.Kind, webhooks.InboundRequest{
		Headers: msg.Headers,
		Body:    msg.Body,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RunPollCycleCommand struct {
	runner PollRunner
}

func NewRunPollCycleCommand(runner PollRunner) *RunPollCycleCommand {
	return &RunPollCycleCommand{runner: runner}
}

func (c *RunPollCycleCommand) Execute(ctx context.Context, _ RunPollCycleMessage) error {
	if c == nil || c.runner == nil {
		return commandDependencyError("command: poll runner is required")
	}
	out, err := c.runner.RunOnce(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SendTestAlertCommand struct {
	sender TestAlertSender
}

func NewSendTestAlertCommand(sender TestAlertSender) *SendTestAlertCommand {
	return &SendTestAlertCommand{sender: sender}
}

func (c *SendTestAlertCommand) Execute(ctx context.Context, msg SendTestAlertMessage) error {
	if c == nil || c.sender == nil {
		return commandDependencyError("command: alert sender is required")
	}
	return c.sender.SendTest(ctx, msg.Message)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
