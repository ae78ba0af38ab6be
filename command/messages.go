// Package command exposes the mutating operations as dispatchable
// messages. Each message validates itself before its handler touches a
// service dependency.
package command

import (
	"strings"

	"github.com/goliatone/go-buildhealth/core"
)

const (
	TypeIngestWebhook = "buildhealth.command.webhook.ingest"
	TypeRunPollCycle  = "buildhealth.command.poll.run"
	TypeSendTestAlert = "buildhealth.command.alert.send_test"
)

type IngestWebhookMessage struct {
	Kind    core.ProviderKind
	Headers map[string]string
	Body    []byte
}

func (IngestWebhookMessage) Type() string { return TypeIngestWebhook }

func (m IngestWebhookMessage) Validate() error {
	if err := m.Kind.Validate(); err != nil {
		return commandValidationError("provider_kind", err.Error())
	}
	if len(m.Body) == 0 {
		return commandValidationError("body", "delivery body is required")
	}
	return nil
}

type RunPollCycleMessage struct{}

func (RunPollCycleMessage) Type() string { return TypeRunPollCycle }

func (RunPollCycleMessage) Validate() error { return nil }

type SendTestAlertMessage struct {
	Message string
}

func (SendTestAlertMessage) Type() string { return TypeSendTestAlert }

func (m SendTestAlertMessage) Validate() error {
	if len(strings.TrimSpace(m.Message)) > 1024 {
		return commandValidationError("message", "test alert message is too long")
	}
	return nil
}
