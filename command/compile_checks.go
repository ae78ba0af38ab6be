package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[IngestWebhookMessage] = (*IngestWebhookCommand)(nil)
	_ gocmd.Commander[RunPollCycleMessage]  = (*RunPollCycleCommand)(nil)
	_ gocmd.Commander[SendTestAlertMessage] = (*SendTestAlertCommand)(nil)
)
