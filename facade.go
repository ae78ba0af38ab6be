package buildhealth

import (
	"fmt"

	buildhealthcommand "github.com/goliatone/go-buildhealth/command"
	buildhealthquery "github.com/goliatone/go-buildhealth/query"
)

// Commands bundles the dispatchable mutating handlers built over one
// service instance.
type Commands struct {
	IngestWebhook *buildhealthcommand.IngestWebhookCommand
	RunPollCycle  *buildhealthcommand.RunPollCycleCommand
	SendTestAlert *buildhealthcommand.SendTestAlertCommand
}

type Queries struct {
	GetMetricsSummary *buildhealthquery.GetMetricsSummaryQuery
	GetBuild          *buildhealthquery.GetBuildQuery
	ListBuilds        *buildhealthquery.ListBuildsQuery
}

// Facade exposes the command and query handlers for registration with a
// dispatcher. Handlers whose dependency is absent (no webhook routes, no
// poll clients, no notifier) still construct; they surface the missing
// dependency as an internal error when executed.
type Facade struct {
	service  *Service
	commands Commands
	queries  Queries
}

func NewFacade(service *Service) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("buildhealth: service is required")
	}

	var receiver buildhealthcommand.WebhookReceiver
	if r := service.Receiver(); r != nil {
		receiver = r
	}
	var runner buildhealthcommand.PollRunner
	if s := service.Scheduler(); s != nil {
		runner = s
	}
	var sender buildhealthcommand.TestAlertSender
	if g := service.AlertGate(); g != nil {
		sender = g
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		IngestWebhook: buildhealthcommand.NewIngestWebhookCommand(receiver),
		RunPollCycle:  buildhealthcommand.NewRunPollCycleCommand(runner),
		SendTestAlert: buildhealthcommand.NewSendTestAlertCommand(sender),
	}

	facade.queries = Queries{
		GetMetricsSummary: buildhealthquery.NewGetMetricsSummaryQuery(service.Metrics()),
		GetBuild:          buildhealthquery.NewGetBuildQuery(service.BuildStore()),
		ListBuilds:        buildhealthquery.NewListBuildsQuery(service.BuildStore()),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() *Service {
	if f == nil {
		return nil
	}
	return f.service
}
