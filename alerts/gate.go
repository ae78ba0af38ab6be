// Package alerts decides whether a failure notification goes out and
// records the attempt. The ledger's uniqueness constraint on
// (build_id, channel) makes the decision at-most-once across processes.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-buildhealth/core"
)

// Gate sends at most one failure alert per (build, channel). Losing the
// ledger reservation means another worker already owns the send; a send
// failure is recorded but never retried here.
type Gate struct {
	Ledger   core.AlertLedger
	Notifier core.Notifier
	Channels []core.AlertChannel
	Logger   core.Logger
	Now      func() time.Time
}

func NewGate(ledger core.AlertLedger, notifier core.Notifier, channels []core.AlertChannel) *Gate {
	if len(channels) == 0 {
		channels = []core.AlertChannel{core.AlertChannelEmail}
	}
	return &Gate{
		Ledger:   ledger,
		Notifier: notifier,
		Channels: channels,
		Logger:   glog.Nop(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Delivery reports the outcome for one channel.
type Delivery struct {
	Channel core.AlertChannel
	Sent    bool
	Deduped bool
	Record  core.AlertRecord
}

// NotifyFailure runs the at-most-once send for every configured channel.
// Per-channel failures are recorded and reported in the deliveries; the
// error return is reserved for ledger faults that prevent the decision.
func (g *Gate) NotifyFailure(ctx context.Context, build core.Build) ([]Delivery, error) {
	if g == nil || g.Ledger == nil || g.Notifier == nil {
		return nil, fmt.Errorf("alerts: gate requires a ledger and a notifier")
	}
	if strings.TrimSpace(build.ID) == "" {
		return nil, core.NewValidationError("build_id", "alert gate requires a persisted build")
	}

	message := FailureMessage(build)
	deliveries := make([]Delivery, 0, len(g.Channels))
	for _, channel := range g.Channels {
		delivery, err := g.notifyChannel(ctx, build, channel, message)
		if err != nil {
			return deliveries, err
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, nil
}

func (g *Gate) notifyChannel(ctx context.Context, build core.Build, channel core.AlertChannel, message string) (Delivery, error) {
	record, won, err := g.Ledger.Reserve(ctx, build.ID, channel, message)
	if err != nil {
		return Delivery{}, fmt.Errorf("alerts: reserve %s alert for build %s: %w", channel, build.ID, err)
	}
	if !won {
		g.logger().Debug("alert already reserved, skipping send",
			"build_id", build.ID,
			"channel", string(channel),
		)
		return Delivery{Channel: channel, Deduped: true, Record: record}, nil
	}

	sendErr := g.send(ctx, channel, message, build)
	sentAt := g.now()
	outcome := Delivery{Channel: channel, Record: record}
	if sendErr != nil {
		g.logger().Error("alert delivery failed",
			"build_id", build.ID,
			"channel", string(channel),
			"error", sendErr,
		)
		if recErr := g.Ledger.RecordOutcome(ctx, record.ID, false, sendErr.Error(), sentAt); recErr != nil {
			return outcome, fmt.Errorf("alerts: record failed delivery for build %s: %w", build.ID, recErr)
		}
		outcome.Record.Status = core.AlertStatusFailed
		outcome.Record.Error = sendErr.Error()
		return outcome, nil
	}

	if recErr := g.Ledger.RecordOutcome(ctx, record.ID, true, "", sentAt); recErr != nil {
		return outcome, fmt.Errorf("alerts: record delivery for build %s: %w", build.ID, recErr)
	}
	outcome.Sent = true
	outcome.Record.Status = core.AlertStatusSent
	outcome.Record.Success = true
	outcome.Record.SentAt = &sentAt
	return outcome, nil
}

// send isolates notifier panics: a panicking notifier counts as a
// failed delivery, not a crashed ingestion.
func (g *Gate) send(ctx context.Context, channel core.AlertChannel, message string, build core.Build) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = core.NewNotificationError(
				fmt.Sprintf("alerts: notifier panic on channel %s: %v", channel, recovered), nil)
		}
	}()
	return g.Notifier.Send(ctx, channel, message, map[string]any{
		"build_id":    build.ID,
		"external_id": build.ExternalID,
		"branch":      build.Branch,
		"url":         build.URL,
	})
}

// SendTest delivers a test message on every configured channel without a
// ledger reservation. Used by operators to verify channel wiring.
func (g *Gate) SendTest(ctx context.Context, message string) error {
	if g == nil || g.Notifier == nil {
		return fmt.Errorf("alerts: gate requires a notifier")
	}
	if strings.TrimSpace(message) == "" {
		message = "Build health test alert"
	}
	for _, channel := range g.Channels {
		if err := g.Notifier.Send(ctx, channel, message, map[string]any{"test": true}); err != nil {
			return core.NewNotificationError(
				fmt.Sprintf("alerts: test alert on channel %s failed", channel), err)
		}
	}
	return nil
}

// FailureMessage renders the human-readable alert body for a failed
// build.
func FailureMessage(build core.Build) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Build %s failed", build.ExternalID)
	if branch := strings.TrimSpace(build.Branch); branch != "" {
		fmt.Fprintf(&sb, " on %s", branch)
	}
	if sha := strings.TrimSpace(build.CommitSHA); sha != "" {
		short := sha
		if len(short) > 12 {
			short = short[:12]
		}
		fmt.Fprintf(&sb, " (%s)", short)
	}
	if url := strings.TrimSpace(build.URL); url != "" {
		fmt.Fprintf(&sb, ": %s", url)
	}
	return sb.String()
}

func (g *Gate) logger() core.Logger {
	if g != nil && g.Logger != nil {
		return g.Logger
	}
	return glog.Nop()
}

func (g *Gate) now() time.Time {
	if g != nil && g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}
