package core

import (
	"fmt"
	"strings"
	"time"
)

type PollerConfig struct {
	IntervalSeconds      int `koanf:"interval_seconds" mapstructure:"interval_seconds"`
	JitterSeconds        int `koanf:"jitter_seconds" mapstructure:"jitter_seconds"`
	MaxConcurrentSources int `koanf:"max_concurrent_sources" mapstructure:"max_concurrent_sources"`
	FetchTimeoutSeconds  int `koanf:"fetch_timeout_seconds" mapstructure:"fetch_timeout_seconds"`
	MaxAttempts          int `koanf:"max_attempts" mapstructure:"max_attempts"`
	ShutdownGraceSeconds int `koanf:"shutdown_grace_seconds" mapstructure:"shutdown_grace_seconds"`
}

func (c PollerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c PollerConfig) Jitter() time.Duration {
	return time.Duration(c.JitterSeconds) * time.Second
}

func (c PollerConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func (c PollerConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

type SourceConfig struct {
	Kind     string `koanf:"kind" mapstructure:"kind"`
	Provider string `koanf:"provider" mapstructure:"provider"`
	Owner    string `koanf:"owner" mapstructure:"owner"`
	Repo     string `koanf:"repo" mapstructure:"repo"`
	Job      string `koanf:"job" mapstructure:"job"`
	Branch   string `koanf:"branch" mapstructure:"branch"`
	Enabled  bool   `koanf:"enabled" mapstructure:"enabled"`
}

func (c SourceConfig) ToPollSource() PollSource {
	return PollSource{
		Kind:         ProviderKind(strings.TrimSpace(strings.ToLower(c.Kind))),
		ProviderName: strings.TrimSpace(c.Provider),
		Owner:        strings.TrimSpace(c.Owner),
		Repo:         strings.TrimSpace(c.Repo),
		Job:          strings.TrimSpace(c.Job),
		Branch:       strings.TrimSpace(c.Branch),
		Enabled:      c.Enabled,
	}
}

type AlertsConfig struct {
	Channels []string `koanf:"channels" mapstructure:"channels"`
}

type WebhookConfig struct {
	Secret string `koanf:"secret" mapstructure:"secret"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Poller      PollerConfig   `koanf:"poller" mapstructure:"poller"`
	Sources     []SourceConfig `koanf:"sources" mapstructure:"sources"`
	Alerts      AlertsConfig   `koanf:"alerts" mapstructure:"alerts"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "buildhealth",
		Poller: PollerConfig{
			IntervalSeconds:      60,
			JitterSeconds:        10,
			MaxConcurrentSources: 10,
			FetchTimeoutSeconds:  30,
			MaxAttempts:          3,
			ShutdownGraceSeconds: 15,
		},
		Alerts: AlertsConfig{
			Channels: []string{string(AlertChannelEmail)},
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Poller.IntervalSeconds <= 0 {
		return fmt.Errorf("core: poller.interval_seconds must be positive")
	}
	if c.Poller.JitterSeconds < 0 {
		return fmt.Errorf("core: poller.jitter_seconds must not be negative")
	}
	if c.Poller.JitterSeconds >= c.Poller.IntervalSeconds {
		return fmt.Errorf("core: poller.jitter_seconds must be smaller than the interval")
	}
	if c.Poller.MaxConcurrentSources <= 0 {
		return fmt.Errorf("core: poller.max_concurrent_sources must be positive")
	}
	if c.Poller.MaxAttempts <= 0 {
		return fmt.Errorf("core: poller.max_attempts must be positive")
	}
	for i, source := range c.Sources {
		if !source.Enabled {
			continue
		}
		if err := source.ToPollSource().Validate(); err != nil {
			return fmt.Errorf("core: sources[%d]: %w", i, err)
		}
	}
	return nil
}
