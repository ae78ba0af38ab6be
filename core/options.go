package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader wraps a literal config map, mostly for tests
// and embedded deployments.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults < loaded < runtime through a layered
// options stack before revalidating the result.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	poller := map[string]any{}
	if includeZero || cfg.Poller.IntervalSeconds != 0 {
		poller["interval_seconds"] = cfg.Poller.IntervalSeconds
	}
	if includeZero || cfg.Poller.JitterSeconds != 0 {
		poller["jitter_seconds"] = cfg.Poller.JitterSeconds
	}
	if includeZero || cfg.Poller.MaxConcurrentSources != 0 {
		poller["max_concurrent_sources"] = cfg.Poller.MaxConcurrentSources
	}
	if includeZero || cfg.Poller.FetchTimeoutSeconds != 0 {
		poller["fetch_timeout_seconds"] = cfg.Poller.FetchTimeoutSeconds
	}
	if includeZero || cfg.Poller.MaxAttempts != 0 {
		poller["max_attempts"] = cfg.Poller.MaxAttempts
	}
	if includeZero || cfg.Poller.ShutdownGraceSeconds != 0 {
		poller["shutdown_grace_seconds"] = cfg.Poller.ShutdownGraceSeconds
	}
	if len(poller) > 0 {
		layer["poller"] = poller
	}

	if includeZero || len(cfg.Sources) > 0 {
		sources := make([]map[string]any, 0, len(cfg.Sources))
		for _, source := range cfg.Sources {
			sources = append(sources, map[string]any{
				"kind":     source.Kind,
				"provider": source.Provider,
				"owner":    source.Owner,
				"repo":     source.Repo,
				"job":      source.Job,
				"branch":   source.Branch,
				"enabled":  source.Enabled,
			})
		}
		layer["sources"] = sources
	}

	if includeZero || len(cfg.Alerts.Channels) > 0 {
		layer["alerts"] = map[string]any{
			"channels": append([]string(nil), cfg.Alerts.Channels...),
		}
	}
	if includeZero || strings.TrimSpace(cfg.Webhook.Secret) != "" {
		layer["webhook"] = map[string]any{
			"secret": cfg.Webhook.Secret,
		}
	}
	return layer
}
