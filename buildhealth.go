// Package buildhealth composes the CI build health ingestion core:
// webhook and poller payloads are normalized per provider, reconciled
// into canonical build records, rolled up into window metrics, and
// failure transitions fire at-most-once alerts.
package buildhealth

import (
	"context"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-buildhealth/alerts"
	"github.com/goliatone/go-buildhealth/core"
	"github.com/goliatone/go-buildhealth/ingest"
	"github.com/goliatone/go-buildhealth/metrics"
	"github.com/goliatone/go-buildhealth/migrations"
	"github.com/goliatone/go-buildhealth/poller"
	"github.com/goliatone/go-buildhealth/providers"
	"github.com/goliatone/go-buildhealth/reconcile"
	sqlstore "github.com/goliatone/go-buildhealth/store/sql"
	"github.com/goliatone/go-buildhealth/webhooks"
)

type Config = core.Config

type PollerConfig = core.PollerConfig

type SourceConfig = core.SourceConfig

type Build = core.Build
type BuildEvent = core.BuildEvent
type BuildStatus = core.BuildStatus
type ProviderKind = core.ProviderKind
type Provider = core.Provider
type PollSource = core.PollSource
type AlertChannel = core.AlertChannel
type AlertRecord = core.AlertRecord
type MetricsSummary = core.MetricsSummary

type Logger = core.Logger

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Service is the assembled runtime: shared stores, the normalizer
// registry, and the ingestion surfaces built on top of them.
type Service struct {
	cfg     core.Config
	logger  core.Logger
	factory *sqlstore.RepositoryFactory

	providerStore core.ProviderStore
	buildStore    core.BuildStore
	alertLedger   core.AlertLedger
	notifier      core.Notifier

	registry   *providers.Registry
	reconciler *reconcile.Reconciler
	gate       *alerts.Gate
	aggregator *metrics.Aggregator
	pipeline   *ingest.Pipeline
	receiver   *webhooks.Receiver
	poller     *poller.Poller
	scheduler  *poller.Scheduler
}

type Option func(*serviceOptions)

type serviceOptions struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	configProvider core.ConfigProvider
	resolver       core.OptionsResolver

	persistenceClient *persistence.Client
	factory           *sqlstore.RepositoryFactory
	providerStore     core.ProviderStore
	buildStore        core.BuildStore
	alertLedger       core.AlertLedger

	notifier         core.Notifier
	registry         *providers.Registry
	clients          map[core.ProviderKind]core.ProviderClient
	routes           []webhooks.Route
	migrationDialect string
	providerCache    repositorycache.CacheService
}

func WithLogger(logger core.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *serviceOptions) { o.loggerProvider = provider }
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(o *serviceOptions) { o.configProvider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(o *serviceOptions) { o.resolver = resolver }
}

func WithPersistenceClient(client *persistence.Client) Option {
	return func(o *serviceOptions) { o.persistenceClient = client }
}

func WithRepositoryFactory(factory *sqlstore.RepositoryFactory) Option {
	return func(o *serviceOptions) { o.factory = factory }
}

func WithProviderStore(store core.ProviderStore) Option {
	return func(o *serviceOptions) { o.providerStore = store }
}

func WithBuildStore(store core.BuildStore) Option {
	return func(o *serviceOptions) { o.buildStore = store }
}

func WithAlertLedger(ledger core.AlertLedger) Option {
	return func(o *serviceOptions) { o.alertLedger = ledger }
}

func WithNotifier(notifier core.Notifier) Option {
	return func(o *serviceOptions) { o.notifier = notifier }
}

func WithNormalizerRegistry(registry *providers.Registry) Option {
	return func(o *serviceOptions) { o.registry = registry }
}

func WithProviderClients(clients map[core.ProviderKind]core.ProviderClient) Option {
	return func(o *serviceOptions) { o.clients = clients }
}

func WithWebhookRoutes(routes ...webhooks.Route) Option {
	return func(o *serviceOptions) { o.routes = append(o.routes, routes...) }
}

// WithMigrationDialect selects the embedded DDL flavor Setup applies;
// defaults to postgres.
func WithMigrationDialect(dialect string) Option {
	return func(o *serviceOptions) { o.migrationDialect = dialect }
}

// WithProviderCache fronts provider reads with a cache. Provider rows
// are immutable once created, so every consumer (reconciler, metrics
// breakdown) shares the same cached view.
func WithProviderCache(cacheService repositorycache.CacheService) Option {
	return func(o *serviceOptions) { o.providerCache = cacheService }
}

// NewService wires the ingestion core from the resolved configuration.
// Stores come from an injected repository factory, a persistence client,
// or direct store overrides; at minimum the provider and build stores
// must resolve. The alert gate is built only when both a notifier and an
// alert ledger are available.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	options := serviceOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	_, logger := glog.Resolve("buildhealth", options.loggerProvider, options.logger)

	resolved, err := resolveConfig(cfg, options)
	if err != nil {
		return nil, err
	}

	svc := &Service{cfg: resolved, logger: logger}
	if err := svc.wireStores(options); err != nil {
		return nil, err
	}

	if options.providerCache != nil {
		cached, err := sqlstore.NewCachedProviderStore(svc.providerStore, options.providerCache)
		if err != nil {
			return nil, err
		}
		svc.providerStore = cached
	}

	svc.registry = options.registry
	if svc.registry == nil {
		svc.registry = providers.NewDefaultRegistry()
	}

	svc.reconciler = reconcile.NewReconciler(svc.providerStore, svc.buildStore)
	svc.reconciler.Logger = logger

	if options.notifier != nil && svc.alertLedger != nil {
		svc.notifier = options.notifier
		svc.gate = alerts.NewGate(svc.alertLedger, options.notifier, alertChannels(resolved.Alerts.Channels))
		svc.gate.Logger = logger
	}

	if svc.gate != nil {
		svc.pipeline = ingest.NewPipeline(svc.registry, svc.reconciler, svc.gate)
	} else {
		svc.pipeline = ingest.NewPipeline(svc.registry, svc.reconciler, nil)
	}
	svc.pipeline.Logger = logger

	svc.aggregator = metrics.NewAggregator(svc.buildStore, svc.providerStore)

	routes := options.routes
	if len(routes) == 0 && strings.TrimSpace(resolved.Webhook.Secret) != "" {
		routes = []webhooks.Route{
			GitHubWebhookRoute(resolved.Webhook.Secret),
			JenkinsWebhookRoute(resolved.Webhook.Secret),
		}
	}
	if len(routes) > 0 {
		receiver, err := webhooks.NewReceiver(svc.pipeline, routes...)
		if err != nil {
			return nil, err
		}
		receiver.Logger = logger
		svc.receiver = receiver
	}

	if len(options.clients) > 0 {
		sources := make([]core.PollSource, 0, len(resolved.Sources))
		for _, source := range resolved.Sources {
			sources = append(sources, source.ToPollSource())
		}
		p, err := poller.NewPoller(options.clients, svc.pipeline, resolved.Poller, sources, logger)
		if err != nil {
			return nil, err
		}
		svc.poller = p
		svc.scheduler = poller.NewScheduler(p, resolved.Poller, logger)
	}

	return svc, nil
}

// Setup builds the service and, when a persistence client is supplied,
// registers the embedded schema migrations and applies them first.
func Setup(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	options := serviceOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	if options.persistenceClient != nil {
		if err := RegisterCoreMigrations(ctx, options.persistenceClient, options.migrationDialect); err != nil {
			return nil, err
		}
		if err := options.persistenceClient.Migrate(ctx); err != nil {
			return nil, core.NewConfigurationError("buildhealth: schema migration failed", err)
		}
	}
	return NewService(cfg, opts...)
}

// RegisterCoreMigrations points the persistence client at the embedded
// DDL for the given dialect ("postgres" or "sqlite").
func RegisterCoreMigrations(ctx context.Context, client *persistence.Client, dialect string) error {
	if _, err := migrations.RegisterWithClient(ctx, client, GetCoreMigrationsFS(), dialect); err != nil {
		return core.NewConfigurationError("buildhealth: register schema migrations", err)
	}
	return nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.cfg
}

func (s *Service) Logger() core.Logger {
	if s == nil {
		return glog.Nop()
	}
	return glog.Ensure(s.logger)
}

func (s *Service) Registry() *providers.Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Pipeline() *ingest.Pipeline {
	if s == nil {
		return nil
	}
	return s.pipeline
}

func (s *Service) Receiver() *webhooks.Receiver {
	if s == nil {
		return nil
	}
	return s.receiver
}

func (s *Service) Reconciler() *reconcile.Reconciler {
	if s == nil {
		return nil
	}
	return s.reconciler
}

func (s *Service) AlertGate() *alerts.Gate {
	if s == nil {
		return nil
	}
	return s.gate
}

func (s *Service) Metrics() *metrics.Aggregator {
	if s == nil {
		return nil
	}
	return s.aggregator
}

func (s *Service) Poller() *poller.Poller {
	if s == nil {
		return nil
	}
	return s.poller
}

func (s *Service) Scheduler() *poller.Scheduler {
	if s == nil {
		return nil
	}
	return s.scheduler
}

func (s *Service) BuildStore() core.BuildStore {
	if s == nil {
		return nil
	}
	return s.buildStore
}

func (s *Service) ProviderStore() core.ProviderStore {
	if s == nil {
		return nil
	}
	return s.providerStore
}

func (s *Service) AlertLedger() core.AlertLedger {
	if s == nil {
		return nil
	}
	return s.alertLedger
}

func (s *Service) RepositoryFactory() *sqlstore.RepositoryFactory {
	if s == nil {
		return nil
	}
	return s.factory
}

func (s *Service) wireStores(options serviceOptions) error {
	factory := options.factory
	if factory == nil && options.persistenceClient != nil {
		built, err := sqlstore.NewRepositoryFactoryFromPersistence(options.persistenceClient)
		if err != nil {
			return err
		}
		factory = built
	}
	s.factory = factory

	s.providerStore = options.providerStore
	s.buildStore = options.buildStore
	s.alertLedger = options.alertLedger
	if factory != nil {
		if s.providerStore == nil {
			s.providerStore = factory.ProviderStore()
		}
		if s.buildStore == nil {
			s.buildStore = factory.BuildStore()
		}
		if s.alertLedger == nil {
			s.alertLedger = factory.AlertStore()
		}
	}
	if s.providerStore == nil || s.buildStore == nil {
		return core.NewConfigurationError(
			"buildhealth: provider and build stores are required; supply a repository factory, a persistence client, or store overrides", nil)
	}
	return nil
}

func resolveConfig(runtime Config, options serviceOptions) (Config, error) {
	loaded := Config{}
	if options.configProvider != nil {
		cfg, err := options.configProvider.Load(context.Background(), core.DefaultConfig())
		if err != nil {
			return Config{}, err
		}
		loaded = cfg
	}
	resolver := options.resolver
	if resolver == nil {
		resolver = core.GoOptionsResolver{}
	}
	return resolver.Resolve(core.DefaultConfig(), loaded, runtime)
}

func alertChannels(names []string) []core.AlertChannel {
	channels := make([]core.AlertChannel, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(strings.ToLower(name))
		if trimmed == "" {
			continue
		}
		channels = append(channels, core.AlertChannel(trimmed))
	}
	return channels
}
