package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
	"github.com/google/uuid"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	providerClient  ProviderClient
	exchangeLedger  ExchangeLedger
	userReference   UserReferenceGenerator
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

// WithProviderClient sets the live provider client. It is required in live mode.
func WithProviderClient(client ProviderClient) Option {
	return func(b *serviceBuilder) {
		b.providerClient = client
	}
}

func WithExchangeLedger(ledger ExchangeLedger) Option {
	return func(b *serviceBuilder) {
		b.exchangeLedger = ledger
	}
}

func WithUserReferenceGenerator(generator UserReferenceGenerator) Option {
	return func(b *serviceBuilder) {
		b.userReference = generator
	}
}

// defaultServiceBuilder leaves logger and provider unset so NewService can
// apply glog precedence to what the caller actually passed.
func defaultServiceBuilder(runtime Config) serviceBuilder {
	return serviceBuilder{
		runtimeConfig:   runtime,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		userReference:   DefaultUserReference,
	}
}

// DefaultUserReference returns a fresh provider user reference per attempt.
func DefaultUserReference(UserIdentity) string {
	return "user-" + uuid.NewString()
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
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
		loader = StaticRawConfigLoader{}
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

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
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

// configToLayerMap keeps only set values for non-default layers so that a
// zero runtime field never masks a loaded one.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	provider := map[string]any{}
	for key, value := range map[string]string{
		"client_id":   cfg.Provider.ClientID,
		"secret":      cfg.Provider.Secret,
		"environment": cfg.Provider.Environment,
		"base_url":    cfg.Provider.BaseURL,
		"webhook_url": cfg.Provider.WebhookURL,
		"report_url":  cfg.Provider.ReportURL,
	} {
		if includeZero || strings.TrimSpace(value) != "" {
			provider[key] = value
		}
	}
	if len(provider) > 0 {
		layer["provider"] = provider
	}

	link := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Link.ClientName) != "" {
		link["client_name"] = cfg.Link.ClientName
	}
	if includeZero || len(cfg.Link.Products) > 0 {
		link["products"] = append([]string(nil), cfg.Link.Products...)
	}
	if includeZero || len(cfg.Link.CountryCodes) > 0 {
		link["country_codes"] = append([]string(nil), cfg.Link.CountryCodes...)
	}
	if includeZero || strings.TrimSpace(cfg.Link.Language) != "" {
		link["language"] = cfg.Link.Language
	}
	if len(link) > 0 {
		layer["link"] = link
	}

	transport := map[string]any{}
	if includeZero || cfg.Transport.Timeout > 0 {
		transport["timeout"] = cfg.Transport.Timeout
	}
	if includeZero || cfg.Transport.RetryAttempts > 0 {
		transport["retry_attempts"] = cfg.Transport.RetryAttempts
	}
	if includeZero || cfg.Transport.RetryDelay > 0 {
		transport["retry_delay"] = cfg.Transport.RetryDelay
	}
	if len(transport) > 0 {
		layer["transport"] = transport
	}
	return layer
}
