package payrolllink

import (
	"context"

	"github.com/goliatone/go-payroll-link/core"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type PayrollService = core.PayrollService

type UserIdentity = core.UserIdentity

type LinkSession = core.LinkSession

type ExchangeResult = core.ExchangeResult

type PayrollSnapshot = core.PayrollSnapshot

type WebhookEvent = core.WebhookEvent

type Acknowledgment = core.Acknowledgment

type CredentialMode = core.CredentialMode

var (
	WithLogger                 = core.WithLogger
	WithLoggerProvider         = core.WithLoggerProvider
	WithMetricsRecorder        = core.WithMetricsRecorder
	WithErrorMapper            = core.WithErrorMapper
	WithConfigProvider         = core.WithConfigProvider
	WithOptionsResolver        = core.WithOptionsResolver
	WithProviderClient         = core.WithProviderClient
	WithExchangeLedger         = core.WithExchangeLedger
	WithUserReferenceGenerator = core.WithUserReferenceGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func DetectMode(clientID string, secret string) CredentialMode {
	return core.DetectMode(clientID, secret)
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// ResolveConfig merges defaults, raw values from loader and runtime overrides
// with the same layering NewService applies.
func ResolveConfig(ctx context.Context, loader core.RawConfigLoader, runtime Config) (Config, error) {
	defaults := core.DefaultConfig()
	loaded, err := core.NewCfgxConfigProvider(loader).Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return core.GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
}

// Setup builds a service for cfg. Live credentials get a Plaid client over the
// REST transport; a WithProviderClient option in opts takes precedence.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	if cfg.Mode() == core.CredentialModeLive {
		client, err := PlaidProvider(cfg, nil, nil)
		if err != nil {
			return nil, err
		}
		opts = append([]Option{core.WithProviderClient(client)}, opts...)
	}
	return core.NewService(cfg, opts...)
}
