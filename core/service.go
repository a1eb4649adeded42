package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service runs the link, exchange and snapshot operations against either the
// live provider client or the simulated path. The mode is fixed at construction.
type Service struct {
	config          Config
	mode            CredentialMode
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	providerClient  ProviderClient
	exchangeLedger  ExchangeLedger
	userReference   UserReferenceGenerator
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ProviderClient  ProviderClient
	ExchangeLedger  ExchangeLedger
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("payroll", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.exchangeLedger == nil {
		builder.exchangeLedger = NewMemoryExchangeLedger()
	}
	if builder.userReference == nil {
		builder.userReference = DefaultUserReference
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	mode := finalConfig.Mode()
	if mode == CredentialModeLive && builder.providerClient == nil {
		return nil, mapBuildError(
			builder.errorMapper,
			fmt.Errorf("core: provider client is required when live credentials are configured"),
		)
	}

	return &Service{
		config:          finalConfig,
		mode:            mode,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		providerClient:  builder.providerClient,
		exchangeLedger:  builder.exchangeLedger,
		userReference:   builder.userReference,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Mode() CredentialMode {
	if s == nil {
		return CredentialModeSimulated
	}
	return s.mode
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		ProviderClient:  s.providerClient,
		ExchangeLedger:  s.exchangeLedger,
	}
}

// CreateLinkSession starts a link ceremony for identity. Each call uses a new
// user reference and is never retried.
func (s *Service) CreateLinkSession(ctx context.Context, identity UserIdentity) (session LinkSession, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"employer_id": strings.TrimSpace(identity.EmployerID)}
	defer func() {
		if session.UserReference != "" {
			fields["user_reference"] = session.UserReference
		}
		if session.RequestID != "" {
			fields["request_id"] = session.RequestID
		}
		s.observeOperation(ctx, startedAt, OperationCreateLinkSession, err, fields)
	}()
	if s == nil {
		return LinkSession{}, InternalError(nil, "core: service is not configured")
	}

	reference := strings.TrimSpace(s.userReference(identity))
	if reference == "" {
		reference = DefaultUserReference(identity)
	}

	if s.mode.IsSimulated() {
		return LinkSession{
			Token:         SimulatedLinkToken,
			RequestID:     SimulatedRequestID,
			UserReference: reference,
			Mode:          CredentialModeSimulated,
		}, nil
	}

	response, err := s.providerClient.CreateLinkToken(ctx, LinkTokenRequest{
		UserReference: reference,
		ClientName:    s.config.Link.ClientName,
		Products:      append([]string(nil), s.config.Link.Products...),
		CountryCodes:  append([]string(nil), s.config.Link.CountryCodes...),
		Language:      s.config.Link.Language,
		WebhookURL:    s.config.Provider.WebhookURL,
		EmployerID:    strings.TrimSpace(identity.EmployerID),
	})
	if err != nil {
		return LinkSession{UserReference: reference}, s.mapError(err)
	}
	token := strings.TrimSpace(response.LinkToken)
	if token == "" {
		return LinkSession{UserReference: reference, RequestID: response.RequestID}, ProviderRejectedError(
			OperationCreateLinkSession,
			ProviderErrorDetail{ErrorMessage: "provider returned an empty link token", RequestID: response.RequestID},
		)
	}
	return LinkSession{
		Token:         token,
		Expiration:    response.Expiration,
		RequestID:     response.RequestID,
		UserReference: reference,
		Mode:          CredentialModeLive,
	}, nil
}

// ExchangePublicCredential trades a one-time public credential for a durable
// access credential. A credential is exchanged at most once.
func (s *Service) ExchangePublicCredential(ctx context.Context, publicCredential string) (result ExchangeResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if result.ItemID != "" {
			fields["item_id"] = result.ItemID
		}
		if result.RequestID != "" {
			fields["request_id"] = result.RequestID
		}
		s.observeOperation(ctx, startedAt, OperationExchangePublicCredential, err, fields)
	}()
	if s == nil {
		return ExchangeResult{}, InternalError(nil, "core: service is not configured")
	}

	publicCredential = strings.TrimSpace(publicCredential)
	if publicCredential == "" {
		return ExchangeResult{}, InvalidInputError(
			"core: public credential is required",
			map[string]any{"operation": OperationExchangePublicCredential, "field": "public_credential"},
		)
	}

	if s.mode.IsSimulated() || IsSimulatedPublicCredential(publicCredential) {
		fields["simulated"] = true
		return ExchangeResult{
			AccessCredential: SimulatedAccessCredential,
			ItemID:           SimulatedItemID,
			RequestID:        SimulatedRequestID,
			Mode:             CredentialModeSimulated,
		}, nil
	}

	key := ExchangeKey(publicCredential)
	existing, claimed, err := s.exchangeLedger.Reserve(ctx, key)
	if err != nil {
		return ExchangeResult{}, InternalError(err, "core: reserve public credential exchange")
	}
	if !claimed {
		metadata := map[string]any{"exchange_status": string(existing.Status)}
		if existing.ItemID != "" {
			metadata["item_id"] = existing.ItemID
		}
		return ExchangeResult{}, AlreadyExchangedError(metadata)
	}

	exchange, err := s.providerClient.ExchangePublicToken(ctx, publicCredential)
	if err != nil {
		s.releaseReservation(ctx, key)
		return ExchangeResult{}, s.mapError(err)
	}
	access := strings.TrimSpace(exchange.AccessCredential)
	if access == "" {
		s.releaseReservation(ctx, key)
		return ExchangeResult{RequestID: exchange.RequestID}, ExchangeFailedError(ProviderErrorDetail{
			ErrorMessage: "provider returned an empty access credential",
			RequestID:    exchange.RequestID,
		})
	}
	if completeErr := s.exchangeLedger.Complete(ctx, key, exchange.ItemID); completeErr != nil {
		s.logWarn(ctx, "exchange ledger completion failed", map[string]any{
			"item_id": exchange.ItemID,
			"error":   completeErr.Error(),
		})
	}
	return ExchangeResult{
		AccessCredential: access,
		ItemID:           strings.TrimSpace(exchange.ItemID),
		RequestID:        exchange.RequestID,
		Mode:             CredentialModeLive,
	}, nil
}

// FetchPayrollSnapshot reads the current payroll data for an access
// credential. Results are built per call and never cached.
func (s *Service) FetchPayrollSnapshot(ctx context.Context, accessCredential string) (snapshot PayrollSnapshot, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		if snapshot.Source != "" {
			fields["source"] = string(snapshot.Source)
		}
		s.observeOperation(ctx, startedAt, OperationFetchPayrollSnapshot, err, fields)
	}()
	if s == nil {
		return PayrollSnapshot{}, InternalError(nil, "core: service is not configured")
	}

	accessCredential = strings.TrimSpace(accessCredential)
	if accessCredential == "" {
		return PayrollSnapshot{}, InvalidInputError(
			"core: access credential is required",
			map[string]any{"operation": OperationFetchPayrollSnapshot, "field": "access_credential"},
		)
	}

	if s.mode.IsSimulated() || IsSimulatedAccessCredential(accessCredential) {
		return SimulatedPayrollSnapshot(), nil
	}

	snapshot, err = s.providerClient.GetPayrollSnapshot(ctx, accessCredential)
	if err != nil {
		return PayrollSnapshot{}, s.mapError(err)
	}
	if snapshot.Source == "" {
		snapshot.Source = SnapshotSourceProvider
	}
	return snapshot, nil
}

func (s *Service) releaseReservation(ctx context.Context, key string) {
	if err := s.exchangeLedger.Release(ctx, key); err != nil {
		s.logWarn(ctx, "exchange ledger release failed", map[string]any{"error": err.Error()})
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	mapper := s.errorMapper
	if mapper == nil {
		mapper = defaultErrorMapper
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		mapper = defaultErrorMapper
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	if mapped.Category == goerrors.CategoryInternal && strings.TrimSpace(mapped.TextCode) == "" {
		mapped.TextCode = ErrorInternal
	}
	return mapped
}
