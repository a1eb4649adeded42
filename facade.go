package payrolllink

import (
	"fmt"

	paycommand "github.com/goliatone/go-payroll-link/command"
	"github.com/goliatone/go-payroll-link/core"
	payquery "github.com/goliatone/go-payroll-link/query"
	"github.com/goliatone/go-payroll-link/webhooks"
)

type Commands struct {
	CreateLinkSession        *paycommand.CreateLinkSessionCommand
	ExchangePublicCredential *paycommand.ExchangePublicCredentialCommand
	HandleWebhook            *paycommand.HandleWebhookCommand
}

type Queries struct {
	FetchPayrollSnapshot *payquery.FetchPayrollSnapshotQuery
	DetectMode           *payquery.DetectModeQuery
	CurrentMode          *payquery.CurrentModeQuery
}

type Facade struct {
	service  core.PayrollService
	webhooks *webhooks.Handler
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	webhookHandler *webhooks.Handler
	webhookOptions []webhooks.HandlerOption
}

// WithWebhookHandler replaces the handler built from the service logger.
func WithWebhookHandler(handler *webhooks.Handler) FacadeOption {
	return func(options *facadeOptions) {
		options.webhookHandler = handler
	}
}

// WithWebhookOptions configures the default webhook handler. It is ignored
// when WithWebhookHandler is also given.
func WithWebhookOptions(opts ...webhooks.HandlerOption) FacadeOption {
	return func(options *facadeOptions) {
		options.webhookOptions = append(options.webhookOptions, opts...)
	}
}

func NewFacade(service core.PayrollService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("payrolllink: payroll service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	handler := cfg.webhookHandler
	if handler == nil {
		handlerOpts := cfg.webhookOptions
		if logger := resolveServiceLogger(service); logger != nil {
			handlerOpts = append([]webhooks.HandlerOption{webhooks.WithLogger(logger)}, handlerOpts...)
		}
		handler = webhooks.NewHandler(handlerOpts...)
	}

	facade := &Facade{service: service, webhooks: handler}
	facade.commands = Commands{
		CreateLinkSession:        paycommand.NewCreateLinkSessionCommand(service),
		ExchangePublicCredential: paycommand.NewExchangePublicCredentialCommand(service),
		HandleWebhook:            paycommand.NewHandleWebhookCommand(handler),
	}
	facade.queries = Queries{
		FetchPayrollSnapshot: payquery.NewFetchPayrollSnapshotQuery(service),
		DetectMode:           payquery.NewDetectModeQuery(),
		CurrentMode:          payquery.NewCurrentModeQuery(service),
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

func (f *Facade) Service() core.PayrollService {
	if f == nil {
		return nil
	}
	return f.service
}

func (f *Facade) WebhookHandler() *webhooks.Handler {
	if f == nil {
		return nil
	}
	return f.webhooks
}

func resolveServiceLogger(service core.PayrollService) core.Logger {
	provider, ok := service.(interface{ Logger() core.Logger })
	if !ok {
		return nil
	}
	return provider.Logger()
}
