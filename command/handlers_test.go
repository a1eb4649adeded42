package command

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payroll-link/core"
	"github.com/goliatone/go-payroll-link/webhooks"
)

type stubLinkService struct {
	createFn   func(ctx context.Context, identity core.UserIdentity) (core.LinkSession, error)
	exchangeFn func(ctx context.Context, publicCredential string) (core.ExchangeResult, error)
}

func (s stubLinkService) CreateLinkSession(ctx context.Context, identity core.UserIdentity) (core.LinkSession, error) {
	if s.createFn == nil {
		return core.LinkSession{}, nil
	}
	return s.createFn(ctx, identity)
}

func (s stubLinkService) ExchangePublicCredential(ctx context.Context, publicCredential string) (core.ExchangeResult, error) {
	if s.exchangeFn == nil {
		return core.ExchangeResult{}, nil
	}
	return s.exchangeFn(ctx, publicCredential)
}

func TestCreateLinkSessionCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	called := false
	svc := stubLinkService{
		createFn: func(_ context.Context, identity core.UserIdentity) (core.LinkSession, error) {
			called = true
			if identity.EmployerID != "emp_1" {
				t.Fatalf("expected employer emp_1, got %q", identity.EmployerID)
			}
			return core.LinkSession{Token: "link-sandbox-1", RequestID: "req_1"}, nil
		},
	}

	cmd := NewCreateLinkSessionCommand(svc)
	collector := gocmd.NewResult[core.LinkSession]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, CreateLinkSessionMessage{Identity: core.UserIdentity{EmployerID: "emp_1"}}); err != nil {
		t.Fatalf("execute create link session: %v", err)
	}
	if !called {
		t.Fatalf("expected service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Token != "link-sandbox-1" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestExchangePublicCredentialCommand_PropagatesTaxonomyErrors(t *testing.T) {
	svc := stubLinkService{
		exchangeFn: func(context.Context, string) (core.ExchangeResult, error) {
			return core.ExchangeResult{}, core.AlreadyExchangedError(nil)
		},
	}
	cmd := NewExchangePublicCredentialCommand(svc)
	err := cmd.Execute(context.Background(), ExchangePublicCredentialMessage{PublicCredential: "public-1"})
	if !core.IsCode(err, core.ErrorAlreadyExchanged) {
		t.Fatalf("expected already exchanged, got %v", err)
	}
}

func TestExchangePublicCredentialCommand_StoresResultWithoutCollector(t *testing.T) {
	svc := stubLinkService{
		exchangeFn: func(_ context.Context, publicCredential string) (core.ExchangeResult, error) {
			return core.ExchangeResult{AccessCredential: "access-" + publicCredential}, nil
		},
	}
	if err := NewExchangePublicCredentialCommand(svc).Execute(context.Background(), ExchangePublicCredentialMessage{PublicCredential: "p"}); err != nil {
		t.Fatalf("expected success without result collector, got %v", err)
	}
}

func TestHandleWebhookCommand_AcknowledgesThroughHandler(t *testing.T) {
	cmd := NewHandleWebhookCommand(webhooks.NewHandler())
	collector := gocmd.NewResult[core.Acknowledgment]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, HandleWebhookMessage{Event: core.WebhookEvent{WebhookType: "SOMETHING_NEW", WebhookCode: "UNKNOWN"}}); err != nil {
		t.Fatalf("execute handle webhook: %v", err)
	}
	ack, ok := collector.Load()
	if !ok || !ack.Received {
		t.Fatalf("expected received acknowledgment, got %#v (%t)", ack, ok)
	}
}

func TestMessages_Validate(t *testing.T) {
	if err := (CreateLinkSessionMessage{}).Validate(); err != nil {
		t.Fatalf("expected empty identity to be valid, got %v", err)
	}

	err := (ExchangePublicCredentialMessage{PublicCredential: "  "}).Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorInvalidInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorInvalidInput, rich.TextCode)
	}

	if err := (HandleWebhookMessage{}).Validate(); !core.IsCode(err, core.ErrorMalformedWebhook) {
		t.Fatalf("expected malformed webhook, got %v", err)
	}
	if err := (HandleWebhookMessage{Event: core.WebhookEvent{WebhookCode: "ERROR"}}).Validate(); err != nil {
		t.Fatalf("expected code-only event to be valid, got %v", err)
	}
}

func TestMessageTypes(t *testing.T) {
	cases := map[string]string{
		TypeCreateLinkSession:        CreateLinkSessionMessage{}.Type(),
		TypeExchangePublicCredential: ExchangePublicCredentialMessage{}.Type(),
		TypeHandleWebhook:            HandleWebhookMessage{}.Type(),
	}
	for want, got := range cases {
		if want != got {
			t.Fatalf("expected type %q, got %q", want, got)
		}
	}
}

func TestCommands_NilDependenciesReturnRichError(t *testing.T) {
	var create *CreateLinkSessionCommand
	errs := []error{
		create.Execute(context.Background(), CreateLinkSessionMessage{}),
		NewExchangePublicCredentialCommand(nil).Execute(context.Background(), ExchangePublicCredentialMessage{}),
		NewHandleWebhookCommand(nil).Execute(context.Background(), HandleWebhookMessage{}),
	}
	for i, err := range errs {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("case %d: expected go-errors envelope, got %T", i, err)
		}
		if rich.Category != goerrors.CategoryInternal {
			t.Fatalf("case %d: expected internal category, got %q", i, rich.Category)
		}
	}
}
