package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payroll-link/core"
)

// LinkService is the mutating subset of the payroll service.
type LinkService interface {
	CreateLinkSession(ctx context.Context, identity core.UserIdentity) (core.LinkSession, error)
	ExchangePublicCredential(ctx context.Context, publicCredential string) (core.ExchangeResult, error)
}

type WebhookHandler interface {
	Handle(ctx context.Context, event core.WebhookEvent) (core.Acknowledgment, error)
}

type CreateLinkSessionCommand struct {
	service LinkService
}

func NewCreateLinkSessionCommand(service LinkService) *CreateLinkSessionCommand {
	return &CreateLinkSessionCommand{service: service}
}

func (c *CreateLinkSessionCommand) Execute(ctx context.Context, msg CreateLinkSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: link session service is required")
	}
	out, err := c.service.CreateLinkSession(ctx, msg.Identity)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ExchangePublicCredentialCommand struct {
	service LinkService
}

func NewExchangePublicCredentialCommand(service LinkService) *ExchangePublicCredentialCommand {
	return &ExchangePublicCredentialCommand{service: service}
}

// Execute stores the exchange result, including the access credential, on
// the result collector. The caller owns the credential from then on.
func (c *ExchangePublicCredentialCommand) Execute(ctx context.Context, msg ExchangePublicCredentialMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	out, err := c.service.ExchangePublicCredential(ctx, msg.PublicCredential)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type HandleWebhookCommand struct {
	handler WebhookHandler
}

func NewHandleWebhookCommand(handler WebhookHandler) *HandleWebhookCommand {
	return &HandleWebhookCommand{handler: handler}
}

func (c *HandleWebhookCommand) Execute(ctx context.Context, msg HandleWebhookMessage) error {
	if c == nil || c.handler == nil {
		return commandDependencyError("command: webhook handler is required")
	}
	out, err := c.handler.Handle(ctx, msg.Event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
