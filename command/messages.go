package command

import (
	"strings"

	"github.com/goliatone/go-payroll-link/core"
	"github.com/goliatone/go-payroll-link/webhooks"
)

const (
	TypeCreateLinkSession        = "payroll.command.link_session.create"
	TypeExchangePublicCredential = "payroll.command.public_credential.exchange"
	TypeHandleWebhook            = "payroll.command.webhook.handle"
)

// CreateLinkSessionMessage carries no required fields; the identity only
// seeds the per-attempt user reference.
type CreateLinkSessionMessage struct {
	Identity core.UserIdentity
}

func (CreateLinkSessionMessage) Type() string { return TypeCreateLinkSession }

func (CreateLinkSessionMessage) Validate() error { return nil }

type ExchangePublicCredentialMessage struct {
	PublicCredential string
}

func (ExchangePublicCredentialMessage) Type() string { return TypeExchangePublicCredential }

func (m ExchangePublicCredentialMessage) Validate() error {
	if strings.TrimSpace(m.PublicCredential) == "" {
		return commandValidationError("public_credential", "public credential is required")
	}
	return nil
}

type HandleWebhookMessage struct {
	Event core.WebhookEvent
}

func (HandleWebhookMessage) Type() string { return TypeHandleWebhook }

func (m HandleWebhookMessage) Validate() error {
	return webhooks.Validate(m.Event)
}
