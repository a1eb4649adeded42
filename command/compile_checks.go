package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payroll-link/core"
	"github.com/goliatone/go-payroll-link/webhooks"
)

var (
	_ gocmd.Commander[CreateLinkSessionMessage]        = (*CreateLinkSessionCommand)(nil)
	_ gocmd.Commander[ExchangePublicCredentialMessage] = (*ExchangePublicCredentialCommand)(nil)
	_ gocmd.Commander[HandleWebhookMessage]            = (*HandleWebhookCommand)(nil)

	_ LinkService    = (*core.Service)(nil)
	_ WebhookHandler = (*webhooks.Handler)(nil)
)
