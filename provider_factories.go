package payrolllink

import (
	"fmt"

	"github.com/goliatone/go-payroll-link/core"
	"github.com/goliatone/go-payroll-link/providers/plaid"
	"github.com/goliatone/go-payroll-link/transport"
)

// PlaidProvider builds the live provider client for cfg. A nil doer uses a
// default http.Client. Only idempotent requests are retried.
func PlaidProvider(cfg Config, doer transport.HTTPDoer, logger core.Logger) (*plaid.Client, error) {
	if cfg.Mode() != core.CredentialModeLive {
		return nil, fmt.Errorf("payrolllink: plaid provider requires live credentials")
	}
	rest := transport.NewRESTAdapter(doer)
	retrying := transport.NewRetryAdapter(rest, cfg.Transport, logger)
	return plaid.New(plaid.ConfigFromCore(cfg), retrying)
}
