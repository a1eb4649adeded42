package sqlstore

import "github.com/goliatone/go-payroll-link/core"

var (
	_ core.ExchangeLedger = (*ExchangeLedgerStore)(nil)
	_ core.ExchangeLedger = (*CachedExchangeLedger)(nil)
)
