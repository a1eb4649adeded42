package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ PayrollService = (*Service)(nil)
	_ ExchangeLedger = (*MemoryExchangeLedger)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
