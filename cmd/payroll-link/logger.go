package main

import (
	"io"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	payrolllink "github.com/goliatone/go-payroll-link"
)

// newCLILogger builds the root console logger. The result is also a
// LoggerProvider, so the service resolves its "payroll" child from it.
func newCLILogger(w io.Writer, level string) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithName("payroll-link"),
		glog.WithLevel(strings.ToUpper(strings.TrimSpace(level))),
		glog.WithWriter(w),
		glog.WithLoggerTypeConsole(),
	)
}

func serviceLoggerOptions(logger glog.Logger) []payrolllink.Option {
	opts := []payrolllink.Option{payrolllink.WithLogger(logger)}
	if provider, ok := logger.(glog.LoggerProvider); ok {
		opts = append(opts, payrolllink.WithLoggerProvider(provider))
	}
	return opts
}
