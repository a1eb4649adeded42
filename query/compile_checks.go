package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payroll-link/core"
)

var (
	_ gocmd.Querier[FetchPayrollSnapshotMessage, core.PayrollSnapshot] = (*FetchPayrollSnapshotQuery)(nil)
	_ gocmd.Querier[DetectModeMessage, core.CredentialMode]            = (*DetectModeQuery)(nil)
	_ gocmd.Querier[CurrentModeMessage, core.CredentialMode]           = (*CurrentModeQuery)(nil)

	_ SnapshotReader = (*core.Service)(nil)
	_ ModeReader     = (*core.Service)(nil)
)
