package query

import (
	"context"

	"github.com/goliatone/go-payroll-link/core"
)

type SnapshotReader interface {
	FetchPayrollSnapshot(ctx context.Context, accessCredential string) (core.PayrollSnapshot, error)
}

type ModeReader interface {
	Mode() core.CredentialMode
}

type FetchPayrollSnapshotQuery struct {
	reader SnapshotReader
}

func NewFetchPayrollSnapshotQuery(reader SnapshotReader) *FetchPayrollSnapshotQuery {
	return &FetchPayrollSnapshotQuery{reader: reader}
}

func (q *FetchPayrollSnapshotQuery) Query(ctx context.Context, msg FetchPayrollSnapshotMessage) (core.PayrollSnapshot, error) {
	if q == nil || q.reader == nil {
		return core.PayrollSnapshot{}, queryDependencyError("query: snapshot reader is required")
	}
	return q.reader.FetchPayrollSnapshot(ctx, msg.AccessCredential)
}

// DetectModeQuery is pure and never touches the service.
type DetectModeQuery struct{}

func NewDetectModeQuery() *DetectModeQuery {
	return &DetectModeQuery{}
}

func (q *DetectModeQuery) Query(_ context.Context, msg DetectModeMessage) (core.CredentialMode, error) {
	return core.DetectMode(msg.ClientID, msg.Secret), nil
}

type CurrentModeQuery struct {
	reader ModeReader
}

func NewCurrentModeQuery(reader ModeReader) *CurrentModeQuery {
	return &CurrentModeQuery{reader: reader}
}

func (q *CurrentModeQuery) Query(context.Context, CurrentModeMessage) (core.CredentialMode, error) {
	if q == nil || q.reader == nil {
		return "", queryDependencyError("query: mode reader is required")
	}
	return q.reader.Mode(), nil
}
