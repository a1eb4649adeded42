package query

import "strings"

const (
	TypeFetchPayrollSnapshot = "payroll.query.snapshot.fetch"
	TypeDetectMode           = "payroll.query.mode.detect"
	TypeCurrentMode          = "payroll.query.mode.current"
)

type FetchPayrollSnapshotMessage struct {
	AccessCredential string
}

func (FetchPayrollSnapshotMessage) Type() string { return TypeFetchPayrollSnapshot }

func (m FetchPayrollSnapshotMessage) Validate() error {
	if strings.TrimSpace(m.AccessCredential) == "" {
		return queryValidationError("access_credential", "access credential is required")
	}
	return nil
}

// DetectModeMessage asks which mode a credential pair would select. Empty
// values are valid and select the simulated mode.
type DetectModeMessage struct {
	ClientID string
	Secret   string
}

func (DetectModeMessage) Type() string { return TypeDetectMode }

type CurrentModeMessage struct{}

func (CurrentModeMessage) Type() string { return TypeCurrentMode }
