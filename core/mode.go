package core

import "strings"

// CredentialMode selects between the real provider and the offline simulated path.
type CredentialMode string

const (
	CredentialModeLive      CredentialMode = "live"
	CredentialModeSimulated CredentialMode = "simulated"
)

// Placeholder credential values shipped in sample configuration. Any of them,
// for either the client id or the secret, selects the simulated mode.
const (
	PlaceholderClientID = "your_plaid_client_id"
	PlaceholderSecret   = "your_plaid_secret"
	PlaceholderValue    = "placeholder"
)

// Sentinel tokens produced and recognized by the simulated path.
const (
	SimulatedLinkToken        = "link-sandbox-simulated-token"
	SimulatedPublicCredential = "public-sandbox-simulated-token"
	SimulatedAccessCredential = "access-sandbox-simulated-token"
	SimulatedItemID           = "item-sandbox-simulated"
	SimulatedRequestID        = "req-simulated"
)

var placeholderCredentials = map[string]struct{}{
	"":                  {},
	PlaceholderClientID: {},
	PlaceholderSecret:   {},
	PlaceholderValue:    {},
	"your_client_id":    {},
	"your_secret":       {},
}

func (m CredentialMode) String() string {
	return string(m)
}

func (m CredentialMode) IsSimulated() bool {
	return m == CredentialModeSimulated
}

// DetectMode is pure and cheap; callers may invoke it on every entry point.
func DetectMode(clientID string, secret string) CredentialMode {
	if IsPlaceholderCredential(clientID) || IsPlaceholderCredential(secret) {
		return CredentialModeSimulated
	}
	return CredentialModeLive
}

func IsPlaceholderCredential(value string) bool {
	_, ok := placeholderCredentials[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

func IsSimulatedLinkToken(token string) bool {
	return strings.TrimSpace(token) == SimulatedLinkToken
}

func IsSimulatedPublicCredential(credential string) bool {
	return strings.TrimSpace(credential) == SimulatedPublicCredential
}

func IsSimulatedAccessCredential(credential string) bool {
	return strings.TrimSpace(credential) == SimulatedAccessCredential
}

// SimulatedPayrollSnapshot returns a fresh copy of the fixed snapshot served by
// the simulated path.
func SimulatedPayrollSnapshot() PayrollSnapshot {
	return PayrollSnapshot{
		Employer: Employer{
			Name: "Acme Payroll Demo Inc.",
			Address: Address{
				Street:     "100 Market Street",
				City:       "San Francisco",
				Region:     "CA",
				PostalCode: "94105",
				Country:    "US",
			},
		},
		Employee: Employee{
			Name: "Jordan Sample",
			Address: Address{
				Street:     "2200 Mission Street",
				City:       "San Francisco",
				Region:     "CA",
				PostalCode: "94110",
				Country:    "US",
			},
			MaskedTaxID: "***-**-6789",
		},
		Income: Income{
			Rate:          41.25,
			RateUnit:      "hour",
			AnnualizedPay: 85800,
			PayPeriod:     "2024-06-01/2024-06-15",
			PayFrequency:  PayFrequencySemiMonthly,
			NextPayDate:   "2024-06-30",
			Currency:      "USD",
		},
		Source: SnapshotSourceSimulated,
	}
}
