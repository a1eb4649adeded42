package core

import (
	"strings"
	"time"
)

type PayFrequency string

const (
	PayFrequencyWeekly      PayFrequency = "weekly"
	PayFrequencyBiweekly    PayFrequency = "biweekly"
	PayFrequencySemiMonthly PayFrequency = "semi_monthly"
	PayFrequencyMonthly     PayFrequency = "monthly"
	PayFrequencyUnknown     PayFrequency = "unknown"
)

type SnapshotSource string

const (
	SnapshotSourceProvider  SnapshotSource = "provider"
	SnapshotSourceReport    SnapshotSource = "report"
	SnapshotSourceSimulated SnapshotSource = "simulated"
)

// UserIdentity identifies the portal user that starts a link ceremony. It is
// never sent to the provider verbatim; each attempt gets a fresh user reference.
type UserIdentity struct {
	UserID     string
	EmployerID string
	Email      string
	Metadata   map[string]any
}

type LinkSession struct {
	Token         string
	Expiration    *time.Time
	RequestID     string
	UserReference string
	Mode          CredentialMode
}

type ExchangeResult struct {
	AccessCredential string
	ItemID           string
	RequestID        string
	Mode             CredentialMode
}

type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

func (a Address) String() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{a.Street, a.City, strings.TrimSpace(a.Region + " " + a.PostalCode), a.Country} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ", ")
}

type Employer struct {
	Name    string  `json:"name"`
	Address Address `json:"address"`
}

type Employee struct {
	Name        string  `json:"name"`
	Address     Address `json:"address"`
	MaskedTaxID string  `json:"masked_tax_id"`
}

type Income struct {
	Rate          float64      `json:"rate"`
	RateUnit      string       `json:"rate_unit,omitempty"`
	AnnualizedPay float64      `json:"annualized_pay"`
	PayPeriod     string       `json:"pay_period"`
	PayFrequency  PayFrequency `json:"pay_frequency,omitempty"`
	NextPayDate   string       `json:"next_pay_date,omitempty"`
	Currency      string       `json:"currency,omitempty"`
}

// PayrollSnapshot is built fresh on each retrieval and never cached by the pipeline.
type PayrollSnapshot struct {
	Employer Employer       `json:"employer"`
	Employee Employee       `json:"employee"`
	Income   Income         `json:"income"`
	Source   SnapshotSource `json:"source,omitempty"`
}

type WebhookEvent struct {
	WebhookType string
	WebhookCode string
	ItemID      string
	Payload     map[string]any
	ReceivedAt  time.Time
}

type Acknowledgment struct {
	Received bool `json:"received"`
}

// PeriodsPerYear returns the number of pay periods for a frequency, or zero
// when the frequency is unknown.
func (f PayFrequency) PeriodsPerYear() int {
	switch f {
	case PayFrequencyWeekly:
		return 52
	case PayFrequencyBiweekly:
		return 26
	case PayFrequencySemiMonthly:
		return 24
	case PayFrequencyMonthly:
		return 12
	default:
		return 0
	}
}

func ParsePayFrequency(value string) PayFrequency {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch normalized {
	case "weekly":
		return PayFrequencyWeekly
	case "biweekly", "bi_weekly":
		return PayFrequencyBiweekly
	case "semi_monthly", "semimonthly", "semi_monthly_pay":
		return PayFrequencySemiMonthly
	case "monthly":
		return PayFrequencyMonthly
	case "":
		return ""
	default:
		return PayFrequencyUnknown
	}
}

// MaskTaxID keeps only the last four digits of a tax identifier.
func MaskTaxID(value string) string {
	digits := make([]rune, 0, len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) == 0 {
		masked := strings.TrimSpace(value)
		if strings.Contains(masked, "*") || strings.Contains(strings.ToLower(masked), "x") {
			return masked
		}
		return ""
	}
	last := digits
	if len(last) > 4 {
		last = last[len(last)-4:]
	}
	return "***-**-" + string(last)
}
