package plaid

import "github.com/goliatone/go-payroll-link/core"

type credentials struct {
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
}

type linkUser struct {
	ClientUserID string `json:"client_user_id"`
}

type linkTokenCreateRequest struct {
	credentials
	ClientName   string   `json:"client_name"`
	User         linkUser `json:"user"`
	Products     []string `json:"products"`
	CountryCodes []string `json:"country_codes"`
	Language     string   `json:"language"`
	Webhook      string   `json:"webhook,omitempty"`
}

type linkTokenCreateResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

type publicTokenExchangeRequest struct {
	credentials
	PublicToken string `json:"public_token"`
}

type publicTokenExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

type payrollIncomeGetRequest struct {
	credentials
	AccessToken string `json:"access_token"`
}

type errorResponse struct {
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
	RequestID      string `json:"request_id"`
}

type payrollIncomeGetResponse struct {
	Items     []payrollItem `json:"items"`
	RequestID string        `json:"request_id"`
}

type payrollItem struct {
	ItemID          string          `json:"item_id"`
	InstitutionName string          `json:"institution_name"`
	PayrollIncome   []payrollIncome `json:"payroll_income"`
}

type payrollIncome struct {
	AccountID string    `json:"account_id"`
	PayStubs  []payStub `json:"pay_stubs"`
}

type payStub struct {
	DocumentID       string           `json:"document_id"`
	Employee         stubEmployee     `json:"employee"`
	Employer         stubEmployer     `json:"employer"`
	Earnings         stubEarnings     `json:"earnings"`
	NetPay           stubAmount       `json:"net_pay"`
	PayPeriodDetails payPeriodDetails `json:"pay_period_details"`
}

type stubAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type stubEmployee struct {
	Name       string      `json:"name"`
	Address    stubAddress `json:"address"`
	TaxpayerID taxpayerID  `json:"taxpayer_id"`
}

type taxpayerID struct {
	IDType string `json:"id_type"`
	IDMask string `json:"id_mask"`
}

type stubEmployer struct {
	Name    string      `json:"name"`
	Address stubAddress `json:"address"`
}

type stubEarnings struct {
	Breakdown []earningsBreakdown `json:"breakdown"`
	Total     earningsTotal       `json:"total"`
}

type earningsBreakdown struct {
	CanonicalDescription string   `json:"canonical_description"`
	CurrentAmount        *float64 `json:"current_amount"`
	Hours                *float64 `json:"hours"`
	Rate                 *float64 `json:"rate"`
	ISOCurrencyCode      string   `json:"iso_currency_code"`
}

type earningsTotal struct {
	CurrentAmount   *float64 `json:"current_amount"`
	Hours           *float64 `json:"hours"`
	ISOCurrencyCode string   `json:"iso_currency_code"`
}

type stubAmount struct {
	CurrentAmount   *float64 `json:"current_amount"`
	ISOCurrencyCode string   `json:"iso_currency_code"`
}

type payPeriodDetails struct {
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	PayDate       string   `json:"pay_date"`
	PayFrequency  string   `json:"pay_frequency"`
	GrossEarnings *float64 `json:"gross_earnings"`
	PayAmount     *float64 `json:"pay_amount"`
}

type reportRequest struct {
	Method      string `json:"method"`
	AccessToken string `json:"access_token"`
}

// reportResponse is the normalized shape returned by an intermediary report
// endpoint.
type reportResponse struct {
	Employer  core.Employer `json:"employer"`
	Employee  core.Employee `json:"employee"`
	Income    core.Income   `json:"income"`
	RequestID string        `json:"request_id"`
	Error     string        `json:"error"`
}

func (r reportResponse) snapshot() core.PayrollSnapshot {
	snapshot := core.PayrollSnapshot{
		Employer: r.Employer,
		Employee: r.Employee,
		Income:   r.Income,
	}
	snapshot.Employee.MaskedTaxID = core.MaskTaxID(snapshot.Employee.MaskedTaxID)
	if snapshot.Income.PayFrequency != "" {
		snapshot.Income.PayFrequency = core.ParsePayFrequency(string(snapshot.Income.PayFrequency))
	}
	return snapshot
}
