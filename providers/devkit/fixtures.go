// Package devkit holds transport fakes and provider payload fixtures shared by
// package tests and the simulate command.
package devkit

import (
	"net/http"

	"github.com/goliatone/go-payroll-link/core"
)

const (
	FixtureLinkToken        = "link-sandbox-2f7c1a"
	FixtureAccessCredential = "access-sandbox-9b3e44"
	FixtureItemID           = "item_Ed6bjNrDLJfGvZWwnkQlfxwoNz54B5C97ejBr"
)

const LinkTokenCreateBody = `{
  "link_token": "link-sandbox-2f7c1a",
  "expiration": "2026-01-01T12:00:00Z",
  "request_id": "XQVgFigpGHXkb0b"
}`

const PublicTokenExchangeBody = `{
  "access_token": "access-sandbox-9b3e44",
  "item_id": "item_Ed6bjNrDLJfGvZWwnkQlfxwoNz54B5C97ejBr",
  "request_id": "Aim3b"
}`

const PayrollIncomeBody = `{
  "items": [
    {
      "item_id": "item_Ed6bjNrDLJfGvZWwnkQlfxwoNz54B5C97ejBr",
      "institution_name": "ADP",
      "payroll_income": [
        {
          "account_id": "GeooLPBGDEunl54q7N3ZcyD5aLPLEai1nkzM9",
          "pay_stubs": [
            {
              "document_id": "2jkflanbd",
              "employee": {
                "name": "Anna Charleston",
                "address": {"street": "1234 Grand St", "city": "San Francisco", "region": "CA", "postal_code": "94103", "country": "US"},
                "taxpayer_id": {"id_type": "SSN", "id_mask": "3333"}
              },
              "employer": {
                "name": "Plaid Inc",
                "address": {"street": "1098 Harrison St", "city": "San Francisco", "region": "CA", "postal_code": "94103", "country": "US"}
              },
              "earnings": {
                "breakdown": [
                  {"canonical_description": "REGULAR PAY", "current_amount": 2400, "hours": 80, "rate": 30, "iso_currency_code": "USD"}
                ],
                "total": {"current_amount": 2400, "hours": 80, "iso_currency_code": "USD"}
              },
              "net_pay": {"current_amount": 1832.12, "iso_currency_code": "USD"},
              "pay_period_details": {
                "start_date": "2021-02-15",
                "end_date": "2021-02-28",
                "pay_date": "2021-03-01",
                "pay_frequency": "BIWEEKLY",
                "gross_earnings": 2400,
                "pay_amount": 1832.12
              }
            },
            {
              "document_id": "older",
              "employee": {"name": "Anna Charleston"},
              "employer": {"name": "Plaid Inc"},
              "pay_period_details": {"pay_date": "2021-02-15", "pay_frequency": "BIWEEKLY", "gross_earnings": 2300}
            }
          ]
        }
      ]
    }
  ],
  "request_id": "2pxQ59buGdsHRef"
}`

const ReportSnapshotBody = `{
  "employer": {"name": "Globex Corporation", "address": {"street": "1 Globex Way", "city": "Cypress Creek", "region": "OR", "postal_code": "97000", "country": "US"}},
  "employee": {"name": "Homer Simpson", "address": {"city": "Springfield"}, "masked_tax_id": "123-45-6789"},
  "income": {"rate": 72000, "rate_unit": "year", "annualized_pay": 72000, "pay_period": "2024-05-01/2024-05-31", "pay_frequency": "MONTHLY", "next_pay_date": "2024-06-30", "currency": "USD"},
  "request_id": "report_1"
}`

func ErrorBody(errorType string, errorCode string, message string) string {
	return `{"error_type":"` + errorType + `","error_code":"` + errorCode + `","error_message":"` + message +
		`","display_message":null,"request_id":"req_error"}`
}

func OK(body string) TransportScript {
	return Status(http.StatusOK, body)
}

func Status(statusCode int, body string) TransportScript {
	return TransportScript{Response: core.TransportResponse{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}}
}

func Failure(err error) TransportScript {
	return TransportScript{Err: err}
}
