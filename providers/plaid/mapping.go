package plaid

import (
	"strings"
	"time"

	"github.com/goliatone/go-payroll-link/core"
)

const payDateLayout = "2006-01-02"

// mapPayrollIncome normalizes the most recent pay stub of the first item that
// reports payroll income.
func mapPayrollIncome(res payrollIncomeGetResponse, now time.Time) (core.PayrollSnapshot, error) {
	stub, ok := latestPayStub(res)
	if !ok {
		return core.PayrollSnapshot{}, core.ProviderRejectedError(
			core.OperationFetchPayrollSnapshot,
			core.ProviderErrorDetail{
				ErrorCode:    "NO_PAYROLL_INCOME",
				ErrorMessage: "provider returned no pay stubs",
				RequestID:    res.RequestID,
			},
		)
	}

	frequency := core.ParsePayFrequency(stub.PayPeriodDetails.PayFrequency)
	rate, unit := stubRate(stub)
	income := core.Income{
		Rate:         rate,
		RateUnit:     unit,
		PayPeriod:    payPeriod(stub.PayPeriodDetails),
		PayFrequency: frequency,
		NextPayDate:  nextPayDate(stub.PayPeriodDetails.PayDate, frequency, now),
		Currency:     stubCurrency(stub),
	}
	if gross := deref(stub.PayPeriodDetails.GrossEarnings); gross > 0 && frequency.PeriodsPerYear() > 0 {
		income.AnnualizedPay = gross * float64(frequency.PeriodsPerYear())
	} else if unit == "year" {
		income.AnnualizedPay = rate
	}

	return core.PayrollSnapshot{
		Employer: core.Employer{
			Name:    strings.TrimSpace(stub.Employer.Name),
			Address: mapAddress(stub.Employer.Address),
		},
		Employee: core.Employee{
			Name:        strings.TrimSpace(stub.Employee.Name),
			Address:     mapAddress(stub.Employee.Address),
			MaskedTaxID: core.MaskTaxID(stub.Employee.TaxpayerID.IDMask),
		},
		Income: income,
	}, nil
}

func latestPayStub(res payrollIncomeGetResponse) (payStub, bool) {
	var (
		latest    payStub
		latestDay time.Time
		found     bool
	)
	for _, item := range res.Items {
		for _, income := range item.PayrollIncome {
			for _, stub := range income.PayStubs {
				day, _ := time.Parse(payDateLayout, strings.TrimSpace(stub.PayPeriodDetails.PayDate))
				if !found || day.After(latestDay) {
					latest = stub
					latestDay = day
					found = true
				}
			}
		}
	}
	return latest, found
}

// stubRate prefers an hourly rate from the earnings breakdown and falls back
// to gross earnings for the period.
func stubRate(stub payStub) (float64, string) {
	for _, line := range stub.Earnings.Breakdown {
		if rate := deref(line.Rate); rate > 0 {
			return rate, "hour"
		}
	}
	if gross := deref(stub.PayPeriodDetails.GrossEarnings); gross > 0 {
		return gross, "period"
	}
	if total := deref(stub.Earnings.Total.CurrentAmount); total > 0 {
		return total, "period"
	}
	return 0, ""
}

func stubCurrency(stub payStub) string {
	for _, code := range []string{stub.Earnings.Total.ISOCurrencyCode, stub.NetPay.ISOCurrencyCode} {
		if trimmed := strings.ToUpper(strings.TrimSpace(code)); trimmed != "" {
			return trimmed
		}
	}
	return "USD"
}

func payPeriod(details payPeriodDetails) string {
	start := strings.TrimSpace(details.StartDate)
	end := strings.TrimSpace(details.EndDate)
	switch {
	case start != "" && end != "":
		return start + "/" + end
	case start != "":
		return start
	default:
		return end
	}
}

// nextPayDate projects the pay date forward by whole periods until it is
// after now. Semi-monthly schedules pay on the 15th and the last day.
func nextPayDate(payDate string, frequency core.PayFrequency, now time.Time) string {
	last, err := time.Parse(payDateLayout, strings.TrimSpace(payDate))
	if err != nil || frequency.PeriodsPerYear() == 0 {
		return ""
	}
	next := advancePayDate(last, frequency)
	today := now.UTC().Truncate(24 * time.Hour)
	for guard := 0; !next.After(today) && guard < 1000; guard++ {
		next = advancePayDate(next, frequency)
	}
	return next.Format(payDateLayout)
}

func advancePayDate(from time.Time, frequency core.PayFrequency) time.Time {
	switch frequency {
	case core.PayFrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case core.PayFrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	case core.PayFrequencySemiMonthly:
		if from.Day() < 15 {
			return time.Date(from.Year(), from.Month(), 15, 0, 0, 0, 0, time.UTC)
		}
		endOfMonth := time.Date(from.Year(), from.Month()+1, 0, 0, 0, 0, 0, time.UTC)
		if from.Day() < endOfMonth.Day() {
			return endOfMonth
		}
		return time.Date(from.Year(), from.Month()+1, 15, 0, 0, 0, 0, time.UTC)
	default:
		return from.AddDate(0, 1, 0)
	}
}

func mapAddress(in stubAddress) core.Address {
	return core.Address{
		Street:     strings.TrimSpace(in.Street),
		City:       strings.TrimSpace(in.City),
		Region:     strings.TrimSpace(in.Region),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.TrimSpace(in.Country),
	}
}

func deref(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}
