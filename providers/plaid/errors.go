package plaid

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goliatone/go-payroll-link/core"
)

// Error codes that mean the access credential can no longer be used.
var invalidCredentialCodes = map[string]struct{}{
	"INVALID_ACCESS_TOKEN":    {},
	"ITEM_LOGIN_REQUIRED":     {},
	"ITEM_NOT_FOUND":          {},
	"INVALID_CREDENTIALS":     {},
	"ACCESS_NOT_GRANTED":      {},
	"USER_PERMISSION_REVOKED": {},
}

func classifyResponse(operation string, res core.TransportResponse) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	detail := decodeErrorDetail(res)
	if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
		metadata := detail.Metadata()
		metadata["operation"] = operation
		return core.ProviderUnavailableError(
			nil,
			"providers/plaid: "+operation+" failed with status "+http.StatusText(res.StatusCode),
			metadata,
		)
	}

	switch operation {
	case core.OperationExchangePublicCredential:
		return core.ExchangeFailedError(detail)
	case core.OperationFetchPayrollSnapshot:
		if isInvalidCredential(detail) {
			return core.InvalidCredentialError(detail)
		}
		return core.ProviderRejectedError(operation, detail)
	default:
		return core.ProviderRejectedError(operation, detail)
	}
}

func decodeErrorDetail(res core.TransportResponse) core.ProviderErrorDetail {
	detail := core.ProviderErrorDetail{StatusCode: res.StatusCode}
	var payload errorResponse
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		text := strings.TrimSpace(string(res.Body))
		if len(text) > 256 {
			text = text[:256]
		}
		detail.ErrorMessage = text
		return detail
	}
	detail.ErrorType = strings.TrimSpace(payload.ErrorType)
	detail.ErrorCode = strings.TrimSpace(payload.ErrorCode)
	detail.ErrorMessage = strings.TrimSpace(payload.ErrorMessage)
	detail.DisplayMessage = strings.TrimSpace(payload.DisplayMessage)
	detail.RequestID = strings.TrimSpace(payload.RequestID)
	return detail
}

func isInvalidCredential(detail core.ProviderErrorDetail) bool {
	if _, ok := invalidCredentialCodes[strings.ToUpper(detail.ErrorCode)]; ok {
		return true
	}
	return detail.StatusCode == http.StatusUnauthorized
}
