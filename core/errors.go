package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorInvalidInput        = "PAYROLL_INVALID_INPUT"
	ErrorProviderUnavailable = "PAYROLL_PROVIDER_UNAVAILABLE"
	ErrorProviderRejected    = "PAYROLL_PROVIDER_REJECTED"
	ErrorExchangeFailed      = "PAYROLL_EXCHANGE_FAILED"
	ErrorAlreadyExchanged    = "PAYROLL_ALREADY_EXCHANGED"
	ErrorInvalidCredential   = "PAYROLL_INVALID_CREDENTIAL"
	ErrorMalformedWebhook    = "PAYROLL_MALFORMED_WEBHOOK"
	ErrorInvalidTransition   = "PAYROLL_INVALID_TRANSITION"
	ErrorInternal            = "PAYROLL_INTERNAL_ERROR"
)

// ProviderErrorDetail is the diagnostic payload a provider returns with a
// well-formed error response.
type ProviderErrorDetail struct {
	StatusCode     int
	ErrorType      string
	ErrorCode      string
	ErrorMessage   string
	DisplayMessage string
	RequestID      string
}

func (d ProviderErrorDetail) Metadata() map[string]any {
	metadata := map[string]any{}
	if d.StatusCode > 0 {
		metadata["provider_status_code"] = d.StatusCode
	}
	for key, value := range map[string]string{
		"provider_error_type":      d.ErrorType,
		"provider_error_code":      d.ErrorCode,
		"provider_error_message":   d.ErrorMessage,
		"provider_display_message": d.DisplayMessage,
		"request_id":               d.RequestID,
	} {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			metadata[key] = trimmed
		}
	}
	return metadata
}

func (d ProviderErrorDetail) describe(fallback string) string {
	message := strings.TrimSpace(d.ErrorMessage)
	if message == "" {
		message = fallback
	}
	if code := strings.TrimSpace(d.ErrorCode); code != "" {
		return fmt.Sprintf("%s (%s)", message, code)
	}
	return message
}

func InvalidInputError(message string, metadata map[string]any) error {
	return pipelineError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorInvalidInput, metadata)
}

func ProviderUnavailableError(cause error, message string, metadata map[string]any) error {
	return pipelineWrapError(cause, goerrors.CategoryExternal, message, http.StatusBadGateway, ErrorProviderUnavailable, metadata)
}

func ProviderRejectedError(operation string, detail ProviderErrorDetail) error {
	return pipelineError(
		"core: "+operation+" rejected by provider: "+detail.describe("provider rejected the request"),
		goerrors.CategoryOperation,
		http.StatusUnprocessableEntity,
		ErrorProviderRejected,
		withOperation(detail.Metadata(), operation),
	)
}

func ExchangeFailedError(detail ProviderErrorDetail) error {
	return pipelineError(
		"core: public credential exchange failed: "+detail.describe("provider rejected the public credential"),
		goerrors.CategoryOperation,
		http.StatusUnprocessableEntity,
		ErrorExchangeFailed,
		withOperation(detail.Metadata(), OperationExchangePublicCredential),
	)
}

func AlreadyExchangedError(metadata map[string]any) error {
	return pipelineError(
		"core: public credential already exchanged",
		goerrors.CategoryConflict,
		http.StatusConflict,
		ErrorAlreadyExchanged,
		withOperation(metadata, OperationExchangePublicCredential),
	)
}

func InvalidCredentialError(detail ProviderErrorDetail) error {
	return pipelineError(
		"core: access credential is invalid or expired: "+detail.describe("provider rejected the access credential"),
		goerrors.CategoryAuth,
		http.StatusUnauthorized,
		ErrorInvalidCredential,
		withOperation(detail.Metadata(), OperationFetchPayrollSnapshot),
	)
}

func MalformedWebhookError(message string, metadata map[string]any) error {
	return pipelineError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorMalformedWebhook, metadata)
}

func InvalidTransitionError(from string, to string) error {
	return pipelineError(
		fmt.Sprintf("connection: transition %s -> %s is not allowed", from, to),
		goerrors.CategoryConflict,
		http.StatusConflict,
		ErrorInvalidTransition,
		map[string]any{"from_state": from, "to_state": to},
	)
}

func InternalError(cause error, message string) error {
	return pipelineWrapError(cause, goerrors.CategoryInternal, message, http.StatusInternalServerError, ErrorInternal, nil)
}

// TextCode returns the stable text code carried by err, or an empty string.
func TextCode(err error) string {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) || rich == nil {
		return ""
	}
	return rich.TextCode
}

func IsCode(err error, code string) bool {
	return code != "" && TextCode(err) == code
}

// Retryable reports whether a fresh, caller-initiated attempt may succeed.
func Retryable(err error) bool {
	return IsCode(err, ErrorProviderUnavailable)
}

// ProviderErrorFrom recovers the provider diagnostic payload from an error
// built by this package.
func ProviderErrorFrom(err error) (ProviderErrorDetail, bool) {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) || rich == nil || len(rich.Metadata) == 0 {
		return ProviderErrorDetail{}, false
	}
	detail := ProviderErrorDetail{
		ErrorType:      metadataString(rich.Metadata, "provider_error_type"),
		ErrorCode:      metadataString(rich.Metadata, "provider_error_code"),
		ErrorMessage:   metadataString(rich.Metadata, "provider_error_message"),
		DisplayMessage: metadataString(rich.Metadata, "provider_display_message"),
		RequestID:      metadataString(rich.Metadata, "request_id"),
	}
	if status, ok := rich.Metadata["provider_status_code"].(int); ok {
		detail.StatusCode = status
	}
	if detail == (ProviderErrorDetail{}) {
		return ProviderErrorDetail{}, false
	}
	return detail, true
}

func pipelineError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func pipelineWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return pipelineError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatusForCategory(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorInvalidInput
	case goerrors.CategoryExternal:
		return ErrorProviderUnavailable
	case goerrors.CategoryAuth:
		return ErrorInvalidCredential
	case goerrors.CategoryOperation:
		return ErrorProviderRejected
	default:
		return ErrorInternal
	}
}

func httpStatusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func withOperation(metadata map[string]any, operation string) map[string]any {
	out := copyAnyMap(metadata)
	if strings.TrimSpace(operation) != "" {
		out["operation"] = operation
	}
	return out
}

func metadataString(metadata map[string]any, key string) string {
	value, ok := metadata[key]
	if !ok || value == nil {
		return ""
	}
	if typed, ok := value.(string); ok {
		return strings.TrimSpace(typed)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
