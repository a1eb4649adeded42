package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-payroll-link/core"
)

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	DisplayMessage string `json:"display_message,omitempty"`
	ProviderCode   string `json:"provider_code,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	Retryable      bool   `json:"retryable"`
}

// writeError renders err with the HTTP status carried by its envelope.
// Errors without one are reported as internal.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := errorBody{
		Code:      core.ErrorInternal,
		Message:   "internal error",
		Retryable: core.Retryable(err),
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.Code > 0 {
			status = rich.Code
		}
		if rich.TextCode != "" {
			body.Code = rich.TextCode
		}
		if rich.Message != "" && body.Code != core.ErrorInternal {
			body.Message = rich.Message
		}
	}
	if detail, ok := core.ProviderErrorFrom(err); ok {
		body.DisplayMessage = detail.DisplayMessage
		body.ProviderCode = detail.ErrorCode
		body.RequestID = detail.RequestID
	}
	c.AbortWithStatusJSON(status, errorEnvelope{Error: body})
}
