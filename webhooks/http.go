package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-payroll-link/core"
)

const maxWebhookBodyBytes int64 = 1 << 20

type errorBody struct {
	Received bool   `json:"received"`
	Error    string `json:"error"`
	Code     string `json:"code"`
}

// HTTPHandler adapts Handler to net/http. It answers 200 {"received":true}
// for well-formed events and 400 for malformed bodies.
func HTTPHandler(handler *Handler) http.Handler {
	if handler == nil {
		handler = NewHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Code: core.ErrorInvalidInput})
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			writeError(w, core.MalformedWebhookError("webhooks: read body", nil))
			return
		}
		event, err := ParseEvent(body, time.Now().UTC())
		if err != nil {
			handler.observe(r.Context(), time.Now().UTC(), "malformed", err)
			writeError(w, err)
			return
		}
		ack, err := handler.Handle(r.Context(), event)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ack)
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code > 0 {
		status = rich.Code
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: core.TextCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
