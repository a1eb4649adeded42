package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-payroll-link/core"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubService struct {
	mode       core.CredentialMode
	linkFn     func(context.Context, core.UserIdentity) (core.LinkSession, error)
	exchangeFn func(context.Context, string) (core.ExchangeResult, error)
	snapshotFn func(context.Context, string) (core.PayrollSnapshot, error)
}

func (s *stubService) Mode() core.CredentialMode { return s.mode }

func (s *stubService) CreateLinkSession(ctx context.Context, identity core.UserIdentity) (core.LinkSession, error) {
	return s.linkFn(ctx, identity)
}

func (s *stubService) ExchangePublicCredential(ctx context.Context, publicCredential string) (core.ExchangeResult, error) {
	return s.exchangeFn(ctx, publicCredential)
}

func (s *stubService) FetchPayrollSnapshot(ctx context.Context, accessCredential string) (core.PayrollSnapshot, error) {
	return s.snapshotFn(ctx, accessCredential)
}

func newSimulatedServer(t *testing.T) *Server {
	t.Helper()
	service, err := core.NewService(core.Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	server, err := NewServer(service)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var envelope errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, w.Body.String())
	}
	return envelope.Error
}

func TestNewServerRequiresService(t *testing.T) {
	if _, err := NewServer(nil); err == nil {
		t.Fatalf("expected error without service")
	}
}

func TestHTTPServerWriteTimeoutOutlastsRetriedProviderCall(t *testing.T) {
	transport := core.TransportConfig{Timeout: 30 * time.Second, RetryAttempts: 3, RetryDelay: 500 * time.Millisecond}
	api, err := NewServer(&stubService{mode: core.CredentialModeLive}, WithTransportConfig(transport))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	budget := transport.MaxCallDuration(defaultProviderTimeout)
	if budget != 91*time.Second {
		t.Fatalf("expected 91s provider budget, got %s", budget)
	}
	if got := api.HTTPServer(":0").WriteTimeout; got <= budget {
		t.Fatalf("expected write timeout above %s, got %s", budget, got)
	}

	defaults, err := NewServer(&stubService{mode: core.CredentialModeSimulated})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if got := defaults.HTTPServer(":0").WriteTimeout; got <= core.DefaultConfig().Transport.MaxCallDuration(defaultProviderTimeout) {
		t.Fatalf("expected default write timeout to cover the default transport budget, got %s", got)
	}
}

func TestSimulatedPipelineOverHTTP(t *testing.T) {
	handler := newSimulatedServer(t).Handler()

	w := doJSON(t, handler, http.MethodGet, BasePath+"/mode", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from mode, got %d", w.Code)
	}
	var mode map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &mode); err != nil {
		t.Fatalf("decode mode: %v", err)
	}
	if mode["mode"] != string(core.CredentialModeSimulated) {
		t.Fatalf("expected simulated mode, got %q", mode["mode"])
	}

	w = doJSON(t, handler, http.MethodPost, BasePath+"/link-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from link-token, got %d: %s", w.Code, w.Body.String())
	}
	var link linkTokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &link); err != nil {
		t.Fatalf("decode link token: %v", err)
	}
	if link.LinkToken != core.SimulatedLinkToken {
		t.Fatalf("expected simulated link token, got %q", link.LinkToken)
	}

	w = doJSON(t, handler, http.MethodPost, BasePath+"/exchange", `{"public_token":"`+core.SimulatedPublicCredential+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from exchange, got %d: %s", w.Code, w.Body.String())
	}
	var exchange exchangeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &exchange); err != nil {
		t.Fatalf("decode exchange: %v", err)
	}
	if exchange.AccessToken != core.SimulatedAccessCredential || exchange.ItemID != core.SimulatedItemID {
		t.Fatalf("unexpected exchange response %#v", exchange)
	}

	w = doJSON(t, handler, http.MethodPost, BasePath+"/snapshot", `{"access_token":"`+exchange.AccessToken+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from snapshot, got %d: %s", w.Code, w.Body.String())
	}
	var snapshot core.PayrollSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	want := core.SimulatedPayrollSnapshot()
	if snapshot.Employer.Name != want.Employer.Name || snapshot.Income.AnnualizedPay != want.Income.AnnualizedPay {
		t.Fatalf("expected simulated snapshot, got %#v", snapshot)
	}
}

func TestEmptyCredentialsAreInvalidInput(t *testing.T) {
	handler := newSimulatedServer(t).Handler()
	cases := map[string]string{
		BasePath + "/exchange": `{"public_token":"  "}`,
		BasePath + "/snapshot": `{"access_token":""}`,
	}
	for path, body := range cases {
		w := doJSON(t, handler, http.MethodPost, path, body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
		if got := decodeError(t, w); got.Code != core.ErrorInvalidInput {
			t.Fatalf("%s: expected %s, got %q", path, core.ErrorInvalidInput, got.Code)
		}
	}

	w := doJSON(t, handler, http.MethodPost, BasePath+"/exchange", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", w.Code)
	}
}

func TestErrorEnvelopeCarriesTaxonomy(t *testing.T) {
	service := &stubService{
		mode: core.CredentialModeLive,
		linkFn: func(context.Context, core.UserIdentity) (core.LinkSession, error) {
			return core.LinkSession{}, core.ProviderRejectedError("create_link_session", core.ProviderErrorDetail{
				StatusCode:     400,
				ErrorType:      "INVALID_REQUEST",
				ErrorCode:      "MISSING_FIELDS",
				ErrorMessage:   "the following required fields are missing: client_name",
				DisplayMessage: "Please try again",
				RequestID:      "req_rejected",
			})
		},
		exchangeFn: func(context.Context, string) (core.ExchangeResult, error) {
			return core.ExchangeResult{}, core.AlreadyExchangedError(nil)
		},
		snapshotFn: func(context.Context, string) (core.PayrollSnapshot, error) {
			return core.PayrollSnapshot{}, core.InternalError(nil, "database password leaked here")
		},
	}
	server, err := NewServer(service)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	handler := server.Handler()

	w := doJSON(t, handler, http.MethodPost, BasePath+"/link-token", `{"user_id":"u1"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for provider rejection, got %d", w.Code)
	}
	rejected := decodeError(t, w)
	if rejected.Code != core.ErrorProviderRejected || rejected.ProviderCode != "MISSING_FIELDS" || rejected.RequestID != "req_rejected" {
		t.Fatalf("unexpected rejection body %#v", rejected)
	}
	if rejected.DisplayMessage != "Please try again" {
		t.Fatalf("expected display message, got %q", rejected.DisplayMessage)
	}

	w = doJSON(t, handler, http.MethodPost, BasePath+"/exchange", `{"public_token":"public-1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for replayed exchange, got %d", w.Code)
	}
	if got := decodeError(t, w); got.Code != core.ErrorAlreadyExchanged {
		t.Fatalf("expected %s, got %q", core.ErrorAlreadyExchanged, got.Code)
	}

	w = doJSON(t, handler, http.MethodPost, BasePath+"/snapshot", `{"access_token":"access-1"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for internal error, got %d", w.Code)
	}
	internal := decodeError(t, w)
	if internal.Code != core.ErrorInternal || internal.Message != "internal error" {
		t.Fatalf("expected internal details to be hidden, got %#v", internal)
	}
}

func TestWebhookRouteAcknowledges(t *testing.T) {
	handler := newSimulatedServer(t).Handler()

	w := doJSON(t, handler, http.MethodPost, BasePath+"/webhook", `{"webhook_type":"SOMETHING_NEW","webhook_code":"UNKNOWN"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown webhook, got %d", w.Code)
	}
	var ack core.Acknowledgment
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Received {
		t.Fatalf("expected received acknowledgment")
	}

	w = doJSON(t, handler, http.MethodPost, BasePath+"/webhook", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed webhook, got %d", w.Code)
	}
}
