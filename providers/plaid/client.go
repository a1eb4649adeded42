package plaid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-payroll-link/core"
)

const ProviderID = "plaid"

const (
	PathLinkTokenCreate     = "/link/token/create"
	PathPublicTokenExchange = "/item/public_token/exchange"
	PathPayrollIncomeGet    = "/credit/payroll_income/get"
)

// ReportMethodPayrollIncome is the method name posted to an intermediary
// report endpoint.
const ReportMethodPayrollIncome = "payroll_income"

type Config struct {
	ClientID  string
	Secret    string
	BaseURL   string
	ReportURL string
	Timeout   time.Duration
}

func ConfigFromCore(cfg core.Config) Config {
	return Config{
		ClientID:  strings.TrimSpace(cfg.Provider.ClientID),
		Secret:    strings.TrimSpace(cfg.Provider.Secret),
		BaseURL:   cfg.ProviderBaseURL(),
		ReportURL: strings.TrimSpace(cfg.Provider.ReportURL),
		Timeout:   cfg.Transport.Timeout,
	}
}

type Client struct {
	clientID  string
	secret    string
	baseURL   string
	reportURL string
	timeout   time.Duration
	transport core.TransportAdapter
	now       func() time.Time
}

func New(cfg Config, transport core.TransportAdapter) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("providers/plaid: transport adapter is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("providers/plaid: client id is required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("providers/plaid: secret is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("providers/plaid: base url is required")
	}
	return &Client{
		clientID:  strings.TrimSpace(cfg.ClientID),
		secret:    strings.TrimSpace(cfg.Secret),
		baseURL:   baseURL,
		reportURL: strings.TrimSpace(cfg.ReportURL),
		timeout:   cfg.Timeout,
		transport: transport,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (c *Client) CreateLinkToken(ctx context.Context, req core.LinkTokenRequest) (core.LinkTokenResponse, error) {
	body := linkTokenCreateRequest{
		credentials:  c.credentials(),
		ClientName:   strings.TrimSpace(req.ClientName),
		User:         linkUser{ClientUserID: strings.TrimSpace(req.UserReference)},
		Products:     req.Products,
		CountryCodes: req.CountryCodes,
		Language:     strings.TrimSpace(req.Language),
		Webhook:      strings.TrimSpace(req.WebhookURL),
	}
	var out linkTokenCreateResponse
	if err := c.post(ctx, core.OperationCreateLinkSession, c.baseURL+PathLinkTokenCreate, body, false, &out); err != nil {
		return core.LinkTokenResponse{}, err
	}
	response := core.LinkTokenResponse{
		LinkToken: strings.TrimSpace(out.LinkToken),
		RequestID: strings.TrimSpace(out.RequestID),
	}
	if expiration, ok := parseTimestamp(out.Expiration); ok {
		response.Expiration = &expiration
	}
	return response, nil
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicCredential string) (core.PublicCredentialExchange, error) {
	body := publicTokenExchangeRequest{
		credentials: c.credentials(),
		PublicToken: strings.TrimSpace(publicCredential),
	}
	var out publicTokenExchangeResponse
	if err := c.post(ctx, core.OperationExchangePublicCredential, c.baseURL+PathPublicTokenExchange, body, false, &out); err != nil {
		return core.PublicCredentialExchange{}, err
	}
	return core.PublicCredentialExchange{
		AccessCredential: strings.TrimSpace(out.AccessToken),
		ItemID:           strings.TrimSpace(out.ItemID),
		RequestID:        strings.TrimSpace(out.RequestID),
	}, nil
}

// GetPayrollSnapshot is idempotent and flags its request for transport retry.
func (c *Client) GetPayrollSnapshot(ctx context.Context, accessCredential string) (core.PayrollSnapshot, error) {
	if c.reportURL != "" {
		return c.getReportSnapshot(ctx, accessCredential)
	}
	body := payrollIncomeGetRequest{
		credentials: c.credentials(),
		AccessToken: strings.TrimSpace(accessCredential),
	}
	var out payrollIncomeGetResponse
	if err := c.post(ctx, core.OperationFetchPayrollSnapshot, c.baseURL+PathPayrollIncomeGet, body, true, &out); err != nil {
		return core.PayrollSnapshot{}, err
	}
	snapshot, err := mapPayrollIncome(out, c.now())
	if err != nil {
		return core.PayrollSnapshot{}, err
	}
	snapshot.Source = core.SnapshotSourceProvider
	return snapshot, nil
}

func (c *Client) getReportSnapshot(ctx context.Context, accessCredential string) (core.PayrollSnapshot, error) {
	body := reportRequest{
		Method:      ReportMethodPayrollIncome,
		AccessToken: strings.TrimSpace(accessCredential),
	}
	var out reportResponse
	if err := c.post(ctx, core.OperationFetchPayrollSnapshot, c.reportURL, body, true, &out); err != nil {
		return core.PayrollSnapshot{}, err
	}
	if strings.TrimSpace(out.Error) != "" {
		return core.PayrollSnapshot{}, core.ProviderRejectedError(
			core.OperationFetchPayrollSnapshot,
			core.ProviderErrorDetail{ErrorMessage: out.Error, RequestID: out.RequestID},
		)
	}
	snapshot := out.snapshot()
	snapshot.Source = core.SnapshotSourceReport
	return snapshot, nil
}

func (c *Client) credentials() credentials {
	return credentials{ClientID: c.clientID, Secret: c.secret}
}

func (c *Client) post(ctx context.Context, operation string, url string, payload any, idempotent bool, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return core.InternalError(err, "providers/plaid: encode request")
	}
	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method:     http.MethodPost,
		URL:        url,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       encoded,
		Timeout:    c.timeout,
		Idempotent: idempotent,
		Metadata:   map[string]any{"provider_id": ProviderID, "operation": operation},
	})
	if err != nil {
		if core.TextCode(err) == "" {
			return core.ProviderUnavailableError(err, "providers/plaid: "+operation+" request failed", nil)
		}
		return err
	}
	if err := classifyResponse(operation, res); err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return core.ProviderUnavailableError(err, "providers/plaid: "+operation+" returned a malformed response", map[string]any{
			"operation":            operation,
			"provider_status_code": res.StatusCode,
		})
	}
	return nil
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

var _ core.ProviderClient = (*Client)(nil)
