package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	OperationCreateLinkSession        = "create_link_session"
	OperationExchangePublicCredential = "exchange_public_credential"
	OperationFetchPayrollSnapshot     = "fetch_payroll_snapshot"
	OperationHandleWebhook            = "handle_webhook"
)

type LinkTokenRequest struct {
	UserReference string
	ClientName    string
	Products      []string
	CountryCodes  []string
	Language      string
	WebhookURL    string
	EmployerID    string
}

type LinkTokenResponse struct {
	LinkToken  string
	Expiration *time.Time
	RequestID  string
}

type PublicCredentialExchange struct {
	AccessCredential string
	ItemID           string
	RequestID        string
}

// ProviderClient is the live provider boundary. Implementations must map
// transport failures to ProviderUnavailable and well-formed provider errors to
// the rejection code of the originating operation.
type ProviderClient interface {
	CreateLinkToken(ctx context.Context, req LinkTokenRequest) (LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicCredential string) (PublicCredentialExchange, error)
	GetPayrollSnapshot(ctx context.Context, accessCredential string) (PayrollSnapshot, error)
}

type TransportRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
	// Idempotent marks the request as safe to repeat; only idempotent requests
	// are eligible for transport-level retry.
	Idempotent           bool
	MaxResponseBodyBytes int64
	Metadata             map[string]any
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type ExchangeStatus string

const (
	ExchangeStatusPending   ExchangeStatus = "pending"
	ExchangeStatusCompleted ExchangeStatus = "completed"
)

type ExchangeRecord struct {
	Key         string
	Status      ExchangeStatus
	ItemID      string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// ExchangeLedger tracks which public credentials have been consumed. Keys are
// digests, never the raw credential.
type ExchangeLedger interface {
	// Reserve claims key for an exchange attempt. It returns false with the
	// existing record when the key is already pending or completed.
	Reserve(ctx context.Context, key string) (ExchangeRecord, bool, error)
	Complete(ctx context.Context, key string, itemID string) error
	Release(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (ExchangeRecord, error)
}

type UserReferenceGenerator func(identity UserIdentity) string

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// PayrollService is the public operation set consumed by the connection
// controller, the command handlers and the HTTP surface.
type PayrollService interface {
	Mode() CredentialMode
	CreateLinkSession(ctx context.Context, identity UserIdentity) (LinkSession, error)
	ExchangePublicCredential(ctx context.Context, publicCredential string) (ExchangeResult, error)
	FetchPayrollSnapshot(ctx context.Context, accessCredential string) (PayrollSnapshot, error)
}
