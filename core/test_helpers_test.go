package core

import (
	"context"
	"sync"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) hasCounter(name string, status string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, counter := range m.counters {
		if counter.name == name && counter.tags["status"] == status {
			return true
		}
	}
	return false
}

func (m *captureMetricsRecorder) hasHistogram(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, histogram := range m.histograms {
		if histogram.name == name {
			return true
		}
	}
	return false
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func (l *captureLogger) find(level string, msg string) (capturedLog, bool) {
	for _, record := range l.snapshot() {
		if record.level == level && record.msg == msg {
			return record, true
		}
	}
	return capturedLog{}, false
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

// stubProviderClient counts provider calls so tests can assert that fail-fast
// and simulated paths perform no I/O.
type stubProviderClient struct {
	mu            sync.Mutex
	linkCalls     []LinkTokenRequest
	exchangeCalls []string
	snapshotCalls []string

	linkErr     error
	exchangeErr error
	snapshotErr error
	exchange    PublicCredentialExchange
	snapshot    PayrollSnapshot
}

func newStubProviderClient() *stubProviderClient {
	return &stubProviderClient{
		exchange: PublicCredentialExchange{
			AccessCredential: "access-production-123",
			ItemID:           "item_123",
			RequestID:        "req_exchange",
		},
		snapshot: PayrollSnapshot{
			Employer: Employer{Name: "Initech"},
			Employee: Employee{Name: "Peter Gibbons", MaskedTaxID: "***-**-1234"},
			Income:   Income{Rate: 2500, AnnualizedPay: 60000, PayFrequency: PayFrequencyBiweekly},
		},
	}
}

func (c *stubProviderClient) CreateLinkToken(_ context.Context, req LinkTokenRequest) (LinkTokenResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linkCalls = append(c.linkCalls, req)
	if c.linkErr != nil {
		return LinkTokenResponse{}, c.linkErr
	}
	expiration := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return LinkTokenResponse{LinkToken: "link-production-abc", Expiration: &expiration, RequestID: "req_link"}, nil
}

func (c *stubProviderClient) ExchangePublicToken(_ context.Context, publicCredential string) (PublicCredentialExchange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchangeCalls = append(c.exchangeCalls, publicCredential)
	if c.exchangeErr != nil {
		return PublicCredentialExchange{}, c.exchangeErr
	}
	return c.exchange, nil
}

func (c *stubProviderClient) GetPayrollSnapshot(_ context.Context, accessCredential string) (PayrollSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotCalls = append(c.snapshotCalls, accessCredential)
	if c.snapshotErr != nil {
		return PayrollSnapshot{}, c.snapshotErr
	}
	return c.snapshot, nil
}

func (c *stubProviderClient) calls() (int, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.linkCalls), len(c.exchangeCalls), len(c.snapshotCalls)
}

func liveConfig() Config {
	cfg := DefaultConfig()
	cfg.Provider.ClientID = "client_live_123"
	cfg.Provider.Secret = "secret_live_456"
	cfg.Provider.WebhookURL = "https://portal.example/api/payroll/webhook"
	return cfg
}

func newLiveService(t *testing.T, client ProviderClient, opts ...Option) *Service {
	t.Helper()
	all := append([]Option{WithProviderClient(client), WithLogger(glog.Nop())}, opts...)
	svc, err := NewService(liveConfig(), all...)
	if err != nil {
		t.Fatalf("new live service: %v", err)
	}
	return svc
}
