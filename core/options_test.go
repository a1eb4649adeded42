package core

import (
	"context"
	"testing"
	"time"
)

func TestCfgxConfigProvider_LoadsNestedValues(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticRawConfigLoader{Values: map[string]any{
		"provider": map[string]any{
			"client_id":   "client_live_123",
			"secret":      "secret_live_456",
			"environment": "development",
		},
	}})
	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.ClientID != "client_live_123" {
		t.Fatalf("expected loaded client id, got %q", cfg.Provider.ClientID)
	}
	if cfg.Mode() != CredentialModeLive {
		t.Fatalf("expected live mode, got %q", cfg.Mode())
	}
	if cfg.ProviderBaseURL() != "https://development.plaid.com" {
		t.Fatalf("expected development base url, got %q", cfg.ProviderBaseURL())
	}
	if cfg.Link.Language != "en" {
		t.Fatalf("expected defaults to survive, got language %q", cfg.Link.Language)
	}
}

func TestCfgxConfigProvider_RejectsInvalidEnvironment(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticRawConfigLoader{Values: map[string]any{
		"provider": map[string]any{"environment": "staging"},
	}})
	if _, err := provider.Load(context.Background(), DefaultConfig()); err == nil {
		t.Fatalf("expected validation error for unknown environment")
	}
}

func TestGoOptionsResolver_RuntimeOverridesLoaded(t *testing.T) {
	defaults := DefaultConfig()
	loaded := DefaultConfig()
	loaded.Provider.WebhookURL = "https://loaded.example/hook"
	loaded.Transport.RetryAttempts = 5

	runtime := Config{
		Provider:  ProviderConfig{WebhookURL: "https://runtime.example/hook"},
		Transport: TransportConfig{Timeout: 10 * time.Second},
	}
	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Provider.WebhookURL != "https://runtime.example/hook" {
		t.Fatalf("expected runtime webhook url, got %q", resolved.Provider.WebhookURL)
	}
	if resolved.Transport.RetryAttempts != 5 {
		t.Fatalf("expected loaded retry attempts, got %d", resolved.Transport.RetryAttempts)
	}
	if resolved.Transport.Timeout != 10*time.Second {
		t.Fatalf("expected runtime timeout, got %s", resolved.Transport.Timeout)
	}
	if resolved.ServiceName != "payroll" {
		t.Fatalf("expected default service name, got %q", resolved.ServiceName)
	}
}

func TestNewService_UsesConfigProvider(t *testing.T) {
	svc, err := NewService(Config{},
		WithConfigProvider(NewCfgxConfigProvider(StaticRawConfigLoader{Values: map[string]any{
			"provider": map[string]any{"client_id": "client_live_123", "secret": "secret_live_456"},
		}})),
		WithProviderClient(newStubProviderClient()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Mode() != CredentialModeLive {
		t.Fatalf("expected live mode from loaded config, got %q", svc.Mode())
	}
}

func TestTransportConfig_MaxCallDuration(t *testing.T) {
	cases := []struct {
		name string
		cfg  TransportConfig
		want time.Duration
	}{
		{"retried", TransportConfig{Timeout: 30 * time.Second, RetryAttempts: 3, RetryDelay: 500 * time.Millisecond}, 91 * time.Second},
		{"single attempt", TransportConfig{Timeout: 10 * time.Second}, 10 * time.Second},
		{"fallback timeout", TransportConfig{RetryAttempts: 2, RetryDelay: time.Second}, 41 * time.Second},
	}
	for _, tc := range cases {
		if got := tc.cfg.MaxCallDuration(20 * time.Second); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
