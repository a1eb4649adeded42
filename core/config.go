package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	EnvironmentSandbox     = "sandbox"
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

var environmentBaseURLs = map[string]string{
	EnvironmentSandbox:     "https://sandbox.plaid.com",
	EnvironmentDevelopment: "https://development.plaid.com",
	EnvironmentProduction:  "https://production.plaid.com",
}

type ProviderConfig struct {
	ClientID    string `koanf:"client_id" mapstructure:"client_id"`
	Secret      string `koanf:"secret" mapstructure:"secret"`
	Environment string `koanf:"environment" mapstructure:"environment"`
	BaseURL     string `koanf:"base_url" mapstructure:"base_url"`
	WebhookURL  string `koanf:"webhook_url" mapstructure:"webhook_url"`
	ReportURL   string `koanf:"report_url" mapstructure:"report_url"`
}

type LinkConfig struct {
	ClientName   string   `koanf:"client_name" mapstructure:"client_name"`
	Products     []string `koanf:"products" mapstructure:"products"`
	CountryCodes []string `koanf:"country_codes" mapstructure:"country_codes"`
	Language     string   `koanf:"language" mapstructure:"language"`
}

type TransportConfig struct {
	Timeout       time.Duration `koanf:"timeout" mapstructure:"timeout"`
	RetryAttempts int           `koanf:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay" mapstructure:"retry_delay"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Provider    ProviderConfig  `koanf:"provider" mapstructure:"provider"`
	Link        LinkConfig      `koanf:"link" mapstructure:"link"`
	Transport   TransportConfig `koanf:"transport" mapstructure:"transport"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "payroll",
		Provider: ProviderConfig{
			ClientID:    PlaceholderClientID,
			Secret:      PlaceholderSecret,
			Environment: EnvironmentSandbox,
		},
		Link: LinkConfig{
			ClientName:   "Payroll Portal",
			Products:     []string{"income_verification"},
			CountryCodes: []string{"US"},
			Language:     "en",
		},
		Transport: TransportConfig{
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    500 * time.Millisecond,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	env := strings.ToLower(strings.TrimSpace(c.Provider.Environment))
	if env != "" {
		if _, ok := environmentBaseURLs[env]; !ok {
			return fmt.Errorf("core: provider environment %q is invalid", c.Provider.Environment)
		}
	}
	for field, raw := range map[string]string{
		"provider.base_url":    c.Provider.BaseURL,
		"provider.webhook_url": c.Provider.WebhookURL,
		"provider.report_url":  c.Provider.ReportURL,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: %s must be an absolute url", field)
		}
	}
	if c.Transport.Timeout < 0 {
		return fmt.Errorf("core: transport.timeout must not be negative")
	}
	if c.Transport.RetryAttempts < 0 {
		return fmt.Errorf("core: transport.retry_attempts must not be negative")
	}
	if c.Transport.RetryDelay < 0 {
		return fmt.Errorf("core: transport.retry_delay must not be negative")
	}
	return nil
}

// MaxCallDuration bounds one provider call including retries: every attempt
// may run to Timeout and attempts are separated by RetryDelay. A zero Timeout
// counts as fallback.
func (t TransportConfig) MaxCallDuration(fallback time.Duration) time.Duration {
	attempts := t.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = fallback
	}
	return time.Duration(attempts)*timeout + time.Duration(attempts-1)*t.RetryDelay
}

// Mode is the credential mode implied by the configured provider credentials.
func (c Config) Mode() CredentialMode {
	return DetectMode(c.Provider.ClientID, c.Provider.Secret)
}

// ProviderBaseURL resolves the explicit base url or the environment default.
func (c Config) ProviderBaseURL() string {
	if base := strings.TrimSpace(c.Provider.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	env := strings.ToLower(strings.TrimSpace(c.Provider.Environment))
	if base, ok := environmentBaseURLs[env]; ok {
		return base
	}
	return environmentBaseURLs[EnvironmentSandbox]
}
