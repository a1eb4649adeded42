package main

import (
	"context"
	"os"
	"strings"

	payrolllink "github.com/goliatone/go-payroll-link"
	"github.com/goliatone/go-payroll-link/core"
)

type envLookup func(key string) (string, bool)

// envBindings maps environment variables to raw config paths.
var envBindings = []struct {
	env  string
	path []string
	list bool
}{
	{env: "PLAID_CLIENT_ID", path: []string{"provider", "client_id"}},
	{env: "PLAID_SECRET", path: []string{"provider", "secret"}},
	{env: "PLAID_ENV", path: []string{"provider", "environment"}},
	{env: "PLAID_BASE_URL", path: []string{"provider", "base_url"}},
	{env: "PAYROLL_WEBHOOK_URL", path: []string{"provider", "webhook_url"}},
	{env: "PAYROLL_REPORT_URL", path: []string{"provider", "report_url"}},
	{env: "PAYROLL_CLIENT_NAME", path: []string{"link", "client_name"}},
	{env: "PAYROLL_PRODUCTS", path: []string{"link", "products"}, list: true},
	{env: "PAYROLL_COUNTRY_CODES", path: []string{"link", "country_codes"}, list: true},
	{env: "PAYROLL_LANGUAGE", path: []string{"link", "language"}},
}

// rawConfigFromEnv keeps unset and blank variables out of the map so the
// defaults stay in effect.
func rawConfigFromEnv(lookup envLookup) map[string]any {
	raw := map[string]any{}
	for _, binding := range envBindings {
		value, ok := lookup(binding.env)
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		section, _ := raw[binding.path[0]].(map[string]any)
		if section == nil {
			section = map[string]any{}
			raw[binding.path[0]] = section
		}
		if binding.list {
			section[binding.path[1]] = splitList(value)
			continue
		}
		section[binding.path[1]] = value
	}
	return raw
}

func loadConfig(ctx context.Context, lookup envLookup) (core.Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	loader := core.StaticRawConfigLoader{Values: rawConfigFromEnv(lookup)}
	return payrolllink.ResolveConfig(ctx, loader, core.Config{})
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
