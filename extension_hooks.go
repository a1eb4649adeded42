package payrolllink

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-payroll-link/core"
	"github.com/goliatone/go-payroll-link/webhooks"
)

// WebhookRouteSpec attaches a route to one webhook type and code pair.
type WebhookRouteSpec struct {
	WebhookType string
	WebhookCode string
	Route       webhooks.Route
}

type WebhookRoutePack struct {
	Name   string
	Routes []WebhookRouteSpec
}

type CommandQueryBundleFactory func(service core.PayrollService) (any, error)

// ExtensionHooks collects webhook routes and command/query bundles contributed
// by host applications. Packs apply in name order, so a later pack overrides an
// earlier one on the same type and code.
type ExtensionHooks struct {
	mu sync.RWMutex

	routePacks map[string]WebhookRoutePack
	bundles    map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		routePacks: map[string]WebhookRoutePack{},
		bundles:    map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterWebhookRoutePack(pack WebhookRoutePack) error {
	if h == nil {
		return fmt.Errorf("payrolllink: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("payrolllink: webhook route pack name is required")
	}
	if len(pack.Routes) == 0 {
		return fmt.Errorf("payrolllink: webhook route pack %q has no routes", name)
	}

	normalized := WebhookRoutePack{Name: name, Routes: make([]WebhookRouteSpec, 0, len(pack.Routes))}
	for _, entry := range pack.Routes {
		entry.WebhookType = strings.ToUpper(strings.TrimSpace(entry.WebhookType))
		entry.WebhookCode = strings.ToUpper(strings.TrimSpace(entry.WebhookCode))
		if entry.WebhookType == "" && entry.WebhookCode == "" {
			return fmt.Errorf("payrolllink: webhook route pack %q has a route without type or code", name)
		}
		if strings.TrimSpace(entry.Route.Name) == "" {
			return fmt.Errorf("payrolllink: webhook route pack %q route %s:%s has no name", name, entry.WebhookType, entry.WebhookCode)
		}
		normalized.Routes = append(normalized.Routes, entry)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.routePacks[name]; exists {
		return fmt.Errorf("payrolllink: webhook route pack %q already registered", name)
	}
	h.routePacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("payrolllink: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("payrolllink: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("payrolllink: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("payrolllink: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// WebhookHandlerOptions returns one WithRoute option per registered route.
func (h *ExtensionHooks) WebhookHandlerOptions() []webhooks.HandlerOption {
	packs := h.WebhookRoutePacks()
	out := []webhooks.HandlerOption{}
	for _, pack := range packs {
		for _, entry := range pack.Routes {
			out = append(out, webhooks.WithRoute(entry.WebhookType, entry.WebhookCode, entry.Route))
		}
	}
	return out
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service core.PayrollService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("payrolllink: payroll service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, fmt.Errorf("payrolllink: build bundle %q: %w", name, err)
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) WebhookRoutePacks() []WebhookRoutePack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.routePacks))
	for name := range h.routePacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]WebhookRoutePack, 0, len(names))
	for _, name := range names {
		pack := h.routePacks[name]
		out = append(out, WebhookRoutePack{
			Name:   pack.Name,
			Routes: append([]WebhookRouteSpec(nil), pack.Routes...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
