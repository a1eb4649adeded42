package payrolllink

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-payroll-link/core"
	"github.com/goliatone/go-payroll-link/webhooks"
)

type hookEnqueuer struct {
	followUps []webhooks.FollowUp
}

func (e *hookEnqueuer) Enqueue(_ context.Context, followUp webhooks.FollowUp) error {
	e.followUps = append(e.followUps, followUp)
	return nil
}

func TestExtensionHooks_WebhookRoutePacksExtendHandler(t *testing.T) {
	hooks := NewExtensionHooks()
	pack := WebhookRoutePack{
		Name: "benefits",
		Routes: []WebhookRouteSpec{
			{WebhookType: "benefits", WebhookCode: "enrollment_changed", Route: webhooks.Route{Name: "benefits.enrollment_changed", FollowUp: true}},
		},
	}
	if err := hooks.RegisterWebhookRoutePack(pack); err != nil {
		t.Fatalf("register route pack: %v", err)
	}
	if err := hooks.RegisterWebhookRoutePack(pack); err == nil {
		t.Fatalf("expected duplicate route pack registration error")
	}

	enqueuer := &hookEnqueuer{}
	opts := append([]webhooks.HandlerOption{webhooks.WithEnqueuer(enqueuer)}, hooks.WebhookHandlerOptions()...)
	handler := webhooks.NewHandler(opts...)

	ack, err := handler.Handle(context.Background(), core.WebhookEvent{
		WebhookType: "BENEFITS",
		WebhookCode: "ENROLLMENT_CHANGED",
		ItemID:      "item_9",
	})
	if err != nil || !ack.Received {
		t.Fatalf("expected acknowledgment, got %#v (%v)", ack, err)
	}
	if len(enqueuer.followUps) != 1 {
		t.Fatalf("expected one follow-up from the extension route, got %d", len(enqueuer.followUps))
	}
	if enqueuer.followUps[0].Route != "benefits.enrollment_changed" || enqueuer.followUps[0].JobID != "payroll.webhook.benefits" {
		t.Fatalf("unexpected follow-up %#v", enqueuer.followUps[0])
	}
}

func TestExtensionHooks_RejectsInvalidRoutePacks(t *testing.T) {
	hooks := NewExtensionHooks()
	cases := []WebhookRoutePack{
		{Name: " ", Routes: []WebhookRouteSpec{{WebhookType: "ITEM", Route: webhooks.Route{Name: "x"}}}},
		{Name: "empty"},
		{Name: "no_key", Routes: []WebhookRouteSpec{{Route: webhooks.Route{Name: "x"}}}},
		{Name: "no_name", Routes: []WebhookRouteSpec{{WebhookType: "ITEM", WebhookCode: "ERROR"}}},
	}
	for _, pack := range cases {
		if err := hooks.RegisterWebhookRoutePack(pack); err == nil {
			t.Fatalf("expected pack %q to be rejected", pack.Name)
		}
	}
	var nilHooks *ExtensionHooks
	if err := nilHooks.RegisterWebhookRoutePack(WebhookRoutePack{}); err == nil {
		t.Fatalf("expected nil hooks error")
	}
	if len(nilHooks.WebhookHandlerOptions()) != 0 {
		t.Fatalf("expected no options from nil hooks")
	}
}

func TestExtensionHooks_CommandQueryBundles(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterCommandQueryBundle("b_bundle", func(service core.PayrollService) (any, error) {
		return service.Mode(), nil
	}); err != nil {
		t.Fatalf("register bundle b: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("a_bundle", func(core.PayrollService) (any, error) {
		return "ok", nil
	}); err != nil {
		t.Fatalf("register bundle a: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("a_bundle", func(core.PayrollService) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate bundle registration error")
	}

	names := hooks.BundleNames()
	if len(names) != 2 || names[0] != "a_bundle" || names[1] != "b_bundle" {
		t.Fatalf("expected sorted bundle names, got %v", names)
	}

	service, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	bundles, err := hooks.BuildCommandQueryBundles(service)
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	if bundles["b_bundle"] != core.CredentialModeSimulated || bundles["a_bundle"] != "ok" {
		t.Fatalf("unexpected bundles %#v", bundles)
	}

	failing := NewExtensionHooks()
	boom := errors.New("boom")
	if err := failing.RegisterCommandQueryBundle("failing", func(core.PayrollService) (any, error) { return nil, boom }); err != nil {
		t.Fatalf("register failing bundle: %v", err)
	}
	if _, err := failing.BuildCommandQueryBundles(service); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped bundle error, got %v", err)
	}
}
