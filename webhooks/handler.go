package webhooks

import (
	"context"
	"sort"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payroll-link/core"
)

// FollowUp is background work requested by a recognized webhook event.
type FollowUp struct {
	JobID          string
	Route          string
	WebhookType    string
	WebhookCode    string
	ItemID         string
	IdempotencyKey string
	Payload        map[string]any
	ReceivedAt     time.Time
}

type FollowUpEnqueuer interface {
	Enqueue(ctx context.Context, followUp FollowUp) error
}

type Handler struct {
	logger   core.Logger
	metrics  core.MetricsRecorder
	enqueuer FollowUpEnqueuer
	burst    BurstController
	routes   map[string]Route
}

type HandlerOption func(*Handler)

func WithLogger(logger core.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) HandlerOption {
	return func(h *Handler) {
		if recorder != nil {
			h.metrics = recorder
		}
	}
}

func WithEnqueuer(enqueuer FollowUpEnqueuer) HandlerOption {
	return func(h *Handler) {
		h.enqueuer = enqueuer
	}
}

func WithBurstController(controller BurstController) HandlerOption {
	return func(h *Handler) {
		h.burst = controller
	}
}

// WithRoute adds or replaces the route for a type and code pair.
func WithRoute(webhookType string, webhookCode string, route Route) HandlerOption {
	return func(h *Handler) {
		h.routes[routeKey(webhookType, webhookCode)] = route
	}
}

func NewHandler(opts ...HandlerOption) *Handler {
	_, logger := glog.Resolve("payroll.webhooks", nil, nil)
	handler := &Handler{
		logger:  glog.Ensure(logger),
		metrics: core.NopMetricsRecorder{},
		routes:  DefaultRoutes(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// Handle acknowledges every well-formed event. Routing and follow-up failures
// are logged and never surface to the sender.
func (h *Handler) Handle(ctx context.Context, event core.WebhookEvent) (core.Acknowledgment, error) {
	startedAt := time.Now().UTC()
	if err := Validate(event); err != nil {
		h.observe(ctx, startedAt, "malformed", err)
		return core.Acknowledgment{}, err
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = startedAt
	}

	fields := map[string]any{
		"webhook_type": event.WebhookType,
		"webhook_code": event.WebhookCode,
		"item_id":      event.ItemID,
	}
	route, known := h.route(event)
	if !known {
		h.logger.Info("webhook event not recognized, acknowledged", flatten(fields)...)
		h.observe(ctx, startedAt, "unrecognized", nil)
		return core.Acknowledgment{Received: true}, nil
	}

	fields["route"] = route.Name
	if payloadHasError(event.Payload) {
		fields["provider_error"] = true
		h.logger.Warn("webhook event reports a provider error", flatten(fields)...)
	} else {
		h.logger.Info("webhook event received", flatten(fields)...)
	}
	if route.FollowUp {
		h.enqueueFollowUp(ctx, event, route, fields)
	}
	h.observe(ctx, startedAt, "routed", nil)
	return core.Acknowledgment{Received: true}, nil
}

func (h *Handler) route(event core.WebhookEvent) (Route, bool) {
	if h == nil || len(h.routes) == 0 {
		return Route{}, false
	}
	route, ok := h.routes[routeKey(event.WebhookType, event.WebhookCode)]
	return route, ok
}

func (h *Handler) enqueueFollowUp(ctx context.Context, event core.WebhookEvent, route Route, fields map[string]any) {
	if h.enqueuer == nil {
		return
	}
	if h.burst != nil {
		decision, err := h.burst.Allow(ctx, event)
		if err == nil && !decision.Allow {
			h.logger.Debug("webhook follow-up coalesced", flatten(mergeFields(fields, decision.Metadata))...)
			return
		}
	}
	followUp := FollowUp{
		JobID:          FollowUpJobID(event.WebhookType),
		Route:          route.Name,
		WebhookType:    event.WebhookType,
		WebhookCode:    event.WebhookCode,
		ItemID:         event.ItemID,
		IdempotencyKey: followUpKey(event),
		Payload:        copyPayload(event.Payload),
		ReceivedAt:     event.ReceivedAt,
	}
	if err := h.enqueuer.Enqueue(ctx, followUp); err != nil {
		failed := mergeFields(fields, map[string]any{"job_id": followUp.JobID, "error": err.Error()})
		h.logger.Error("webhook follow-up enqueue failed", flatten(failed)...)
	}
}

func (h *Handler) observe(ctx context.Context, startedAt time.Time, outcome string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	tags := map[string]string{"status": status, "outcome": outcome}
	h.metrics.IncCounter(ctx, "payroll.handle_webhook.total", 1, tags)
	h.metrics.ObserveHistogram(ctx, "payroll.handle_webhook.duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)
	if err != nil {
		h.logger.Warn("handle_webhook failed", "error_text_code", core.TextCode(err), "error", err.Error())
	}
}

func followUpKey(event core.WebhookEvent) string {
	parts := []string{strings.ToLower(event.WebhookType), strings.ToLower(event.WebhookCode), event.ItemID}
	if !event.ReceivedAt.IsZero() {
		parts = append(parts, event.ReceivedAt.UTC().Format(time.RFC3339))
	}
	return strings.Join(parts, ":")
}

func payloadHasError(payload map[string]any) bool {
	value, ok := payload["error"]
	return ok && value != nil
}

func copyPayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func mergeFields(base map[string]any, extra map[string]any) map[string]any {
	out := copyPayload(base)
	for key, value := range extra {
		out[key] = value
	}
	return out
}

func flatten(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
