package webhooks

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-payroll-link/core"
)

// ParseEvent decodes a raw webhook body. Unknown fields are kept in Payload.
func ParseEvent(body []byte, receivedAt time.Time) (core.WebhookEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return core.WebhookEvent{}, core.MalformedWebhookError("webhooks: body is empty", nil)
	}
	payload := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return core.WebhookEvent{}, core.MalformedWebhookError(
			"webhooks: body is not a json object",
			map[string]any{"decode_error": err.Error()},
		)
	}
	return NewEvent(payload, receivedAt)
}

// NewEvent builds an event from an already decoded payload.
func NewEvent(payload map[string]any, receivedAt time.Time) (core.WebhookEvent, error) {
	event := core.WebhookEvent{
		WebhookType: strings.ToUpper(payloadString(payload, "webhook_type")),
		WebhookCode: strings.ToUpper(payloadString(payload, "webhook_code")),
		ItemID:      payloadString(payload, "item_id"),
		Payload:     payload,
		ReceivedAt:  receivedAt.UTC(),
	}
	if err := Validate(event); err != nil {
		return core.WebhookEvent{}, err
	}
	return event, nil
}

// Validate rejects events that carry neither a type nor a code.
func Validate(event core.WebhookEvent) error {
	if strings.TrimSpace(event.WebhookType) == "" && strings.TrimSpace(event.WebhookCode) == "" {
		return core.MalformedWebhookError(
			"webhooks: webhook_type and webhook_code are both missing",
			map[string]any{"operation": core.OperationHandleWebhook},
		)
	}
	return nil
}

func payloadString(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	typed, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(typed)
}
