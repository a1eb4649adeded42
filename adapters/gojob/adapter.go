package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-payroll-link/core"
	"github.com/goliatone/go-payroll-link/webhooks"
)

const (
	JobIDWebhookItem   = "payroll.webhook.item"
	JobIDWebhookIncome = "payroll.webhook.income"
	JobIDWebhookLink   = "payroll.webhook.link"

	// DedupPolicyDrop discards a follow-up whose idempotency key is already queued.
	DedupPolicyDrop = "drop"

	paramWebhookType = "webhook_type"
	paramWebhookCode = "webhook_code"
	paramItemID      = "item_id"
	paramPayload     = "payload"
	paramReceivedAt  = "received_at"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		BaseDelay:       2 * time.Second,
		MaxDelay:        time.Minute,
		DeadLetterOnMax: true,
	}
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// DelayFor returns the linear backoff for attempt, bounded by MaxDelay.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(attempt) * p.BaseDelay
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// ToExecutionMessage maps a webhook follow-up to a go-job message. The route
// name travels as the script path so workers can dispatch on it.
func ToExecutionMessage(followUp webhooks.FollowUp) *job.ExecutionMessage {
	params := map[string]any{
		paramWebhookType: strings.TrimSpace(followUp.WebhookType),
		paramWebhookCode: strings.TrimSpace(followUp.WebhookCode),
		paramPayload:     copyAnyMap(followUp.Payload),
	}
	if itemID := strings.TrimSpace(followUp.ItemID); itemID != "" {
		params[paramItemID] = itemID
	}
	if !followUp.ReceivedAt.IsZero() {
		params[paramReceivedAt] = followUp.ReceivedAt.UTC().Format(time.RFC3339Nano)
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(followUp.JobID),
		ScriptPath:     strings.TrimSpace(followUp.Route),
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(followUp.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(DedupPolicyDrop),
	}
}

// FromExecutionMessage maps a go-job message back into a follow-up.
func FromExecutionMessage(msg *job.ExecutionMessage) (webhooks.FollowUp, error) {
	if msg == nil {
		return webhooks.FollowUp{}, fmt.Errorf("gojob: execution message is required")
	}
	followUp := webhooks.FollowUp{
		JobID:          strings.TrimSpace(msg.JobID),
		Route:          strings.TrimSpace(msg.ScriptPath),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		WebhookType:    stringParam(msg.Parameters, paramWebhookType),
		WebhookCode:    stringParam(msg.Parameters, paramWebhookCode),
		ItemID:         stringParam(msg.Parameters, paramItemID),
	}
	if payload, ok := msg.Parameters[paramPayload].(map[string]any); ok {
		followUp.Payload = copyAnyMap(payload)
	} else {
		followUp.Payload = map[string]any{}
	}
	if raw := stringParam(msg.Parameters, paramReceivedAt); raw != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			followUp.ReceivedAt = parsed
		}
	}
	if followUp.JobID == "" {
		return webhooks.FollowUp{}, fmt.Errorf("gojob: execution message job id is required")
	}
	return followUp, nil
}

// EnqueuerAdapter publishes webhook follow-ups onto a go-job queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, followUp webhooks.FollowUp) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if strings.TrimSpace(followUp.JobID) == "" {
		return fmt.Errorf("gojob: follow-up job id is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(followUp))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) FollowUp() (webhooks.FollowUp, error) {
	if d == nil || d.delivery == nil {
		return webhooks.FollowUp{}, fmt.Errorf("gojob: delivery is not configured")
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts queue.NackOptions, attempt int) (queue.NackOptions, error) {
	if d == nil || d.delivery == nil {
		return queue.NackOptions{}, fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return normalized, d.delivery.Nack(ctx, normalized)
}

// FollowUpProcessor performs the background work for one follow-up.
type FollowUpProcessor interface {
	ProcessFollowUp(ctx context.Context, followUp webhooks.FollowUp) error
}

type FollowUpProcessorFunc func(ctx context.Context, followUp webhooks.FollowUp) error

func (f FollowUpProcessorFunc) ProcessFollowUp(ctx context.Context, followUp webhooks.FollowUp) error {
	return f(ctx, followUp)
}

// Consumer pulls follow-ups from a go-job dequeuer, runs the processor and
// acks or nacks under the retry policy. Attempts are tracked per idempotency
// key for the lifetime of the consumer.
type Consumer struct {
	dequeuer  queue.Dequeuer
	processor FollowUpProcessor
	policy    RetryPolicy
	hook      worker.Hook
	now       func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

type ConsumerOption func(*Consumer)

func WithRetryPolicy(policy RetryPolicy) ConsumerOption {
	return func(c *Consumer) {
		c.policy = policy
	}
}

func WithWorkerHook(hook worker.Hook) ConsumerOption {
	return func(c *Consumer) {
		if hook != nil {
			c.hook = hook
		}
	}
}

func NewConsumer(dequeuer queue.Dequeuer, processor FollowUpProcessor, opts ...ConsumerOption) *Consumer {
	consumer := &Consumer{
		dequeuer:  dequeuer,
		processor: processor,
		policy:    DefaultRetryPolicy(),
		hook:      NewLoggingHook(nil),
		now:       func() time.Time { return time.Now().UTC() },
		attempts:  map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(consumer)
		}
	}
	return consumer
}

// ProcessNext handles exactly one delivery. Processor failures are reported to
// the queue through nack and are not returned.
func (c *Consumer) ProcessNext(ctx context.Context) error {
	if c == nil || c.dequeuer == nil || c.processor == nil {
		return fmt.Errorf("gojob: consumer is not configured")
	}
	raw, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	delivery := NewDeliveryAdapter(raw, c.policy)
	followUp, err := delivery.FollowUp()
	if err != nil {
		_, nackErr := delivery.NackForAttempt(ctx, queue.NackOptions{DeadLetter: true, Reason: err.Error()}, 0)
		return nackErr
	}

	key := attemptKey(followUp)
	attempt := c.nextAttempt(key)
	event := worker.Event{
		Message:   raw.Message(),
		Delivery:  raw,
		Attempt:   attempt,
		StartedAt: c.now(),
	}
	c.hook.OnStart(ctx, event)

	processErr := c.processor.ProcessFollowUp(ctx, followUp)
	event.Duration = c.now().Sub(event.StartedAt)
	if processErr == nil {
		c.forget(key)
		c.hook.OnSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = processErr
	opts := queue.NackOptions{
		Delay:   c.policy.DelayFor(attempt),
		Requeue: core.Retryable(processErr),
		Reason:  processErr.Error(),
	}
	if !opts.Requeue {
		opts.DeadLetter = true
	}
	normalized, err := delivery.NackForAttempt(ctx, opts, attempt)
	if normalized.Requeue {
		event.Delay = normalized.Delay
		c.hook.OnRetry(ctx, event)
	} else {
		c.forget(key)
		c.hook.OnFailure(ctx, event)
	}
	return err
}

// Run processes deliveries until ctx is done or the dequeuer fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := c.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) nextAttempt(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[key]++
	return c.attempts[key]
}

func (c *Consumer) forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, key)
}

// LoggingHook reports go-job worker events through glog.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	_, resolved := glog.Resolve("payroll.jobs", nil, logger)
	return &LoggingHook{logger: glog.Ensure(resolved)}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx, "debug", "follow-up job started", event)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx, "info", "follow-up job succeeded", event)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.log(ctx, "error", "follow-up job failed", event)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx, "warn", "follow-up job scheduled for retry", event)
}

func (h *LoggingHook) log(ctx context.Context, level string, msg string, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	logger := h.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := workerEventArgs(event)
	switch level {
	case "debug":
		logger.Debug(msg, args...)
	case "warn":
		logger.Warn(msg, args...)
	case "error":
		logger.Error(msg, args...)
	default:
		logger.Info(msg, args...)
	}
}

func workerEventArgs(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	args := []any{"attempt", event.Attempt}
	if message != nil {
		args = append(args, "job_id", message.JobID, "route", message.ScriptPath, "idempotency_key", message.IdempotencyKey)
	}
	if event.Delay > 0 {
		args = append(args, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Duration > 0 {
		args = append(args, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error(), "error_text_code", core.TextCode(event.Err))
	}
	return args
}

func attemptKey(followUp webhooks.FollowUp) string {
	if key := strings.TrimSpace(followUp.IdempotencyKey); key != "" {
		return key
	}
	return followUp.JobID + ":" + followUp.WebhookCode + ":" + followUp.ItemID
}

func stringParam(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ webhooks.FollowUpEnqueuer = (*EnqueuerAdapter)(nil)
	_ worker.Hook               = (*LoggingHook)(nil)
	_ FollowUpProcessor         = FollowUpProcessorFunc(nil)
)
