package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// MemoryQueue is a process-local go-job queue for single node deployments.
// Messages with DedupPolicyDrop are dropped while an earlier message with the
// same idempotency key is still pending.
type MemoryQueue struct {
	logger job.Logger

	mu          sync.Mutex
	ready       chan *job.ExecutionMessage
	pending     map[string]struct{}
	deadLetters []*job.ExecutionMessage
	closed      bool
}

func NewMemoryQueue(capacity int, logger job.Logger) *MemoryQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryQueue{
		logger:  logger,
		ready:   make(chan *job.ExecutionMessage, capacity),
		pending: map[string]struct{}{},
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("gojob: memory queue is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("gojob: memory queue is closed")
	}
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key != "" && string(msg.DedupPolicy) == DedupPolicyDrop {
		if _, exists := q.pending[key]; exists {
			q.mu.Unlock()
			q.info("follow-up dropped as duplicate", "job_id", msg.JobID, "idempotency_key", key)
			return nil
		}
		q.pending[key] = struct{}{}
	}
	q.mu.Unlock()

	select {
	case q.ready <- msg:
		return nil
	case <-ctx.Done():
		q.clearPending(msg)
		return ctx.Err()
	default:
		q.clearPending(msg)
		return fmt.Errorf("gojob: memory queue is full")
	}
}

// Dequeue blocks until a message is available or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if q == nil {
		return nil, fmt.Errorf("gojob: memory queue is not configured")
	}
	select {
	case msg := <-q.ready:
		return &memoryDelivery{queue: q, msg: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeadLetters returns the messages that exhausted their retries.
func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*job.ExecutionMessage(nil), q.deadLetters...)
}

func (q *MemoryQueue) Len() int {
	return len(q.ready)
}

// Close stops accepting new messages. Delayed requeues scheduled before Close
// are discarded.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *MemoryQueue) requeue(msg *job.ExecutionMessage, delay time.Duration) {
	push := func() {
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		select {
		case q.ready <- msg:
		default:
			q.deadLetter(msg, "queue full on requeue")
		}
	}
	if delay <= 0 {
		push()
		return
	}
	time.AfterFunc(delay, push)
}

func (q *MemoryQueue) deadLetter(msg *job.ExecutionMessage, reason string) {
	q.clearPending(msg)
	q.mu.Lock()
	q.deadLetters = append(q.deadLetters, msg)
	q.mu.Unlock()
	q.info("follow-up moved to dead letter", "job_id", msg.JobID, "idempotency_key", msg.IdempotencyKey, "reason", reason)
}

func (q *MemoryQueue) clearPending(msg *job.ExecutionMessage) {
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key == "" {
		return
	}
	q.mu.Lock()
	delete(q.pending, key)
	q.mu.Unlock()
}

func (q *MemoryQueue) info(msg string, args ...any) {
	if q.logger == nil {
		return
	}
	q.logger.Info(msg, args...)
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *job.ExecutionMessage
	once  sync.Once
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.once.Do(func() {
		d.queue.clearPending(d.msg)
	})
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.once.Do(func() {
		if opts.DeadLetter || !opts.Requeue {
			d.queue.deadLetter(d.msg, opts.Reason)
			return
		}
		d.queue.requeue(d.msg, opts.Delay)
	})
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
