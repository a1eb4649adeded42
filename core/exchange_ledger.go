package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var ErrExchangeRecordNotFound = errors.New("core: exchange record not found")

// ExchangeKey derives the ledger key for a public credential.
func ExchangeKey(publicCredential string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(publicCredential)))
	return hex.EncodeToString(sum[:])
}

const (
	DefaultCompletedRetention = 24 * time.Hour
	DefaultMaxCompleted       = 100000
)

// MemoryExchangeLedger is the process-local ledger. Completed records are
// kept for the retention window and at most maxCompleted of them are held,
// oldest evicted first. Pending records live until completed or released.
type MemoryExchangeLedger struct {
	mu           sync.Mutex
	now          func() time.Time
	entries      map[string]ExchangeRecord
	completed    []string
	retention    time.Duration
	maxCompleted int
}

type MemoryLedgerOption func(*MemoryExchangeLedger)

// WithCompletedRetention sets how long completed records block a replay.
// Zero or less keeps them until the size bound evicts them.
func WithCompletedRetention(retention time.Duration) MemoryLedgerOption {
	return func(l *MemoryExchangeLedger) {
		l.retention = retention
	}
}

func WithMaxCompleted(max int) MemoryLedgerOption {
	return func(l *MemoryExchangeLedger) {
		if max > 0 {
			l.maxCompleted = max
		}
	}
}

func WithLedgerClock(now func() time.Time) MemoryLedgerOption {
	return func(l *MemoryExchangeLedger) {
		if now != nil {
			l.now = now
		}
	}
}

func NewMemoryExchangeLedger(opts ...MemoryLedgerOption) *MemoryExchangeLedger {
	l := &MemoryExchangeLedger{
		now:          func() time.Time { return time.Now().UTC() },
		entries:      map[string]ExchangeRecord{},
		retention:    DefaultCompletedRetention,
		maxCompleted: DefaultMaxCompleted,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *MemoryExchangeLedger) Reserve(_ context.Context, key string) (ExchangeRecord, bool, error) {
	if l == nil {
		return ExchangeRecord{}, false, fmt.Errorf("core: exchange ledger is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ExchangeRecord{}, false, fmt.Errorf("core: exchange key is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(l.now())
	if existing, ok := l.entries[key]; ok {
		return cloneExchangeRecord(existing), false, nil
	}
	record := ExchangeRecord{
		Key:       key,
		Status:    ExchangeStatusPending,
		CreatedAt: l.now(),
	}
	l.entries[key] = record
	return cloneExchangeRecord(record), true, nil
}

func (l *MemoryExchangeLedger) Complete(_ context.Context, key string, itemID string) error {
	if l == nil {
		return fmt.Errorf("core: exchange ledger is not configured")
	}
	key = strings.TrimSpace(key)

	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.entries[key]
	if !ok {
		return ErrExchangeRecordNotFound
	}
	completedAt := l.now()
	if record.Status != ExchangeStatusCompleted {
		l.completed = append(l.completed, key)
	}
	record.Status = ExchangeStatusCompleted
	record.ItemID = strings.TrimSpace(itemID)
	record.CompletedAt = &completedAt
	l.entries[key] = record
	l.evictLocked(completedAt)
	return nil
}

// Len reports the number of pending and completed records held.
func (l *MemoryExchangeLedger) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// evictLocked drops completed records past retention or over the size bound.
// l.completed is in completion order, so only its head is inspected.
func (l *MemoryExchangeLedger) evictLocked(now time.Time) {
	for len(l.completed) > 0 {
		key := l.completed[0]
		record, ok := l.entries[key]
		expired := ok && l.retention > 0 && record.CompletedAt != nil && now.Sub(*record.CompletedAt) >= l.retention
		if ok && !expired && len(l.completed) <= l.maxCompleted {
			return
		}
		if ok && record.Status == ExchangeStatusCompleted {
			delete(l.entries, key)
		}
		l.completed = l.completed[1:]
	}
}

// Release drops a pending reservation so a failed attempt can be retried.
// Completed records are kept.
func (l *MemoryExchangeLedger) Release(_ context.Context, key string) error {
	if l == nil {
		return fmt.Errorf("core: exchange ledger is not configured")
	}
	key = strings.TrimSpace(key)

	l.mu.Lock()
	defer l.mu.Unlock()
	if record, ok := l.entries[key]; ok && record.Status == ExchangeStatusPending {
		delete(l.entries, key)
	}
	return nil
}

func (l *MemoryExchangeLedger) Get(_ context.Context, key string) (ExchangeRecord, error) {
	if l == nil {
		return ExchangeRecord{}, fmt.Errorf("core: exchange ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.entries[strings.TrimSpace(key)]
	if !ok {
		return ExchangeRecord{}, ErrExchangeRecordNotFound
	}
	return cloneExchangeRecord(record), nil
}

func cloneExchangeRecord(record ExchangeRecord) ExchangeRecord {
	cloned := record
	if record.CompletedAt != nil {
		value := record.CompletedAt.UTC()
		cloned.CompletedAt = &value
	}
	return cloned
}
