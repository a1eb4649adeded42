package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-payroll-link/core"
)

const exchangeLedgerCacheKeyPrefix = "go-payroll-link::exchange_ledger::v1"

var errExchangeNotConsumed = errors.New("sqlstore: exchange not consumed")

// CachedExchangeLedger serves consumed markers from cache so replayed public
// credentials are rejected without a database round trip. Pending records are
// never cached.
type CachedExchangeLedger struct {
	base  core.ExchangeLedger
	cache repositorycache.CacheService
}

func NewCachedExchangeLedger(base core.ExchangeLedger, cacheService repositorycache.CacheService) (*CachedExchangeLedger, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base exchange ledger is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: exchange ledger cache service is required")
	}
	return &CachedExchangeLedger{base: base, cache: cacheService}, nil
}

// ExchangeLedgerCacheKey returns go-payroll-link::exchange_ledger::v1::<key>
// with the key URL-path escaped.
func ExchangeLedgerCacheKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("sqlstore: exchange key is required")
	}
	return exchangeLedgerCacheKeyPrefix + "::" + url.PathEscape(key), nil
}

func (l *CachedExchangeLedger) Reserve(ctx context.Context, key string) (core.ExchangeRecord, bool, error) {
	if l == nil || l.base == nil || l.cache == nil {
		return core.ExchangeRecord{}, false, fmt.Errorf("sqlstore: cached exchange ledger is not configured")
	}
	record, consumed, err := l.consumed(ctx, key)
	if err != nil {
		return core.ExchangeRecord{}, false, err
	}
	if consumed {
		return record, false, nil
	}
	return l.base.Reserve(ctx, key)
}

func (l *CachedExchangeLedger) Complete(ctx context.Context, key string, itemID string) error {
	if l == nil || l.base == nil || l.cache == nil {
		return fmt.Errorf("sqlstore: cached exchange ledger is not configured")
	}
	if err := l.base.Complete(ctx, key, itemID); err != nil {
		return err
	}
	return l.invalidate(ctx, key)
}

func (l *CachedExchangeLedger) Release(ctx context.Context, key string) error {
	if l == nil || l.base == nil || l.cache == nil {
		return fmt.Errorf("sqlstore: cached exchange ledger is not configured")
	}
	if err := l.base.Release(ctx, key); err != nil {
		return err
	}
	return l.invalidate(ctx, key)
}

func (l *CachedExchangeLedger) Get(ctx context.Context, key string) (core.ExchangeRecord, error) {
	if l == nil || l.base == nil || l.cache == nil {
		return core.ExchangeRecord{}, fmt.Errorf("sqlstore: cached exchange ledger is not configured")
	}
	record, consumed, err := l.consumed(ctx, key)
	if err != nil {
		return core.ExchangeRecord{}, err
	}
	if consumed {
		return record, nil
	}
	return l.base.Get(ctx, key)
}

func (l *CachedExchangeLedger) consumed(ctx context.Context, key string) (core.ExchangeRecord, bool, error) {
	cacheKey, err := ExchangeLedgerCacheKey(key)
	if err != nil {
		return core.ExchangeRecord{}, false, err
	}
	record, err := repositorycache.GetOrFetch(ctx, l.cache, cacheKey, func(ctx context.Context) (core.ExchangeRecord, error) {
		fetched, fetchErr := l.base.Get(ctx, key)
		if fetchErr != nil {
			return core.ExchangeRecord{}, fetchErr
		}
		if fetched.Status != core.ExchangeStatusCompleted {
			return core.ExchangeRecord{}, errExchangeNotConsumed
		}
		return cloneRecord(fetched), nil
	})
	switch {
	case err == nil:
		return cloneRecord(record), true, nil
	case errors.Is(err, errExchangeNotConsumed), errors.Is(err, core.ErrExchangeRecordNotFound):
		return core.ExchangeRecord{}, false, nil
	default:
		return core.ExchangeRecord{}, false, err
	}
}

func (l *CachedExchangeLedger) invalidate(ctx context.Context, key string) error {
	cacheKey, err := ExchangeLedgerCacheKey(key)
	if err != nil {
		return err
	}
	return l.cache.Delete(ctx, cacheKey)
}

func cloneRecord(record core.ExchangeRecord) core.ExchangeRecord {
	cloned := record
	if record.CompletedAt != nil {
		value := record.CompletedAt.UTC()
		cloned.CompletedAt = &value
	}
	return cloned
}
