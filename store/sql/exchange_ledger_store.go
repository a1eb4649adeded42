package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-payroll-link/core"
	"github.com/uptrace/bun"
)

// ExchangeLedgerStore persists exchange reservations so the single-exchange
// rule holds across processes. Reserve relies on the unique exchange_key index.
type ExchangeLedgerStore struct {
	db   *bun.DB
	repo repository.Repository[*exchangeLedgerRecord]
	now  func() time.Time
}

func NewExchangeLedgerStore(db *bun.DB) (*ExchangeLedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*exchangeLedgerRecord](db, exchangeLedgerHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid exchange ledger repository wiring: %w", err)
		}
	}
	return &ExchangeLedgerStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *ExchangeLedgerStore) Reserve(ctx context.Context, key string) (core.ExchangeRecord, bool, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.ExchangeRecord{}, false, fmt.Errorf("sqlstore: exchange ledger store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.ExchangeRecord{}, false, fmt.Errorf("sqlstore: exchange key is required")
	}

	record := newExchangeLedgerRecord(key, s.now())
	result, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (exchange_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return core.ExchangeRecord{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.ExchangeRecord{}, false, err
	}
	if affected == 1 {
		return record.toDomain(), true, nil
	}

	existing, err := s.find(ctx, key)
	if err != nil {
		return core.ExchangeRecord{}, false, err
	}
	return existing.toDomain(), false, nil
}

func (s *ExchangeLedgerStore) Complete(ctx context.Context, key string, itemID string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: exchange ledger store is not configured")
	}
	current, err := s.find(ctx, strings.TrimSpace(key))
	if err != nil {
		return err
	}
	now := s.now()
	current.Status = string(core.ExchangeStatusCompleted)
	current.ItemID = strings.TrimSpace(itemID)
	current.CompletedAt = &now
	current.UpdatedAt = now

	_, err = s.repo.Update(ctx, current, repository.UpdateByID(current.ID))
	return err
}

// Release removes a pending reservation. Completed records are never removed.
func (s *ExchangeLedgerStore) Release(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: exchange ledger store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*exchangeLedgerRecord)(nil)).
		Where("exchange_key = ?", strings.TrimSpace(key)).
		Where("status = ?", string(core.ExchangeStatusPending)).
		Exec(ctx)
	return err
}

func (s *ExchangeLedgerStore) Get(ctx context.Context, key string) (core.ExchangeRecord, error) {
	if s == nil || s.repo == nil {
		return core.ExchangeRecord{}, fmt.Errorf("sqlstore: exchange ledger store is not configured")
	}
	record, err := s.find(ctx, strings.TrimSpace(key))
	if err != nil {
		return core.ExchangeRecord{}, err
	}
	return record.toDomain(), nil
}

// ReleaseStale drops pending reservations older than maxAge. A pending row
// that old belongs to an attempt whose process never completed or released it.
func (s *ExchangeLedgerStore) ReleaseStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: exchange ledger store is not configured")
	}
	if maxAge <= 0 {
		return 0, fmt.Errorf("sqlstore: max age must be positive")
	}
	result, err := s.db.NewDelete().
		Model((*exchangeLedgerRecord)(nil)).
		Where("status = ?", string(core.ExchangeStatusPending)).
		Where("created_at < ?", s.now().Add(-maxAge)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *ExchangeLedgerStore) find(ctx context.Context, key string) (*exchangeLedgerRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("sqlstore: exchange key is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("exchange_key", "=", key),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || records[0] == nil {
		return nil, core.ErrExchangeRecordNotFound
	}
	return records[0], nil
}
