package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-payroll-link/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// exchangeLedgerRecord stores the consumption marker of a public credential.
// Only the digest key is persisted.
type exchangeLedgerRecord struct {
	bun.BaseModel `bun:"table:payroll_exchange_ledger,alias:pel"`

	ID          string     `bun:"id,pk"`
	ExchangeKey string     `bun:"exchange_key,notnull"`
	Status      string     `bun:"status,notnull"`
	ItemID      string     `bun:"item_id,notnull"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

func newExchangeLedgerRecord(key string, now time.Time) *exchangeLedgerRecord {
	return &exchangeLedgerRecord{
		ID:          uuid.NewString(),
		ExchangeKey: strings.TrimSpace(key),
		Status:      string(core.ExchangeStatusPending),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *exchangeLedgerRecord) toDomain() core.ExchangeRecord {
	if r == nil {
		return core.ExchangeRecord{}
	}
	record := core.ExchangeRecord{
		Key:       r.ExchangeKey,
		Status:    core.ExchangeStatus(r.Status),
		ItemID:    r.ItemID,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.CompletedAt != nil {
		completedAt := r.CompletedAt.UTC()
		record.CompletedAt = &completedAt
	}
	return record
}
