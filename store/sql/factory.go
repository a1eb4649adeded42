package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-payroll-link/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	exchangeLedgerStore *ExchangeLedgerStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.Build(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.Build(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// Build accepts a *bun.DB or anything exposing DB() *bun.DB, such as a
// go-persistence-bun client.
func (f *RepositoryFactory) Build(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.exchangeLedgerStore != nil {
		return nil
	}
	store, err := NewExchangeLedgerStore(f.db)
	if err != nil {
		return err
	}
	f.exchangeLedgerStore = store
	return nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ExchangeLedgerStore() *ExchangeLedgerStore {
	if f == nil {
		return nil
	}
	return f.exchangeLedgerStore
}

// ExchangeLedger returns the SQL ledger, wrapped in a read-through cache when
// cacheService is not nil.
func (f *RepositoryFactory) ExchangeLedger(cacheService repositorycache.CacheService) (core.ExchangeLedger, error) {
	if f == nil || f.exchangeLedgerStore == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is not built")
	}
	if cacheService == nil {
		return f.exchangeLedgerStore, nil
	}
	return NewCachedExchangeLedger(f.exchangeLedgerStore, cacheService)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
