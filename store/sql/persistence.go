package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-payroll-link/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// PersistenceConfig satisfies the go-persistence-bun config contract.
type PersistenceConfig struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
}

func (c PersistenceConfig) GetDebug() bool   { return c.Debug }
func (c PersistenceConfig) GetDriver() string { return c.Driver }
func (c PersistenceConfig) GetServer() string { return c.DSN }

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string { return "go-payroll-link" }

// ParseDSN selects the driver from the DSN. postgres:// and postgresql:// use
// lib/pq; sqlite://, file: and :memory: use go-sqlite3.
func ParseDSN(raw string) (PersistenceConfig, error) {
	dsn := strings.TrimSpace(raw)
	lower := strings.ToLower(dsn)
	switch {
	case dsn == "":
		return PersistenceConfig{}, fmt.Errorf("sqlstore: dsn is required")
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return PersistenceConfig{Driver: DriverPostgres, DSN: dsn}, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return PersistenceConfig{Driver: DriverSQLite, DSN: "file:" + strings.TrimPrefix(dsn[len("sqlite://"):], "/")}, nil
	case strings.HasPrefix(lower, "file:"), lower == ":memory:":
		return PersistenceConfig{Driver: DriverSQLite, DSN: dsn}, nil
	default:
		return PersistenceConfig{}, fmt.Errorf("sqlstore: unsupported dsn %q", redactDSN(dsn))
	}
}

// OpenPersistence opens the database, registers the embedded migrations for
// its dialect and applies them.
func OpenPersistence(ctx context.Context, cfg PersistenceConfig) (*persistence.Client, error) {
	dialect, migrationDialect, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	err = migrations.Register(ctx, migrationDialect, func(_ context.Context, tree migrations.DialectTree) error {
		client.RegisterSQLMigrations(tree.FS)
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}

func dialectFor(driver string) (schema.Dialect, string, error) {
	switch driver {
	case DriverSQLite:
		return sqlitedialect.New(), migrations.DialectSQLite, nil
	case DriverPostgres:
		return pgdialect.New(), migrations.DialectPostgres, nil
	default:
		return nil, "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

func redactDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return dsn
}
