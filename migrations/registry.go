// Package migrations resolves the embedded exchange ledger schema for the
// database dialects the ledger store supports.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	payrolllink "github.com/goliatone/go-payroll-link"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// LedgerMigration is the migration that creates payroll_exchange_ledger.
const LedgerMigration = "00001_payroll_exchange_ledger"

const rootPath = "data/sql/migrations"

// DialectTree is the migration directory for one dialect. Postgres files live
// at the root and sqlite files in its sqlite/ subdirectory.
type DialectTree struct {
	Dialect    string
	Path       string
	FS         fs.FS
	Migrations []string
}

// RegisterFunc receives the tree selected for a dialect.
type RegisterFunc func(ctx context.Context, tree DialectTree) error

// Trees returns the postgres and sqlite trees of source, or of the embedded
// files when source is nil. Each tree must pair every up file with a down
// file and must include the ledger migration.
func Trees(source fs.FS) ([]DialectTree, error) {
	if source == nil {
		source = payrolllink.GetMigrationsFS()
	}
	base, err := fs.Sub(source, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	trees := []DialectTree{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/" + DialectSQLite, FS: sqliteFS},
	}
	for i := range trees {
		names, err := pairedMigrations(trees[i])
		if err != nil {
			return nil, err
		}
		trees[i].Migrations = names
	}
	return trees, nil
}

// ForDialect returns the embedded tree for dialect.
func ForDialect(dialect string) (DialectTree, error) {
	trees, err := Trees(nil)
	if err != nil {
		return DialectTree{}, err
	}
	want := strings.ToLower(strings.TrimSpace(dialect))
	for _, tree := range trees {
		if tree.Dialect == want {
			return tree, nil
		}
	}
	return DialectTree{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Register hands the embedded tree for dialect to registerFn.
func Register(ctx context.Context, dialect string, registerFn RegisterFunc) error {
	if registerFn == nil {
		return fmt.Errorf("migrations: register function is required")
	}
	tree, err := ForDialect(dialect)
	if err != nil {
		return err
	}
	if err := registerFn(ctx, tree); err != nil {
		return fmt.Errorf("migrations: register %s (%s): %w", tree.Dialect, tree.Path, err)
	}
	return nil
}

func pairedMigrations(tree DialectTree) ([]string, error) {
	ups, err := fs.Glob(tree.FS, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", tree.Path, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s tree %q has no *.up.sql files", tree.Dialect, tree.Path)
	}

	names := make([]string, 0, len(ups))
	hasLedger := false
	for _, up := range ups {
		name := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(tree.FS, name+".down.sql"); err != nil {
			return nil, fmt.Errorf("migrations: %s migration %s has no down file", tree.Dialect, name)
		}
		if name == LedgerMigration {
			hasLedger = true
		}
		names = append(names, name)
	}
	if !hasLedger {
		return nil, fmt.Errorf("migrations: %s tree %q is missing %s", tree.Dialect, tree.Path, LedgerMigration)
	}
	return names, nil
}
