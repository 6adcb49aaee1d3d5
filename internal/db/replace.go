package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ColumnDef is one column of a replaced table.
type ColumnDef struct {
	Name string
	Type string // SQL type, e.g. "TEXT" or "DOUBLE PRECISION"
}

// ReplaceConfig names the target table and its columns.
type ReplaceConfig struct {
	Table   string
	Columns []ColumnDef
}

// ReplaceTable swaps the contents of a table for rows in one transaction:
//  1. CREATE TABLE IF NOT EXISTS with the configured columns
//  2. TRUNCATE
//  3. COPY rows
//
// Readers see either the old rows or the new rows, never a mix.
func ReplaceTable(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if cfg.Table == "" {
		return 0, eris.New("db: replace: no table specified")
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}

	names := make([]string, len(cfg.Columns))
	defs := make([]string, len(cfg.Columns))
	for i, c := range cfg.Columns {
		names[i] = c.Name
		defs[i] = fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), c.Type)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sanitizeTable(cfg.Table), strings.Join(defs, ", "))
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: replace: create %s", cfg.Table)
	}
	if _, err := tx.Exec(ctx, "TRUNCATE "+sanitizeTable(cfg.Table)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: truncate %s", cfg.Table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, identifier(cfg.Table), names, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace: COPY INTO %s (%s)", cfg.Table, quoteAndJoin(names))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}
