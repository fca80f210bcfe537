package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ReplaceConfig describes a table whose contents are fully replaced.
type ReplaceConfig struct {
	Schema  string
	Table   string
	Columns []string
}

func (c ReplaceConfig) qualified() string {
	if c.Schema == "" {
		return c.Table
	}
	return c.Schema + "." + c.Table
}

// ReplaceTable overwrites a table inside one transaction:
//  1. CREATE SCHEMA IF NOT EXISTS (when a schema is set)
//  2. CREATE TABLE IF NOT EXISTS with one text column per name
//  3. TRUNCATE
//  4. COPY rows
//
// Cells must already be strings or nil.
func ReplaceTable(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (n int64, err error) {
	if cfg.Table == "" {
		return 0, eris.New("db: replace: no table specified")
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	target := sanitizeTable(cfg.qualified())

	if cfg.Schema != "" {
		if _, err = tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{cfg.Schema}.Sanitize()); err != nil {
			return 0, eris.Wrapf(err, "db: replace: create schema %s", cfg.Schema)
		}
	}

	defs := make([]string, len(cfg.Columns))
	for i, c := range cfg.Columns {
		defs[i] = pgx.Identifier{c}.Sanitize() + " TEXT"
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", target, strings.Join(defs, ", "))
	if _, err = tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: replace: create table %s", cfg.qualified())
	}

	if _, err = tx.Exec(ctx, "TRUNCATE TABLE "+target); err != nil {
		return 0, eris.Wrapf(err, "db: replace: truncate %s", cfg.qualified())
	}

	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, identifier(cfg.qualified()), cfg.Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace: COPY INTO %s", cfg.qualified())
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}

func splitTable(table string) (schema, name string, ok bool) {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) != 2 {
		return "", table, false
	}
	return parts[0], parts[1], true
}

// sanitizeTable quotes schema-qualified table names like "staging.dim_fundo".
func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}
