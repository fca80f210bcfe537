package warehouse

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/db"
	"github.com/sells-group/fundsync/internal/model"
)

// PostgresUploader replaces tables in the schema named after the destination.
// Every column is text, matching the CSV outputs.
type PostgresUploader struct {
	pool  db.Pool
	close func()
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool) *PostgresUploader {
	return &PostgresUploader{pool: pool}
}

func (u *PostgresUploader) LoadCSV(ctx context.Context, path, table, dest string) error {
	if err := checkDestination(dest); err != nil {
		return err
	}
	header, rows, err := readCSV(path)
	if err != nil {
		return err
	}
	return u.replace(ctx, table, dest, header, rows)
}

func (u *PostgresUploader) LoadTable(ctx context.Context, t model.Table, name, dest string) error {
	if err := checkDestination(dest); err != nil {
		return err
	}
	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		cells := make([]any, len(r))
		for j, v := range r {
			if s, ok := model.FormatCell(v); ok {
				cells[j] = s
			}
		}
		rows[i] = cells
	}
	return u.replace(ctx, name, dest, t.Columns, rows)
}

func (u *PostgresUploader) replace(ctx context.Context, table, dest string, columns []string, rows [][]any) error {
	n, err := db.ReplaceTable(ctx, u.pool, db.ReplaceConfig{Schema: dest, Table: table, Columns: columns}, rows)
	if err != nil {
		return err
	}
	zap.L().Info("table loaded",
		zap.String("component", "warehouse"),
		zap.String("table", dest+"."+table),
		zap.Int64("rows", n),
	)
	return nil
}

func (u *PostgresUploader) Close() error {
	if u.close != nil {
		u.close()
	}
	return nil
}
