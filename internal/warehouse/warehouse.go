// Package warehouse loads CSV files and rendered tables into BigQuery or
// PostgreSQL, replacing the destination table.
package warehouse

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fundsync/internal/config"
	"github.com/sells-group/fundsync/internal/db"
	"github.com/sells-group/fundsync/internal/model"
)

// Destinations.
const (
	Staging = "staging"
	Curated = "curated"
)

// ErrInvalidDestination is returned for a destination other than staging or curated.
var ErrInvalidDestination = errors.New("invalid destination")

// Uploader replaces warehouse tables.
type Uploader interface {
	// LoadCSV loads a CSV file with a header row into table.
	LoadCSV(ctx context.Context, path, table, dest string) error
	// LoadTable loads a rendered table under name.
	LoadTable(ctx context.Context, t model.Table, name, dest string) error
	Close() error
}

func checkDestination(dest string) error {
	if dest != Staging && dest != Curated {
		return eris.Wrapf(ErrInvalidDestination, "warehouse: destination must be %q or %q, got %q", Staging, Curated, dest)
	}
	return nil
}

// New builds the uploader selected by cfg.Warehouse.Driver.
func New(ctx context.Context, cfg *config.Config) (Uploader, error) {
	if err := cfg.ValidateWarehouse(); err != nil {
		return nil, err
	}
	switch cfg.Warehouse.Driver {
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.Warehouse.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &PostgresUploader{pool: pool, close: pool.Close}, nil
	default:
		u, err := NewBigQuery(ctx, BigQueryOptions{
			Project:  cfg.BigQueryProject,
			Staging:  cfg.BigQueryDatasetStaging,
			Curated:  cfg.BigQueryDatasetCurated,
			Location: cfg.BigQueryLocation,
			Bucket:   cfg.GCSBucket,
		})
		if err != nil {
			return nil, err
		}
		return u, nil
	}
}

// encodeTable renders t as CSV with a header row.
func encodeTable(t model.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, eris.Wrapf(err, "warehouse: encode %s", t.Name)
	}
	if err := w.WriteAll(t.StringRows()); err != nil {
		return nil, eris.Wrapf(err, "warehouse: encode %s", t.Name)
	}
	return buf.Bytes(), nil
}

// readCSV reads a CSV file into its header and rows; empty cells become nil.
func readCSV(path string) ([]string, [][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "warehouse: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, eris.Errorf("warehouse: %s has no header row", path)
	}
	if err != nil {
		return nil, nil, eris.Wrapf(err, "warehouse: read header of %s", path)
	}

	var rows [][]any
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "warehouse: read %s", path)
		}
		row := make([]any, len(header))
		for i := range header {
			if i < len(rec) && rec[i] != "" {
				row[i] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
