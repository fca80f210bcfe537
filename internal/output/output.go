// Package output writes rendered tables as CSV files.
package output

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/model"
)

// SaveTables writes one <name>.csv per table into dir, creating it when
// needed, and returns the written path of each table by name. Every file has
// a header row; nulls are written as empty cells.
func SaveTables(tables []model.Table, dir string) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "output: create %s", dir)
	}

	paths := make(map[string]string, len(tables))
	for _, t := range tables {
		path := filepath.Join(dir, t.Name+".csv")
		if err := writeCSV(path, t); err != nil {
			return paths, err
		}
		zap.L().Debug("wrote table", zap.String("table", t.Name), zap.Int("rows", t.Len()), zap.String("path", path))
		paths[t.Name] = path
	}
	return paths, nil
}

func writeCSV(path string, t model.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "output: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return eris.Wrapf(err, "output: write header of %s", t.Name)
	}
	if err := w.WriteAll(t.StringRows()); err != nil {
		return eris.Wrapf(err, "output: write rows of %s", t.Name)
	}
	return eris.Wrapf(f.Close(), "output: close %s", path)
}
