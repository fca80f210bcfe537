// Package frontend exports per-fund JSON documents and an index for the
// static dashboard.
package frontend

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/model"
)

// File names inside the API directory.
const (
	IndexFile    = "index.json"
	ProgressFile = "progress.log"
	FundsDir     = "funds"
)

// progressEvery is how often, in funds, the export logs its progress.
const progressEvery = 10

// Exporter writes the API directory.
type Exporter struct {
	Dir string
	Now func() time.Time

	log *zap.Logger
}

// NewExporter returns an Exporter writing into dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{Dir: dir, Now: time.Now, log: zap.L().With(zap.String("component", "frontend"))}
}

func (e *Exporter) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Exporter) logger() *zap.Logger {
	if e.log == nil {
		e.log = zap.L().With(zap.String("component", "frontend"))
	}
	return e.log
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Export writes funds/<cnpj>.json for every fund, index.json and a fresh
// progress.log. It returns the written paths keyed by cnpj, plus "index".
func (e *Exporter) Export(funds []model.Fund, tables *model.Tables) (map[string]string, error) {
	if tables == nil {
		tables = &model.Tables{}
	}
	fundsDir := filepath.Join(e.Dir, FundsDir)
	if err := os.MkdirAll(fundsDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "frontend: create %s", fundsDir)
	}

	progressPath := filepath.Join(e.Dir, ProgressFile)
	if err := os.Remove(progressPath); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrapf(err, "frontend: truncate %s", progressPath)
	}
	progress, err := os.OpenFile(progressPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "frontend: open %s", progressPath)
	}
	defer progress.Close() //nolint:errcheck
	progressEnc := json.NewEncoder(progress)
	progressEnc.SetEscapeHTML(false)

	daily := groupBy(tables.DailyQuotes, func(q model.DailyQuote) string { return q.CNPJ })
	holders := groupBy(tables.Shareholders, func(s model.Shareholders) string { return s.CNPJ })
	holdings := groupBy(tables.Holdings, func(h model.Holding) string { return h.CNPJ })

	paths := make(map[string]string, len(funds)+1)
	index := Index{GeneratedAt: timestamp(e.now()), Funds: make([]IndexEntry, 0, len(funds))}
	total := len(funds)

	for i, f := range funds {
		payload := buildPayload(f, daily[f.CNPJ], holders[f.CNPJ], holdings[f.CNPJ])

		rel := FundsDir + "/" + f.CNPJ + ".json"
		path := filepath.Join(e.Dir, filepath.FromSlash(rel))
		if err := writeJSON(path, payload); err != nil {
			return paths, err
		}
		paths[f.CNPJ] = path

		index.Funds = append(index.Funds, IndexEntry{
			Metadata:        payload.Metadata,
			DatasetPath:     rel,
			DailyRecords:    len(payload.Series.Daily),
			CotistasRecords: len(payload.Series.Cotistas),
			HasCarteira:     len(payload.Series.CarteiraPorTipo) > 0,
		})

		position := i + 1
		if err := progressEnc.Encode(ProgressEntry{
			Timestamp: timestamp(e.now()),
			Index:     position,
			Total:     total,
			CNPJ:      f.CNPJ,
			Nome:      f.Nome,
		}); err != nil {
			return paths, eris.Wrapf(err, "frontend: append %s", progressPath)
		}
		if position%progressEvery == 0 || position == total {
			e.logger().Info("exported funds",
				zap.Int("done", position), zap.Int("total", total), zap.String("last", f.Nome))
		}
	}

	indexPath := filepath.Join(e.Dir, IndexFile)
	if err := writeJSON(indexPath, index); err != nil {
		return paths, err
	}
	paths["index"] = indexPath
	return paths, nil
}

func buildPayload(f model.Fund, daily []model.DailyQuote, holders []model.Shareholders, holdings []model.Holding) Payload {
	p := Payload{Metadata: metadata(f)}
	p.Series.Daily, p.LatestSnapshot = dailySeries(daily)
	p.Series.Cotistas, p.LatestCotistas = shareholderSeries(holders)
	p.Series.CarteiraPorTipo, p.Series.CarteiraPorAtivo, p.LatestHoldings = portfolioSeries(holdings)
	return p
}

func groupBy[T any](rows []T, key func(T) string) map[string][]T {
	out := make(map[string][]T)
	for _, r := range rows {
		k := key(r)
		out[k] = append(out[k], r)
	}
	return out
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "frontend: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "frontend: encode %s", path)
	}
	return eris.Wrapf(f.Close(), "frontend: close %s", path)
}
