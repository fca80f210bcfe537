// Package b3 loads the optional B3 spreadsheets that complement the CVM
// daily quotes.
package b3

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/fetcher"
	"github.com/sells-group/fundsync/internal/model"
	"github.com/sells-group/fundsync/internal/transform"
)

// headerMap maps folded spreadsheet headers to fact column names.
var headerMap = map[string]string{
	"cnpj do fundo":      "cnpj",
	"cnpj":               "cnpj",
	"data":               "data_referencia",
	"data de referencia": "data_referencia",
	"valor da cota":      "valor_cota",
	"patrimonio liquido": "patrimonio_liquido",
}

// expectedColumns are the mapped columns a spreadsheet should provide.
var expectedColumns = []string{"cnpj", "data_referencia", "valor_cota", "patrimonio_liquido"}

// Sheet is one spreadsheet with mapped column names.
type Sheet struct {
	Source  string
	Columns []string
	Rows    [][]string
}

func (s Sheet) index(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (s Sheet) get(row []string, name string) string {
	i := s.index(name)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Loader reads B3 spreadsheets from local paths or URLs.
type Loader struct {
	Fetcher fetcher.Fetcher
	Workdir string

	log *zap.Logger
}

// NewLoader returns a Loader that downloads remote spreadsheets into
// <workdir>/b3.
func NewLoader(f fetcher.Fetcher, workdir string) *Loader {
	return &Loader{Fetcher: f, Workdir: workdir, log: zap.L().With(zap.String("component", "b3"))}
}

func (l *Loader) logger() *zap.Logger {
	if l.log == nil {
		l.log = zap.L().With(zap.String("component", "b3"))
	}
	return l.log
}

// LoadPlanilhas reads every source. Sources that fail to download or parse
// are logged and skipped.
func (l *Loader) LoadPlanilhas(ctx context.Context, sources []string) []Sheet {
	var sheets []Sheet
	for i, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		local, err := l.localPath(ctx, src, i)
		if err != nil {
			l.logger().Error("could not download B3 spreadsheet", zap.String("source", src), zap.Error(err))
			continue
		}
		rows, err := fetcher.ReadXLSX(local, fetcher.XLSXOptions{})
		if err != nil {
			l.logger().Error("could not read B3 spreadsheet", zap.String("source", src), zap.Error(err))
			continue
		}
		if len(rows) == 0 {
			l.logger().Warn("B3 spreadsheet is empty", zap.String("source", src))
			continue
		}
		sheets = append(sheets, mapSheet(src, rows))
	}
	return sheets
}

func (l *Loader) localPath(ctx context.Context, src string, i int) (string, error) {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return src, nil
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = fmt.Sprintf("planilha_%d.xlsx", i)
	}
	dest := filepath.Join(l.Workdir, "b3", name)
	if _, err := l.Fetcher.DownloadToFile(ctx, src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// mapSheet folds the header row and renames known columns. Unknown columns
// keep their folded header.
func mapSheet(src string, rows [][]string) Sheet {
	s := Sheet{Source: src}
	for _, h := range rows[0] {
		folded := transform.FoldHeader(h)
		if mapped, ok := headerMap[folded]; ok {
			folded = mapped
		}
		s.Columns = append(s.Columns, folded)
	}
	s.Rows = rows[1:]
	return s
}

// ToDailyQuotes converts spreadsheet rows into daily facts with null flows
// and shareholder counts. Rows without an identifier or a parseable date are
// dropped.
func (l *Loader) ToDailyQuotes(sheets []Sheet) []model.DailyQuote {
	var out []model.DailyQuote
	for _, s := range sheets {
		var missing []string
		for _, c := range expectedColumns {
			if s.index(c) < 0 {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			l.logger().Warn("B3 spreadsheet is missing expected columns",
				zap.String("source", s.Source), zap.Strings("missing", missing))
		}

		for _, row := range s.Rows {
			cnpj := transform.NormalizeCNPJ(s.get(row, "cnpj"))
			date, ok := parseDate(s.get(row, "data_referencia"))
			if cnpj == "" || !ok {
				continue
			}
			out = append(out, model.DailyQuote{
				CNPJ:              cnpj,
				DataCotacao:       date,
				ValorCota:         transform.DecimalPtr(s.get(row, "valor_cota")),
				PatrimonioLiquido: transform.DecimalPtr(s.get(row, "patrimonio_liquido")),
				Fonte:             model.SourceB3,
			})
		}
	}
	return out
}

// parseDate accepts day-first and ISO dates (with or without a time of day)
// as well as raw Excel serials.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := transform.ParseDate(raw, transform.DayFirstDate, "2/1/2006", transform.ISODate, time.DateTime); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		t := xlsx.TimeFromExcelTime(serial, false)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
