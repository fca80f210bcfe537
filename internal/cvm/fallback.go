package cvm

import (
	"context"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/fetcher"
	"github.com/sells-group/fundsync/internal/model"
	"github.com/sells-group/fundsync/internal/transform"
)

// Candidate columns of the CDA block files, in priority order.
var (
	issuerColumns = []string{
		"EMISSOR", "DS_ATIVO", "DS_ATIVO_EXTERIOR", "NM_FUNDO_CLASSE_SUBCLASSE_COTA", "EMISSOR_LIGADO",
	}
	codeColumns = []string{"CD_ISIN", "CD_ATIVO", "CD_ATIVO_BV_MERC"}
)

// shareholderCountPrefix prefixes the per-subclass shareholder counts in PERFIL_MENSAL.
const shareholderCountPrefix = "NR_COTST_"

type holdingKey struct {
	cnpj    string
	date    time.Time
	tipo    string
	emissor string
	isin    string
}

type fundDate struct {
	cnpj string
	date time.Time
}

// sums accumulates values per key and remembers first-seen order.
type sums[K comparable] struct {
	order  []K
	values map[K]float64
}

func newSums[K comparable]() *sums[K] {
	return &sums[K]{values: make(map[K]float64)}
}

func (s *sums[K]) add(k K, v float64) {
	if _, ok := s.values[k]; !ok {
		s.order = append(s.order, k)
	}
	s.values[k] += v
}

func (s *sums[K]) len() int { return len(s.order) }

func parseRefDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := transform.ParseDate(raw, transform.ISODate, transform.DayFirstDate)
	return t, err == nil
}

// rowKey extracts the normalized identifier and date of a CDA or profile row,
// reporting false for rows that must be skipped.
func rowKey(row []string, cnpj, date func([]string) string, filter map[string]struct{}) (fundDate, bool) {
	id := transform.NormalizeCNPJ(cnpj(row))
	if id == "" {
		return fundDate{}, false
	}
	if len(filter) > 0 {
		if _, ok := filter[id]; !ok {
			return fundDate{}, false
		}
	}
	d, ok := parseRefDate(date(row))
	if !ok {
		return fundDate{}, false
	}
	return fundDate{cnpj: id, date: d}, true
}

// IngestFallback derives holdings and shareholders from the CDA and
// PERFIL_MENSAL datasets of each month. The two downloads fail independently.
func (p *Pipeline) IngestFallback(ctx context.Context, months iter.Seq[time.Time], filter map[string]struct{}) ([]model.Holding, []model.Shareholders) {
	cdaDir := filepath.Join(p.Workdir, "cvm", "cda")
	perfilDir := filepath.Join(p.Workdir, "cvm", "perfil_mensal")

	var holdings []model.Holding
	nav := newSums[fundDate]()
	profile := newSums[fundDate]()

	for m := range months {
		ym := yearMonth(m)

		cdaURL := p.Sources.CDAURL(m)
		cdaPath := filepath.Join(cdaDir, "cda_fi_"+ym+".zip")
		if _, err := p.Fetcher.DownloadToFile(ctx, cdaURL, cdaPath); err != nil {
			p.logger().Error("could not download CDA archive", zap.String("url", cdaURL), zap.Error(err))
		} else {
			h, err := p.loadCDA(ctx, cdaPath, filter, nav)
			if err != nil {
				p.logger().Error("failed to parse CDA archive", zap.String("path", cdaPath), zap.Error(err))
			}
			holdings = append(holdings, h...)
		}

		perfilURL := p.Sources.PerfilURL(m)
		perfilPath := filepath.Join(perfilDir, "perfil_mensal_fi_"+ym+".csv")
		if _, err := p.Fetcher.DownloadToFile(ctx, perfilURL, perfilPath); err != nil {
			p.logger().Error("could not download profile file", zap.String("url", perfilURL), zap.Error(err))
		} else if err := loadPerfil(ctx, perfilPath, filter, profile); err != nil {
			p.logger().Error("failed to parse profile file", zap.String("path", perfilPath), zap.Error(err))
		}
	}

	return holdings, joinShareholders(profile, nav)
}

// loadCDA reads every CSV member of a CDA archive. Block members ("blc") yield
// holdings grouped by (cnpj, date, tipo, emissor, isin); net asset value
// members ("_pl_") accumulate into nav.
func (p *Pipeline) loadCDA(ctx context.Context, zipPath string, filter map[string]struct{}, nav *sums[fundDate]) ([]model.Holding, error) {
	members, err := fetcher.ZIPMembers(zipPath)
	if err != nil {
		return nil, err
	}

	positions := newSums[holdingKey]()
	for _, name := range members {
		lower := strings.ToLower(name)
		if !fetcher.IsCSVName(name) {
			continue
		}
		isBlock := strings.Contains(lower, "blc")
		isNAV := strings.Contains(lower, "_pl_")
		if !isBlock && !isNAV {
			continue
		}

		rc, _, err := fetcher.OpenZIPMember(zipPath, fetcher.NameEquals(name))
		if err != nil {
			p.logger().Warn("could not open CDA member", zap.String("member", name), zap.Error(err))
			continue
		}
		err = eachRow(ctx, rc, func(f *Frame) func([]string) {
			cnpj := f.Getter("CNPJ_FUNDO_CLASSE", "CNPJ_FUNDO")
			date := f.Getter("DT_COMPTC")
			if isBlock {
				tipo := f.Getter("TP_ATIVO", "TP_APLIC")
				issuer := f.Getter(issuerColumns...)
				code := f.Getter(codeColumns...)
				value := f.Getter("VL_MERC_POS_FINAL")
				return func(row []string) {
					key, ok := rowKey(row, cnpj, date, filter)
					if !ok {
						return
					}
					v, ok := transform.ParseDecimal(value(row))
					if !ok || v <= 0 {
						return
					}
					positions.add(holdingKey{
						cnpj: key.cnpj, date: key.date,
						tipo: tipo(row), emissor: issuer(row), isin: code(row),
					}, v)
				}
			}
			pl := f.Getter("VL_PATRIM_LIQ")
			return func(row []string) {
				key, ok := rowKey(row, cnpj, date, filter)
				if !ok {
					return
				}
				if v, ok := transform.ParseDecimal(pl(row)); ok {
					nav.add(key, v)
				}
			}
		})
		_ = rc.Close()
		if err != nil {
			p.logger().Warn("failed to read CDA member", zap.String("member", name), zap.Error(err))
		}
	}

	out := make([]model.Holding, 0, positions.len())
	for _, k := range positions.order {
		out = append(out, model.Holding{
			CNPJ:           k.cnpj,
			DataReferencia: k.date,
			TipoAtivo:      k.tipo,
			Emissor:        k.emissor,
			ISIN:           k.isin,
			ValorMercado:   model.Float(positions.values[k]),
			Fonte:          model.SourceCVM,
		})
	}
	return out, nil
}

// loadPerfil sums every NR_COTST_* column per row and accumulates the rounded
// total per (cnpj, date).
func loadPerfil(ctx context.Context, path string, filter map[string]struct{}, profile *sums[fundDate]) error {
	file, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "cvm: open %s", path)
	}
	defer file.Close() //nolint:errcheck

	return eachRow(ctx, file, func(f *Frame) func([]string) {
		cnpj := f.Getter("CNPJ_FUNDO_CLASSE", "CNPJ_FUNDO")
		date := f.Getter("DT_COMPTC")
		var countCols []int
		for i, c := range f.Columns {
			if strings.HasPrefix(c, shareholderCountPrefix) {
				countCols = append(countCols, i)
			}
		}
		return func(row []string) {
			key, ok := rowKey(row, cnpj, date, filter)
			if !ok {
				return
			}
			total := 0.0
			for _, i := range countCols {
				if i >= len(row) {
					continue
				}
				if v, ok := transform.ParseDecimal(row[i]); ok {
					total += v
				}
			}
			profile.add(key, math.Round(total))
		}
	})
}

// eachRow streams a CVM CSV, building a per-row handler from the header.
func eachRow(ctx context.Context, r io.Reader, handler func(header *Frame) func(row []string)) error {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CVMCSVOptions())

	var handle func([]string)
	for row := range rowCh {
		if handle == nil {
			handle = handler(&Frame{Columns: row})
			continue
		}
		handle(row)
	}
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// joinShareholders left-joins the profile counts with the net asset values.
// Without profile rows, every NAV row is emitted with a null count.
func joinShareholders(profile, nav *sums[fundDate]) []model.Shareholders {
	if profile.len() == 0 {
		out := make([]model.Shareholders, 0, nav.len())
		for _, k := range nav.order {
			out = append(out, model.Shareholders{
				CNPJ:              k.cnpj,
				DataReferencia:    k.date,
				PatrimonioLiquido: model.Float(nav.values[k]),
				Fonte:             model.SourceCVM,
			})
		}
		return out
	}

	out := make([]model.Shareholders, 0, profile.len())
	for _, k := range profile.order {
		s := model.Shareholders{
			CNPJ:           k.cnpj,
			DataReferencia: k.date,
			NumeroCotistas: model.Int(int64(profile.values[k])),
			Fonte:          model.SourceCVM,
		}
		if v, ok := nav.values[k]; ok {
			s.PatrimonioLiquido = model.Float(v)
		}
		out = append(out, s)
	}
	return out
}
