package cvm

import (
	"context"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fundsync/internal/fetcher"
	"github.com/sells-group/fundsync/internal/model"
	"github.com/sells-group/fundsync/internal/transform"
)

// dailyColumns renames INF_DIARIO columns to fato_cota_diaria names.
var dailyColumns = map[string]string{
	"CNPJ_FUNDO":        "cnpj",
	"CNPJ_FUNDO_CLASSE": "cnpj",
	"DT_COMPTC":         "data_cotacao",
	"VL_TOTAL":          "valor_total",
	"VL_QUOTA":          "valor_cota",
	"VL_PATRIM_LIQ":     "patrimonio_liquido",
	"CAPTC_DIA":         "captacoes",
	"RESG_DIA":          "resgates",
	"NR_COTST":          "numero_cotistas",
}

// loadArchiveCSV opens the single CSV inside zipPath and reads it as a Frame.
func loadArchiveCSV(ctx context.Context, zipPath string, filter map[string]struct{}) (Frame, error) {
	rc, _, err := fetcher.OpenZIPMember(zipPath, fetcher.IsCSVName)
	if err != nil {
		return Frame{}, err
	}
	defer rc.Close() //nolint:errcheck
	return ReadFrame(ctx, rc, filter)
}

// IngestDaily downloads and parses the INF_DIARIO archives at urls. Failed
// URLs are logged and skipped; ErrAllSourcesFailed is returned only when every
// URL failed to download or parse.
func (p *Pipeline) IngestDaily(ctx context.Context, urls []string, filter map[string]struct{}) ([]model.DailyQuote, error) {
	dir := filepath.Join(p.Workdir, "cvm", "inf_diario")

	frames := make([]*Frame, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.downloads())
	for i, u := range urls {
		g.Go(func() error {
			dest := filepath.Join(dir, path.Base(u))
			if _, err := p.Fetcher.DownloadToFile(gctx, u, dest); err != nil {
				p.logger().Error("could not download daily archive", zap.String("url", u), zap.Error(err))
				return nil
			}
			frame, err := loadArchiveCSV(gctx, dest, filter)
			if err != nil {
				p.logger().Error("failed to parse daily archive", zap.String("path", dest), zap.Error(err))
				return nil
			}
			// Rename per file: older archives carry CNPJ_FUNDO, newer ones
			// CNPJ_FUNDO_CLASSE, and both become cnpj.
			renamed := frame.Rename(dailyColumns)
			frames[i] = &renamed
			return nil
		})
	}
	_ = g.Wait() // workers never fail; errors are logged per URL

	var merged Frame
	succeeded := 0
	for _, f := range frames {
		if f == nil {
			continue
		}
		succeeded++
		merged.Append(*f)
	}

	if succeeded == 0 {
		return nil, eris.Wrapf(ErrAllSourcesFailed, "cvm: no INF_DIARIO file was downloaded and parsed (%d urls)", len(urls))
	}
	if merged.Empty() {
		p.logger().Warn("daily archives contained no rows for the monitored funds", zap.Int("files", succeeded))
	}

	return dailyQuotes(merged), nil
}

func dailyQuotes(f Frame) []model.DailyQuote {
	cnpj := f.Getter("cnpj")
	date := f.Getter("data_cotacao")
	total := f.Getter("valor_total")
	cota := f.Getter("valor_cota")
	pl := f.Getter("patrimonio_liquido")
	capt := f.Getter("captacoes")
	resg := f.Getter("resgates")
	cotst := f.Getter("numero_cotistas")
	hasCotst := f.Has("numero_cotistas")

	out := make([]model.DailyQuote, 0, len(f.Rows))
	for _, row := range f.Rows {
		q := model.DailyQuote{
			CNPJ:              transform.NormalizeCNPJ(cnpj(row)),
			DataCotacao:       transform.ParseDateOr(date(row), transform.ISODate),
			ValorTotal:        transform.DecimalPtr(total(row)),
			ValorCota:         transform.DecimalPtr(cota(row)),
			PatrimonioLiquido: transform.DecimalPtr(pl(row)),
			Captacoes:         transform.DecimalPtr(capt(row)),
			Resgates:          transform.DecimalPtr(resg(row)),
			Fonte:             model.SourceCVM,
		}
		if hasCotst {
			q.NumeroCotistas = transform.CountPtr(cotst(row))
		}
		out = append(out, q)
	}
	return out
}
