package cvm

import (
	"context"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/fetcher"
	"github.com/sells-group/fundsync/internal/model"
	"github.com/sells-group/fundsync/internal/transform"
)

// Member name substrings inside the INF_MENSAL archive.
const (
	portfolioMember    = "carteira"
	shareholdersMember = "cotist"
)

// IngestMonthly downloads the INF_MENSAL archives at urls and parses their
// portfolio and shareholder members independently. Any failure is logged and
// skipped, so both results may be empty.
func (p *Pipeline) IngestMonthly(ctx context.Context, urls []string) ([]model.Holding, []model.Shareholders) {
	dir := filepath.Join(p.Workdir, "cvm", "inf_mensal")

	var portfolio, holders Frame
	loaded := 0
	for _, u := range urls {
		dest := filepath.Join(dir, path.Base(u))
		if _, err := p.Fetcher.DownloadToFile(ctx, u, dest); err != nil {
			p.logger().Error("could not download monthly archive", zap.String("url", u), zap.Error(err))
			continue
		}

		if f, err := p.loadMember(ctx, dest, portfolioMember); err != nil {
			p.logger().Warn("failed to load portfolio data", zap.String("path", dest), zap.Error(err))
		} else {
			portfolio.Append(f)
			loaded++
		}

		if f, err := p.loadMember(ctx, dest, shareholdersMember); err != nil {
			p.logger().Warn("failed to load shareholder data", zap.String("path", dest), zap.Error(err))
		} else {
			holders.Append(f)
			loaded++
		}
	}

	if loaded == 0 {
		p.logger().Warn("no INF_MENSAL file was downloaded successfully")
	}
	return monthlyHoldings(portfolio), monthlyShareholders(holders)
}

func (p *Pipeline) loadMember(ctx context.Context, zipPath, substr string) (Frame, error) {
	rc, name, err := fetcher.OpenZIPMember(zipPath, fetcher.NameContains(substr))
	if err != nil {
		return Frame{}, err
	}
	defer rc.Close() //nolint:errcheck
	p.logger().Debug("parsing archive member", zap.String("member", name))
	return ReadFrame(ctx, rc, nil)
}

func monthlyHoldings(f Frame) []model.Holding {
	cnpj := f.Getter(idColumns...)
	date := f.Getter("DT_COMPTC")
	tipo := f.Getter("TP_ATIVO", "TP_APLIC")
	emissor := f.Getter("EMISSOR")
	isin := f.Getter("CD_ISIN", "COD_ISIN")
	valor := f.Getter("VL_MERC_POS_FINAL")
	qtd := f.Getter("QT_POS_FINAL")

	out := make([]model.Holding, 0, len(f.Rows))
	for _, row := range f.Rows {
		out = append(out, model.Holding{
			CNPJ:           transform.NormalizeCNPJ(cnpj(row)),
			DataReferencia: transform.ParseDateOr(date(row), transform.ISODate),
			TipoAtivo:      tipo(row),
			Emissor:        emissor(row),
			ISIN:           isin(row),
			ValorMercado:   transform.DecimalPtr(valor(row)),
			Quantidade:     transform.DecimalPtr(qtd(row)),
			Fonte:          model.SourceCVM,
		})
	}
	return out
}

func monthlyShareholders(f Frame) []model.Shareholders {
	cnpj := f.Getter(idColumns...)
	date := f.Getter("DT_COMPTC")
	cotst := f.Getter("QT_COTISTAS", "NR_COTST")
	pl := f.Getter("VL_PATRIM_LIQ")

	out := make([]model.Shareholders, 0, len(f.Rows))
	for _, row := range f.Rows {
		out = append(out, model.Shareholders{
			CNPJ:              transform.NormalizeCNPJ(cnpj(row)),
			DataReferencia:    transform.ParseDateOr(date(row), transform.ISODate),
			NumeroCotistas:    transform.CountPtr(cotst(row)),
			PatrimonioLiquido: transform.DecimalPtr(pl(row)),
			Fonte:             model.SourceCVM,
		})
	}
	return out
}
