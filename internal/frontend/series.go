package frontend

import (
	"cmp"
	"slices"
	"time"

	"github.com/sells-group/fundsync/internal/model"
	"github.com/sells-group/fundsync/internal/transform"
)

// topHoldings is the number of positions in the latest holdings snapshot.
const topHoldings = 10

func day(t time.Time) string { return t.Format(model.DateLayout) }

func orZero[T int64 | float64](v *T) T {
	if v == nil {
		return 0
	}
	return *v
}

func roundedPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	r := transform.Round(*v, places)
	return &r
}

// dailySeries keeps the dated rows with a positive quota value, sorted by
// date, and chains the period-over-period return starting at zero.
func dailySeries(rows []model.DailyQuote) ([]DailyRecord, *Snapshot) {
	rows = slices.DeleteFunc(slices.Clone(rows), func(q model.DailyQuote) bool {
		return q.DataCotacao.IsZero() || q.ValorCota == nil || *q.ValorCota <= 0
	})
	slices.SortStableFunc(rows, func(a, b model.DailyQuote) int { return a.DataCotacao.Compare(b.DataCotacao) })

	out := make([]DailyRecord, 0, len(rows))
	for i, q := range rows {
		ret := 0.0
		if i > 0 {
			ret = (*q.ValorCota / *rows[i-1].ValorCota - 1) * 100
		}
		out = append(out, DailyRecord{
			Data:              day(q.DataCotacao),
			ValorCota:         transform.Round(*q.ValorCota, 6),
			PatrimonioLiquido: transform.Round(orZero(q.PatrimonioLiquido), 2),
			NumeroCotistas:    orZero(q.NumeroCotistas),
			RetornoPct:        transform.Round(ret, 4),
		})
	}
	if len(rows) == 0 {
		return out, nil
	}

	last := rows[len(rows)-1]
	return out, &Snapshot{
		Data:              day(last.DataCotacao),
		ValorCota:         roundedPtr(last.ValorCota, 6),
		PatrimonioLiquido: roundedPtr(last.PatrimonioLiquido, 2),
		NumeroCotistas:    last.NumeroCotistas,
	}
}

func shareholderSeries(rows []model.Shareholders) ([]ShareholderRecord, *ShareholderSnapshot) {
	rows = slices.DeleteFunc(slices.Clone(rows), func(s model.Shareholders) bool { return s.DataReferencia.IsZero() })
	slices.SortStableFunc(rows, func(a, b model.Shareholders) int { return a.DataReferencia.Compare(b.DataReferencia) })

	out := make([]ShareholderRecord, 0, len(rows))
	for _, s := range rows {
		out = append(out, ShareholderRecord{
			Data:              day(s.DataReferencia),
			NumeroCotistas:    orZero(s.NumeroCotistas),
			PatrimonioLiquido: transform.Round(orZero(s.PatrimonioLiquido), 2),
		})
	}
	if len(rows) == 0 {
		return out, nil
	}

	last := rows[len(rows)-1]
	return out, &ShareholderSnapshot{
		Data:              day(last.DataReferencia),
		NumeroCotistas:    last.NumeroCotistas,
		PatrimonioLiquido: roundedPtr(last.PatrimonioLiquido, 2),
	}
}

type typeKey struct {
	date time.Time
	tipo string
}

// portfolioSeries builds the per-type and per-asset views and the latest
// holdings snapshot. Shares of a zero-total date are 0.
func portfolioSeries(rows []model.Holding) ([]AssetTypeRecord, []AssetRecord, HoldingsSnapshot) {
	latest := HoldingsSnapshot{Top: []TopHolding{}}

	rows = slices.DeleteFunc(slices.Clone(rows), func(h model.Holding) bool { return h.DataReferencia.IsZero() })
	slices.SortStableFunc(rows, func(a, b model.Holding) int { return a.DataReferencia.Compare(b.DataReferencia) })
	if len(rows) == 0 {
		return []AssetTypeRecord{}, []AssetRecord{}, latest
	}

	// By type: sum, keep positive, round, then share of the rounded date total.
	sums := make(map[typeKey]float64)
	for _, h := range rows {
		if h.ValorMercado != nil {
			sums[typeKey{h.DataReferencia, h.TipoAtivo}] += *h.ValorMercado
		}
	}
	keys := make([]typeKey, 0, len(sums))
	dateTotals := make(map[time.Time]float64)
	for k, v := range sums {
		if v <= 0 {
			continue
		}
		sums[k] = transform.Round(v, 2)
		dateTotals[k.date] += sums[k]
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b typeKey) int {
		if c := a.date.Compare(b.date); c != 0 {
			return c
		}
		if (a.tipo == "") != (b.tipo == "") {
			if a.tipo == "" {
				return 1
			}
			return -1
		}
		return cmp.Compare(a.tipo, b.tipo)
	})
	byType := make([]AssetTypeRecord, 0, len(keys))
	for _, k := range keys {
		byType = append(byType, AssetTypeRecord{
			Data:         day(k.date),
			TipoAtivo:    optional(k.tipo),
			ValorMercado: sums[k],
			Percentual:   transform.Round(share(sums[k], dateTotals[k.date]), 2),
		})
	}

	// By asset: positive positions, share of the unrounded date total.
	assetTotals := make(map[time.Time]float64)
	for _, h := range rows {
		if positive(h) {
			assetTotals[h.DataReferencia] += *h.ValorMercado
		}
	}
	byAsset := make([]AssetRecord, 0, len(rows))
	for _, h := range rows {
		if !positive(h) {
			continue
		}
		byAsset = append(byAsset, AssetRecord{
			Data:         day(h.DataReferencia),
			TipoAtivo:    optional(h.TipoAtivo),
			Emissor:      optional(h.Emissor),
			ISIN:         optional(h.ISIN),
			ValorMercado: transform.Round(*h.ValorMercado, 2),
			Percentual:   transform.Round(share(*h.ValorMercado, assetTotals[h.DataReferencia]), 4),
		})
	}

	// Latest date: every row of that date, largest first.
	latestDate := rows[len(rows)-1].DataReferencia
	var current []model.Holding
	total := 0.0
	for _, h := range rows {
		if h.DataReferencia.Equal(latestDate) {
			current = append(current, h)
			total += orZero(h.ValorMercado)
		}
	}
	slices.SortStableFunc(current, func(a, b model.Holding) int {
		return cmp.Compare(orZero(b.ValorMercado), orZero(a.ValorMercado))
	})
	if len(current) > topHoldings {
		current = current[:topHoldings]
	}
	d := day(latestDate)
	latest.Data = &d
	latest.Total = transform.Round(total, 2)
	for _, h := range current {
		latest.Top = append(latest.Top, TopHolding{
			Emissor:      optional(h.Emissor),
			ISIN:         optional(h.ISIN),
			TipoAtivo:    optional(h.TipoAtivo),
			ValorMercado: transform.Round(orZero(h.ValorMercado), 2),
			Percentual:   transform.Round(share(orZero(h.ValorMercado), total), 2),
		})
	}
	return byType, byAsset, latest
}

func positive(h model.Holding) bool {
	return h.ValorMercado != nil && *h.ValorMercado > 0
}

// share returns v as a percentage of total, or 0 for a zero total.
func share(v, total float64) float64 {
	if total == 0 {
		return 0
	}
	return v / total * 100
}
