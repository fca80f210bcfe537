// Package curated aggregates the daily quotes by fund attributes.
package curated

import (
	"cmp"
	"slices"
	"time"

	"github.com/sells-group/fundsync/internal/model"
)

// dimension is one grouping attribute of dim_fundo.
type dimension struct {
	table  string
	column string
	value  func(model.Fund) string
}

var dimensions = []dimension{
	{model.TableCuratedCateg, "categoria_cvm", func(f model.Fund) string { return f.CategoriaCVM }},
	{model.TableCuratedGestora, "gestora", func(f model.Fund) string { return f.Gestora }},
	{model.TableCuratedGrupo, "grupo_looker", func(f model.Fund) string { return f.GrupoLooker }},
}

type groupKey struct {
	date time.Time
	key  string
}

type group struct {
	cotaSum   float64
	cotaCount int
	plSum     float64
}

// BuildCuratedTables joins the daily quotes to dim_fundo on cnpj and returns,
// per grouping attribute, the mean valor_cota and the summed
// patrimonio_liquido for each (data_cotacao, value). Quotes of funds missing
// from dim_fundo, or with an empty attribute, fall in a null group sorted
// last. Empty daily facts yield no tables.
func BuildCuratedTables(tables *model.Tables) []model.Table {
	if tables == nil || len(tables.DailyQuotes) == 0 {
		return nil
	}

	funds := make(map[string]model.Fund, len(tables.Funds))
	for _, f := range tables.Funds {
		if _, ok := funds[f.CNPJ]; !ok {
			funds[f.CNPJ] = f
		}
	}

	out := make([]model.Table, 0, len(dimensions))
	for _, d := range dimensions {
		out = append(out, aggregate(d, tables.DailyQuotes, funds))
	}
	return out
}

func aggregate(d dimension, quotes []model.DailyQuote, funds map[string]model.Fund) model.Table {
	groups := make(map[groupKey]*group)
	for _, q := range quotes {
		k := groupKey{date: q.DataCotacao, key: d.value(funds[q.CNPJ])}
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
		}
		if q.ValorCota != nil {
			g.cotaSum += *q.ValorCota
			g.cotaCount++
		}
		if q.PatrimonioLiquido != nil {
			g.plSum += *q.PatrimonioLiquido
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)

	t := model.Table{
		Name:    d.table,
		Columns: []string{"data_cotacao", d.column, "valor_cota", "patrimonio_liquido"},
		Rows:    make([][]any, 0, len(keys)),
	}
	for _, k := range keys {
		g := groups[k]
		var mean any
		if g.cotaCount > 0 {
			mean = g.cotaSum / float64(g.cotaCount)
		}
		var date, key any
		if !k.date.IsZero() {
			date = k.date
		}
		if k.key != "" {
			key = k.key
		}
		t.Rows = append(t.Rows, []any{date, key, mean, g.plSum})
	}
	return t
}

// compareKeys orders by date then key, with null dates and keys last.
func compareKeys(a, b groupKey) int {
	if c := nullsLast(a.date.IsZero(), b.date.IsZero()); c != 0 {
		return c
	}
	if c := a.date.Compare(b.date); c != 0 {
		return c
	}
	if c := nullsLast(a.key == "", b.key == ""); c != 0 {
		return c
	}
	return cmp.Compare(a.key, b.key)
}

func nullsLast(aNull, bNull bool) int {
	switch {
	case aNull == bNull:
		return 0
	case aNull:
		return 1
	default:
		return -1
	}
}
