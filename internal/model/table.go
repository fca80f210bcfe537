package model

import (
	"strconv"
	"time"
)

// Table names.
const (
	TableDailyQuotes    = "fato_cota_diaria"
	TableHoldings       = "fato_carteira_mensal"
	TableShareholders   = "fato_cotistas_mensal"
	TableDimFundo       = "dim_fundo"
	TableDimGestora     = "dim_gestora"
	TableDimCategoria   = "dim_categoria_cvm"
	TableDimClasse      = "dim_classe_anbima"
	TableCuratedCateg   = "curated_cotas_por_categoria"
	TableCuratedGestora = "curated_cotas_por_gestora"
	TableCuratedGrupo   = "curated_cotas_por_grupo_looker"
)

// DateLayout is the layout used for every date cell.
const DateLayout = "2006-01-02"

// Column sets of the fact tables.
var (
	DailyQuoteColumns = []string{
		"cnpj", "data_cotacao", "valor_total", "valor_cota", "patrimonio_liquido",
		"captacoes", "resgates", "numero_cotistas", "fonte",
	}
	HoldingColumns = []string{
		"cnpj", "data_referencia", "tipo_ativo", "emissor", "isin",
		"valor_mercado", "quantidade", "fonte",
	}
	ShareholderColumns = []string{
		"cnpj", "data_referencia", "numero_cotistas", "patrimonio_liquido", "fonte",
	}
	FundColumns = []string{
		"cnpj", "nome", "categoria_cvm", "gestora", "classe_anbima", "grupo_looker",
	}
)

// Table is a named rectangular rendering of a set of rows. Cells hold
// string, float64, int64, time.Time or nil for null.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Tables is the full set of facts and dimensions assembled by a run.
type Tables struct {
	DailyQuotes   []DailyQuote
	Holdings      []Holding
	Shareholders  []Shareholders
	Funds         []Fund
	Gestoras      []string
	CategoriasCVM []string
	ClassesAnbima []string
}

// Staging renders the fact and dimension tables in output order.
func (t *Tables) Staging() []Table {
	return []Table{
		DailyQuoteTable(t.DailyQuotes),
		HoldingTable(t.Holdings),
		ShareholderTable(t.Shareholders),
		FundTable(t.Funds),
		valueTable(TableDimGestora, "gestora", t.Gestoras),
		valueTable(TableDimCategoria, "categoria_cvm", t.CategoriasCVM),
		valueTable(TableDimClasse, "classe_anbima", t.ClassesAnbima),
	}
}

// DailyQuoteTable renders fato_cota_diaria.
func DailyQuoteTable(rows []DailyQuote) Table {
	out := Table{Name: TableDailyQuotes, Columns: DailyQuoteColumns, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, []any{
			r.CNPJ, date(r.DataCotacao), float(r.ValorTotal), float(r.ValorCota),
			float(r.PatrimonioLiquido), float(r.Captacoes), float(r.Resgates),
			integer(r.NumeroCotistas), r.Fonte,
		})
	}
	return out
}

// HoldingTable renders fato_carteira_mensal.
func HoldingTable(rows []Holding) Table {
	out := Table{Name: TableHoldings, Columns: HoldingColumns, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, []any{
			r.CNPJ, date(r.DataReferencia), text(r.TipoAtivo), text(r.Emissor), text(r.ISIN),
			float(r.ValorMercado), float(r.Quantidade), r.Fonte,
		})
	}
	return out
}

// ShareholderTable renders fato_cotistas_mensal.
func ShareholderTable(rows []Shareholders) Table {
	out := Table{Name: TableShareholders, Columns: ShareholderColumns, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, []any{
			r.CNPJ, date(r.DataReferencia), integer(r.NumeroCotistas),
			float(r.PatrimonioLiquido), r.Fonte,
		})
	}
	return out
}

// FundTable renders dim_fundo.
func FundTable(funds []Fund) Table {
	out := Table{Name: TableDimFundo, Columns: FundColumns, Rows: make([][]any, 0, len(funds))}
	for _, f := range funds {
		out.Rows = append(out.Rows, []any{
			f.CNPJ, f.Nome, text(f.CategoriaCVM), text(f.Gestora),
			text(f.ClasseAnbima), text(f.GrupoLooker),
		})
	}
	return out
}

func valueTable(name, column string, values []string) Table {
	out := Table{Name: name, Columns: []string{column}, Rows: make([][]any, 0, len(values))}
	for _, v := range values {
		out.Rows = append(out.Rows, []any{v})
	}
	return out
}

func date(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func float(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func integer(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func text(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// FormatCell renders a cell for CSV and text COPY. Null renders as "" with ok=false.
func FormatCell(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case time.Time:
		return x.Format(DateLayout), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// StringRows renders every cell of t with FormatCell.
func (t Table) StringRows() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j], _ = FormatCell(v)
		}
		out[i] = cells
	}
	return out
}
