package frontend

import "github.com/sells-group/fundsync/internal/model"

// Metadata describes one fund in its payload and in the index.
type Metadata struct {
	CNPJ         string  `json:"cnpj"`
	Nome         string  `json:"nome"`
	CategoriaCVM string  `json:"categoria_cvm"`
	Gestora      string  `json:"gestora"`
	ClasseAnbima *string `json:"classe_anbima"`
	GrupoLooker  *string `json:"grupo_looker"`
}

func metadata(f model.Fund) Metadata {
	return Metadata{
		CNPJ:         f.CNPJ,
		Nome:         f.Nome,
		CategoriaCVM: f.CategoriaCVM,
		Gestora:      f.Gestora,
		ClasseAnbima: optional(f.ClasseAnbima),
		GrupoLooker:  optional(f.GrupoLooker),
	}
}

type DailyRecord struct {
	Data              string  `json:"data"`
	ValorCota         float64 `json:"valor_cota"`
	PatrimonioLiquido float64 `json:"patrimonio_liquido"`
	NumeroCotistas    int64   `json:"numero_cotistas"`
	RetornoPct        float64 `json:"retorno_pct"`
}

type Snapshot struct {
	Data              string   `json:"data"`
	ValorCota         *float64 `json:"valor_cota"`
	PatrimonioLiquido *float64 `json:"patrimonio_liquido"`
	NumeroCotistas    *int64   `json:"numero_cotistas"`
}

type ShareholderRecord struct {
	Data              string  `json:"data"`
	NumeroCotistas    int64   `json:"numero_cotistas"`
	PatrimonioLiquido float64 `json:"patrimonio_liquido"`
}

type ShareholderSnapshot struct {
	Data              string   `json:"data"`
	NumeroCotistas    *int64   `json:"numero_cotistas"`
	PatrimonioLiquido *float64 `json:"patrimonio_liquido"`
}

// AssetTypeRecord is one (date, asset type) slice of the portfolio.
type AssetTypeRecord struct {
	Data         string  `json:"data"`
	TipoAtivo    *string `json:"tipo_ativo"`
	ValorMercado float64 `json:"valor_mercado"`
	Percentual   float64 `json:"percentual"`
}

// AssetRecord is one position of the portfolio on a date.
type AssetRecord struct {
	Data         string  `json:"data"`
	TipoAtivo    *string `json:"tipo_ativo"`
	Emissor      *string `json:"emissor"`
	ISIN         *string `json:"isin"`
	ValorMercado float64 `json:"valor_mercado"`
	Percentual   float64 `json:"percentual"`
}

type TopHolding struct {
	Emissor      *string `json:"emissor"`
	ISIN         *string `json:"isin"`
	TipoAtivo    *string `json:"tipo_ativo"`
	ValorMercado float64 `json:"valor_mercado"`
	Percentual   float64 `json:"percentual"`
}

// HoldingsSnapshot lists the largest positions of the most recent date.
type HoldingsSnapshot struct {
	Data  *string      `json:"data"`
	Total float64      `json:"total"`
	Top   []TopHolding `json:"top"`
}

type Series struct {
	Daily            []DailyRecord       `json:"daily"`
	Cotistas         []ShareholderRecord `json:"cotistas"`
	CarteiraPorTipo  []AssetTypeRecord   `json:"carteira_por_tipo"`
	CarteiraPorAtivo []AssetRecord       `json:"carteira_por_ativo"`
}

// Payload is the document written to funds/<cnpj>.json.
type Payload struct {
	Metadata       Metadata             `json:"metadata"`
	Series         Series               `json:"series"`
	LatestSnapshot *Snapshot            `json:"latest_snapshot"`
	LatestCotistas *ShareholderSnapshot `json:"latest_cotistas"`
	LatestHoldings HoldingsSnapshot     `json:"latest_holdings"`
}

// IndexEntry summarizes one fund in index.json.
type IndexEntry struct {
	Metadata
	DatasetPath     string `json:"dataset_path"`
	DailyRecords    int    `json:"daily_records"`
	CotistasRecords int    `json:"cotistas_records"`
	HasCarteira     bool   `json:"has_carteira"`
}

type Index struct {
	GeneratedAt string       `json:"generated_at"`
	Funds       []IndexEntry `json:"funds"`
}

// ProgressEntry is one line of progress.log.
type ProgressEntry struct {
	Timestamp string `json:"timestamp"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	CNPJ      string `json:"cnpj"`
	Nome      string `json:"nome"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
