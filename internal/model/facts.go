package model

import "time"

// DailyQuote is one row of fato_cota_diaria.
type DailyQuote struct {
	CNPJ              string
	DataCotacao       time.Time // zero when the source date was missing or unparsable
	ValorTotal        *float64
	ValorCota         *float64
	PatrimonioLiquido *float64
	Captacoes         *float64
	Resgates          *float64
	NumeroCotistas    *int64
	Fonte             string
}

// Holding is one row of fato_carteira_mensal.
type Holding struct {
	CNPJ           string
	DataReferencia time.Time
	TipoAtivo      string
	Emissor        string
	ISIN           string
	ValorMercado   *float64
	Quantidade     *float64
	Fonte          string
}

// Shareholders is one row of fato_cotistas_mensal.
type Shareholders struct {
	CNPJ              string
	DataReferencia    time.Time
	NumeroCotistas    *int64
	PatrimonioLiquido *float64
	Fonte             string
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int64) *int64 { return &v }
