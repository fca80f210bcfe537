// Package model defines the fund, fact and dimension rows produced by the pipeline.
package model

// Source tags written to the fonte column.
const (
	SourceCVM = "CVM"
	SourceB3  = "B3"
)

// Fund is one monitored fund as declared in the pipeline configuration.
// ClasseAnbima and GrupoLooker are optional; empty means absent.
type Fund struct {
	CNPJ         string `json:"cnpj" yaml:"cnpj" mapstructure:"cnpj"`
	Nome         string `json:"nome" yaml:"nome" mapstructure:"nome"`
	CategoriaCVM string `json:"categoria_cvm" yaml:"categoria_cvm" mapstructure:"categoria_cvm"`
	Gestora      string `json:"gestora" yaml:"gestora" mapstructure:"gestora"`
	ClasseAnbima string `json:"classe_anbima,omitempty" yaml:"classe_anbima,omitempty" mapstructure:"classe_anbima"`
	GrupoLooker  string `json:"grupo_looker,omitempty" yaml:"grupo_looker,omitempty" mapstructure:"grupo_looker"`
}

// Label renders the fund as "nome (cnpj)".
func (f Fund) Label() string {
	return f.Nome + " (" + f.CNPJ + ")"
}

// FundIDs returns the identifiers of funds as a set.
func FundIDs(funds []Fund) map[string]struct{} {
	ids := make(map[string]struct{}, len(funds))
	for _, f := range funds {
		ids[f.CNPJ] = struct{}{}
	}
	return ids
}
