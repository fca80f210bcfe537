package cvm

import (
	"slices"

	"github.com/sells-group/fundsync/internal/model"
)

// BuildDimensions projects the fund list into dim_fundo and the distinct,
// sorted dim_gestora, dim_categoria_cvm and dim_classe_anbima values.
func BuildDimensions(funds []model.Fund, tables *model.Tables) {
	tables.Funds = slices.Clone(funds)
	tables.Gestoras = distinct(funds, func(f model.Fund) string { return f.Gestora })
	tables.CategoriasCVM = distinct(funds, func(f model.Fund) string { return f.CategoriaCVM })
	tables.ClassesAnbima = distinct(funds, func(f model.Fund) string { return f.ClasseAnbima })
}

func distinct(funds []model.Fund, field func(model.Fund) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range funds {
		v := field(f)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
