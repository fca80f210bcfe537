package cvm

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthWindow_YearRollover(t *testing.T) {
	end := time.Date(2024, 2, 20, 15, 4, 5, 0, time.UTC)

	got := slices.Collect(MonthWindow(end, 3, 0))
	assert.Equal(t, []time.Time{day(2024, 2, 1), day(2024, 1, 1), day(2023, 12, 1)}, got)
}

func TestMonthWindow_Skip(t *testing.T) {
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	got := slices.Collect(MonthWindow(end, 2, 2))
	assert.Equal(t, []time.Time{day(2023, 11, 1), day(2023, 10, 1)}, got)
}

func TestMonthWindow_ExactLengthAndEarlyStop(t *testing.T) {
	end := time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.Len(t, slices.Collect(MonthWindow(end, 24, 0)), 24)
	assert.Empty(t, slices.Collect(MonthWindow(end, 0, 0)))

	var first []time.Time
	for m := range MonthWindow(end, 10, 0) {
		first = append(first, m)
		if len(first) == 2 {
			break
		}
	}
	assert.Equal(t, []time.Time{day(2023, 3, 1), day(2023, 2, 1)}, first)
}

func TestSourcesURLs(t *testing.T) {
	s := Sources{}
	months := MonthWindow(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), 1, 0)

	assert.Equal(t, []string{
		"https://dados.cvm.gov.br/dados/FI/DOC/INF_DIARIO/DADOS/inf_diario_fi_202405.zip",
		"https://dados.cvm.gov.br/dados/FIM/DOC/INF_DIARIO/DADOS/inf_diario_fim_202405.zip",
	}, s.DailyURLs(months))
	assert.Equal(t, []string{
		"https://dados.cvm.gov.br/dados/FI/DOC/INF_MENSAL/DADOS/inf_mensal_fi_202405.zip",
	}, s.MonthlyURLs(months))

	custom := Sources{BaseURL: "http://localhost:9/"}
	assert.Equal(t, "http://localhost:9/FI/DOC/CDA/DADOS/cda_fi_202405.zip", custom.CDAURL(day(2024, 5, 1)))
	assert.Equal(t, "http://localhost:9/FI/DOC/PERFIL_MENSAL/DADOS/perfil_mensal_fi_202405.csv", custom.PerfilURL(day(2024, 5, 1)))
}
