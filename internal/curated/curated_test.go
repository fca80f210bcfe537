package curated

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fundsync/internal/model"
)

func quote(cnpj string, d int, cota, pl float64) model.DailyQuote {
	return model.DailyQuote{
		CNPJ:              cnpj,
		DataCotacao:       time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC),
		ValorCota:         model.Float(cota),
		PatrimonioLiquido: model.Float(pl),
		Fonte:             model.SourceCVM,
	}
}

func testTables() *model.Tables {
	return &model.Tables{
		DailyQuotes: []model.DailyQuote{
			quote("1", 1, 1.0, 100),
			quote("1", 1, 1.2, 120),
			quote("2", 2, 1.5, 200),
			quote("3", 1, 9, 900),
		},
		Funds: []model.Fund{
			{CNPJ: "1", Nome: "Um", CategoriaCVM: "A", Gestora: "G1", GrupoLooker: "Grupo1"},
			{CNPJ: "2", Nome: "Dois", CategoriaCVM: "B", Gestora: "G2"},
		},
	}
}

func byName(t *testing.T, tables []model.Table, name string) model.Table {
	t.Helper()
	for _, tb := range tables {
		if tb.Name == name {
			return tb
		}
	}
	require.Failf(t, "table not found", "%s", name)
	return model.Table{}
}

func TestBuildCuratedTables_ByCategory(t *testing.T) {
	out := BuildCuratedTables(testTables())
	require.Len(t, out, 3)

	cat := byName(t, out, model.TableCuratedCateg)
	assert.Equal(t, []string{"data_cotacao", "categoria_cvm", "valor_cota", "patrimonio_liquido"}, cat.Columns)
	require.Len(t, cat.Rows, 3)

	jan1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, jan1, cat.Rows[0][0])
	assert.Equal(t, "A", cat.Rows[0][1])
	assert.InDelta(t, 1.1, cat.Rows[0][2].(float64), 1e-9)
	assert.InDelta(t, 220, cat.Rows[0][3].(float64), 1e-9)

	// The unmatched fund forms the null group after the named one on the same date.
	assert.Equal(t, jan1, cat.Rows[1][0])
	assert.Nil(t, cat.Rows[1][1])
	assert.InDelta(t, 900, cat.Rows[1][3].(float64), 1e-9)

	assert.Equal(t, "B", cat.Rows[2][1])

	keys := map[any]bool{}
	for _, r := range cat.Rows {
		if r[1] != nil {
			keys[r[1]] = true
		}
	}
	assert.Equal(t, map[any]bool{"A": true, "B": true}, keys)
}

func TestBuildCuratedTables_EmptyGroupValueIsNull(t *testing.T) {
	out := BuildCuratedTables(testTables())

	grupo := byName(t, out, model.TableCuratedGrupo)
	require.Len(t, grupo.Rows, 3)
	assert.Equal(t, "Grupo1", grupo.Rows[0][1])
	assert.Nil(t, grupo.Rows[1][1])
	assert.Nil(t, grupo.Rows[2][1])
}

func TestBuildCuratedTables_NullQuoteIsIgnoredByMean(t *testing.T) {
	tables := testTables()
	tables.DailyQuotes = append(tables.DailyQuotes, model.DailyQuote{
		CNPJ:        "1",
		DataCotacao: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	cat := byName(t, BuildCuratedTables(tables), model.TableCuratedCateg)
	assert.InDelta(t, 1.1, cat.Rows[0][2].(float64), 1e-9)
	assert.InDelta(t, 220, cat.Rows[0][3].(float64), 1e-9)
}

func TestBuildCuratedTables_EmptyFacts(t *testing.T) {
	assert.Empty(t, BuildCuratedTables(&model.Tables{Funds: testTables().Funds}))
	assert.Empty(t, BuildCuratedTables(nil))
}
