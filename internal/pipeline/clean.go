package pipeline

import (
	"slices"

	"github.com/sells-group/fundsync/internal/model"
)

// Clean drops daily quotes without a date, a positive valor_cota or a
// patrimonio_liquido, holdings without a positive value and shareholder rows
// without a date. It returns the number of dropped rows per table.
func Clean(t *model.Tables) map[string]int {
	dropped := make(map[string]int, 3)

	n := len(t.DailyQuotes)
	t.DailyQuotes = slices.DeleteFunc(t.DailyQuotes, func(q model.DailyQuote) bool {
		return q.DataCotacao.IsZero() || q.ValorCota == nil || *q.ValorCota <= 0 || q.PatrimonioLiquido == nil
	})
	dropped[model.TableDailyQuotes] = n - len(t.DailyQuotes)

	n = len(t.Holdings)
	t.Holdings = slices.DeleteFunc(t.Holdings, func(h model.Holding) bool {
		return h.ValorMercado == nil || *h.ValorMercado <= 0
	})
	dropped[model.TableHoldings] = n - len(t.Holdings)

	n = len(t.Shareholders)
	t.Shareholders = slices.DeleteFunc(t.Shareholders, func(s model.Shareholders) bool {
		return s.DataReferencia.IsZero()
	})
	dropped[model.TableShareholders] = n - len(t.Shareholders)

	return dropped
}
