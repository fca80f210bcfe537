// Package cvm downloads and parses the CVM fund datasets (INF_DIARIO,
// INF_MENSAL, CDA and PERFIL_MENSAL) into typed fact rows.
package cvm

import (
	"iter"
	"time"

	"github.com/sells-group/fundsync/internal/transform"
)

// MonthWindow yields months first-of-month dates walking backward from the
// month of end, after skipping the skip most recent months.
func MonthWindow(end time.Time, months, skip int) iter.Seq[time.Time] {
	if skip < 0 {
		skip = 0
	}
	start := transform.MonthStart(end).AddDate(0, -skip, 0)
	return func(yield func(time.Time) bool) {
		for i := range months {
			if !yield(start.AddDate(0, -i, 0)) {
				return
			}
		}
	}
}

func yearMonth(t time.Time) string {
	return t.Format("200601")
}
