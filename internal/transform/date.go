package transform

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ISODate is the layout used by every CVM dataset and by all outputs.
const ISODate = "2006-01-02"

// DayFirstDate is the layout used by B3 spreadsheets.
const DayFirstDate = "02/01/2006"

var strftimeTokens = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%b", "Jan",
	"%%", "%",
)

// StrftimeLayout converts a strftime pattern such as "%d/%m/%Y" into a Go layout.
// Layouts without a '%' are returned unchanged.
func StrftimeLayout(format string) string {
	if !strings.Contains(format, "%") {
		return format
	}
	return strftimeTokens.Replace(format)
}

// ParseDate tries each layout in order and returns the first successful parse.
// Layouts may be Go reference layouts or strftime patterns.
func ParseDate(value string, layouts ...string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range layouts {
		t, err := time.Parse(StrftimeLayout(layout), value)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("transform: unable to parse date %q with layouts %v", value, layouts)
}

// ParseDateOr returns the parsed date or the zero time when no layout matches.
func ParseDateOr(value string, layouts ...string) time.Time {
	t, err := ParseDate(value, layouts...)
	if err != nil {
		return time.Time{}
	}
	return t
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
