package cvm

import (
	"iter"
	"strings"
	"time"
)

// DefaultBaseURL is the root of the CVM open data portal.
const DefaultBaseURL = "https://dados.cvm.gov.br/dados"

// Sources builds dataset URLs relative to a base URL.
type Sources struct {
	BaseURL string
}

func (s Sources) base() string {
	if s.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(s.BaseURL, "/")
}

// DailyURLs returns the FI and FIM INF_DIARIO archive URLs for every month.
func (s Sources) DailyURLs(months iter.Seq[time.Time]) []string {
	var urls []string
	for m := range months {
		ym := yearMonth(m)
		urls = append(urls,
			s.base()+"/FI/DOC/INF_DIARIO/DADOS/inf_diario_fi_"+ym+".zip",
			s.base()+"/FIM/DOC/INF_DIARIO/DADOS/inf_diario_fim_"+ym+".zip",
		)
	}
	return urls
}

// MonthlyURLs returns the INF_MENSAL archive URL for every month.
func (s Sources) MonthlyURLs(months iter.Seq[time.Time]) []string {
	var urls []string
	for m := range months {
		urls = append(urls, s.base()+"/FI/DOC/INF_MENSAL/DADOS/inf_mensal_fi_"+yearMonth(m)+".zip")
	}
	return urls
}

// CDAURL returns the itemized holdings archive URL for month m.
func (s Sources) CDAURL(m time.Time) string {
	return s.base() + "/FI/DOC/CDA/DADOS/cda_fi_" + yearMonth(m) + ".zip"
}

// PerfilURL returns the monthly profile CSV URL for month m.
func (s Sources) PerfilURL(m time.Time) string {
	return s.base() + "/FI/DOC/PERFIL_MENSAL/DADOS/perfil_mensal_fi_" + yearMonth(m) + ".csv"
}
