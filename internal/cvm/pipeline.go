package cvm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/config"
	"github.com/sells-group/fundsync/internal/fetcher"
	"github.com/sells-group/fundsync/internal/model"
)

// DefaultFallbackSkips are the "skip most recent N months" offsets tried when
// INF_MENSAL yields nothing.
var DefaultFallbackSkips = []int{3, 4, 5, 6}

// DefaultDownloads is the number of daily archives fetched concurrently.
// One keeps the run sequential.
const DefaultDownloads = 1

// Pipeline runs the CVM ingestion for a fixed fund list.
type Pipeline struct {
	Fetcher       fetcher.Fetcher
	Sources       Sources
	Workdir       string
	Funds         []model.Fund
	Months        int
	SkipRecent    int
	FallbackSkips []int
	Downloads     int
	Now           func() time.Time

	log *zap.Logger
}

// NewPipeline builds a Pipeline from the loaded configuration.
func NewPipeline(cfg *config.Config, f fetcher.Fetcher, workdir string) *Pipeline {
	skips := cfg.FallbackSkips
	if len(skips) == 0 {
		skips = DefaultFallbackSkips
	}
	return &Pipeline{
		Fetcher:       f,
		Sources:       Sources{BaseURL: cfg.Sources.CVMBaseURL},
		Workdir:       workdir,
		Funds:         cfg.Fundos,
		Months:        cfg.MesesRetroativos,
		SkipRecent:    cfg.MesesIgnorarRecente,
		FallbackSkips: skips,
		Downloads:     cfg.HTTP.Concurrency,
		Now:           time.Now,
		log:           zap.L().With(zap.String("component", "cvm")),
	}
}

func (p *Pipeline) logger() *zap.Logger {
	if p.log == nil {
		p.log = zap.L().With(zap.String("component", "cvm"))
	}
	return p.log
}

func (p *Pipeline) downloads() int {
	if p.Downloads <= 0 {
		return DefaultDownloads
	}
	return p.Downloads
}

// Run ingests the daily quotes (fatal when every source fails), the monthly
// holdings with the fallback sequence, filters every fact to the monitored
// funds and builds the dimension tables.
func (p *Pipeline) Run(ctx context.Context) (*model.Tables, error) {
	log := p.logger()
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	today := now()
	monitored := model.FundIDs(p.Funds)

	months := MonthWindow(today, p.Months, p.SkipRecent)

	log.Info("downloading INF_DIARIO datasets", zap.Int("months", p.Months))
	daily, err := p.IngestDaily(ctx, p.Sources.DailyURLs(months), monitored)
	if err != nil {
		return nil, err
	}

	log.Info("downloading INF_MENSAL datasets", zap.Int("months", p.Months))
	holdings, holders := p.IngestMonthly(ctx, p.Sources.MonthlyURLs(months))

	if len(holdings) == 0 && len(holders) == 0 {
		holdings, holders = p.runFallback(ctx, today, monitored)
	}

	log.Info("filtering datasets for monitored funds", zap.Int("funds", len(monitored)))
	tables := &model.Tables{
		DailyQuotes:  filterByFund(daily, monitored, func(q model.DailyQuote) string { return q.CNPJ }),
		Holdings:     filterByFund(holdings, monitored, func(h model.Holding) string { return h.CNPJ }),
		Shareholders: filterByFund(holders, monitored, func(s model.Shareholders) string { return s.CNPJ }),
	}
	BuildDimensions(p.Funds, tables)
	return tables, nil
}

// runFallback tries each configured offset in order and stops at the first
// one that yields any holdings or shareholders.
func (p *Pipeline) runFallback(ctx context.Context, today time.Time, monitored map[string]struct{}) ([]model.Holding, []model.Shareholders) {
	log := p.logger()
	log.Info("falling back to CDA and PERFIL_MENSAL datasets")

	for _, skip := range p.FallbackSkips {
		if ctx.Err() != nil {
			break
		}
		log.Info("trying fallback window", zap.Int("skip_recent", skip))
		holdings, holders := p.IngestFallback(ctx, MonthWindow(today, p.Months, skip), monitored)
		if len(holdings) > 0 || len(holders) > 0 {
			log.Info("fallback found data",
				zap.Int("skip_recent", skip),
				zap.Int("holdings", len(holdings)),
				zap.Int("shareholders", len(holders)),
			)
			return holdings, holders
		}
	}

	log.Warn("fallback found no data for any offset", zap.Ints("skips", p.FallbackSkips))
	return nil, nil
}

func filterByFund[T any](rows []T, ids map[string]struct{}, id func(T) string) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if _, ok := ids[id(r)]; ok {
			out = append(out, r)
		}
	}
	return out
}
