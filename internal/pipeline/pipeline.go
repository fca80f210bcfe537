// Package pipeline runs the fund ETL end to end: collection, cleaning,
// local outputs and warehouse upload.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/b3"
	"github.com/sells-group/fundsync/internal/config"
	"github.com/sells-group/fundsync/internal/cvm"
	"github.com/sells-group/fundsync/internal/fetcher"
	"github.com/sells-group/fundsync/internal/model"
	"github.com/sells-group/fundsync/internal/runlog"
)

// MaisRetornoTermsURL is the terms page shown by the manual fallback notice.
const MaisRetornoTermsURL = "https://www.maisretorno.com/termos"

// Stage names recorded in the run log.
const (
	StageCVM      = "cvm"
	StageB3       = "b3"
	StageClean    = "clean"
	StageStaging  = "save_staging"
	StageCurated  = "save_curated"
	StageFrontend = "frontend"
	StageSite     = "site"
	StageUpload   = "upload"
)

// Deps are the collaborators of a Runner.
type Deps struct {
	Fetcher fetcher.Fetcher
	RunLog  *runlog.Log
	Now     func() time.Time
}

// Runner executes pipeline stages for one configuration.
type Runner struct {
	cfg     *config.Config
	workdir string
	deps    Deps
	log     *zap.Logger
}

// New returns a Runner. A nil fetcher is replaced by an HTTP fetcher built
// from cfg.HTTP.
func New(cfg *config.Config, workdir string, deps Deps) *Runner {
	if deps.Fetcher == nil {
		deps.Fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.HTTP.UserAgent,
			Timeout:    cfg.HTTP.Timeout(),
			MaxRetries: cfg.HTTP.MaxRetries,
		})
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{
		cfg:     cfg,
		workdir: workdir,
		deps:    deps,
		log:     zap.L().With(zap.String("component", "pipeline")),
	}
}

// track runs fn as a run-log stage and logs its duration.
func (r *Runner) track(ctx context.Context, stage string, fn func() (*runlog.Result, error)) error {
	start := time.Now()
	err := r.deps.RunLog.Track(ctx, stage, fn)
	dur := time.Since(start).Milliseconds()
	if err != nil {
		r.log.Error("pipeline: stage failed", zap.String("stage", stage), zap.Int64("duration_ms", dur), zap.Error(err))
		return err
	}
	r.log.Info("pipeline: stage complete", zap.String("stage", stage), zap.Int64("duration_ms", dur))
	return nil
}

// Collect runs the CVM ingestion, merges the B3 quotes when enabled, shows
// the Mais Retorno notice when enabled and cleans the assembled facts.
func (r *Runner) Collect(ctx context.Context) (*model.Tables, error) {
	var tables *model.Tables
	err := r.track(ctx, StageCVM, func() (*runlog.Result, error) {
		p := cvm.NewPipeline(r.cfg, r.deps.Fetcher, r.workdir)
		p.Now = r.deps.Now
		var err error
		tables, err = p.Run(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: cvm ingestion")
		}
		return tableResult(tables), nil
	})
	if err != nil {
		return nil, err
	}

	if r.cfg.EnableB3Ingestion && len(r.cfg.B3Planilhas) > 0 {
		err := r.track(ctx, StageB3, func() (*runlog.Result, error) {
			added := r.mergeB3(ctx, tables)
			return &runlog.Result{Rows: int64(added)}, nil
		})
		if err != nil {
			return nil, err
		}
	}

	if r.cfg.EnableMaisRetornoFallback {
		r.log.Warn("Mais Retorno fallback is manual only: review the terms of use before collecting data",
			zap.String("terms", MaisRetornoTermsURL))
	}

	err = r.track(ctx, StageClean, func() (*runlog.Result, error) {
		dropped := Clean(tables)
		return &runlog.Result{Rows: int64(len(tables.DailyQuotes)), Metadata: map[string]any{"dropped": dropped}}, nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// mergeB3 appends the B3 quotes of monitored funds to the daily facts and
// returns how many were added.
func (r *Runner) mergeB3(ctx context.Context, tables *model.Tables) int {
	r.log.Info("loading complementary B3 spreadsheets", zap.Int("sources", len(r.cfg.B3Planilhas)))
	loader := b3.NewLoader(r.deps.Fetcher, r.workdir)
	quotes := loader.ToDailyQuotes(loader.LoadPlanilhas(ctx, r.cfg.B3Planilhas))

	monitored := r.cfg.MonitoredIDs()
	added := 0
	for _, q := range quotes {
		if _, ok := monitored[q.CNPJ]; !ok {
			continue
		}
		tables.DailyQuotes = append(tables.DailyQuotes, q)
		added++
	}
	if skipped := len(quotes) - added; skipped > 0 {
		r.log.Info("ignored B3 rows of funds that are not monitored", zap.Int("rows", skipped))
	}
	return added
}

func tableResult(t *model.Tables) *runlog.Result {
	return &runlog.Result{
		Rows: int64(len(t.DailyQuotes) + len(t.Holdings) + len(t.Shareholders)),
		Metadata: map[string]any{
			model.TableDailyQuotes:  len(t.DailyQuotes),
			model.TableHoldings:     len(t.Holdings),
			model.TableShareholders: len(t.Shareholders),
		},
	}
}

// Layout is the output directory structure of a run.
type Layout struct {
	Root string
}

func (l Layout) Staging() string { return filepath.Join(l.Root, "staging") }
func (l Layout) Curated() string { return filepath.Join(l.Root, "curated") }
func (l Layout) API() string     { return filepath.Join(l.Root, "api") }
func (l Layout) Site() string    { return filepath.Join(l.Root, "site") }
