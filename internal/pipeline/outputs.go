package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/curated"
	"github.com/sells-group/fundsync/internal/frontend"
	"github.com/sells-group/fundsync/internal/model"
	"github.com/sells-group/fundsync/internal/output"
	"github.com/sells-group/fundsync/internal/runlog"
	"github.com/sells-group/fundsync/internal/site"
	"github.com/sells-group/fundsync/internal/warehouse"
)

// Outputs are the files written by WriteOutputs.
type Outputs struct {
	Staging map[string]string
	Curated map[string]string
	API     string
	Site    string
}

// Summary is the JSON document printed by export-local.
type Summary struct {
	Staging []string `json:"staging"`
	Curated []string `json:"curated"`
	API     string   `json:"api"`
	Site    string   `json:"site"`
}

// Summary lists the written files in name order.
func (o *Outputs) Summary() Summary {
	return Summary{
		Staging: sortedValues(o.Staging),
		Curated: sortedValues(o.Curated),
		API:     o.API,
		Site:    o.Site,
	}
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// WriteOutputs writes the staging and curated CSVs, the front-end API files
// and the static site. siteTemplate selects the site template directory; an
// empty value uses the bundled template.
func (r *Runner) WriteOutputs(ctx context.Context, tables *model.Tables, layout Layout, siteTemplate string) (*Outputs, error) {
	out := &Outputs{API: layout.API()}

	err := r.track(ctx, StageStaging, func() (*runlog.Result, error) {
		var err error
		out.Staging, err = output.SaveTables(tables.Staging(), layout.Staging())
		return &runlog.Result{Rows: int64(len(out.Staging))}, err
	})
	if err != nil {
		return nil, err
	}

	err = r.track(ctx, StageCurated, func() (*runlog.Result, error) {
		var err error
		out.Curated, err = output.SaveTables(curated.BuildCuratedTables(tables), layout.Curated())
		return &runlog.Result{Rows: int64(len(out.Curated))}, err
	})
	if err != nil {
		return nil, err
	}

	err = r.track(ctx, StageFrontend, func() (*runlog.Result, error) {
		exp := frontend.NewExporter(layout.API())
		exp.Now = r.deps.Now
		paths, err := exp.Export(r.cfg.Fundos, tables)
		return &runlog.Result{Rows: int64(len(paths))}, err
	})
	if err != nil {
		return nil, err
	}

	err = r.track(ctx, StageSite, func() (*runlog.Result, error) {
		var err error
		out.Site, err = site.Build(layout.API(), siteTemplate, layout.Site())
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Upload loads the staging files into the staging destination, then the
// curated files into the curated destination.
func (r *Runner) Upload(ctx context.Context, up warehouse.Uploader, staging, curatedPaths map[string]string) error {
	return r.track(ctx, StageUpload, func() (*runlog.Result, error) {
		n := 0
		for _, set := range []struct {
			dest  string
			paths map[string]string
		}{
			{warehouse.Staging, staging},
			{warehouse.Curated, curatedPaths},
		} {
			for _, name := range sortedKeys(set.paths) {
				if err := up.LoadCSV(ctx, set.paths[name], name, set.dest); err != nil {
					return &runlog.Result{Rows: int64(n)}, eris.Wrapf(err, "pipeline: upload %s to %s", name, set.dest)
				}
				n++
			}
		}
		r.log.Info("upload finished", zap.Int("tables", n))
		return &runlog.Result{Rows: int64(n)}, nil
	})
}

// UploadDir uploads the CSVs already present under layout, keyed by file
// stem. It fails when neither directory holds a CSV.
func (r *Runner) UploadDir(ctx context.Context, up warehouse.Uploader, layout Layout) error {
	staging, err := csvFiles(layout.Staging())
	if err != nil {
		return err
	}
	curatedPaths, err := csvFiles(layout.Curated())
	if err != nil {
		return err
	}
	if len(staging) == 0 && len(curatedPaths) == 0 {
		return eris.Errorf("pipeline: no CSV files under %s; run export-local or ingest first", layout.Root)
	}
	return r.Upload(ctx, up, staging, curatedPaths)
}

func csvFiles(dir string) (map[string]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: list %s", dir)
	}
	out := make(map[string]string, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err != nil || info.IsDir() {
			continue
		}
		out[strings.TrimSuffix(filepath.Base(m), ".csv")] = m
	}
	return out, nil
}
