package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/pipeline"
	"github.com/sells-group/fundsync/internal/warehouse"
)

var (
	ingestSkipUpload bool
	ingestSiteDir    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the full pipeline and upload the tables to the warehouse",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Warehouse configuration errors surface before any download.
		var up warehouse.Uploader
		if !ingestSkipUpload {
			u, err := warehouse.New(ctx, cfg)
			if err != nil {
				return eris.Wrap(err, "ingest: warehouse")
			}
			defer u.Close() //nolint:errcheck
			up = u
		}

		r := newRunner()
		out, err := runLocal(ctx, r, ingestSiteDir)
		if err != nil {
			return err
		}

		if up == nil {
			zap.L().Info("skipping warehouse upload")
			return nil
		}
		if err := r.Upload(ctx, up, out.Staging, out.Curated); err != nil {
			return eris.Wrap(err, "ingest: upload")
		}
		zap.L().Info("ingest complete",
			zap.Int("staging_tables", len(out.Staging)),
			zap.Int("curated_tables", len(out.Curated)),
		)
		return nil
	},
}

// runLocal collects the datasets and writes every local output.
func runLocal(ctx context.Context, r *pipeline.Runner, siteDir string) (*pipeline.Outputs, error) {
	tables, err := r.Collect(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "collect datasets")
	}
	out, err := r.WriteOutputs(ctx, tables, layout(), siteDir)
	if err != nil {
		return nil, eris.Wrap(err, "write outputs")
	}
	return out, nil
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestSkipUpload, "skip-bigquery", false, "write local outputs only, without uploading")
	ingestCmd.Flags().StringVar(&ingestSiteDir, "site-dir", "", "custom static site template directory")
	rootCmd.AddCommand(ingestCmd)
}
