package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fundsync/internal/config"
	"github.com/sells-group/fundsync/internal/pipeline"
	"github.com/sells-group/fundsync/internal/runlog"
	"github.com/sells-group/fundsync/internal/sheets"
)

var (
	cfg    *config.Config
	runLog *runlog.Log

	configPath string
	workdir    string
	outputDir  string
)

var rootCmd = &cobra.Command{
	Use:   "fundsync",
	Short: "CVM fund data pipeline",
	Long: "Downloads the CVM open-data fund datasets (and optional B3 spreadsheets), filters them to the " +
		"monitored funds and writes staging and curated tables, the front-end JSON API and the static site.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		config.LoadDotEnv()

		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		warnInvalidFunds(zap.L(), cfg)

		ids, err := sheets.LoadMonitoredIDs(cmd.Context(), cfg.Sheets)
		if err != nil {
			return fmt.Errorf("load monitored funds: %w", err)
		}
		if err := sheets.ApplyMonitoredFilter(cfg, ids); err != nil {
			return err
		}

		path := cfg.RunLog.Path
		if path == "" {
			path = filepath.Join(workdir, runlog.DefaultFile)
		}
		l, err := runlog.Open(cmd.Context(), path)
		if err != nil {
			// The run log is bookkeeping; a nil log records nothing.
			zap.L().Warn("run log unavailable", zap.String("path", path), zap.Error(err))
		}
		_ = runLog.Close()
		runLog = l
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "pipeline configuration file")
	rootCmd.PersistentFlags().StringVar(&workdir, "workdir", ".tmp_pipeline", "directory for downloaded files and the run log")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "output", "directory for staging, curated, api and site outputs")
}

// warnInvalidFunds reports configured funds whose identifier cannot match
// any CVM row. Load runs before the logger exists, so this happens here.
func warnInvalidFunds(log *zap.Logger, c *config.Config) {
	for _, f := range c.InvalidFunds() {
		log.Warn("configured fund has an unexpected CNPJ format",
			zap.String("fund", f.Label()),
		)
	}
}

func newRunner() *pipeline.Runner {
	return pipeline.New(cfg, workdir, pipeline.Deps{RunLog: runLog})
}

func layout() pipeline.Layout {
	return pipeline.Layout{Root: outputDir}
}

func main() {
	err := rootCmd.Execute()
	_ = runLog.Close()
	if err != nil {
		zap.L().Error("fundsync failed", zap.Error(err))
		os.Exit(1)
	}
}
