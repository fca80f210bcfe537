// Package config loads the pipeline configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/fundsync/internal/model"
	"github.com/sells-group/fundsync/internal/transform"
)

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "config/pipeline.yaml"

// ErrInvalidConfig marks missing or invalid required settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the full pipeline configuration.
type Config struct {
	MesesRetroativos          int               `yaml:"meses_retroativos" mapstructure:"meses_retroativos"`
	MesesIgnorarRecente       int               `yaml:"meses_ignorar_recente" mapstructure:"meses_ignorar_recente"`
	FallbackSkips             []int             `yaml:"fallback_skips" mapstructure:"fallback_skips"`
	Fundos                    []model.Fund      `yaml:"fundos" mapstructure:"fundos"`
	CategoriasLooker          map[string]string `yaml:"categorias_looker" mapstructure:"categorias_looker"`
	BigQueryProject           string            `yaml:"bigquery_project" mapstructure:"bigquery_project"`
	BigQueryDatasetStaging    string            `yaml:"bigquery_dataset_staging" mapstructure:"bigquery_dataset_staging"`
	BigQueryDatasetCurated    string            `yaml:"bigquery_dataset_curated" mapstructure:"bigquery_dataset_curated"`
	BigQueryLocation          string            `yaml:"bigquery_location" mapstructure:"bigquery_location"`
	GCSBucket                 string            `yaml:"gcs_bucket" mapstructure:"gcs_bucket"`
	EnableB3Ingestion         bool              `yaml:"enable_b3_ingestion" mapstructure:"enable_b3_ingestion"`
	EnableMaisRetornoFallback bool              `yaml:"enable_mais_retorno_fallback" mapstructure:"enable_mais_retorno_fallback"`
	B3Planilhas               []string          `yaml:"b3_planilhas" mapstructure:"b3_planilhas"`
	Warehouse                 WarehouseConfig   `yaml:"warehouse" mapstructure:"warehouse"`
	Sheets                    SheetsConfig      `yaml:"sheets" mapstructure:"sheets"`
	HTTP                      HTTPConfig        `yaml:"http" mapstructure:"http"`
	Sources                   SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Log                       LogConfig         `yaml:"log" mapstructure:"log"`
	RunLog                    RunLogConfig      `yaml:"runlog" mapstructure:"runlog"`
}

// WarehouseConfig selects the upload backend.
type WarehouseConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // bigquery or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SheetsConfig locates the monitored-fund spreadsheet.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	WorksheetName   string `yaml:"worksheet_name" mapstructure:"worksheet_name"`
	WorksheetGID    string `yaml:"worksheet_gid" mapstructure:"worksheet_gid"`
	CNPJColumn      string `yaml:"cnpj_column" mapstructure:"cnpj_column"`
	CredentialsPath string `yaml:"credentials_path" mapstructure:"credentials_path"`
	CredentialsJSON string `yaml:"credentials_json" mapstructure:"credentials_json"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"` // override for tests
}

// HTTPConfig configures downloads.
type HTTPConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"` // parallel daily archive downloads
}

// Timeout returns the per-request timeout.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSecs) * time.Second
}

// SourcesConfig holds the CVM dataset base URLs.
type SourcesConfig struct {
	CVMBaseURL string `yaml:"cvm_base_url" mapstructure:"cvm_base_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RunLogConfig configures the SQLite run log.
type RunLogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			zap.L().Warn("config: could not load env file", zap.String("file", f), zap.Error(err))
		}
	}
}

// Load reads configuration from path and the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(ErrInvalidConfig, "config: file not found: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range map[string]string{
		"bigquery_project":         "BIGQUERY_PROJECT",
		"bigquery_dataset_staging": "BIGQUERY_DATASET_STAGING",
		"bigquery_dataset_curated": "BIGQUERY_DATASET_CURATED",
		"bigquery_location":        "BIGQUERY_LOCATION",
		"gcs_bucket":               "GCS_BUCKET",
		"warehouse.driver":         "WAREHOUSE_DRIVER",
		"warehouse.database_url":   "DATABASE_URL",
		"sheets.spreadsheet_id":    "SHEETS_SPREADSHEET_ID",
		"sheets.worksheet_name":    "SHEETS_WORKSHEET_NAME",
		"sheets.worksheet_gid":     "SHEETS_WORKSHEET_GID",
		"sheets.cnpj_column":       "SHEETS_CNPJ_COLUMN",
		"sheets.credentials_path":  "SHEETS_CREDENTIALS_PATH",
		"sheets.credentials_json":  "SHEETS_CREDENTIALS_JSON",
		"log.level":                "PIPELINE_LOG_LEVEL",
		"log.format":               "PIPELINE_LOG_FORMAT",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", env)
		}
	}

	// Defaults
	v.SetDefault("meses_retroativos", 24)
	v.SetDefault("meses_ignorar_recente", 0)
	v.SetDefault("fallback_skips", []int{3, 4, 5, 6})
	v.SetDefault("enable_b3_ingestion", false)
	v.SetDefault("enable_mais_retorno_fallback", false)
	v.SetDefault("warehouse.driver", "bigquery")
	v.SetDefault("sheets.cnpj_column", "A")
	v.SetDefault("http.timeout_secs", 60)
	v.SetDefault("http.max_retries", 1)
	v.SetDefault("http.user_agent", "fundsync/1.0")
	v.SetDefault("http.concurrency", 1)
	v.SetDefault("sources.cvm_base_url", "https://dados.cvm.gov.br/dados")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		return nil, eris.Wrapf(err, "config: read file %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.MesesRetroativos <= 0 {
		return nil, eris.Wrapf(ErrInvalidConfig, "config: meses_retroativos must be positive, got %d", cfg.MesesRetroativos)
	}
	if cfg.MesesIgnorarRecente < 0 {
		cfg.MesesIgnorarRecente = 0
	}
	for i := range cfg.Fundos {
		cfg.Fundos[i].CNPJ = transform.NormalizeCNPJ(cfg.Fundos[i].CNPJ)
	}

	return &cfg, nil
}

// MonitoredIDs returns the normalized identifiers of the configured funds.
func (c *Config) MonitoredIDs() map[string]struct{} {
	return model.FundIDs(c.Fundos)
}

// InvalidFunds returns the configured funds whose normalized CNPJ is not
// 14 digits. Such funds never match a CVM row.
func (c *Config) InvalidFunds() []model.Fund {
	var out []model.Fund
	for _, f := range c.Fundos {
		if !transform.IsValidCNPJ(f.CNPJ) {
			out = append(out, f)
		}
	}
	return out
}

// Warehouse drivers.
const (
	DriverBigQuery = "bigquery"
	DriverPostgres = "postgres"
)

// ValidateWarehouse checks that the selected warehouse driver has its identifiers.
func (c *Config) ValidateWarehouse() error {
	var errs []string
	switch c.Warehouse.Driver {
	case DriverBigQuery, "":
		if c.BigQueryProject == "" {
			errs = append(errs, "bigquery_project is required")
		}
		if c.BigQueryDatasetStaging == "" {
			errs = append(errs, "bigquery_dataset_staging is required")
		}
		if c.BigQueryDatasetCurated == "" {
			errs = append(errs, "bigquery_dataset_curated is required")
		}
	case DriverPostgres:
		if c.Warehouse.DatabaseURL == "" {
			errs = append(errs, "warehouse.database_url is required")
		}
	default:
		errs = append(errs, "unknown warehouse.driver "+c.Warehouse.Driver)
	}

	if len(errs) > 0 {
		return eris.Wrapf(ErrInvalidConfig, "config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
