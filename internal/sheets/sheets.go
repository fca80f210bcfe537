// Package sheets reads the monitored-fund list from a Google Sheets worksheet.
package sheets

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/sells-group/fundsync/internal/config"
	"github.com/sells-group/fundsync/internal/transform"
)

// ColumnIndex converts a column letter such as "A" or "AA" to a 1-based index.
func ColumnIndex(column string) (int, error) {
	column = strings.ToUpper(strings.TrimSpace(column))
	if column == "" {
		return 0, eris.Wrap(config.ErrInvalidConfig, "sheets: column letter must not be empty")
	}
	index := 0
	for _, r := range column {
		if r < 'A' || r > 'Z' {
			return 0, eris.Wrapf(config.ErrInvalidConfig, "sheets: invalid column letter %q", column)
		}
		index = index*26 + int(r-'A'+1)
	}
	return index, nil
}

// Client reads identifiers from one spreadsheet.
type Client struct {
	svc *gsheets.Service
	cfg config.SheetsConfig
	log *zap.Logger
}

// NewClient builds a Sheets client. Inline JSON credentials win over a file path.
func NewClient(ctx context.Context, cfg config.SheetsConfig) (*Client, error) {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsReadonlyScope)}
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsPath != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	default:
		return nil, eris.Wrap(config.ErrInvalidConfig,
			"sheets: credentials not found, set SHEETS_CREDENTIALS_PATH or SHEETS_CREDENTIALS_JSON")
	}

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create service")
	}
	return &Client{
		svc: svc,
		cfg: cfg,
		log: zap.L().With(zap.String("component", "sheets")),
	}, nil
}

// worksheetTitle picks the worksheet by name, then by GID, then the first one.
func (c *Client) worksheetTitle(ctx context.Context) (string, error) {
	ss, err := c.svc.Spreadsheets.Get(c.cfg.SpreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return "", eris.Wrapf(err, "sheets: open spreadsheet %s", c.cfg.SpreadsheetID)
	}
	if len(ss.Sheets) == 0 {
		return "", eris.Errorf("sheets: spreadsheet %s has no worksheets", c.cfg.SpreadsheetID)
	}

	if name := c.cfg.WorksheetName; name != "" {
		for _, s := range ss.Sheets {
			if s.Properties != nil && s.Properties.Title == name {
				return name, nil
			}
		}
		return "", eris.Wrapf(config.ErrInvalidConfig, "sheets: worksheet %q not found", name)
	}

	if gid := c.cfg.WorksheetGID; gid != "" {
		want, err := strconv.ParseInt(gid, 10, 64)
		if err != nil {
			return "", eris.Wrapf(config.ErrInvalidConfig, "sheets: invalid worksheet gid %q", gid)
		}
		for _, s := range ss.Sheets {
			if s.Properties != nil && s.Properties.SheetId == want {
				return s.Properties.Title, nil
			}
		}
		return "", eris.Wrapf(config.ErrInvalidConfig,
			"sheets: worksheet with gid %s not found in spreadsheet %s", gid, c.cfg.SpreadsheetID)
	}

	if ss.Sheets[0].Properties == nil {
		return "", eris.Errorf("sheets: first worksheet has no properties")
	}
	return ss.Sheets[0].Properties.Title, nil
}

// MonitoredIDs returns the ordered, deduplicated identifiers of the configured column.
func (c *Client) MonitoredIDs(ctx context.Context) ([]string, error) {
	column := c.cfg.CNPJColumn
	if column == "" {
		column = "A"
	}
	if _, err := ColumnIndex(column); err != nil {
		return nil, err
	}

	title, err := c.worksheetTitle(ctx)
	if err != nil {
		return nil, err
	}

	col := strings.ToUpper(strings.TrimSpace(column))
	rng := fmt.Sprintf("'%s'!%s:%s", strings.ReplaceAll(title, "'", "''"), col, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, rng).
		MajorDimension("COLUMNS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, eris.Wrapf(err, "sheets: read range %s", rng)
	}

	var cells []any
	if len(resp.Values) > 0 {
		cells = resp.Values[0]
	}

	seen := make(map[string]struct{}, len(cells))
	ids := make([]string, 0, len(cells))
	for _, cell := range cells {
		raw := strings.TrimSpace(fmt.Sprint(cell))
		if !hasDigit(raw) {
			continue
		}
		id := transform.NormalizeCNPJ(raw)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	c.log.Info("sheet returned monitored identifiers", zap.Int("count", len(ids)))
	return ids, nil
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// LoadMonitoredIDs reads the identifiers configured in cfg. No spreadsheet ID
// means no sheet filtering: it returns nil without error.
func LoadMonitoredIDs(ctx context.Context, cfg config.SheetsConfig) ([]string, error) {
	if cfg.SpreadsheetID == "" {
		zap.L().Info("sheets: no spreadsheet id configured, keeping fund list from config")
		return nil, nil
	}
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.MonitoredIDs(ctx)
}

// ApplyMonitoredFilter restricts cfg.Fundos to ids. Identifiers present in the
// sheet but absent from the fund list are logged. A configured spreadsheet that
// yields no identifiers, or a sheet that matches no fund, is a configuration error.
func ApplyMonitoredFilter(cfg *config.Config, ids []string) error {
	if len(ids) == 0 {
		if cfg.Sheets.SpreadsheetID != "" {
			return eris.Wrap(config.ErrInvalidConfig,
				"sheets: spreadsheet returned no valid identifiers, check the configured column")
		}
		return nil
	}

	wanted := transform.CNPJSet(ids)
	known := cfg.MonitoredIDs()

	filtered := cfg.Fundos[:0:0]
	for _, f := range cfg.Fundos {
		if _, ok := wanted[f.CNPJ]; ok {
			filtered = append(filtered, f)
		}
	}

	var missing []string
	for id := range wanted {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		zap.L().Warn("sheets: identifiers listed in the sheet but not in the config",
			zap.Strings("cnpjs", missing))
	}

	if len(filtered) == 0 {
		return eris.Wrap(config.ErrInvalidConfig, "sheets: no configured fund matches the sheet identifiers")
	}

	cfg.Fundos = filtered
	zap.L().Info("sheets: fund list filtered", zap.Int("funds", len(filtered)))
	return nil
}
