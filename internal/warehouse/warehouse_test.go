package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/gzip"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"

	"github.com/sells-group/fundsync/internal/config"
	"github.com/sells-group/fundsync/internal/model"
)

type bqRequest struct {
	method string
	path   string
	query  string
	body   string
}

// fakeBigQuery accepts job inserts, reports them RUNNING, and reports DONE
// (optionally with an error) on the first poll.
type fakeBigQuery struct {
	*httptest.Server
	mu       sync.Mutex
	requests []bqRequest
	failWith string
}

func newFakeBigQuery(t *testing.T) *fakeBigQuery {
	t.Helper()
	f := &fakeBigQuery{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, bqRequest{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})
		failWith := f.failWith
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/jobs"):
			_, _ = io.WriteString(w, `{"jobReference":{"projectId":"proj","jobId":"job-1","location":"US"},"status":{"state":"RUNNING"}}`)
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/jobs/"):
			status := `{"state":"DONE"}`
			if failWith != "" {
				status = `{"state":"DONE","errorResult":{"message":"` + failWith + `"}}`
			}
			_, _ = io.WriteString(w, `{"jobReference":{"projectId":"proj","jobId":"job-1","location":"US"},"status":`+status+`}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeBigQuery) snapshot() []bqRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bqRequest(nil), f.requests...)
}

func newTestBigQuery(t *testing.T, srv *fakeBigQuery, opts BigQueryOptions) *BigQueryUploader {
	t.Helper()
	opts.Project = "proj"
	opts.Staging = "fundos_staging"
	opts.Curated = "fundos_curated"
	opts.Location = "US"
	opts.PollInterval = time.Millisecond
	u, err := NewBigQuery(context.Background(), opts,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { u.Close() }) //nolint:errcheck
	return u
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fato_cota_diaria.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBigQuery_LoadCSV_MediaUpload(t *testing.T) {
	srv := newFakeBigQuery(t)
	u := newTestBigQuery(t, srv, BigQueryOptions{})

	path := writeCSV(t, "cnpj,valor_cota\n11111111000111,1.5\n")
	require.NoError(t, u.LoadCSV(context.Background(), path, "fato_cota_diaria", Staging))

	reqs := srv.snapshot()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, "/upload/bigquery/v2/projects/proj/jobs", reqs[0].path)
	assert.Contains(t, reqs[0].query, "uploadType=multipart")
	assert.Contains(t, reqs[0].body, "11111111000111,1.5")
	assert.Contains(t, reqs[0].body, `"writeDisposition":"WRITE_TRUNCATE"`)
	assert.Contains(t, reqs[0].body, `"datasetId":"fundos_staging"`)

	assert.Equal(t, http.MethodGet, reqs[1].method)
	assert.Equal(t, "/projects/proj/jobs/job-1", reqs[1].path)
	assert.Contains(t, reqs[1].query, "location=US")
}

func TestBigQuery_LoadTable_StagesInBucket(t *testing.T) {
	srv := newFakeBigQuery(t)
	dir := t.TempDir()
	u := newTestBigQuery(t, srv, BigQueryOptions{Bucket: "fundos-bucket", BucketURL: "file://" + filepath.ToSlash(dir)})

	table := model.Table{
		Name:    model.TableCuratedCateg,
		Columns: []string{"data_cotacao", "categoria_cvm"},
		Rows:    [][]any{{time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), nil}},
	}
	require.NoError(t, u.LoadTable(context.Background(), table, table.Name, Curated))

	reqs := srv.snapshot()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "/projects/proj/jobs", reqs[0].path)

	var job bq.Job
	require.NoError(t, json.Unmarshal([]byte(reqs[0].body), &job))
	load := job.Configuration.Load
	assert.Equal(t, []string{"gs://fundos-bucket/fundsync/curated/curated_cotas_por_categoria.csv.gz"}, load.SourceUris)
	assert.Equal(t, "fundos_curated", load.DestinationTable.DatasetId)
	assert.Equal(t, "CSV", load.SourceFormat)
	assert.Equal(t, int64(1), load.SkipLeadingRows)
	assert.True(t, load.Autodetect)

	bucket, err := blob.OpenBucket(context.Background(), "file://"+filepath.ToSlash(dir))
	require.NoError(t, err)
	defer bucket.Close()
	r, err := bucket.NewReader(context.Background(), "fundsync/curated/curated_cotas_por_categoria.csv.gz", nil)
	require.NoError(t, err)
	defer r.Close()
	gz, err := gzip.NewReader(r)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "data_cotacao,categoria_cvm\n2024-06-03,\n", string(data))
}

func TestBigQuery_JobError(t *testing.T) {
	srv := newFakeBigQuery(t)
	srv.failWith = "schema mismatch"
	u := newTestBigQuery(t, srv, BigQueryOptions{})

	err := u.LoadCSV(context.Background(), writeCSV(t, "a\n1\n"), "t", Staging)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema mismatch")
}

func TestBigQuery_InvalidDestination(t *testing.T) {
	srv := newFakeBigQuery(t)
	u := newTestBigQuery(t, srv, BigQueryOptions{})

	err := u.LoadCSV(context.Background(), writeCSV(t, "a\n1\n"), "t", "raw")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDestination))
	assert.Empty(t, srv.snapshot())
}

func TestPostgres_LoadCSV(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "staging"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "staging"."fato_cota_diaria"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE TABLE "staging"."fato_cota_diaria"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"staging", "fato_cota_diaria"}, []string{"cnpj", "valor_cota"}).WillReturnResult(2)
	mock.ExpectCommit()

	u := NewPostgres(mock)
	path := writeCSV(t, "cnpj,valor_cota\n11111111000111,1.5\n22222222000122,\n")
	require.NoError(t, u.LoadCSV(context.Background(), path, "fato_cota_diaria", Staging))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE SCHEMA").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("TRUNCATE").WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"curated", "dim_gestora"}, []string{"gestora"}).WillReturnResult(1)
	mock.ExpectCommit()

	u := NewPostgres(mock)
	table := model.Table{Name: model.TableDimGestora, Columns: []string{"gestora"}, Rows: [][]any{{"G"}}}
	require.NoError(t, u.LoadTable(context.Background(), table, table.Name, Curated))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InvalidDestination(t *testing.T) {
	u := NewPostgres(nil)
	err := u.LoadTable(context.Background(), model.Table{Name: "t", Columns: []string{"a"}}, "t", "raw")
	assert.True(t, errors.Is(err, ErrInvalidDestination))
}

func TestReadCSV(t *testing.T) {
	header, rows, err := readCSV(writeCSV(t, "a,b\n1,\nx\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, header)
	assert.Equal(t, [][]any{{"1", nil}, {"x", nil}}, rows)

	_, _, err = readCSV(writeCSV(t, ""))
	assert.ErrorContains(t, err, "no header row")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := &config.Config{Warehouse: config.WarehouseConfig{Driver: config.DriverBigQuery}}
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))

	cfg = &config.Config{Warehouse: config.WarehouseConfig{Driver: config.DriverPostgres}}
	_, err = New(context.Background(), cfg)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}
