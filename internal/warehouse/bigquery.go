package warehouse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // gs:// buckets
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/fundsync/internal/model"
)

// stagingPrefix is the object prefix of staged load files in the bucket.
const stagingPrefix = "fundsync"

// BigQueryOptions configures a BigQueryUploader.
type BigQueryOptions struct {
	Project  string
	Staging  string // dataset for the staging destination
	Curated  string // dataset for the curated destination
	Location string
	// Bucket, when set, stages gzip-compressed files in this GCS bucket and
	// loads them from gs:// URIs instead of uploading the data with the job.
	Bucket string
	// BucketURL overrides the gocloud URL opened for Bucket ("gs://<Bucket>").
	BucketURL    string
	PollInterval time.Duration
}

// BigQueryUploader runs WRITE_TRUNCATE CSV load jobs.
type BigQueryUploader struct {
	svc    *bq.Service
	opts   BigQueryOptions
	bucket *blob.Bucket
	log    *zap.Logger
}

// NewBigQuery creates the BigQuery service, using application default
// credentials unless client options say otherwise.
func NewBigQuery(ctx context.Context, opts BigQueryOptions, clientOpts ...option.ClientOption) (*BigQueryUploader, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	svc, err := bq.NewService(ctx, append([]option.ClientOption{option.WithScopes(bq.BigqueryScope)}, clientOpts...)...)
	if err != nil {
		return nil, eris.Wrap(err, "bigquery: create service")
	}

	u := &BigQueryUploader{svc: svc, opts: opts, log: zap.L().With(zap.String("component", "warehouse"))}
	if opts.Bucket != "" {
		bucketURL := opts.BucketURL
		if bucketURL == "" {
			bucketURL = "gs://" + opts.Bucket
		}
		u.bucket, err = blob.OpenBucket(ctx, bucketURL)
		if err != nil {
			return nil, eris.Wrapf(err, "bigquery: open bucket %s", opts.Bucket)
		}
	}
	return u, nil
}

func (u *BigQueryUploader) dataset(dest string) (string, error) {
	if err := checkDestination(dest); err != nil {
		return "", err
	}
	if dest == Curated {
		return u.opts.Curated, nil
	}
	return u.opts.Staging, nil
}

func (u *BigQueryUploader) LoadCSV(ctx context.Context, path, table, dest string) error {
	if _, err := u.dataset(dest); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "bigquery: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return u.load(ctx, f, table, dest)
}

func (u *BigQueryUploader) LoadTable(ctx context.Context, t model.Table, name, dest string) error {
	if _, err := u.dataset(dest); err != nil {
		return err
	}
	data, err := encodeTable(t)
	if err != nil {
		return err
	}
	return u.load(ctx, bytes.NewReader(data), name, dest)
}

func (u *BigQueryUploader) load(ctx context.Context, r io.Reader, table, dest string) error {
	dataset, err := u.dataset(dest)
	if err != nil {
		return err
	}

	load := &bq.JobConfigurationLoad{
		DestinationTable: &bq.TableReference{
			ProjectId: u.opts.Project,
			DatasetId: dataset,
			TableId:   table,
		},
		SourceFormat:     "CSV",
		SkipLeadingRows:  1,
		Autodetect:       true,
		WriteDisposition: "WRITE_TRUNCATE",
	}
	job := &bq.Job{
		JobReference: &bq.JobReference{
			ProjectId: u.opts.Project,
			JobId:     "fundsync_" + uuid.New().String(),
			Location:  u.opts.Location,
		},
		Configuration: &bq.JobConfiguration{Load: load},
	}

	call := u.svc.Jobs.Insert(u.opts.Project, job).Context(ctx)
	if u.bucket != nil {
		uri, err := u.stage(ctx, r, dest, table)
		if err != nil {
			return err
		}
		load.SourceUris = []string{uri}
	} else {
		call = call.Media(r, googleapi.ContentType("application/octet-stream"))
	}

	started, err := call.Do()
	if err != nil {
		return eris.Wrapf(err, "bigquery: start load of %s.%s", dataset, table)
	}
	if started.JobReference == nil {
		started.JobReference = job.JobReference
	}
	if err := u.wait(ctx, started); err != nil {
		return eris.Wrapf(err, "bigquery: load of %s.%s", dataset, table)
	}
	u.log.Info("table loaded", zap.String("table", dataset+"."+table))
	return nil
}

// stage gzips r into the bucket and returns its gs:// URI.
func (u *BigQueryUploader) stage(ctx context.Context, r io.Reader, dest, table string) (string, error) {
	key := fmt.Sprintf("%s/%s/%s.csv.gz", stagingPrefix, dest, table)

	w, err := u.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: "application/gzip"})
	if err != nil {
		return "", eris.Wrapf(err, "bigquery: create writer for %s", key)
	}
	gz := gzip.NewWriter(w)
	if _, err := io.Copy(gz, r); err != nil {
		gz.Close() //nolint:errcheck
		w.Close()  //nolint:errcheck
		return "", eris.Wrapf(err, "bigquery: write %s", key)
	}
	if err := gz.Close(); err != nil {
		w.Close() //nolint:errcheck
		return "", eris.Wrapf(err, "bigquery: compress %s", key)
	}
	if err := w.Close(); err != nil {
		return "", eris.Wrapf(err, "bigquery: close writer for %s", key)
	}
	return fmt.Sprintf("gs://%s/%s", u.opts.Bucket, key), nil
}

// wait polls the job until it is DONE and returns its error result, if any.
func (u *BigQueryUploader) wait(ctx context.Context, job *bq.Job) error {
	ref := job.JobReference
	for {
		if job.Status != nil && job.Status.State == "DONE" {
			if job.Status.ErrorResult != nil {
				return eris.Errorf("job %s failed: %s", ref.JobId, job.Status.ErrorResult.Message)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(u.opts.PollInterval):
		}

		var err error
		job, err = u.svc.Jobs.Get(ref.ProjectId, ref.JobId).Location(ref.Location).Context(ctx).Do()
		if err != nil {
			return eris.Wrapf(err, "poll job %s", ref.JobId)
		}
	}
}

func (u *BigQueryUploader) Close() error {
	if u.bucket != nil {
		return u.bucket.Close()
	}
	return nil
}
