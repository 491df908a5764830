package publishers

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// objectUploader stores a single object in a bucket.
type objectUploader interface {
	Upload(ctx context.Context, bucket, name, contentType string, metadata map[string]string, body []byte) error
}

// gcsPublisher uploads the report to a Cloud Storage bucket.
type gcsPublisher struct {
	id       string
	bucket   string
	prefix   string
	dated    bool
	uploader objectUploader
	log      Logger
}

func newGCSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.GCS == nil {
		return nil, fmt.Errorf("publisher %q missing gcs configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c := *cfg.GCS
	var opts []option.ClientOption
	if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
		if c.CredentialsFile == "" {
			opts = append(opts, option.WithoutAuthentication())
		}
	}

	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &gcsPublisher{
		id:       cfg.ID,
		bucket:   c.Bucket,
		prefix:   c.ObjectPrefix,
		dated:    c.Dated,
		uploader: &gcsUploader{svc: svc},
		log:      ensureLogger(log),
	}, nil
}

func (g *gcsPublisher) ID() string   { return g.id }
func (g *gcsPublisher) Type() string { return TypeGCS }

func (g *gcsPublisher) Publish(ctx context.Context, d Delivery) error {
	name := d.objectKey(g.prefix, g.dated)
	meta := map[string]string{
		"rows":        strconv.Itoa(d.Rows),
		"window_days": strconv.Itoa(d.WindowDays),
	}
	if err := g.uploader.Upload(ctx, g.bucket, name, d.ContentType, meta, d.Body); err != nil {
		g.log.ErrorObj("gcs publisher upload failed", "publisher_gcs_error", map[string]any{
			"publisher_id": g.id,
			"bucket":       g.bucket,
			"object":       name,
			"error":        err.Error(),
		})
		return fmt.Errorf("upload gs://%s/%s: %w", g.bucket, name, err)
	}
	g.log.InfoObj("gcs publisher uploaded report", "publisher_gcs_delivery", map[string]any{
		"publisher_id": g.id,
		"bucket":       g.bucket,
		"object":       name,
	})
	return nil
}

type gcsUploader struct {
	svc *storage.Service
}

func (u *gcsUploader) Upload(ctx context.Context, bucket, name, contentType string, metadata map[string]string, body []byte) error {
	obj := &storage.Object{
		Name:        name,
		ContentType: contentType,
		Metadata:    metadata,
	}
	_, err := u.svc.Objects.Insert(bucket, obj).
		Media(bytes.NewReader(body), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	return err
}
