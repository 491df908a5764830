package publishers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeUploader struct {
	bucket, name, contentType string
	metadata                  map[string]string
	body                      []byte
	err                       error
}

func (f *fakeUploader) Upload(_ context.Context, bucket, name, contentType string, metadata map[string]string, body []byte) error {
	f.bucket, f.name, f.contentType, f.metadata, f.body = bucket, name, contentType, metadata, body
	return f.err
}

func TestGCSPublisherUploadsReport(t *testing.T) {
	up := &fakeUploader{}
	pub := &gcsPublisher{id: "gcs", bucket: "reports", prefix: "digest", uploader: up, log: noopLogger}

	if err := pub.Publish(context.Background(), testDelivery()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if up.bucket != "reports" || up.name != "digest/feed.csv" || up.contentType != "text/csv" {
		t.Fatalf("unexpected upload %s/%s (%s)", up.bucket, up.name, up.contentType)
	}
	if up.metadata["window_days"] != "7" {
		t.Fatalf("unexpected metadata %v", up.metadata)
	}
}

func TestGCSPublisherError(t *testing.T) {
	pub := &gcsPublisher{bucket: "reports", uploader: &fakeUploader{err: errors.New("403")}, log: noopLogger}
	if err := pub.Publish(context.Background(), testDelivery()); err == nil {
		t.Fatalf("expected upload error")
	}
}

func TestGCSPublisherAgainstFakeEndpoint(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bucket":"reports","name":"feed.csv"}`))
	}))
	defer srv.Close()

	pub, err := newGCSPublisher(context.Background(), sanitizePublisherConfig(PublisherConfig{
		ID:   "gcs",
		Type: TypeGCS,
		GCS:  &GCSPublisherConfig{Bucket: "reports", Endpoint: srv.URL + "/storage/v1/"},
	}), nil)
	if err != nil {
		t.Fatalf("newGCSPublisher: %v", err)
	}

	if err := pub.Publish(context.Background(), testDelivery()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !strings.Contains(gotPath, "/b/reports/o") {
		t.Fatalf("unexpected upload path %q", gotPath)
	}
	if !strings.Contains(gotBody, "Source,Date,Title,Description,Link") {
		t.Fatalf("report missing from upload body")
	}
}
