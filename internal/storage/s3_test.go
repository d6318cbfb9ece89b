package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const accessDeniedXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// newFakeS3 serves GET and HEAD for the given objects under path-style URLs.
func newFakeS3(t *testing.T, objects map[string]string) *S3Storage {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := objects[r.URL.Path]
		switch {
		case ok:
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				w.Write([]byte(body))
			}
		case r.Method == http.MethodGet:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(noSuchKeyXML))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return newS3Client(t, srv)
}

func newS3Client(t *testing.T, srv *httptest.Server) *S3Storage {
	t.Helper()
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:      "us-east-1",
		Credentials: aws.AnonymousCredentials{},
	}, s3Options(S3Config{Endpoint: srv.URL, UsePathStyle: true})...)
	return NewS3StorageWithClient(client, "partitions")
}

func TestS3Storage_Download(t *testing.T) {
	store := newFakeS3(t, map[string]string{"/partitions/7.chunk.parquet": "chunk bytes"})

	dst := filepath.Join(t.TempDir(), "nested", "7.chunk.parquet")
	if err := store.Download(context.Background(), "7.chunk.parquet", dst); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(data) != "chunk bytes" {
		t.Errorf("downloaded content = %q, want %q", data, "chunk bytes")
	}
}

func TestS3Storage_DownloadNotFound(t *testing.T) {
	store := newFakeS3(t, nil)

	err := store.Download(context.Background(), "missing.parquet", filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestS3Storage_Exists(t *testing.T) {
	store := newFakeS3(t, map[string]string{"/partitions/1.parquet": "p"})
	ctx := context.Background()

	exists, err := store.Exists(ctx, "1.parquet")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected 1.parquet to exist")
	}

	exists, err = store.Exists(ctx, "2.parquet")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected 2.parquet to be missing")
	}
}

func TestS3Storage_CancelledContext(t *testing.T) {
	store := newFakeS3(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Download(ctx, "1.parquet", filepath.Join(t.TempDir(), "x")); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestS3Storage_FailuresAreNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusServiceUnavailable} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			var requests atomic.Int32
			store := newS3Client(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(status)
				if r.Method == http.MethodGet {
					w.Write([]byte(accessDeniedXML))
				}
			})))
			ctx := context.Background()

			err := store.Download(ctx, "1.parquet", filepath.Join(t.TempDir(), "x"))
			if !errors.Is(err, ErrDownloadFailed) {
				t.Fatalf("expected ErrDownloadFailed, got %v", err)
			}
			if n := requests.Load(); n != 1 {
				t.Errorf("Download sent %d requests, want 1", n)
			}

			requests.Store(0)
			if _, err := store.Exists(ctx, "1.parquet"); !errors.Is(err, ErrDownloadFailed) {
				t.Fatalf("expected ErrDownloadFailed, got %v", err)
			}
			if n := requests.Load(); n != 1 {
				t.Errorf("Exists sent %d requests, want 1", n)
			}
		})
	}
}

func TestS3Options(t *testing.T) {
	var o s3.Options
	for _, apply := range s3Options(S3Config{Endpoint: "http://minio:9000", UsePathStyle: true}) {
		apply(&o)
	}
	if aws.ToString(o.BaseEndpoint) != "http://minio:9000" {
		t.Errorf("BaseEndpoint = %q", aws.ToString(o.BaseEndpoint))
	}
	if !o.UsePathStyle {
		t.Error("expected path-style addressing")
	}

	if _, ok := o.Retryer.(aws.NopRetryer); !ok {
		t.Errorf("Retryer = %T, want aws.NopRetryer", o.Retryer)
	}

	if opts := s3Options(DefaultS3Config()); len(opts) != 1 {
		t.Errorf("expected only the retryer option for the default config, got %d", len(opts))
	}
}
