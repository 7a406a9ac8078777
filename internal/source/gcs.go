package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/demand-dashboard/internal/pipeline"
)

// uploadTimeout bounds a single dataset upload.
const uploadTimeout = 2 * time.Minute

// StorageService provides the cloud storage operations used by the loader
// and the upload command. This interface enables testing without GCS.
type StorageService interface {
	// UploadFile uploads a local file to a bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// FetchFromGCS downloads object bytes from the given gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// GCSStorageService is the concrete StorageService backed by Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// UploadFile uploads a local file to a GCS bucket under the given object name.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("UploadFile: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if format, err := FormatOf(objectName); err == nil {
		w.ContentType = contentType(format)
	}

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize upload: %w", err)
	}
	return nil
}

// FetchFromGCS downloads the object bytes from the given GCS URI.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading bytes: %w", err)
	}
	return data, nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object path.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	bucket, object, ok := strings.Cut(strings.TrimPrefix(uri, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return bucket, object, nil
}

// GCSURI builds a gs:// URI.
func GCSURI(bucket, object string) string {
	return "gs://" + bucket + "/" + strings.TrimPrefix(object, "/")
}

func contentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// GCSSource reads a CSV or XLSX dataset object from Cloud Storage.
type GCSSource struct {
	URI     string
	storage StorageService
}

// NewGCSSource creates a source for the object at uri using GCS.
func NewGCSSource(uri string) *GCSSource {
	return NewGCSSourceWithStorage(uri, NewGCSStorageService())
}

// NewGCSSourceWithStorage creates a source backed by the given storage service.
func NewGCSSourceWithStorage(uri string, svc StorageService) *GCSSource {
	return &GCSSource{URI: uri, storage: svc}
}

func (s *GCSSource) Fetch(ctx context.Context) (*pipeline.RawTable, error) {
	_, object, err := ParseGCSURI(s.URI)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: %w", err)
	}
	if _, err := FormatOf(object); err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: %w", err)
	}
	data, err := s.storage.FetchFromGCS(ctx, s.URI)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: %w", err)
	}
	table, err := Decode(object, data)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: %w", err)
	}
	return table, nil
}

func (s *GCSSource) Describe() string {
	return s.URI
}
