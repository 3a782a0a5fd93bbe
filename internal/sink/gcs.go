package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/streamhaus/csvrowstore/internal/errors"
	"github.com/streamhaus/csvrowstore/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Uploader = (*GCSUploader)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// GCSUploader implements sink.Uploader for Google Cloud Storage.
// It supports service account file, JSON, and default credentials.
type GCSUploader struct {
	client      *storage.Client
	bucket      string
	extension   string
	contentType string
	logger      *slog.Logger
	metrics     MetricsCollector
	mu          sync.Mutex
	closed      bool
}

// NewGCSUploader creates a new Google Cloud Storage uploader.
func NewGCSUploader(
	cfg GCSConfig,
	extension string,
	contentType string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*GCSUploader, error) {
	ctx := context.Background()

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	if cfg.UseDefaultCredential {
		logger.Info("using default GCP credentials")
	} else if cfg.CredentialsJSON != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	} else if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", "file", cfg.CredentialsFile)
	} else {
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS uploader created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
	)

	return &GCSUploader{
		client:      client,
		bucket:      cfg.Bucket,
		extension:   extension,
		contentType: contentType,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Upload uploads the payload as an object under the routed path.
func (u *GCSUploader) Upload(ctx context.Context, payload []byte, path string) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return 0, errors.ErrSinkClosed
	}
	if len(payload) == 0 {
		return 0, nil
	}

	startTime := time.Now()

	// Path format: gs://bucket/object/path or just object/path
	objectPath := path
	if strings.HasPrefix(path, "gs://") {
		pathWithoutProtocol := strings.TrimPrefix(path, "gs://")
		parts := strings.SplitN(pathWithoutProtocol, "/", 2)
		if len(parts) == 2 {
			objectPath = parts[1]
		} else {
			objectPath = ""
		}
	}

	now := time.Now()
	timestamp := now.Format("20060102_150405")
	filename := fmt.Sprintf("rows_%s_%03d%s", timestamp, now.Nanosecond()/1000000, u.extension)
	objectPath = strings.TrimPrefix(objectPath+filename, "/")

	obj := u.client.Bucket(u.bucket).Object(objectPath)
	gcsWriter := obj.NewWriter(ctx)
	gcsWriter.ContentType = u.contentType

	if _, err := gcsWriter.Write(payload); err != nil {
		if u.metrics != nil {
			u.metrics.IncSinkErrors("gcs", "upload")
		}
		gcsWriter.Close()
		return 0, &errors.SinkError{Backend: "gcs", Operation: "upload", Path: objectPath, Err: err}
	}

	if err := gcsWriter.Close(); err != nil {
		if u.metrics != nil {
			u.metrics.IncSinkErrors("gcs", "close")
		}
		return 0, &errors.SinkError{Backend: "gcs", Operation: "upload", Path: objectPath, Err: err}
	}

	duration := time.Since(startTime)

	u.logger.Info("uploaded batch to GCS",
		"bucket", u.bucket,
		"object", objectPath,
		"size_bytes", len(payload),
		"total_duration_ms", duration.Milliseconds(),
	)

	if u.metrics != nil {
		u.metrics.IncBatchesUploaded("gcs", "success")
		u.metrics.ObserveBatchSize("gcs", float64(len(payload)))
		u.metrics.ObserveUploadDuration("gcs", duration.Seconds())
	}

	return int64(len(payload)), nil
}

// Close closes the GCS uploader.
func (u *GCSUploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil
	}
	u.closed = true
	u.logger.Info("closing GCS uploader")
	if u.client != nil {
		return u.client.Close()
	}
	return nil
}
