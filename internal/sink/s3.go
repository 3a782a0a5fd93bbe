package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/streamhaus/csvrowstore/internal/errors"
	"github.com/streamhaus/csvrowstore/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Uploader = (*S3Uploader)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// S3Uploader implements sink.Uploader for AWS S3.
// It uses multipart upload for large batches and supports server-side
// encryption (SSE-S3 and SSE-KMS).
type S3Uploader struct {
	client      *s3.Client
	uploader    *manager.Uploader
	bucket      string
	extension   string
	contentType string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *slog.Logger
	metrics     MetricsCollector
	mu          sync.Mutex
	closed      bool
}

// NewS3Uploader creates a new S3 uploader.
func NewS3Uploader(
	cfg S3Config,
	extension string,
	contentType string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*S3Uploader, error) {
	ctx := context.Background()
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 5
	})

	logger.Info("S3 uploader created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Uploader{
		client:      s3Client,
		uploader:    uploader,
		bucket:      cfg.Bucket,
		extension:   extension,
		contentType: contentType,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Upload uploads the payload as an object under the routed path.
func (u *S3Uploader) Upload(ctx context.Context, payload []byte, path string) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return 0, errors.ErrSinkClosed
	}
	if len(payload) == 0 {
		return 0, nil
	}

	startTime := time.Now()

	// Path format: s3://bucket/key/path or just key/path
	s3Key := path
	if strings.HasPrefix(path, "s3://") {
		pathWithoutProtocol := strings.TrimPrefix(path, "s3://")
		parts := strings.SplitN(pathWithoutProtocol, "/", 2)
		if len(parts) == 2 {
			s3Key = parts[1]
		} else {
			s3Key = ""
		}
	}

	now := time.Now()
	timestamp := now.Format("20060102_150405")
	filename := fmt.Sprintf("rows_%s_%03d%s", timestamp, now.Nanosecond()/1000000, u.extension)
	s3Key = strings.TrimPrefix(s3Key+filename, "/")

	uploadInput := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(u.contentType),
	}

	if u.sseEnabled {
		if u.sseKMSKeyID != "" {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			uploadInput.SSEKMSKeyId = aws.String(u.sseKMSKeyID)
		} else {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	result, err := u.uploader.Upload(ctx, uploadInput)
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncSinkErrors("s3", "upload")
		}
		return 0, &errors.SinkError{Backend: "s3", Operation: "upload", Path: s3Key, Err: err}
	}

	duration := time.Since(startTime)

	u.logger.Info("uploaded batch to S3",
		"bucket", u.bucket,
		"key", s3Key,
		"size_bytes", len(payload),
		"location", result.Location,
		"total_duration_ms", duration.Milliseconds(),
	)

	if u.metrics != nil {
		u.metrics.IncBatchesUploaded("s3", "success")
		u.metrics.ObserveBatchSize("s3", float64(len(payload)))
		u.metrics.ObserveUploadDuration("s3", duration.Seconds())
	}

	return int64(len(payload)), nil
}

// Close closes the S3 uploader.
func (u *S3Uploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.logger.Info("closing S3 uploader")
	return nil
}
