package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/streamhaus/csvrowstore/internal/errors"
	"github.com/streamhaus/csvrowstore/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Uploader = (*FileUploader)(nil)

// MetricsCollector defines metrics operations for sink uploads.
type MetricsCollector interface {
	IncBatchesUploaded(backend string, status string)
	ObserveBatchSize(backend string, size float64)
	ObserveUploadDuration(backend string, duration float64)
	IncSinkErrors(backend string, operation string)
}

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileUploader implements sink.Uploader for the local filesystem.
// Batches are written as timestamped files under the routed directory.
type FileUploader struct {
	basePath  string
	extension string
	logger    *slog.Logger
	metrics   MetricsCollector
	mu        sync.Mutex
	closed    bool

	// Sequence counter for files created in the same second.
	fileSequence  int
	lastTimestamp string
}

// NewFileUploader creates a new filesystem uploader.
func NewFileUploader(
	config FileConfig,
	extension string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*FileUploader, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem uploader created",
		"base_path", config.BasePath,
		"extension", extension,
	)

	return &FileUploader{
		basePath:  config.BasePath,
		extension: extension,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Upload writes the payload to a timestamped file under the routed path.
func (u *FileUploader) Upload(ctx context.Context, payload []byte, path string) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return 0, errors.ErrSinkClosed
	}
	if len(payload) == 0 {
		return 0, nil
	}

	startTime := time.Now()

	cleanPath := strings.TrimPrefix(path, "file://")

	timestamp := startTime.Format("20060102_150405")
	if timestamp == u.lastTimestamp {
		u.fileSequence++
	} else {
		u.fileSequence = 1
		u.lastTimestamp = timestamp
	}
	filename := fmt.Sprintf("rows_%s_%03d%s", timestamp, u.fileSequence, u.extension)

	dir := filepath.Join(u.basePath, cleanPath)
	fullPath := filepath.Join(dir, filename)

	if err := os.MkdirAll(dir, 0755); err != nil {
		if u.metrics != nil {
			u.metrics.IncSinkErrors("file", "mkdir")
		}
		return 0, &errors.SinkError{Backend: "file", Operation: "mkdir", Path: dir, Err: err}
	}

	if err := os.WriteFile(fullPath, payload, 0644); err != nil {
		if u.metrics != nil {
			u.metrics.IncSinkErrors("file", "write")
		}
		return 0, &errors.SinkError{Backend: "file", Operation: "write", Path: fullPath, Err: err}
	}

	duration := time.Since(startTime)

	u.logger.Info("wrote batch to file",
		"path", fullPath,
		"size_bytes", len(payload),
		"total_duration_ms", duration.Milliseconds(),
	)

	if u.metrics != nil {
		u.metrics.IncBatchesUploaded("file", "success")
		u.metrics.ObserveBatchSize("file", float64(len(payload)))
		u.metrics.ObserveUploadDuration("file", duration.Seconds())
	}

	return int64(len(payload)), nil
}

// Close closes the uploader.
func (u *FileUploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.logger.Info("closing filesystem uploader")
	return nil
}
