package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/streamhaus/csvrowstore/internal/errors"
	"github.com/streamhaus/csvrowstore/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Uploader = (*AzureUploader)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// AzureUploader implements sink.Uploader for Azure Blob Storage.
type AzureUploader struct {
	client        *azblob.Client
	containerName string
	extension     string
	logger        *slog.Logger
	metrics       MetricsCollector
	mu            sync.Mutex
	closed        bool
}

// NewAzureUploader creates a new Azure Blob storage uploader.
func NewAzureUploader(
	cfg AzureConfig,
	extension string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*AzureUploader, error) {
	var connectionString string
	if cfg.Endpoint != "" {
		connectionString = fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	} else {
		connectionString = fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
			cfg.AccountName, cfg.AccountKey)
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure uploader created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
	)

	return &AzureUploader{
		client:        client,
		containerName: cfg.ContainerName,
		extension:     extension,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Upload uploads the payload as a blob under the routed path.
func (u *AzureUploader) Upload(ctx context.Context, payload []byte, path string) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return 0, errors.ErrSinkClosed
	}
	if len(payload) == 0 {
		return 0, nil
	}

	startTime := time.Now()

	// Path format: wasbs://container/blob/path or just blob/path
	blobPath := path
	if idx := strings.Index(path, "://"); idx >= 0 {
		pathWithoutProtocol := path[idx+3:]
		parts := strings.SplitN(pathWithoutProtocol, "/", 2)
		if len(parts) == 2 {
			blobPath = parts[1]
		} else {
			blobPath = ""
		}
	}

	now := time.Now()
	timestamp := now.Format("20060102_150405")
	filename := fmt.Sprintf("rows_%s_%03d%s", timestamp, now.Nanosecond()/1000000, u.extension)
	blobPath = strings.TrimPrefix(blobPath+filename, "/")

	_, err := u.client.UploadBuffer(ctx, u.containerName, blobPath, payload, nil)
	if err != nil {
		if u.metrics != nil {
			u.metrics.IncSinkErrors("azure", "upload")
		}
		return 0, &errors.SinkError{Backend: "azure", Operation: "upload", Path: blobPath, Err: err}
	}

	duration := time.Since(startTime)

	u.logger.Info("uploaded batch to Azure Blob",
		"container", u.containerName,
		"blob", blobPath,
		"size_bytes", len(payload),
		"total_duration_ms", duration.Milliseconds(),
	)

	if u.metrics != nil {
		u.metrics.IncBatchesUploaded("azure", "success")
		u.metrics.ObserveBatchSize("azure", float64(len(payload)))
		u.metrics.ObserveUploadDuration("azure", duration.Seconds())
	}

	return int64(len(payload)), nil
}

// Close closes the Azure uploader.
func (u *AzureUploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.logger.Info("closing Azure uploader")
	return nil
}
