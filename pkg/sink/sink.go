// Package sink defines interfaces for uploading CSV batch payloads.
//
// This package provides abstractions for writing batches to various
// backends (S3, GCS, Azure Blob, local filesystem).
package sink

import (
	"context"

	"github.com/streamhaus/csvrowstore/pkg/record"
)

// Uploader writes a batch payload to a storage backend.
type Uploader interface {
	// Upload writes the payload under the given path prefix.
	// Returns the number of bytes written.
	Upload(ctx context.Context, payload []byte, path string) (int64, error)

	// Close closes the uploader and releases resources.
	Close() error
}

// Router determines upload paths based on partitioning strategy.
type Router interface {
	// Route returns the path prefix for a partition at a given event time.
	Route(partitionID record.PartitionID, eventTime int64) string
}

// RotationPolicy determines when to flush buffered lines to the sink.
type RotationPolicy interface {
	// ShouldRotate returns true if the buffer should be flushed based on stats.
	ShouldRotate(stats record.BatchStats) bool
}
