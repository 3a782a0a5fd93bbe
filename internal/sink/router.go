// Package sink implements batch upload backends and routing.
package sink

import (
	"fmt"
	"time"

	"github.com/streamhaus/csvrowstore/pkg/record"
	"github.com/streamhaus/csvrowstore/pkg/sink"
)

// Ensure implementations satisfy interfaces.
var (
	_ sink.Router         = (*DefaultRouter)(nil)
	_ sink.RotationPolicy = (*CompositePolicy)(nil)
)

// DefaultRouter implements Hive-style partitioning for upload paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
}

// NewRouter creates a new upload path router.
func NewRouter(protocol, bucket, basePath string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: basePath,
	}
}

// Route returns the upload path for a partition at the given timestamp.
// Format: protocol://bucket/basePath/topic/dt=YYYY-MM-DD/pid=N/
// The timestamp is the event time of the batch, not the processing time.
func (r *DefaultRouter) Route(partitionID record.PartitionID, timestamp int64) string {
	t := time.Unix(timestamp, 0).UTC()
	date := t.Format("2006-01-02")

	return fmt.Sprintf("%s://%s/%s/%s/dt=%s/pid=%d/",
		r.protocol,
		r.bucket,
		r.basePath,
		partitionID.Topic,
		date,
		partitionID.Partition,
	)
}

// PolicyConfig configures rotation behavior.
type PolicyConfig struct {
	MaxBatchSizeMB     int64
	MaxRecordsPerBatch int
	MaxBatchAgeSeconds int
}

// CompositePolicy rotates based on multiple criteria.
type CompositePolicy struct {
	maxSizeBytes int64
	maxRecords   int
	maxAge       time.Duration
}

// NewPolicy creates a new composite rotation policy.
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return &CompositePolicy{
		maxSizeBytes: config.MaxBatchSizeMB * 1024 * 1024,
		maxRecords:   config.MaxRecordsPerBatch,
		maxAge:       time.Duration(config.MaxBatchAgeSeconds) * time.Second,
	}
}

// ShouldRotate returns true if any rotation condition is met.
func (p *CompositePolicy) ShouldRotate(stats record.BatchStats) bool {
	if p.maxSizeBytes > 0 && stats.SizeBytes >= p.maxSizeBytes {
		return true
	}

	if p.maxRecords > 0 && stats.RecordCount >= p.maxRecords {
		return true
	}

	if p.maxAge > 0 && !stats.FirstWriteTime.IsZero() {
		if time.Since(stats.FirstWriteTime) >= p.maxAge {
			return true
		}
	}

	return false
}
