// Package buffer defines interfaces for batching serialized CSV lines.
//
// The serializer emits one line per record with no trailing terminator;
// buffers join lines with '\n' so that a drained payload is a well-formed
// text file body.
package buffer

import (
	"github.com/streamhaus/csvrowstore/pkg/record"
)

// LineBuffer accumulates serialized lines before upload.
// All implementations must be thread-safe.
type LineBuffer interface {
	// Append adds one serialized line to the buffer. The buffer copies the
	// line; callers may reuse the slice. Returns an error if the buffer is
	// full or capacity would be exceeded.
	Append(line []byte) error

	// Drain removes and returns the joined payload together with the stats
	// of the drained batch. The buffer is reset after draining.
	Drain() ([]byte, record.BatchStats)

	// Stats returns current buffer statistics without modifying the buffer.
	Stats() record.BatchStats

	// IsEmpty returns true if the buffer contains no lines.
	IsEmpty() bool

	// Reset clears the buffer and resets all statistics.
	Reset()
}

// Manager creates and manages buffers for partitions.
type Manager interface {
	// GetOrCreate returns a buffer for the given partition,
	// creating one if it doesn't exist.
	GetOrCreate(partitionID record.PartitionID) LineBuffer
}
