// Package buffer implements line buffering for batch uploads.
package buffer

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/streamhaus/csvrowstore/internal/errors"
	"github.com/streamhaus/csvrowstore/pkg/buffer"
	"github.com/streamhaus/csvrowstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.LineBuffer = (*PartitionBuffer)(nil)

// PartitionBuffer buffers serialized CSV lines for a single Kafka partition.
// Lines are joined with '\n' as they arrive, so a drained payload is a
// ready-to-upload text body. The buffer tracks first and last write times
// for rotation decisions.
type PartitionBuffer struct {
	partitionID    record.PartitionID
	data           bytes.Buffer
	recordCount    int
	maxSizeBytes   int64
	maxRecords     int
	firstWriteTime time.Time
	lastWriteTime  time.Time
	mu             sync.RWMutex
}

// New creates a new partition buffer.
func New(partitionID record.PartitionID, maxSizeBytes int64, maxRecords int) *PartitionBuffer {
	return &PartitionBuffer{
		partitionID:  partitionID,
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
	}
}

// Append adds one serialized line to the buffer.
func (b *PartitionBuffer) Append(line []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxRecords > 0 && b.recordCount >= b.maxRecords {
		return fmt.Errorf("%w: max records (%d) reached", errors.ErrBufferFull, b.maxRecords)
	}

	// One byte for the joining newline when the buffer is not empty.
	added := int64(len(line))
	if b.recordCount > 0 {
		added++
	}
	if b.maxSizeBytes > 0 && int64(b.data.Len())+added > b.maxSizeBytes {
		return fmt.Errorf("%w: max size (%d bytes) would be exceeded", errors.ErrBufferFull, b.maxSizeBytes)
	}

	if b.recordCount > 0 {
		b.data.WriteByte('\n')
	}
	b.data.Write(line)
	b.recordCount++

	now := time.Now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now

	return nil
}

// Drain removes and returns the joined payload and the stats of the drained
// batch. The returned slice is owned by the caller.
func (b *PartitionBuffer) Drain() ([]byte, record.BatchStats) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := b.statsLocked()
	payload := make([]byte, b.data.Len())
	copy(payload, b.data.Bytes())
	b.resetLocked()
	return payload, stats
}

// Stats returns current buffer statistics.
func (b *PartitionBuffer) Stats() record.BatchStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.statsLocked()
}

// IsEmpty returns true if the buffer is empty.
func (b *PartitionBuffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.recordCount == 0
}

// Reset clears the buffer and resets all statistics.
func (b *PartitionBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *PartitionBuffer) statsLocked() record.BatchStats {
	return record.BatchStats{
		RecordCount:    b.recordCount,
		SizeBytes:      int64(b.data.Len()),
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

func (b *PartitionBuffer) resetLocked() {
	b.data.Reset()
	b.recordCount = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}

// Manager manages buffers for multiple Kafka partitions.
// It provides thread-safe access to partition-specific buffers, creating
// them on demand with double-checked locking.
type Manager struct {
	buffers      map[record.PartitionID]*PartitionBuffer
	maxSizeBytes int64
	maxRecords   int
	mu           sync.RWMutex
}

// Ensure implementation satisfies interface at compile time.
var _ buffer.Manager = (*Manager)(nil)

// NewManager creates a new buffer manager.
func NewManager(maxSizeBytes int64, maxRecords int) *Manager {
	return &Manager{
		buffers:      make(map[record.PartitionID]*PartitionBuffer),
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
	}
}

// GetOrCreate returns a buffer for the partition, creating if needed.
func (m *Manager) GetOrCreate(partitionID record.PartitionID) buffer.LineBuffer {
	m.mu.RLock()
	buf, exists := m.buffers[partitionID]
	m.mu.RUnlock()

	if exists {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if buf, exists := m.buffers[partitionID]; exists {
		return buf
	}

	buf = New(partitionID, m.maxSizeBytes, m.maxRecords)
	m.buffers[partitionID] = buf
	return buf
}

// Partitions returns the IDs of all partitions with a buffer, in no
// particular order.
func (m *Manager) Partitions() []record.PartitionID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]record.PartitionID, 0, len(m.buffers))
	for id := range m.buffers {
		ids = append(ids, id)
	}
	return ids
}
