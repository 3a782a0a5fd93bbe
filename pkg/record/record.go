// Package record defines the row-oriented data types shared between the
// Kafka ingress, the serialization pipeline, and the sink layer.
//
// A record travels through the pipeline as raw JSON bytes, is decoded into
// a rowtype.Row, serialized into a single CSV line, and finally batched
// into an upload payload.
package record

import (
	"fmt"
	"time"
)

// KafkaMetadata contains Kafka-specific metadata for a consumed row.
type KafkaMetadata struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Headers   map[string]string
	Timestamp time.Time
}

// PartitionID uniquely identifies a Kafka partition.
type PartitionID struct {
	Topic     string
	Partition int32
}

// String returns a string representation of the partition ID in the format "topic-partition".
func (p PartitionID) String() string {
	return fmt.Sprintf("%s-%d", p.Topic, p.Partition)
}

// ConsumedRow is a raw row payload consumed from Kafka, before decoding.
// Payload holds the message value as received (a JSON object).
type ConsumedRow struct {
	Payload    []byte
	Metadata   KafkaMetadata
	CommitFunc func() error
}

// BatchStats contains statistics about buffered CSV lines.
type BatchStats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}
