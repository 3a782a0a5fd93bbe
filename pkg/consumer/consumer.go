// Package consumer defines interfaces for Kafka row consumption.
//
// This package provides abstractions for consuming raw row payloads from
// Kafka and managing consumer lifecycle.
package consumer

import (
	"context"

	"github.com/streamhaus/csvrowstore/pkg/record"
)

// Consumer reads row payloads from Kafka topics.
type Consumer interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Consume starts consuming messages from subscribed topics.
	// Returns channels for rows and errors.
	Consume(ctx context.Context) (<-chan *record.ConsumedRow, <-chan error, error)

	// Commit commits the offset for a partition.
	Commit(ctx context.Context, partition record.PartitionID, offset int64) error

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes rows that failed processing to a dead letter queue.
type DLQPublisher interface {
	// Publish sends a failed row to the DLQ with failure information.
	Publish(ctx context.Context, row *record.ConsumedRow, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
