// Package serializer defines interfaces for serializing rows to output
// byte sequences.
//
// A Serializer is the terminal encoding stage of the pipeline: it turns
// one in-memory row into the bytes routed to a sink. Implementations
// separate a serializable configuration (the encoding schema) from
// runtime encoding machinery materialized by Open.
package serializer

import (
	"context"

	"github.com/streamhaus/csvrowstore/pkg/rowtype"
)

// Serializer serializes rows conforming to a fixed row type.
//
// Open must be called exactly once before the first Serialize call; it
// materializes runtime state from the serializable configuration and
// fails fast if the configuration cannot be turned into an encoder.
//
// Serialize calls on one instance must be strictly sequential. A
// serializer reuses internal buffers between calls and performs no
// internal locking, so the pipeline must construct one instance per
// concurrent worker or partition.
type Serializer interface {
	// Open materializes the runtime encoder. Idempotent.
	Open(ctx context.Context) error

	// Serialize encodes one row and returns its complete byte sequence,
	// without a trailing record terminator. On failure no bytes are
	// returned for the row.
	Serialize(row rowtype.Row) ([]byte, error)
}

// HeaderWriter is implemented by serializers that can render a header
// record from the row type's column names.
type HeaderWriter interface {
	Header() ([]byte, error)
}

// Format identifies a serialization output format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatTSV Format = "tsv"
)
