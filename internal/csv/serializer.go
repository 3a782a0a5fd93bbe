package csv

import (
	"bytes"
	"context"

	"github.com/streamhaus/csvrowstore/internal/errors"
	"github.com/streamhaus/csvrowstore/pkg/rowtype"
	"github.com/streamhaus/csvrowstore/pkg/serializer"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ serializer.Serializer   = (*RecordSerializer)(nil)
	_ serializer.HeaderWriter = (*RecordSerializer)(nil)
)

// RecordSerializer serializes rows into CSV byte sequences. It composes
// the serializable Schema with a transient runtime encoder that is
// materialized by Open and rebuilt whenever the schema crosses a process
// boundary.
//
// One instance serves one worker: the reusable tree root, converter
// context and output buffer are unsynchronized single-writer state, so
// concurrent Serialize calls on the same instance are a data race. Give
// each worker its own instance built from the shared Schema; no internal
// locking is performed.
type RecordSerializer struct {
	schema *Schema
	conv   rowConverter
	enc    *runtimeEncoder
}

// runtimeEncoder is the non-serializable machinery: the text-rendering
// engine bound to the schema's options, the reusable tree root and
// converter context, and the output buffer. Created exactly once per
// serializer by Open; its contents are overwritten, never reallocated,
// on every Serialize call.
type runtimeEncoder struct {
	writer *treeWriter
	ctx    *converterContext
	out    bytes.Buffer
}

// NewRecordSerializer creates an unopened serializer for the given
// schema. The row converter is compiled here so a malformed row type
// fails at construction, not at serialize time.
func NewRecordSerializer(schema *Schema) (*RecordSerializer, error) {
	if schema == nil {
		return nil, &errors.InvalidArgumentError{
			Op:     "csv.NewRecordSerializer",
			Reason: "schema must not be nil",
		}
	}
	conv, err := newRowConverter(schema.RowType())
	if err != nil {
		return nil, &errors.InvalidArgumentError{
			Op:     "csv.NewRecordSerializer",
			Reason: err.Error(),
		}
	}
	return &RecordSerializer{schema: schema, conv: conv}, nil
}

// Schema returns the serializable encoding configuration.
func (s *RecordSerializer) Schema() *Schema { return s.schema }

// Open transitions the serializer from Unopened to Open: it constructs
// the text-rendering engine from the schema's options and allocates the
// reusable tree root and converter context. Calling Open on an already
// open serializer is a no-op. There is no reverse transition and no
// close; runtime resources are released with the instance.
func (s *RecordSerializer) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.enc != nil {
		return nil
	}
	w, err := newTreeWriter(s.schema.Options())
	if err != nil {
		return &errors.EncoderInitError{Format: string(serializer.FormatCSV), Err: err}
	}
	s.enc = &runtimeEncoder{
		writer: w,
		ctx:    newConverterContext(),
	}
	return nil
}

// Serialize encodes one row conforming to the schema's row type and
// returns its complete byte sequence. The reusable tree and context are
// reset and overwritten, not reallocated. Any conversion or rendering
// failure is re-signaled as a SerializationError carrying the offending
// row; no partial output is returned.
func (s *RecordSerializer) Serialize(row rowtype.Row) ([]byte, error) {
	enc := s.enc
	if enc == nil {
		return nil, &errors.EncoderInitError{
			Format: string(serializer.FormatCSV),
			Err:    errors.ErrNotOpened,
		}
	}
	enc.ctx.reset()
	if err := s.conv.convert(enc.ctx, row); err != nil {
		return nil, &errors.SerializationError{Record: row.String(), Err: err}
	}
	enc.out.Reset()
	if err := enc.writer.write(enc.ctx.root, &enc.out); err != nil {
		return nil, &errors.SerializationError{Record: row.String(), Err: err}
	}
	out := make([]byte, enc.out.Len())
	copy(out, enc.out.Bytes())
	return out, nil
}

// Header renders the row type's column names as one CSV record under the
// schema's quoting rules. Requires Open.
func (s *RecordSerializer) Header() ([]byte, error) {
	enc := s.enc
	if enc == nil {
		return nil, &errors.EncoderInitError{
			Format: string(serializer.FormatCSV),
			Err:    errors.ErrNotOpened,
		}
	}
	enc.out.Reset()
	enc.writer.writeHeader(s.schema.RowType().Names(), &enc.out)
	out := make([]byte, enc.out.Len())
	copy(out, enc.out.Bytes())
	return out, nil
}
