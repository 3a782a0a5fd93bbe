// Package csv provides the record-to-CSV encoding pipeline.
//
// The package separates a serializable configuration from runtime
// encoding machinery:
//
//   - FormatOptions / SchemaBuilder: validated formatting rules with
//     defaults derived from the logical row type.
//   - Schema: row type + options, immutable, JSON-serializable, with
//     structural equality and hashing over the formatting fields.
//   - RecordSerializer: the public entry point. Open materializes the
//     runtime encoder (tree writer, reusable tree root, converter
//     context); Serialize encodes one row per call, reusing the tree
//     and buffers.
//
// # Building a Schema
//
//	builder, err := csv.NewSchemaBuilder(rt)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	schema, err := builder.
//	    SetFieldDelimiter(';').
//	    SetNullLiteral("NULL").
//	    Build()
//
// # Serializing Rows
//
//	ser, err := csv.NewRecordSerializer(schema)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ser.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	line, err := ser.Serialize(row)
//
// Serialized records carry no trailing line terminator; joining records
// is the responsibility of the output sink.
//
// # Thread Safety
//
// A Schema is immutable and safe to share. A RecordSerializer is not:
// it reuses a mutable tree root and converter context between calls and
// must be confined to one worker. Construct one serializer per worker
// from the shared schema.
package csv
