package csv

import (
	"fmt"

	"github.com/streamhaus/csvrowstore/internal/errors"
	"github.com/streamhaus/csvrowstore/pkg/serializer"
)

// Factory creates record serializers for a configured format. Schemas
// passed through the factory are interned, so structurally equal schemas
// built by independent builder invocations share one canonical instance
// and upstream caches keyed on it behave consistently.
type Factory struct {
	format   serializer.Format
	registry *SchemaRegistry
}

// NewFactory creates a new serializer factory.
func NewFactory(format serializer.Format) *Factory {
	return &Factory{
		format:   format,
		registry: NewSchemaRegistry(),
	}
}

// CreateSerializer creates an unopened serializer for the given schema.
// Each concurrent worker needs its own serializer; the schema itself is
// the shared immutable blueprint.
func (f *Factory) CreateSerializer(schema *Schema) (serializer.Serializer, error) {
	if schema == nil {
		return nil, &errors.InvalidArgumentError{
			Op:     "csv.CreateSerializer",
			Reason: "schema must not be nil",
		}
	}
	switch f.format {
	case serializer.FormatCSV, serializer.FormatTSV:
		return NewRecordSerializer(f.registry.Intern(schema))
	default:
		return nil, fmt.Errorf("unsupported serialization format: %s", f.format)
	}
}

// SupportedFormats returns a list of supported serialization formats.
func SupportedFormats() []serializer.Format {
	return []serializer.Format{
		serializer.FormatCSV,
		serializer.FormatTSV,
	}
}

// DefaultFieldDelimiter returns the column separator a format implies.
func DefaultFieldDelimiter(format serializer.Format) rune {
	switch format {
	case serializer.FormatTSV:
		return '\t'
	default:
		return ','
	}
}

// FileExtension returns the file extension for a format.
func FileExtension(format serializer.Format) string {
	switch format {
	case serializer.FormatTSV:
		return ".tsv"
	default:
		return ".csv"
	}
}
