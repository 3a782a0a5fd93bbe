package csv

import (
	"github.com/streamhaus/csvrowstore/internal/errors"
	"github.com/streamhaus/csvrowstore/pkg/rowtype"
)

// SchemaBuilder validates and accumulates formatting options for a row
// type, producing an immutable Schema. Mutators are fluent; the first
// invalid argument is latched before any state changes and surfaced by
// Build, so a failed call never leaves the builder partially mutated.
//
// Quote handling follows last-write-wins: SetQuoteCharacter after
// DisableQuoteCharacter re-enables quoting, and vice versa.
type SchemaBuilder struct {
	rowType *rowtype.RowType
	opts    FormatOptions
	err     error
}

// NewSchemaBuilder creates a builder with defaults derived from the row
// type's shape. The row type must not be nil.
func NewSchemaBuilder(rt *rowtype.RowType) (*SchemaBuilder, error) {
	if rt == nil {
		return nil, &errors.InvalidArgumentError{
			Op:     "csv.NewSchemaBuilder",
			Reason: "row type must not be nil",
		}
	}
	return &SchemaBuilder{rowType: rt, opts: defaultFormatOptions(rt)}, nil
}

// SetFieldDelimiter sets the column separator character.
func (b *SchemaBuilder) SetFieldDelimiter(c rune) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if c == 0 {
		b.err = &errors.InvalidArgumentError{
			Op:     "csv.SetFieldDelimiter",
			Reason: "delimiter must not be the zero character",
		}
		return b
	}
	b.opts.ColumnSeparator = c
	return b
}

// SetArrayElementDelimiter sets the separator joining array and
// nested-row elements.
func (b *SchemaBuilder) SetArrayElementDelimiter(delimiter string) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if delimiter == "" {
		b.err = &errors.InvalidArgumentError{
			Op:     "csv.SetArrayElementDelimiter",
			Reason: "delimiter must not be empty",
		}
		return b
	}
	b.opts.ArrayElementSeparator = delimiter
	return b
}

// DisableQuoteCharacter turns quoting off.
func (b *SchemaBuilder) DisableQuoteCharacter() *SchemaBuilder {
	if b.err != nil {
		return b
	}
	b.opts.QuoteChar = QuoteDisabled
	return b
}

// SetQuoteCharacter sets the quote character and re-enables quoting if it
// was disabled.
func (b *SchemaBuilder) SetQuoteCharacter(c rune) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if c == 0 {
		b.err = &errors.InvalidArgumentError{
			Op:     "csv.SetQuoteCharacter",
			Reason: "quote character must not be the zero character",
		}
		return b
	}
	b.opts.QuoteChar = c
	return b
}

// SetEscapeCharacter sets the escape character.
func (b *SchemaBuilder) SetEscapeCharacter(c rune) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if c == 0 {
		b.err = &errors.InvalidArgumentError{
			Op:     "csv.SetEscapeCharacter",
			Reason: "escape character must not be the zero character",
		}
		return b
	}
	b.opts.EscapeChar = c
	return b
}

// SetNullLiteral sets the rendering of absent values. An empty literal is
// allowed.
func (b *SchemaBuilder) SetNullLiteral(s string) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	b.opts.NullLiteral = []byte(s)
	return b
}

// SetScientificNotation selects exponential rendering for decimal fields.
func (b *SchemaBuilder) SetScientificNotation(enabled bool) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	b.opts.ScientificNotation = enabled
	return b
}

// Err returns the first validation error recorded by a mutator, if any.
func (b *SchemaBuilder) Err() error {
	return b.err
}

// Build produces the immutable Schema, defensively copying byte-slice
// options so later mutation of builder state cannot change a built
// schema. Returns the first latched validation error instead if any
// mutator failed.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	return newSchema(b.rowType, b.opts), nil
}
