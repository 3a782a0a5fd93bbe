// Package csv implements the record-to-CSV encoding pipeline: the
// formatting configuration, the serializable encoding schema, and the
// record serializer that turns rows into delimited byte sequences.
package csv

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/streamhaus/csvrowstore/pkg/rowtype"
)

// Sentinel values for disabled quote and escape handling.
const (
	QuoteDisabled  rune = -1
	EscapeDisabled rune = -1
)

// FormatOptions describes the text-encoding rules for CSV output.
// Values are immutable once owned by a Schema; accessors hand out copies
// of byte-slice fields.
type FormatOptions struct {
	// ColumnSeparator separates fields within a record.
	ColumnSeparator rune
	// LineSeparator is forced empty: the codec never emits a trailing
	// line terminator, inter-record separation is the sink's job.
	LineSeparator []byte
	// ArrayElementSeparator joins elements of array and nested-row fields.
	ArrayElementSeparator string
	// QuoteChar wraps fields that contain separators; QuoteDisabled turns
	// quoting off.
	QuoteChar rune
	// EscapeChar escapes quote characters inside quoted fields and
	// separators in unquoted output; EscapeDisabled falls back to quote
	// doubling.
	EscapeChar rune
	// NullLiteral is the exact rendering of an absent value. May be empty.
	NullLiteral []byte
	// ScientificNotation selects exponential rendering for decimal fields.
	ScientificNotation bool
}

// defaultFormatOptions derives the baseline options from the shape of the
// row type. Scientific notation defaults to plain rendering whether or
// not the row type carries decimal fields; the flag only changes output
// when it does.
func defaultFormatOptions(rt *rowtype.RowType) FormatOptions {
	opts := FormatOptions{
		ColumnSeparator:       ',',
		LineSeparator:         []byte{},
		ArrayElementSeparator: ";",
		QuoteChar:             '"',
		EscapeChar:            EscapeDisabled,
		NullLiteral:           []byte{},
	}
	if rt.HasDecimal() {
		opts.ScientificNotation = false
	}
	return opts
}

// Schema is the serializable encoding configuration: a logical row type
// plus the formatting options. It is created once by SchemaBuilder.Build,
// never mutated afterwards, and safe to share across workers as the
// blueprint from which each worker materializes its own serializer.
type Schema struct {
	rowType *rowtype.RowType
	opts    FormatOptions
}

// newSchema copies the mutable option fields so a built schema cannot be
// changed through a caller-held reference.
func newSchema(rt *rowtype.RowType, opts FormatOptions) *Schema {
	opts.LineSeparator = []byte{}
	opts.NullLiteral = append([]byte(nil), opts.NullLiteral...)
	return &Schema{rowType: rt, opts: opts}
}

// RowType returns the logical row type the schema encodes.
func (s *Schema) RowType() *rowtype.RowType { return s.rowType }

// Options returns a copy of the formatting options.
func (s *Schema) Options() FormatOptions {
	opts := s.opts
	opts.LineSeparator = append([]byte(nil), s.opts.LineSeparator...)
	opts.NullLiteral = append([]byte(nil), s.opts.NullLiteral...)
	return opts
}

// Equal reports whether two schemas are interchangeable: same row type
// and same rendering of the seven formatting fields. Byte-valued fields
// are compared element-wise. Two equal schemas always hash identically.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil {
		return false
	}
	if s == other {
		return true
	}
	return s.rowType.Equal(other.rowType) &&
		s.opts.ColumnSeparator == other.opts.ColumnSeparator &&
		bytes.Equal(s.opts.LineSeparator, other.opts.LineSeparator) &&
		s.opts.ArrayElementSeparator == other.opts.ArrayElementSeparator &&
		s.opts.QuoteChar == other.opts.QuoteChar &&
		s.opts.EscapeChar == other.opts.EscapeChar &&
		bytes.Equal(s.opts.NullLiteral, other.opts.NullLiteral)
}

// Hash returns a structural hash over the exact field set Equal compares,
// so schemas may be used as keys in caches and deduplication maps.
func (s *Schema) Hash() uint64 {
	d := xxhash.New()
	hashComponent(d, []byte(s.rowType.String()))
	hashComponent(d, runeBytes(s.opts.ColumnSeparator))
	hashComponent(d, s.opts.LineSeparator)
	hashComponent(d, []byte(s.opts.ArrayElementSeparator))
	hashComponent(d, runeBytes(s.opts.QuoteChar))
	hashComponent(d, runeBytes(s.opts.EscapeChar))
	hashComponent(d, s.opts.NullLiteral)
	return d.Sum64()
}

// hashComponent writes a length-prefixed component so adjacent fields
// cannot collide.
func hashComponent(d *xxhash.Digest, b []byte) {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(b)))
	_, _ = d.Write(length[:])
	_, _ = d.Write(b)
}

func runeBytes(r rune) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(r))
	return b[:]
}

// schemaJSON is the wire form used to move a schema across a process
// boundary. Only the serializable configuration travels; runtime encoder
// state is rebuilt by Open on the other side.
type schemaJSON struct {
	RowType               *rowtype.RowType `json:"row_type"`
	ColumnSeparator       string           `json:"column_separator"`
	ArrayElementSeparator string           `json:"array_element_separator"`
	QuoteChar             string           `json:"quote_char,omitempty"`
	EscapeChar            string           `json:"escape_char,omitempty"`
	NullLiteral           string           `json:"null_literal"`
	ScientificNotation    bool             `json:"scientific_notation"`
}

// MarshalJSON implements json.Marshaler.
func (s *Schema) MarshalJSON() ([]byte, error) {
	j := schemaJSON{
		RowType:               s.rowType,
		ColumnSeparator:       string(s.opts.ColumnSeparator),
		ArrayElementSeparator: s.opts.ArrayElementSeparator,
		NullLiteral:           string(s.opts.NullLiteral),
		ScientificNotation:    s.opts.ScientificNotation,
	}
	if s.opts.QuoteChar != QuoteDisabled {
		j.QuoteChar = string(s.opts.QuoteChar)
	}
	if s.opts.EscapeChar != EscapeDisabled {
		j.EscapeChar = string(s.opts.EscapeChar)
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(b []byte) error {
	var j schemaJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	if j.RowType == nil {
		return fmt.Errorf("schema is missing row_type")
	}
	sep, err := singleRune(j.ColumnSeparator, "column_separator")
	if err != nil {
		return err
	}
	opts := FormatOptions{
		ColumnSeparator:       sep,
		LineSeparator:         []byte{},
		ArrayElementSeparator: j.ArrayElementSeparator,
		QuoteChar:             QuoteDisabled,
		EscapeChar:            EscapeDisabled,
		NullLiteral:           []byte(j.NullLiteral),
		ScientificNotation:    j.ScientificNotation,
	}
	if j.QuoteChar != "" {
		if opts.QuoteChar, err = singleRune(j.QuoteChar, "quote_char"); err != nil {
			return err
		}
	}
	if j.EscapeChar != "" {
		if opts.EscapeChar, err = singleRune(j.EscapeChar, "escape_char"); err != nil {
			return err
		}
	}
	*s = *newSchema(j.RowType, opts)
	return nil
}

func singleRune(s, name string) (rune, error) {
	rs := []rune(s)
	if len(rs) != 1 {
		return 0, fmt.Errorf("%s must be a single character, got %q", name, s)
	}
	return rs[0], nil
}

// SchemaRegistry deduplicates structurally equal schemas so the pipeline
// can treat them as one artifact, even when they were built through
// independent builder invocations.
type SchemaRegistry struct {
	mu     sync.Mutex
	byHash map[uint64][]*Schema
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{byHash: make(map[uint64][]*Schema)}
}

// Intern returns the canonical instance for the given schema, storing it
// if no equal schema is registered yet.
func (r *SchemaRegistry) Intern(s *Schema) *Schema {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := s.Hash()
	for _, candidate := range r.byHash[h] {
		if candidate.Equal(s) {
			return candidate
		}
	}
	r.byHash[h] = append(r.byHash[h], s)
	return s
}
