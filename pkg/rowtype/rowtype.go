package rowtype

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the logical type of a field.
type Kind uint8

const (
	KindBoolean Kind = iota
	KindInt32
	KindInt64
	KindFloat64
	KindDecimal
	KindString
	KindTimestamp
	KindArray
	KindRow
)

// String returns the SQL-style name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "BOOLEAN"
	case KindInt32:
		return "INT"
	case KindInt64:
		return "BIGINT"
	case KindFloat64:
		return "DOUBLE"
	case KindDecimal:
		return "DECIMAL"
	case KindString:
		return "STRING"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindArray:
		return "ARRAY"
	case KindRow:
		return "ROW"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// Type describes a logical field type. Precision and Scale apply to
// decimals, Elem to arrays, Fields to nested rows.
type Type struct {
	Kind      Kind
	Precision int
	Scale     int
	Elem      *Type
	Fields    []Field
}

// Field pairs a column name with its logical type.
type Field struct {
	Name string
	Type Type
}

// Convenience constructors for the scalar types.
func Boolean() Type   { return Type{Kind: KindBoolean} }
func Int32() Type     { return Type{Kind: KindInt32} }
func Int64() Type     { return Type{Kind: KindInt64} }
func Float64() Type   { return Type{Kind: KindFloat64} }
func String() Type    { return Type{Kind: KindString} }
func Timestamp() Type { return Type{Kind: KindTimestamp} }

// Decimal returns a decimal type with the given precision and scale.
func Decimal(precision, scale int) Type {
	return Type{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// Array returns an array type over the given element type.
func Array(elem Type) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e}
}

// Nested returns a nested row type with the given fields.
func Nested(fields ...Field) Type {
	return Type{Kind: KindRow, Fields: fields}
}

// Equal reports whether two types are structurally identical.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindDecimal:
		return t.Precision == other.Precision && t.Scale == other.Scale
	case KindArray:
		return t.Elem != nil && other.Elem != nil && t.Elem.Equal(*other.Elem)
	case KindRow:
		if len(t.Fields) != len(other.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != other.Fields[i].Name ||
				!t.Fields[i].Type.Equal(other.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the type in a canonical SQL-like form, e.g.
// "DECIMAL(10,2)", "ARRAY<STRING>", "ROW<a INT, b STRING>".
func (t Type) String() string {
	switch t.Kind {
	case KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	case KindArray:
		if t.Elem == nil {
			return "ARRAY<?>"
		}
		return "ARRAY<" + t.Elem.String() + ">"
	case KindRow:
		var sb strings.Builder
		sb.WriteString("ROW<")
		for i, f := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteByte(' ')
			sb.WriteString(f.Type.String())
		}
		sb.WriteByte('>')
		return sb.String()
	default:
		return t.Kind.String()
	}
}

// RowType is the immutable schema of a row: an ordered list of named,
// typed fields. Field order is fixed at construction and determines
// output column order.
type RowType struct {
	fields []Field
}

// New creates a RowType from the given fields. The field slice is copied.
func New(fields ...Field) *RowType {
	fs := make([]Field, len(fields))
	copy(fs, fields)
	return &RowType{fields: fs}
}

// Len returns the number of fields.
func (t *RowType) Len() int { return len(t.fields) }

// Field returns the field at position i.
func (t *RowType) Field(i int) Field { return t.fields[i] }

// Fields returns a copy of the field list.
func (t *RowType) Fields() []Field {
	fs := make([]Field, len(t.fields))
	copy(fs, t.fields)
	return fs
}

// Names returns the column names in declaration order.
func (t *RowType) Names() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

// Equal reports whether two row types have the same fields in the same order.
func (t *RowType) Equal(other *RowType) bool {
	if t == other {
		return true
	}
	if other == nil || len(t.fields) != len(other.fields) {
		return false
	}
	for i := range t.fields {
		if t.fields[i].Name != other.fields[i].Name ||
			!t.fields[i].Type.Equal(other.fields[i].Type) {
			return false
		}
	}
	return true
}

// String renders the row type canonically. Two equal row types always
// render identically, so the rendering is usable as a hash input.
func (t *RowType) String() string {
	return Type{Kind: KindRow, Fields: t.fields}.String()
}

// HasDecimal reports whether any field, at any nesting depth, is decimal
// typed. Used to derive numeric rendering defaults.
func (t *RowType) HasDecimal() bool {
	for _, f := range t.fields {
		if typeHasDecimal(f.Type) {
			return true
		}
	}
	return false
}

func typeHasDecimal(t Type) bool {
	switch t.Kind {
	case KindDecimal:
		return true
	case KindArray:
		return t.Elem != nil && typeHasDecimal(*t.Elem)
	case KindRow:
		for _, f := range t.Fields {
			if typeHasDecimal(f.Type) {
				return true
			}
		}
	}
	return false
}

// Row is one positional record conforming to a RowType. A nil element is
// a SQL NULL. Expected Go value per kind:
//
//	BOOLEAN    bool
//	INT        int32 (int and int64 accepted when in range)
//	BIGINT     int64 (int and int32 accepted)
//	DOUBLE     float64 (float32 accepted)
//	DECIMAL    decimal.Decimal
//	STRING     string
//	TIMESTAMP  time.Time
//	ARRAY      []any of element values
//	ROW        Row of nested field values
type Row []any

// String renders the row for diagnostics, e.g. "(1, NULL, hello)".
func (r Row) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range r {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeValue(&sb, v)
	}
	sb.WriteByte(')')
	return sb.String()
}

func writeValue(sb *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("NULL")
	case Row:
		sb.WriteString(x.String())
	case []any:
		sb.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, e)
		}
		sb.WriteByte(']')
	case decimal.Decimal:
		sb.WriteString(x.String())
	case time.Time:
		sb.WriteString(x.Format(time.RFC3339Nano))
	default:
		fmt.Fprintf(sb, "%v", x)
	}
}
