// Package validator provides structural validation of rows against a row type.
package validator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/streamhaus/csvrowstore/internal/errors"
	"github.com/streamhaus/csvrowstore/pkg/rowtype"
)

// RowValidator checks that a decoded row conforms to its row type.
// It accepts the same value widenings as the serializer (plain ints for
// INT/BIGINT fields, float32 for DOUBLE), so a row that validates will
// also serialize unless a numeric range is exceeded.
type RowValidator struct {
	rowType *rowtype.RowType
}

// NewRowValidator creates a validator for the given row type.
func NewRowValidator(rt *rowtype.RowType) (*RowValidator, error) {
	if rt == nil {
		return nil, fmt.Errorf("row type must not be nil")
	}
	return &RowValidator{rowType: rt}, nil
}

// Validate checks row arity and per-field value kinds. Nil elements are
// always valid (SQL NULL).
func (v *RowValidator) Validate(row rowtype.Row) error {
	if len(row) != v.rowType.Len() {
		return &errors.ValidationError{
			Field:  "",
			Reason: fmt.Sprintf("row has %d values, row type has %d fields", len(row), v.rowType.Len()),
		}
	}

	for i, value := range row {
		field := v.rowType.Field(i)
		if err := validateValue(field.Name, field.Type, value); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(name string, t rowtype.Type, value any) error {
	if value == nil {
		return nil
	}

	switch t.Kind {
	case rowtype.KindBoolean:
		if _, ok := value.(bool); !ok {
			return typeMismatch(name, t, value)
		}
	case rowtype.KindInt32, rowtype.KindInt64:
		switch value.(type) {
		case int, int32, int64:
		default:
			return typeMismatch(name, t, value)
		}
	case rowtype.KindFloat64:
		switch value.(type) {
		case float32, float64:
		default:
			return typeMismatch(name, t, value)
		}
	case rowtype.KindString:
		if _, ok := value.(string); !ok {
			return typeMismatch(name, t, value)
		}
	case rowtype.KindDecimal:
		if _, ok := value.(decimal.Decimal); !ok {
			return typeMismatch(name, t, value)
		}
	case rowtype.KindTimestamp:
		if _, ok := value.(time.Time); !ok {
			return typeMismatch(name, t, value)
		}
	case rowtype.KindArray:
		elems, ok := value.([]any)
		if !ok {
			return typeMismatch(name, t, value)
		}
		for i, elem := range elems {
			if err := validateValue(fmt.Sprintf("%s[%d]", name, i), *t.Elem, elem); err != nil {
				return err
			}
		}
	case rowtype.KindRow:
		nested, ok := asRow(value)
		if !ok {
			return typeMismatch(name, t, value)
		}
		if len(nested) != len(t.Fields) {
			return &errors.ValidationError{
				Field:  name,
				Reason: fmt.Sprintf("nested row has %d values, type has %d fields", len(nested), len(t.Fields)),
			}
		}
		for i, field := range t.Fields {
			if err := validateValue(name+"."+field.Name, field.Type, nested[i]); err != nil {
				return err
			}
		}
	default:
		return &errors.ValidationError{
			Field:  name,
			Reason: fmt.Sprintf("unsupported logical type %s", t),
		}
	}
	return nil
}

func asRow(value any) (rowtype.Row, bool) {
	switch v := value.(type) {
	case rowtype.Row:
		return v, true
	case []any:
		return rowtype.Row(v), true
	default:
		return nil, false
	}
}

func typeMismatch(name string, t rowtype.Type, value any) error {
	return &errors.ValidationError{
		Field:  name,
		Reason: fmt.Sprintf("value of type %T does not match %s", value, t),
	}
}
