package csv

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/streamhaus/csvrowstore/pkg/rowtype"
)

// fieldConverter populates a tree node from one field value. Converters
// are compiled once per row type and are total over conforming values;
// anything else yields a typed conversion error. They never retain a
// reference to the value after returning.
type fieldConverter func(ctx *converterContext, n *node, v any) error

// rowConverter converts a full row into the reusable tree, field by field
// in row type order.
type rowConverter struct {
	names  []string
	fields []fieldConverter
}

func newRowConverter(rt *rowtype.RowType) (rowConverter, error) {
	names := rt.Names()
	fields := make([]fieldConverter, rt.Len())
	for i := 0; i < rt.Len(); i++ {
		fc, err := newFieldConverter(rt.Field(i).Type)
		if err != nil {
			return rowConverter{}, fmt.Errorf("field %q: %w", names[i], err)
		}
		fields[i] = fc
	}
	return rowConverter{names: names, fields: fields}, nil
}

func (c rowConverter) convert(ctx *converterContext, row rowtype.Row) error {
	if len(row) != len(c.fields) {
		return fmt.Errorf("row has %d fields, row type expects %d", len(row), len(c.fields))
	}
	for i, fc := range c.fields {
		child := ctx.arena.alloc()
		if err := fc(ctx, child, row[i]); err != nil {
			return fmt.Errorf("field %q: %w", c.names[i], err)
		}
		ctx.root.children = append(ctx.root.children, child)
	}
	return nil
}

// nullable short-circuits nil values to a null node before the typed
// converter runs.
func nullable(fc fieldConverter) fieldConverter {
	return func(ctx *converterContext, n *node, v any) error {
		if v == nil {
			n.kind = nodeNull
			return nil
		}
		return fc(ctx, n, v)
	}
}

func newFieldConverter(t rowtype.Type) (fieldConverter, error) {
	switch t.Kind {
	case rowtype.KindBoolean:
		return nullable(convertBool), nil
	case rowtype.KindInt32:
		return nullable(convertInt32), nil
	case rowtype.KindInt64:
		return nullable(convertInt64), nil
	case rowtype.KindFloat64:
		return nullable(convertFloat64), nil
	case rowtype.KindDecimal:
		return nullable(convertDecimal), nil
	case rowtype.KindString:
		return nullable(convertString), nil
	case rowtype.KindTimestamp:
		return nullable(convertTimestamp), nil
	case rowtype.KindArray:
		if t.Elem == nil {
			return nil, fmt.Errorf("array type has no element type")
		}
		elem, err := newFieldConverter(*t.Elem)
		if err != nil {
			return nil, err
		}
		return nullable(convertArray(elem)), nil
	case rowtype.KindRow:
		converters := make([]fieldConverter, len(t.Fields))
		for i, f := range t.Fields {
			fc, err := newFieldConverter(f.Type)
			if err != nil {
				return nil, fmt.Errorf("nested field %q: %w", f.Name, err)
			}
			converters[i] = fc
		}
		return nullable(convertNestedRow(converters)), nil
	default:
		return nil, fmt.Errorf("unsupported logical type %s", t)
	}
}

func convertBool(_ *converterContext, n *node, v any) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("cannot convert %T to BOOLEAN", v)
	}
	n.setBool(b)
	return nil
}

func convertInt32(_ *converterContext, n *node, v any) error {
	switch x := v.(type) {
	case int32:
		n.setInt(int64(x))
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return fmt.Errorf("value %d overflows INT", x)
		}
		n.setInt(int64(x))
	case int64:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return fmt.Errorf("value %d overflows INT", x)
		}
		n.setInt(x)
	default:
		return fmt.Errorf("cannot convert %T to INT", v)
	}
	return nil
}

func convertInt64(_ *converterContext, n *node, v any) error {
	switch x := v.(type) {
	case int64:
		n.setInt(x)
	case int:
		n.setInt(int64(x))
	case int32:
		n.setInt(int64(x))
	default:
		return fmt.Errorf("cannot convert %T to BIGINT", v)
	}
	return nil
}

func convertFloat64(_ *converterContext, n *node, v any) error {
	switch x := v.(type) {
	case float64:
		n.setFloat(x)
	case float32:
		n.setFloat(float64(x))
	default:
		return fmt.Errorf("cannot convert %T to DOUBLE", v)
	}
	return nil
}

func convertDecimal(_ *converterContext, n *node, v any) error {
	d, ok := v.(decimal.Decimal)
	if !ok {
		return fmt.Errorf("cannot convert %T to DECIMAL", v)
	}
	n.setDecimal(d)
	return nil
}

func convertString(_ *converterContext, n *node, v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("cannot convert %T to STRING", v)
	}
	n.setString(s)
	return nil
}

func convertTimestamp(_ *converterContext, n *node, v any) error {
	t, ok := v.(time.Time)
	if !ok {
		return fmt.Errorf("cannot convert %T to TIMESTAMP", v)
	}
	n.setTime(t)
	return nil
}

func convertArray(elem fieldConverter) fieldConverter {
	return func(ctx *converterContext, n *node, v any) error {
		values, ok := v.([]any)
		if !ok {
			return fmt.Errorf("cannot convert %T to ARRAY", v)
		}
		n.kind = nodeArray
		for i, e := range values {
			child := ctx.arena.alloc()
			if err := elem(ctx, child, e); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			n.children = append(n.children, child)
		}
		return nil
	}
}

func convertNestedRow(converters []fieldConverter) fieldConverter {
	return func(ctx *converterContext, n *node, v any) error {
		var values []any
		switch x := v.(type) {
		case rowtype.Row:
			values = x
		case []any:
			values = x
		default:
			return fmt.Errorf("cannot convert %T to ROW", v)
		}
		if len(values) != len(converters) {
			return fmt.Errorf("nested row has %d fields, type expects %d", len(values), len(converters))
		}
		n.kind = nodeRow
		for i, e := range values {
			child := ctx.arena.alloc()
			if err := converters[i](ctx, child, e); err != nil {
				return fmt.Errorf("nested field %d: %w", i, err)
			}
			n.children = append(n.children, child)
		}
		return nil
	}
}
