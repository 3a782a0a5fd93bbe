// Package ingest decodes JSON row payloads into positional rows.
//
// A Decoder is compiled once from a row type; decoding then maps each JSON
// object key to its field position. Missing keys and JSON nulls both decode
// to nil (SQL NULL).
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/streamhaus/csvrowstore/pkg/rowtype"
)

// fieldDecoder decodes one raw JSON value into its row representation.
type fieldDecoder func(raw json.RawMessage) (any, error)

// Decoder converts JSON object payloads into rows matching a row type.
type Decoder struct {
	rowType *rowtype.RowType
	names   []string
	fields  []fieldDecoder
}

// NewDecoder compiles a decoder for the given row type.
func NewDecoder(rt *rowtype.RowType) (*Decoder, error) {
	if rt == nil {
		return nil, fmt.Errorf("row type must not be nil")
	}

	fields := make([]fieldDecoder, rt.Len())
	names := make([]string, rt.Len())
	for i := 0; i < rt.Len(); i++ {
		field := rt.Field(i)
		dec, err := newFieldDecoder(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		names[i] = field.Name
		fields[i] = dec
	}

	return &Decoder{rowType: rt, names: names, fields: fields}, nil
}

// Decode decodes a JSON object payload into a row. Object keys not present
// in the row type are ignored.
func (d *Decoder) Decode(payload []byte) (rowtype.Row, error) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(payload, &object); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	row := make(rowtype.Row, len(d.fields))
	for i, dec := range d.fields {
		raw, ok := object[d.names[i]]
		if !ok || isJSONNull(raw) {
			row[i] = nil
			continue
		}

		value, err := dec(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", d.names[i], err)
		}
		row[i] = value
	}

	return row, nil
}

func newFieldDecoder(t rowtype.Type) (fieldDecoder, error) {
	switch t.Kind {
	case rowtype.KindBoolean:
		return decodeBool, nil
	case rowtype.KindInt32:
		return decodeInt32, nil
	case rowtype.KindInt64:
		return decodeInt64, nil
	case rowtype.KindFloat64:
		return decodeFloat64, nil
	case rowtype.KindString:
		return decodeString, nil
	case rowtype.KindDecimal:
		return decodeDecimal, nil
	case rowtype.KindTimestamp:
		return decodeTimestamp, nil
	case rowtype.KindArray:
		if t.Elem == nil {
			return nil, fmt.Errorf("array type has no element type")
		}
		elem, err := newFieldDecoder(*t.Elem)
		if err != nil {
			return nil, err
		}
		return decodeArray(elem), nil
	case rowtype.KindRow:
		return decodeNestedRow(t.Fields)
	default:
		return nil, fmt.Errorf("unsupported logical type %s", t)
	}
}

func decodeBool(raw json.RawMessage) (any, error) {
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("expected boolean: %w", err)
	}
	return v, nil
}

func decodeInt32(raw json.RawMessage) (any, error) {
	n, err := decodeNumber(raw)
	if err != nil {
		return nil, err
	}
	v, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("expected integer, got %s", n)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return nil, fmt.Errorf("value %d overflows INT", v)
	}
	return int32(v), nil
}

func decodeInt64(raw json.RawMessage) (any, error) {
	n, err := decodeNumber(raw)
	if err != nil {
		return nil, err
	}
	v, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("expected integer, got %s", n)
	}
	return v, nil
}

func decodeFloat64(raw json.RawMessage) (any, error) {
	n, err := decodeNumber(raw)
	if err != nil {
		return nil, err
	}
	v, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("expected number, got %s", n)
	}
	return v, nil
}

func decodeString(raw json.RawMessage) (any, error) {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("expected string: %w", err)
	}
	return v, nil
}

// decodeDecimal accepts both a JSON number and a quoted decimal string. The
// string form preserves trailing zeros, which matters for fixed-scale
// rendering downstream.
func decodeDecimal(raw json.RawMessage) (any, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		n, numErr := decodeNumber(raw)
		if numErr != nil {
			return nil, fmt.Errorf("expected decimal number or string")
		}
		s = n.String()
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// decodeTimestamp accepts an RFC 3339 string or a unix epoch in milliseconds.
func decodeTimestamp(raw json.RawMessage) (any, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		ts, parseErr := time.Parse(time.RFC3339Nano, s)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", s, parseErr)
		}
		return ts, nil
	}

	n, err := decodeNumber(raw)
	if err != nil {
		return nil, fmt.Errorf("expected RFC 3339 string or epoch milliseconds")
	}
	millis, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("expected epoch milliseconds, got %s", n)
	}
	return time.UnixMilli(millis).UTC(), nil
}

func decodeArray(elem fieldDecoder) fieldDecoder {
	return func(raw json.RawMessage) (any, error) {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("expected array: %w", err)
		}

		values := make([]any, len(items))
		for i, item := range items {
			if isJSONNull(item) {
				values[i] = nil
				continue
			}
			value, err := elem(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			values[i] = value
		}
		return values, nil
	}
}

func decodeNestedRow(fields []rowtype.Field) (fieldDecoder, error) {
	decoders := make([]fieldDecoder, len(fields))
	names := make([]string, len(fields))
	for i, field := range fields {
		dec, err := newFieldDecoder(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		decoders[i] = dec
		names[i] = field.Name
	}

	return func(raw json.RawMessage) (any, error) {
		var object map[string]json.RawMessage
		if err := json.Unmarshal(raw, &object); err != nil {
			return nil, fmt.Errorf("expected object: %w", err)
		}

		row := make(rowtype.Row, len(decoders))
		for i, dec := range decoders {
			item, ok := object[names[i]]
			if !ok || isJSONNull(item) {
				row[i] = nil
				continue
			}
			value, err := dec(item)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", names[i], err)
			}
			row[i] = value
		}
		return row, nil
	}, nil
}

func decodeNumber(raw json.RawMessage) (json.Number, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected number: %w", err)
	}
	return n, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
