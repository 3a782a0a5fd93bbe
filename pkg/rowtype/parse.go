package rowtype

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseType parses a canonical SQL-like type string as produced by
// Type.String, e.g. "BIGINT", "DECIMAL(10,2)", "ARRAY<STRING>",
// "ROW<a INT, b STRING>". Names are case-insensitive.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)

	switch upper {
	case "BOOLEAN", "BOOL":
		return Boolean(), nil
	case "INT", "INT32", "INTEGER":
		return Int32(), nil
	case "BIGINT", "INT64", "LONG":
		return Int64(), nil
	case "DOUBLE", "FLOAT64":
		return Float64(), nil
	case "STRING", "VARCHAR", "TEXT":
		return String(), nil
	case "TIMESTAMP", "DATETIME":
		return Timestamp(), nil
	}

	switch {
	case strings.HasPrefix(upper, "DECIMAL(") && strings.HasSuffix(s, ")"):
		args := s[len("DECIMAL(") : len(s)-1]
		parts := strings.Split(args, ",")
		if len(parts) != 2 {
			return Type{}, fmt.Errorf("decimal type needs precision and scale: %q", s)
		}
		precision, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return Type{}, fmt.Errorf("invalid decimal precision in %q: %w", s, err)
		}
		scale, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return Type{}, fmt.Errorf("invalid decimal scale in %q: %w", s, err)
		}
		if precision <= 0 || scale < 0 || scale > precision {
			return Type{}, fmt.Errorf("invalid decimal precision/scale in %q", s)
		}
		return Decimal(precision, scale), nil

	case strings.HasPrefix(upper, "ARRAY<") && strings.HasSuffix(s, ">"):
		elem, err := ParseType(s[len("ARRAY<") : len(s)-1])
		if err != nil {
			return Type{}, fmt.Errorf("invalid array element type in %q: %w", s, err)
		}
		return Array(elem), nil

	case strings.HasPrefix(upper, "ROW<") && strings.HasSuffix(s, ">"):
		body := s[len("ROW<") : len(s)-1]
		parts, err := splitTopLevel(body)
		if err != nil {
			return Type{}, fmt.Errorf("invalid row type %q: %w", s, err)
		}
		fields := make([]Field, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			idx := strings.IndexAny(p, " \t")
			if idx <= 0 {
				return Type{}, fmt.Errorf("row field %q needs a name and a type", p)
			}
			ft, err := ParseType(p[idx+1:])
			if err != nil {
				return Type{}, err
			}
			fields = append(fields, Field{Name: p[:idx], Type: ft})
		}
		return Nested(fields...), nil
	}

	return Type{}, fmt.Errorf("unknown logical type %q", s)
}

// splitTopLevel splits on commas that are not nested inside <> or ().
func splitTopLevel(s string) ([]string, error) {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced brackets")
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	if strings.TrimSpace(s[start:]) != "" {
		parts = append(parts, s[start:])
	}
	return parts, nil
}

// fieldJSON is the wire form of one row-type field.
type fieldJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// MarshalJSON renders the row type as an ordered field list with
// canonical type strings.
func (t *RowType) MarshalJSON() ([]byte, error) {
	fields := make([]fieldJSON, len(t.fields))
	for i, f := range t.fields {
		fields[i] = fieldJSON{Name: f.Name, Type: f.Type.String()}
	}
	return json.Marshal(fields)
}

// UnmarshalJSON parses the field-list wire form.
func (t *RowType) UnmarshalJSON(b []byte) error {
	var fields []fieldJSON
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	parsed := make([]Field, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("row type field %d has no name", i)
		}
		ft, err := ParseType(f.Type)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		parsed[i] = Field{Name: f.Name, Type: ft}
	}
	t.fields = parsed
	return nil
}
