package rowtype

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want string
	}{
		{"boolean", Boolean(), "BOOLEAN"},
		{"int32", Int32(), "INT"},
		{"int64", Int64(), "BIGINT"},
		{"float64", Float64(), "DOUBLE"},
		{"string", String(), "STRING"},
		{"timestamp", Timestamp(), "TIMESTAMP"},
		{"decimal", Decimal(10, 2), "DECIMAL(10,2)"},
		{"array", Array(String()), "ARRAY<STRING>"},
		{"nested array", Array(Array(Int64())), "ARRAY<ARRAY<BIGINT>>"},
		{
			"row",
			Nested(Field{Name: "a", Type: Int32()}, Field{Name: "b", Type: String()}),
			"ROW<a INT, b STRING>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseType_RoundTrip(t *testing.T) {
	types := []Type{
		Boolean(),
		Int32(),
		Int64(),
		Float64(),
		String(),
		Timestamp(),
		Decimal(10, 2),
		Array(String()),
		Array(Decimal(5, 1)),
		Nested(Field{Name: "x", Type: Int32()}, Field{Name: "tags", Type: Array(String())}),
	}

	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			parsed, err := ParseType(typ.String())
			if err != nil {
				t.Fatalf("ParseType(%q) error = %v", typ.String(), err)
			}
			if !parsed.Equal(typ) {
				t.Errorf("ParseType(%q) = %s, not equal to original", typ.String(), parsed)
			}
		})
	}
}

func TestParseType_Invalid(t *testing.T) {
	tests := []string{
		"",
		"WAT",
		"DECIMAL(10)",
		"DECIMAL(0,0)",
		"DECIMAL(2,5)",
		"ARRAY<WAT>",
		"ROW<noType>",
		"ROW<a INT",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			if _, err := ParseType(s); err == nil {
				t.Errorf("ParseType(%q) should fail", s)
			}
		})
	}
}

func TestRowType_Equal(t *testing.T) {
	a := New(
		Field{Name: "id", Type: Int64()},
		Field{Name: "price", Type: Decimal(10, 2)},
	)
	same := New(
		Field{Name: "id", Type: Int64()},
		Field{Name: "price", Type: Decimal(10, 2)},
	)
	reordered := New(
		Field{Name: "price", Type: Decimal(10, 2)},
		Field{Name: "id", Type: Int64()},
	)
	differentScale := New(
		Field{Name: "id", Type: Int64()},
		Field{Name: "price", Type: Decimal(10, 3)},
	)

	if !a.Equal(same) {
		t.Error("structurally identical row types should be equal")
	}
	if a.Equal(reordered) {
		t.Error("field order is significant")
	}
	if a.Equal(differentScale) {
		t.Error("decimal scale is significant")
	}
	if a.Equal(nil) {
		t.Error("row type should not equal nil")
	}
}

func TestRowType_Immutability(t *testing.T) {
	fields := []Field{{Name: "a", Type: String()}}
	rt := New(fields...)

	fields[0].Name = "mutated"
	if rt.Field(0).Name != "a" {
		t.Error("mutating the input slice changed the row type")
	}

	copied := rt.Fields()
	copied[0].Name = "mutated"
	if rt.Field(0).Name != "a" {
		t.Error("mutating the Fields() copy changed the row type")
	}
}

func TestRowType_HasDecimal(t *testing.T) {
	tests := []struct {
		name string
		rt   *RowType
		want bool
	}{
		{"no decimal", New(Field{Name: "a", Type: String()}), false},
		{"top level", New(Field{Name: "a", Type: Decimal(5, 2)}), true},
		{"inside array", New(Field{Name: "a", Type: Array(Decimal(5, 2))}), true},
		{
			"inside nested row",
			New(Field{Name: "a", Type: Nested(Field{Name: "b", Type: Decimal(5, 2)})}),
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rt.HasDecimal(); got != tt.want {
				t.Errorf("HasDecimal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRowType_JSONRoundTrip(t *testing.T) {
	rt := New(
		Field{Name: "id", Type: Int64()},
		Field{Name: "price", Type: Decimal(10, 2)},
		Field{Name: "tags", Type: Array(String())},
	)

	data, err := json.Marshal(rt)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var restored RowType
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !rt.Equal(&restored) {
		t.Errorf("round-tripped row type differs: %s", data)
	}
}

func TestRow_String(t *testing.T) {
	row := Row{int64(1), nil, "x", []any{int64(2), nil}, decimal.RequireFromString("1.50")}
	want := "(1, NULL, x, [2, NULL], 1.5)"
	if got := row.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
