package csv

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/streamhaus/csvrowstore/pkg/rowtype"
)

func defaultOptions() FormatOptions {
	return defaultFormatOptions(rowtype.New())
}

func TestNewTreeWriter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FormatOptions)
		wantErr bool
	}{
		{"defaults are valid", func(o *FormatOptions) {}, false},
		{"zero column separator", func(o *FormatOptions) { o.ColumnSeparator = 0 }, true},
		{"empty array separator", func(o *FormatOptions) { o.ArrayElementSeparator = "" }, true},
		{"quote equals separator", func(o *FormatOptions) { o.QuoteChar = ',' }, true},
		{"escape equals separator", func(o *FormatOptions) { o.EscapeChar = ',' }, true},
		{"quote equals escape", func(o *FormatOptions) { o.QuoteChar = '\\'; o.EscapeChar = '\\' }, true},
		{"quote disabled with escape", func(o *FormatOptions) { o.QuoteChar = QuoteDisabled; o.EscapeChar = '\\' }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			tt.mutate(&opts)
			_, err := newTreeWriter(opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("newTreeWriter() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTreeWriter_Emit(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FormatOptions)
		in     string
		want   string
	}{
		{"plain value unquoted", nil, "abc", "abc"},
		{"separator forces quotes", nil, "a,b", `"a,b"`},
		{"quote doubled", nil, `a"b`, `"a""b"`},
		{"carriage return forces quotes", nil, "a\rb", "\"a\rb\""},
		{
			"escape char escapes quote",
			func(o *FormatOptions) { o.EscapeChar = '\\' },
			`a"b`,
			`"a\"b"`,
		},
		{
			"escape char escapes itself",
			func(o *FormatOptions) { o.EscapeChar = '\\' },
			`a\b`,
			`"a\\b"`,
		},
		{
			"no quoting no escape writes raw",
			func(o *FormatOptions) { o.QuoteChar = QuoteDisabled },
			"a,b",
			"a,b",
		},
		{
			"no quoting escapes separator",
			func(o *FormatOptions) { o.QuoteChar = QuoteDisabled; o.EscapeChar = '\\' },
			"a,b",
			`a\,b`,
		},
		{
			"multibyte separator",
			func(o *FormatOptions) { o.ColumnSeparator = '¦' },
			"a¦b",
			"\"a¦b\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			if tt.mutate != nil {
				tt.mutate(&opts)
			}
			w, err := newTreeWriter(opts)
			if err != nil {
				t.Fatalf("newTreeWriter() error = %v", err)
			}
			var out bytes.Buffer
			w.emit([]byte(tt.in), &out)
			if out.String() != tt.want {
				t.Errorf("emit(%q) = %q, want %q", tt.in, out.String(), tt.want)
			}
		})
	}
}

func TestPlainDecimalString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123.40", "123.40"},
		{"123.4", "123.4"},
		{"-0.05", "-0.05"},
		{"0.00", "0.00"},
		{"12", "12"},
		{"-12345.6789", "-12345.6789"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)
			if got := plainDecimalString(d); got != tt.want {
				t.Errorf("plainDecimalString(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	// An integer-scaled decimal keeps its stored exponent.
	d := decimal.New(12, 2) // 12 * 10^2
	if got := plainDecimalString(d); got != "1200" {
		t.Errorf("plainDecimalString(12e2) = %q, want 1200", got)
	}
}

func TestScientificString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123.40", "1.2340E+2"},
		{"0.05", "5E-2"},
		{"-123.40", "-1.2340E+2"},
		{"7", "7E+0"},
		{"0", "0E+0"},
		{"1200", "1.200E+3"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)
			if got := scientificString(d); got != tt.want {
				t.Errorf("scientificString(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
