package csv

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// treeWriter renders a populated tree into one delimited line of fields
// according to the formatting options it was constructed from. It is the
// text-rendering engine bound to a schema: quoting, escaping, separators,
// null-literal substitution and numeric formatting all happen here.
//
// A treeWriter belongs to exactly one serializer instance; the scratch
// buffers make it single-writer state.
type treeWriter struct {
	colSep      rune
	arraySep    string
	quote       rune
	quoteOn     bool
	escape      rune
	escapeOn    bool
	nullLiteral []byte
	scientific  bool

	field bytes.Buffer
	num   []byte
}

// newTreeWriter is a pure constructor; it fails fast on inconsistent
// option combinations so misconfiguration surfaces at open time, not per
// record.
func newTreeWriter(opts FormatOptions) (*treeWriter, error) {
	if opts.ColumnSeparator == 0 {
		return nil, fmt.Errorf("column separator must not be the zero character")
	}
	if opts.ArrayElementSeparator == "" {
		return nil, fmt.Errorf("array element separator must not be empty")
	}
	w := &treeWriter{
		colSep:      opts.ColumnSeparator,
		arraySep:    opts.ArrayElementSeparator,
		quote:       opts.QuoteChar,
		quoteOn:     opts.QuoteChar != QuoteDisabled,
		escape:      opts.EscapeChar,
		escapeOn:    opts.EscapeChar != EscapeDisabled,
		nullLiteral: opts.NullLiteral,
		scientific:  opts.ScientificNotation,
	}
	if w.quoteOn && w.quote == w.colSep {
		return nil, fmt.Errorf("quote character %q conflicts with column separator", w.quote)
	}
	if w.escapeOn && w.escape == w.colSep {
		return nil, fmt.Errorf("escape character %q conflicts with column separator", w.escape)
	}
	if w.quoteOn && w.escapeOn && w.quote == w.escape {
		return nil, fmt.Errorf("quote and escape characters must differ, both are %q", w.quote)
	}
	return w, nil
}

// write renders the root's fields, column-separated, into out. No
// trailing line terminator is appended: the line-separator configuration
// is forced empty and inter-record separation belongs to the sink.
func (w *treeWriter) write(root *node, out *bytes.Buffer) error {
	for i, child := range root.children {
		if i > 0 {
			out.WriteRune(w.colSep)
		}
		if err := w.writeField(child, out); err != nil {
			return err
		}
	}
	return nil
}

// writeHeader renders the given column names as one record, applying the
// same quoting rules as data fields.
func (w *treeWriter) writeHeader(names []string, out *bytes.Buffer) {
	for i, name := range names {
		if i > 0 {
			out.WriteRune(w.colSep)
		}
		w.field.Reset()
		w.field.WriteString(name)
		w.emit(w.field.Bytes(), out)
	}
}

func (w *treeWriter) writeField(n *node, out *bytes.Buffer) error {
	// Absent values render as the exact null literal, unquoted.
	if n.kind == nodeNull {
		out.Write(w.nullLiteral)
		return nil
	}
	w.field.Reset()
	if err := w.renderValue(n, &w.field); err != nil {
		return err
	}
	w.emit(w.field.Bytes(), out)
	return nil
}

// renderValue appends the raw (unquoted) text of a node. Array and
// nested-row nodes render as their elements joined by the array element
// separator; the whole joined text is later quoted as a single field.
func (w *treeWriter) renderValue(n *node, buf *bytes.Buffer) error {
	switch n.kind {
	case nodeNull:
		buf.Write(w.nullLiteral)
	case nodeBool:
		w.num = strconv.AppendBool(w.num[:0], n.b)
		buf.Write(w.num)
	case nodeInt:
		w.num = strconv.AppendInt(w.num[:0], n.i, 10)
		buf.Write(w.num)
	case nodeFloat:
		w.num = strconv.AppendFloat(w.num[:0], n.f, 'g', -1, 64)
		buf.Write(w.num)
	case nodeDecimal:
		if w.scientific {
			buf.WriteString(scientificString(n.d))
		} else {
			buf.WriteString(plainDecimalString(n.d))
		}
	case nodeString:
		buf.WriteString(n.s)
	case nodeTime:
		w.num = n.t.AppendFormat(w.num[:0], time.RFC3339Nano)
		buf.Write(w.num)
	case nodeArray, nodeRow:
		for i, child := range n.children {
			if i > 0 {
				buf.WriteString(w.arraySep)
			}
			if err := w.renderValue(child, buf); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown tree node kind %d", n.kind)
	}
	return nil
}

// emit writes one rendered field, quoting or escaping as configured. With
// quoting enabled a field is quoted only when it contains a separator,
// quote, escape or line-break character; inside quotes the quote char is
// escaped with the escape char when one is set, otherwise doubled. With
// quoting disabled, separators and escape characters are escaped when an
// escape char is set, and written through verbatim when not.
func (w *treeWriter) emit(b []byte, out *bytes.Buffer) {
	if w.quoteOn {
		if !w.needsQuote(b) {
			out.Write(b)
			return
		}
		out.WriteRune(w.quote)
		for i := 0; i < len(b); {
			r, size := utf8.DecodeRune(b[i:])
			switch {
			case r == w.quote:
				if w.escapeOn {
					out.WriteRune(w.escape)
				} else {
					out.WriteRune(w.quote)
				}
				out.WriteRune(w.quote)
			case w.escapeOn && r == w.escape:
				out.WriteRune(w.escape)
				out.WriteRune(w.escape)
			default:
				out.Write(b[i : i+size])
			}
			i += size
		}
		out.WriteRune(w.quote)
		return
	}

	if !w.escapeOn {
		out.Write(b)
		return
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == w.colSep || r == w.escape || r == '\n' || r == '\r' {
			out.WriteRune(w.escape)
		}
		out.Write(b[i : i+size])
		i += size
	}
}

func (w *treeWriter) needsQuote(b []byte) bool {
	if bytes.ContainsRune(b, w.colSep) || bytes.ContainsRune(b, w.quote) {
		return true
	}
	if w.escapeOn && bytes.ContainsRune(b, w.escape) {
		return true
	}
	return bytes.IndexByte(b, '\n') >= 0 || bytes.IndexByte(b, '\r') >= 0
}

// plainDecimalString renders a decimal without exponent notation,
// preserving the stored scale: 123.40 stays "123.40". Decimal.String
// would trim the trailing zero, changing the byte output.
func plainDecimalString(d decimal.Decimal) string {
	co := d.Coefficient()
	neg := co.Sign() < 0
	digits := new(big.Int).Abs(co).String()
	exp := int(d.Exponent())

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	if exp >= 0 {
		sb.WriteString(digits)
		for i := 0; i < exp; i++ {
			sb.WriteByte('0')
		}
		return sb.String()
	}
	point := len(digits) + exp
	if point <= 0 {
		sb.WriteString("0.")
		for i := 0; i < -point; i++ {
			sb.WriteByte('0')
		}
		sb.WriteString(digits)
	} else {
		sb.WriteString(digits[:point])
		sb.WriteByte('.')
		sb.WriteString(digits[point:])
	}
	return sb.String()
}

// scientificString renders a decimal in normalized exponential form,
// keeping the coefficient's significant digits: 123.40 -> "1.2340E+2".
func scientificString(d decimal.Decimal) string {
	co := d.Coefficient()
	neg := co.Sign() < 0
	digits := new(big.Int).Abs(co).String()
	if digits == "0" {
		return "0E+0"
	}
	adjusted := int64(len(digits)-1) + int64(d.Exponent())

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteByte(digits[0])
	if len(digits) > 1 {
		sb.WriteByte('.')
		sb.WriteString(digits[1:])
	}
	sb.WriteByte('E')
	if adjusted >= 0 {
		sb.WriteByte('+')
	}
	sb.WriteString(strconv.FormatInt(adjusted, 10))
	return sb.String()
}
