// Package rowtype defines the logical row schema and row values used
// across the pipeline.
//
// A RowType is an ordered list of named, typed fields. It is immutable
// after construction and determines both the shape a row must conform to
// and the output column order of the CSV encoding stage.
//
// # Building a RowType
//
//	rt := rowtype.New(
//	    rowtype.Field{Name: "id", Type: rowtype.Int64()},
//	    rowtype.Field{Name: "name", Type: rowtype.String()},
//	    rowtype.Field{Name: "price", Type: rowtype.Decimal(10, 2)},
//	    rowtype.Field{Name: "tags", Type: rowtype.Array(rowtype.String())},
//	)
//
// # Row Values
//
// A Row is a positional slice of Go values matching the RowType. A nil
// element represents SQL NULL:
//
//	row := rowtype.Row{int64(7), "widget", decimal.NewFromFloat(9.99), nil}
//
// Decimal fields use github.com/shopspring/decimal so that scale is
// preserved through serialization (e.g. 123.40 keeps its trailing zero).
package rowtype
