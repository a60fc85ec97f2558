package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// colType is a declared column type. The names are what schema reports.
type colType int

const (
	typeUnknown colType = iota
	typeBigint
	typeDouble
	typeBoolean
	typeVarchar
)

func (t colType) String() string {
	switch t {
	case typeBigint:
		return "BIGINT"
	case typeDouble:
		return "DOUBLE"
	case typeBoolean:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

// observe widens t so that it can hold v.
func (t colType) observe(v string) colType {
	switch t {
	case typeUnknown:
		switch {
		case isInt(v):
			return typeBigint
		case isFloat(v):
			return typeDouble
		case isBool(v):
			return typeBoolean
		}
		return typeVarchar
	case typeBigint:
		if isInt(v) {
			return t
		}
		if isFloat(v) {
			return typeDouble
		}
	case typeDouble:
		if isFloat(v) {
			return t
		}
	case typeBoolean:
		if isBool(v) {
			return t
		}
	case typeVarchar:
		return t
	}
	return typeVarchar
}

func isInt(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

func isFloat(v string) bool {
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

func isBool(v string) bool {
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "false")
}

// convert parses v into the Go value stored for a column of type t.
func (t colType) convert(v string) (any, error) {
	switch t {
	case typeBigint:
		return strconv.ParseInt(v, 10, 64)
	case typeDouble:
		return strconv.ParseFloat(v, 64)
	case typeBoolean:
		return strings.EqualFold(v, "true"), nil
	}
	return v, nil
}

// cell is one untyped value read from a text source.
type cell struct {
	val  string
	null bool
	text bool // value was a quoted string and must stay VARCHAR
}

// dataset is a fully typed table ready to be written to the engine.
type dataset struct {
	columns []string
	types   []colType
	rows    [][]any
	bytes   int64
}

// rawTable accumulates untyped rows from a text source and infers column
// types once every row has been seen.
type rawTable struct {
	columns []string
	index   map[string]int
	rows    [][]cell
	bytes   int64
}

func newRawTable() *rawTable {
	return &rawTable{index: make(map[string]int)}
}

// column returns the position of name, appending it when unseen.
func (r *rawTable) column(name string) int {
	if i, ok := r.index[name]; ok {
		return i
	}
	r.index[name] = len(r.columns)
	r.columns = append(r.columns, name)
	return len(r.columns) - 1
}

// setHeader fixes the column list, rejecting duplicates or a header that
// differs from one seen in an earlier file.
func (r *rawTable) setHeader(header []string) error {
	if len(r.columns) > 0 {
		if len(header) != len(r.columns) {
			return fmt.Errorf("header has %d columns, earlier files have %d", len(header), len(r.columns))
		}
		for i, h := range header {
			if h != r.columns[i] {
				return fmt.Errorf("header column %d is %q, earlier files have %q", i+1, h, r.columns[i])
			}
		}
		return nil
	}
	for _, h := range header {
		if h == "" {
			return fmt.Errorf("empty column name in header")
		}
		if _, dup := r.index[h]; dup {
			return fmt.Errorf("duplicate column %q in header", h)
		}
		r.column(h)
	}
	return nil
}

func (r *rawTable) build() (*dataset, error) {
	if len(r.columns) == 0 {
		return nil, fmt.Errorf("no columns found")
	}
	types := make([]colType, len(r.columns))
	for _, row := range r.rows {
		for i := range r.columns {
			if i >= len(row) || row[i].null {
				continue
			}
			if row[i].text {
				types[i] = typeVarchar
				continue
			}
			types[i] = types[i].observe(row[i].val)
		}
	}
	for i, t := range types {
		if t == typeUnknown {
			types[i] = typeVarchar
		}
	}

	ds := &dataset{columns: r.columns, types: types, bytes: r.bytes}
	ds.rows = make([][]any, 0, len(r.rows))
	for n, row := range r.rows {
		out := make([]any, len(r.columns))
		for i := range r.columns {
			if i >= len(row) || row[i].null {
				continue
			}
			v, err := types[i].convert(row[i].val)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", n+1, r.columns[i], err)
			}
			out[i] = v
		}
		ds.rows = append(ds.rows, out)
	}
	return ds, nil
}
