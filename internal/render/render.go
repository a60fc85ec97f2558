// Package render turns engine results into printable text.
package render

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxRows caps how many rows a Table built from a result set keeps.
const DefaultMaxRows = 1000

// Displayable is any result value that has a text rendering.
type Displayable interface {
	Display(ctx context.Context) (string, error)
}

// Notice is a one-line message, such as the outcome of a connect.
type Notice string

// Display returns the notice followed by a newline.
func (n Notice) Display(_ context.Context) (string, error) {
	return string(n) + "\n", nil
}

// Table is a materialized result set rendered as a box table.
type Table struct {
	Columns   []string
	Rows      [][]string
	Truncated int // row cap that was hit, 0 when the result is complete
}

// Display renders the table inside a separator frame, followed by the row
// count and, when the row cap was hit, a truncation line. A table without
// columns renders as the count alone.
func (t *Table) Display(_ context.Context) (string, error) {
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return "", fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}

	var b strings.Builder
	if len(t.Columns) > 0 {
		widths := t.widths()
		sep := separator(widths)
		b.WriteString(sep)
		writeRow(&b, t.Columns, widths)
		b.WriteString(sep)
		for _, row := range t.Rows {
			writeRow(&b, row, widths)
		}
		b.WriteString(sep)
	}
	b.WriteString(t.footer())
	return b.String(), nil
}

// widths is the display width of each column, counted in runes.
func (t *Table) widths() []int {
	w := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		w[i] = utf8.RuneCountInString(c)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			w[i] = max(w[i], utf8.RuneCountInString(cell))
		}
	}
	return w
}

func (t *Table) footer() string {
	var out string
	switch n := len(t.Rows); {
	case len(t.Columns) == 0:
		out = "(0 rows)\n"
	case n == 1:
		out = "(1 row)\n"
	default:
		out = fmt.Sprintf("(%d rows)\n", n)
	}
	if t.Truncated > 0 {
		out += fmt.Sprintf("(truncated at %d rows)\n", t.Truncated)
	}
	return out
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	b.WriteByte('|')
	for i, cell := range cells {
		b.WriteByte(' ')
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+1))
		b.WriteByte('|')
	}
	b.WriteByte('\n')
}

func separator(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	b.WriteByte('\n')
	return b.String()
}

// FromRows drains rows into a Table, keeping at most maxRows rows.
// NULL values are rendered as "NULL".
func FromRows(rows *sql.Rows, maxRows int) (*Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	// One scan buffer serves every row; cells are copied out as strings.
	cells := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range cells {
		dest[i] = &cells[i]
	}

	t := &Table{Columns: columns}
	for rows.Next() {
		if len(t.Rows) == maxRows {
			t.Truncated = maxRows
			break
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(t.Rows)+1, err)
		}
		row := make([]string, len(cells))
		for i, c := range cells {
			row[i] = "NULL"
			if c.Valid {
				row[i] = c.String
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return t, nil
}
