package engine

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bawdo/datashell/internal/quoting"
	"github.com/bawdo/datashell/internal/render"
)

// describeStats are the rows of a describe result, in display order.
var describeStats = []string{"count", "null_count", "mean", "std", "min", "max", "distinct"}

const nullCell = "null"

// isNumericType reports whether a declared type gets numeric statistics,
// following SQLite's affinity rules plus the BIGINT/DOUBLE names the
// loaders declare. BOOLEAN is treated as categorical.
func isNumericType(declType string) bool {
	t := strings.ToUpper(declType)
	if strings.Contains(t, "BOOL") {
		return false
	}
	for _, marker := range []string{"INT", "REAL", "FLOA", "DOUB", "NUMERIC", "DECIMAL"} {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

// Describe computes per-column summary statistics. The statistic set of a
// column is chosen by its declared type, never by its values.
func (b *SQLiteBackend) Describe(ctx context.Context, name string) (render.Displayable, error) {
	stored, cols, err := b.columns(ctx, name)
	if err != nil {
		return nil, err
	}

	t := &render.Table{Columns: append([]string{"describe"}, columnNames(cols)...)}
	t.Rows = make([][]string, len(describeStats))
	for i, stat := range describeStats {
		t.Rows[i] = make([]string, len(cols)+1)
		t.Rows[i][0] = stat
	}

	for j, c := range cols {
		var stats map[string]string
		if isNumericType(c.declType) {
			stats, err = b.numericStats(ctx, stored, c.name)
		} else {
			stats, err = b.categoricalStats(ctx, stored, c.name)
		}
		if err != nil {
			return nil, err
		}
		for i, stat := range describeStats {
			v, ok := stats[stat]
			if !ok {
				v = nullCell
			}
			t.Rows[i][j+1] = v
		}
	}
	return t, nil
}

func columnNames(cols []column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// numericStats computes the mean first and the sample deviation from it in
// a second pass, which keeps std exact for large values with a small spread.
func (b *SQLiteBackend) numericStats(ctx context.Context, table, col string) (map[string]string, error) {
	c := quoting.DoubleQuote(col)
	t := quoting.DoubleQuote(table)
	q := fmt.Sprintf(
		"SELECT COUNT(%[1]s), COUNT(*) - COUNT(%[1]s), AVG(CAST(%[1]s AS REAL)), MIN(%[1]s), MAX(%[1]s) FROM %[2]s",
		c, t)

	var count, nulls int64
	var mean sql.NullFloat64
	var minV, maxV sql.NullString
	if err := b.db.QueryRowContext(ctx, q).Scan(&count, &nulls, &mean, &minV, &maxV); err != nil {
		return nil, queryError(q, err)
	}

	stats := map[string]string{
		"count":      strconv.FormatInt(count, 10),
		"null_count": strconv.FormatInt(nulls, 10),
		"min":        nullString(minV),
		"max":        nullString(maxV),
	}
	if count == 0 || !mean.Valid {
		return stats, nil
	}
	stats["mean"] = formatFloat(mean.Float64)
	if count < 2 {
		return stats, nil
	}

	q = fmt.Sprintf("SELECT SUM((CAST(%[1]s AS REAL) - ?) * (CAST(%[1]s AS REAL) - ?)) FROM %[2]s WHERE %[1]s IS NOT NULL", c, t)
	var squares sql.NullFloat64
	if err := b.db.QueryRowContext(ctx, q, mean.Float64, mean.Float64).Scan(&squares); err != nil {
		return nil, queryError(q, err)
	}
	if squares.Valid {
		stats["std"] = formatFloat(math.Sqrt(squares.Float64 / float64(count-1)))
	}
	return stats, nil
}

func (b *SQLiteBackend) categoricalStats(ctx context.Context, table, col string) (map[string]string, error) {
	c := quoting.DoubleQuote(col)
	q := fmt.Sprintf(
		"SELECT COUNT(%[1]s), COUNT(*) - COUNT(%[1]s), MIN(%[1]s), MAX(%[1]s), COUNT(DISTINCT %[1]s) FROM %[2]s",
		c, quoting.DoubleQuote(table))

	var count, nulls, distinct int64
	var minV, maxV sql.NullString
	if err := b.db.QueryRowContext(ctx, q).Scan(&count, &nulls, &minV, &maxV, &distinct); err != nil {
		return nil, queryError(q, err)
	}
	return map[string]string{
		"count":      strconv.FormatInt(count, 10),
		"null_count": strconv.FormatInt(nulls, 10),
		"min":        nullString(minV),
		"max":        nullString(maxV),
		"distinct":   strconv.FormatInt(distinct, 10),
	}, nil
}

func nullString(v sql.NullString) string {
	if !v.Valid {
		return nullCell
	}
	return v.String
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
