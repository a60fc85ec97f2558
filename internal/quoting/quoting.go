// Package quoting provides SQL identifier quoting for engine statements.
package quoting

import "strings"

// DoubleQuote quotes a SQL identifier using double quotes (SQLite, ANSI SQL).
// Internal double quotes are escaped by doubling them.
func DoubleQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
