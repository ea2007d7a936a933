package database

import (
	"strconv"
	"strings"
)

// Rebind rewrites ? placeholders for the dialect: @p1.. for SQL Server,
// $1.. for PostgreSQL. Question marks inside single-quoted literals are kept.
func Rebind(d Dialect, query string) string {
	prefix := "$"
	if d == DialectSQLServer {
		prefix = "@p"
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteString(prefix)
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func placeholders(d Dialect, start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		if d == DialectSQLServer {
			parts[i] = "@p" + strconv.Itoa(start+i)
		} else {
			parts[i] = "$" + strconv.Itoa(start+i)
		}
	}
	return strings.Join(parts, ", ")
}
