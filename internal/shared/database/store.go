package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgtype"
)

// Dialect names the SQL flavour behind a Store.
type Dialect string

const (
	DialectSQLServer Dialect = "sqlserver"
	DialectPostgres  Dialect = "postgres"
)

// BatchSize is the number of rows written per bulk insert chunk.
const BatchSize = 1000

// LastModifiedColumn is stamped by BulkInsert and InsertReturningID when the table has it.
const LastModifiedColumn = "LastModified"

// Store is the data-access contract the simulator needs. Queries use ?
// placeholders; implementations rebind them for their driver.
type Store interface {
	// Query runs a statement and returns every row as a column map.
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	// Exec runs a statement and returns the affected row count.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// BulkInsert writes rows in chunks of BatchSize and returns the inserted count.
	BulkInsert(ctx context.Context, table string, rows []Row) (int64, error)
	// InsertReturningID inserts one row and returns its identity value.
	InsertReturningID(ctx context.Context, table, idColumn string, row Row) (int64, error)
	Dialect() Dialect
	Health(ctx context.Context) error
	Close() error
}

// Row is one result or insert row keyed by column name. Lookups are
// case-insensitive because PostgreSQL folds unquoted identifiers.
type Row map[string]any

func (r Row) lookup(col string) (any, bool) {
	if v, ok := r[col]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, col) {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether the row carries col, even with a nil value.
func (r Row) Has(col string) bool {
	_, ok := r.lookup(col)
	return ok
}

// IsNull reports whether col is missing or nil.
func (r Row) IsNull(col string) bool {
	v, ok := r.lookup(col)
	return !ok || v == nil
}

// Int64 returns col as an integer, 0 when null or unparsable.
func (r Row) Int64(col string) int64 {
	v, _ := r.lookup(col)
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case int:
		return int64(t)
	case uint8:
		return int64(t)
	case float64:
		return int64(t)
	case []byte:
		n, _ := strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	}
	return 0
}

// Int64Ptr returns nil for a null column.
func (r Row) Int64Ptr(col string) *int64 {
	if r.IsNull(col) {
		return nil
	}
	n := r.Int64(col)
	return &n
}

// String returns col as text, "" when null.
func (r Row) String(col string) string {
	v, _ := r.lookup(col)
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// Float returns col as float64. SQL Server returns DECIMAL as []byte and
// pgx returns NUMERIC as pgtype.Numeric; both are handled.
func (r Row) Float(col string) float64 {
	v, _ := r.lookup(col)
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case int:
		return float64(t)
	case []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	case pgtype.Numeric:
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return 0
		}
		return f.Float64
	}
	return 0
}

// FloatPtr returns nil for a null column.
func (r Row) FloatPtr(col string) *float64 {
	if r.IsNull(col) {
		return nil
	}
	f := r.Float(col)
	return &f
}

// Bool returns col as a boolean. BIT, integer and "true"/"1" text are accepted.
func (r Row) Bool(col string) bool {
	v, _ := r.lookup(col)
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case []byte:
		b, _ := strconv.ParseBool(string(t))
		return b
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

// BoolPtr returns nil for a null column.
func (r Row) BoolPtr(col string) *bool {
	if r.IsNull(col) {
		return nil
	}
	b := r.Bool(col)
	return &b
}

// Time returns col as a time, the zero time when null.
func (r Row) Time(col string) time.Time {
	v, _ := r.lookup(col)
	switch t := v.(type) {
	case time.Time:
		return t
	case pgtype.Date:
		if t.Valid {
			return t.Time
		}
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", time.DateOnly} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

// TimePtr returns nil for a null column.
func (r Row) TimePtr(col string) *time.Time {
	if r.IsNull(col) {
		return nil
	}
	t := r.Time(col)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Date returns col truncated to a UTC calendar date.
func (r Row) Date(col string) time.Time {
	t := r.Time(col)
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DatePtr is Date for nullable columns.
func (r Row) DatePtr(col string) *time.Time {
	t := r.TimePtr(col)
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// JSON decodes a JSON text column into dst. A null column leaves dst untouched.
func (r Row) JSON(col string, dst any) error {
	v, _ := r.lookup(col)
	var raw []byte
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(t)
	case []byte:
		raw = t
	default:
		// pgx decodes json/jsonb columns itself; round-trip to reach dst's type.
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		raw = b
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", col, err)
	}
	return nil
}

// JSONText encodes v for a JSON text column.
func JSONText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Columns returns the sorted union of column names across rows.
func Columns(rows []Row) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// stampLastModified copies rows, adding LastModified where the caller did not.
func stampLastModified(rows []Row, now time.Time) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := make(Row, len(r)+1)
		for k, v := range r {
			c[k] = v
		}
		if !c.Has(LastModifiedColumn) {
			c[LastModifiedColumn] = now
		}
		out[i] = c
	}
	return out
}

func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// Open connects to the store selected by driver.
func Open(ctx context.Context, driver, dsn string, maxOpen int) (Store, error) {
	switch Dialect(driver) {
	case DialectSQLServer:
		return NewMSSQL(ctx, dsn, maxOpen)
	case DialectPostgres:
		return NewPostgres(ctx, dsn, maxOpen)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
