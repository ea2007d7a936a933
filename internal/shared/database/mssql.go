package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/ausphi/healthsim/internal/shared/metrics"
)

// SQL Server caps a statement at 2100 parameters.
const mssqlMaxParams = 2000

// MSSQLStore implements Store on database/sql with the go-mssqldb driver.
type MSSQLStore struct {
	db      *sql.DB
	columns sync.Map // table -> bool (has LastModified)
	now     func() time.Time
}

// NewMSSQL opens and pings a SQL Server connection pool.
func NewMSSQL(ctx context.Context, dsn string, maxOpen int) (*MSSQLStore, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlserver: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlserver: %w", err)
	}
	return NewMSSQLFromDB(db), nil
}

// NewMSSQLFromDB wraps an existing handle.
func NewMSSQLFromDB(db *sql.DB) *MSSQLStore {
	return &MSSQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the underlying handle for SQL Server specific utilities such as CDC.
func (s *MSSQLStore) DB() *sql.DB {
	return s.db
}

func (s *MSSQLStore) Dialect() Dialect {
	return DialectSQLServer
}

func (s *MSSQLStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MSSQLStore) Close() error {
	return s.db.Close()
}

func (s *MSSQLStore) Query(ctx context.Context, query string, args ...any) (result []Row, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("query", time.Since(start), err) }()

	rows, err := s.db.QueryContext(ctx, Rebind(DialectSQLServer, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r := make(Row, len(cols))
		for i, c := range cols {
			r[c] = values[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *MSSQLStore) Exec(ctx context.Context, query string, args ...any) (n int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("exec", time.Since(start), err) }()

	res, err := s.db.ExecContext(ctx, Rebind(DialectSQLServer, query), args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return res.RowsAffected()
}

func (s *MSSQLStore) hasLastModified(ctx context.Context, table string) bool {
	if v, ok := s.columns.Load(table); ok {
		return v.(bool)
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = @p1 AND COLUMN_NAME = @p2`,
		table, LastModifiedColumn,
	).Scan(&n)
	has := err == nil && n > 0
	if err == nil {
		s.columns.Store(table, has)
	}
	return has
}

// BulkInsert writes one transaction per chunk of BatchSize rows, using
// multi-row VALUES statements sized under the parameter limit.
func (s *MSSQLStore) BulkInsert(ctx context.Context, table string, rows []Row) (inserted int64, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() { metrics.RecordDBQuery("bulk_insert", time.Since(start), err) }()

	if s.hasLastModified(ctx, table) {
		rows = stampLastModified(rows, s.now())
	}
	cols := Columns(rows)
	perStmt := mssqlMaxParams / len(cols)
	if perStmt > BatchSize {
		perStmt = BatchSize
	}

	for _, c := range chunks(len(rows), BatchSize) {
		n, err := s.insertChunk(ctx, table, cols, rows[c[0]:c[1]], perStmt)
		if err != nil {
			return inserted, fmt.Errorf("bulk insert %s rows %d-%d: %w", table, c[0], c[1], err)
		}
		inserted += n
	}
	return inserted, nil
}

func (s *MSSQLStore) insertChunk(ctx context.Context, table string, cols []string, rows []Row, perStmt int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for _, c := range chunks(len(rows), perStmt) {
		batch := rows[c[0]:c[1]]
		values := make([]string, len(batch))
		args := make([]any, 0, len(batch)*len(cols))
		for i, r := range batch {
			values[i] = "(" + placeholders(DialectSQLServer, len(args)+1, len(cols)) + ")"
			for _, col := range cols {
				v, _ := r.lookup(col)
				args = append(args, v)
			}
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), strings.Join(values, ", "))
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *MSSQLStore) InsertReturningID(ctx context.Context, table, idColumn string, row Row) (id int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", time.Since(start), err) }()

	if s.hasLastModified(ctx, table) {
		row = stampLastModified([]Row{row}, s.now())[0]
	}
	cols := Columns([]Row{row})
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = row[c]
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.%s VALUES (%s)",
		table, strings.Join(cols, ", "), idColumn, placeholders(DialectSQLServer, 1, len(cols)))

	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}
