package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ausphi/healthsim/internal/shared/metrics"
)

// PostgresStore implements Store on a pgx pool. Identifiers are unquoted,
// so PostgreSQL folds them to lower case.
type PostgresStore struct {
	Pool    *pgxpool.Pool
	columns sync.Map
}

// NewPostgres creates a new database connection pool
func NewPostgres(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Connection pool settings
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{Pool: pool}, nil
}

func (s *PostgresStore) Dialect() Dialect {
	return DialectPostgres
}

// Close closes the database connection pool
func (s *PostgresStore) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *PostgresStore) Query(ctx context.Context, query string, args ...any) (result []Row, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("query", time.Since(start), err) }()

	rows, err := s.Pool.Query(ctx, Rebind(DialectPostgres, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r := make(Row, len(fields))
		for i, f := range fields {
			r[f.Name] = values[i]
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) Exec(ctx context.Context, query string, args ...any) (n int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("exec", time.Since(start), err) }()

	tag, err := s.Pool.Exec(ctx, Rebind(DialectPostgres, query), args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) hasLastModified(ctx context.Context, table string) bool {
	key := strings.ToLower(table)
	if v, ok := s.columns.Load(key); ok {
		return v.(bool)
	}
	var n int
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM information_schema.columns WHERE table_name = $1 AND column_name = $2`,
		key, strings.ToLower(LastModifiedColumn),
	).Scan(&n)
	has := err == nil && n > 0
	if err == nil {
		s.columns.Store(key, has)
	}
	return has
}

// BulkInsert streams each chunk with COPY.
func (s *PostgresStore) BulkInsert(ctx context.Context, table string, rows []Row) (inserted int64, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() { metrics.RecordDBQuery("bulk_insert", time.Since(start), err) }()

	if s.hasLastModified(ctx, table) {
		rows = stampLastModified(rows, time.Now().UTC())
	}
	cols := Columns(rows)
	lower := make([]string, len(cols))
	for i, c := range cols {
		lower[i] = strings.ToLower(c)
	}

	for _, c := range chunks(len(rows), BatchSize) {
		batch := rows[c[0]:c[1]]
		values := make([][]any, len(batch))
		for i, r := range batch {
			values[i] = make([]any, len(cols))
			for j, col := range cols {
				values[i][j], _ = r.lookup(col)
			}
		}
		n, err := s.Pool.CopyFrom(ctx, pgx.Identifier{strings.ToLower(table)}, lower, pgx.CopyFromRows(values))
		if err != nil {
			return inserted, fmt.Errorf("bulk insert %s rows %d-%d: %w", table, c[0], c[1], err)
		}
		inserted += n
	}
	return inserted, nil
}

func (s *PostgresStore) InsertReturningID(ctx context.Context, table, idColumn string, row Row) (id int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", time.Since(start), err) }()

	if s.hasLastModified(ctx, table) {
		row = stampLastModified([]Row{row}, time.Now().UTC())[0]
	}
	cols := Columns([]Row{row})
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = row[c]
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		table, strings.Join(cols, ", "), placeholders(DialectPostgres, 1, len(cols)), idColumn)

	if err := s.Pool.QueryRow(ctx, q, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}
