package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/sqlserver/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// MigrationStatus describes one embedded migration.
type MigrationStatus struct {
	Version   string
	Applied   bool
	AppliedAt *time.Time
}

var trackingDDL = map[Dialect]string{
	DialectSQLServer: `
		IF OBJECT_ID('schema_migrations', 'U') IS NULL
		CREATE TABLE schema_migrations (
			version NVARCHAR(255) NOT NULL PRIMARY KEY,
			applied_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
		)`,
	DialectPostgres: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
}

func migrationFiles(d Dialect) ([]string, error) {
	dir := "migrations/" + string(d)
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	// Sort by filename
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func appliedMigrations(ctx context.Context, s Store) (map[string]Row, error) {
	if _, err := s.Exec(ctx, trackingDDL[s.Dialect()]); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	rows, err := s.Query(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[string]Row, len(rows))
	for _, r := range rows {
		applied[r.String("version")] = r
	}
	return applied, nil
}

// Migrate runs all pending migrations for the store's dialect and returns
// the versions it applied.
func Migrate(ctx context.Context, s Store) ([]string, error) {
	applied, err := appliedMigrations(ctx, s)
	if err != nil {
		return nil, err
	}
	files, err := migrationFiles(s.Dialect())
	if err != nil {
		return nil, err
	}

	var done []string
	for _, file := range files {
		version := strings.TrimSuffix(file, ".sql")
		if _, ok := applied[version]; ok {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, "migrations/"+string(s.Dialect())+"/"+file)
		if err != nil {
			return done, fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		if _, err := s.Exec(ctx, string(content)); err != nil {
			return done, fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
		if _, err := s.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return done, fmt.Errorf("failed to record migration %s: %w", file, err)
		}
		done = append(done, version)
	}
	return done, nil
}

// Status lists every embedded migration with its applied state.
func Status(ctx context.Context, s Store) ([]MigrationStatus, error) {
	applied, err := appliedMigrations(ctx, s)
	if err != nil {
		return nil, err
	}
	files, err := migrationFiles(s.Dialect())
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(files))
	for _, file := range files {
		version := strings.TrimSuffix(file, ".sql")
		st := MigrationStatus{Version: version}
		if r, ok := applied[version]; ok {
			st.Applied = true
			st.AppliedAt = r.TimePtr("applied_at")
		}
		out = append(out, st)
	}
	return out, nil
}
