// Package cdc enables SQL Server change data capture on the simulator's
// tables and summarises what changed between two points in time.
package cdc

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/database"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
)

// Change operations as reported by cdc.fn_cdc_get_all_changes_*.
const (
	opDelete       = 1
	opInsert       = 2
	opUpdateBefore = 3
	opUpdateAfter  = 4
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,127}$`)

// TrackedTables are the tables the simulator writes.
var TrackedTables = []string{
	insurance.TableMembers,
	insurance.TableCoveragePlans,
	insurance.TablePolicies,
	insurance.TablePolicyMembers,
	insurance.TableProviders,
	insurance.TableClaims,
	insurance.TablePremiumPayments,
	insurance.TableFraudIndicators,
	insurance.TableFinancialTransactions,
	insurance.TableClaimPatterns,
	insurance.TableActuarialMetrics,
}

// Summary counts the changes captured for one table.
type Summary struct {
	Table   string    `json:"table"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Inserts int64     `json:"inserts"`
	Updates int64     `json:"updates"`
	Deletes int64     `json:"deletes"`
}

// Total is the number of captured changes.
func (s Summary) Total() int64 {
	return s.Inserts + s.Updates + s.Deletes
}

// Reporter runs CDC statements against a SQL Server store.
type Reporter struct {
	store database.Store
	log   zerolog.Logger
}

// NewReporter returns a Reporter. CDC is a SQL Server feature; other
// dialects are rejected.
func NewReporter(store database.Store, log zerolog.Logger) (*Reporter, error) {
	if store.Dialect() != database.DialectSQLServer {
		return nil, apperrors.BadRequest(fmt.Sprintf("change data capture requires sqlserver, not %s", store.Dialect()))
	}
	return &Reporter{store: store, log: log.With().Str("component", "cdc").Logger()}, nil
}

// EnableDatabase turns on CDC for the current database if it is off.
func (r *Reporter) EnableDatabase(ctx context.Context) error {
	rows, err := r.store.Query(ctx, "SELECT is_cdc_enabled FROM sys.databases WHERE name = DB_NAME()")
	if err != nil {
		return fmt.Errorf("check database cdc: %w", err)
	}
	if len(rows) > 0 && rows[0].Bool("is_cdc_enabled") {
		r.log.Info().Msg("cdc already enabled on database")
		return nil
	}
	if _, err := r.store.Exec(ctx, "EXEC sys.sp_cdc_enable_db"); err != nil {
		return fmt.Errorf("enable database cdc: %w", err)
	}
	r.log.Info().Msg("cdc enabled on database")
	return nil
}

// EnableTable starts capturing changes to dbo.<table>. It is a no-op for
// tables already tracked.
func (r *Reporter) EnableTable(ctx context.Context, table string) error {
	if !identifier.MatchString(table) {
		return apperrors.Validation("invalid table name", map[string]string{"table": table})
	}
	rows, err := r.store.Query(ctx, "SELECT is_tracked_by_cdc FROM sys.tables WHERE name = ?", table)
	if err != nil {
		return fmt.Errorf("check table cdc %s: %w", table, err)
	}
	if len(rows) == 0 {
		return apperrors.NotFound("table", table)
	}
	if rows[0].Bool("is_tracked_by_cdc") {
		r.log.Debug().Str("table", table).Msg("cdc already enabled on table")
		return nil
	}
	if _, err := r.store.Exec(ctx,
		"EXEC sys.sp_cdc_enable_table @source_schema = N'dbo', @source_name = ?, @role_name = NULL, @supports_net_changes = 0",
		table,
	); err != nil {
		return fmt.Errorf("enable table cdc %s: %w", table, err)
	}
	r.log.Info().Str("table", table).Msg("cdc enabled on table")
	return nil
}

// EnableAll enables CDC on the database and every tracked table, stopping
// at the first failure.
func (r *Reporter) EnableAll(ctx context.Context) error {
	if err := r.EnableDatabase(ctx); err != nil {
		return err
	}
	for _, t := range TrackedTables {
		if err := r.EnableTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// changeSummaryQuery maps the window to LSNs and groups the captured rows by
// operation. An empty or inverted window returns no rows.
const changeSummaryQuery = `DECLARE @from_lsn binary(10) = sys.fn_cdc_map_time_to_lsn('smallest greater than or equal', ?);
DECLARE @to_lsn binary(10) = sys.fn_cdc_map_time_to_lsn('largest less than or equal', ?);
DECLARE @min_lsn binary(10) = sys.fn_cdc_get_min_lsn('dbo_%[1]s');
IF @from_lsn IS NULL OR @from_lsn < @min_lsn SET @from_lsn = @min_lsn;
IF @from_lsn IS NULL OR @to_lsn IS NULL OR @from_lsn > @to_lsn
	SELECT CAST(0 AS int) AS operation, CAST(0 AS int) AS changes WHERE 1 = 0;
ELSE
	SELECT __$operation AS operation, COUNT(*) AS changes
	FROM cdc.fn_cdc_get_all_changes_dbo_%[1]s(@from_lsn, @to_lsn, N'all')
	GROUP BY __$operation;`

// ChangeSummary counts inserts, updates and deletes captured for table
// between from and to.
func (r *Reporter) ChangeSummary(ctx context.Context, table string, from, to time.Time) (Summary, error) {
	s := Summary{Table: table, From: from, To: to}
	if !identifier.MatchString(table) {
		return s, apperrors.Validation("invalid table name", map[string]string{"table": table})
	}
	if to.Before(from) {
		return s, apperrors.Validation("window end precedes start", map[string]string{
			"from": from.Format(time.RFC3339),
			"to":   to.Format(time.RFC3339),
		})
	}

	rows, err := r.store.Query(ctx, fmt.Sprintf(changeSummaryQuery, table), from, to)
	if err != nil {
		return s, fmt.Errorf("change summary %s: %w", table, err)
	}
	for _, row := range rows {
		n := row.Int64("changes")
		switch row.Int64("operation") {
		case opDelete:
			s.Deletes += n
		case opInsert:
			s.Inserts += n
		case opUpdateAfter, opUpdateBefore:
			s.Updates += n
		}
	}
	return s, nil
}

// Report summarises every tracked table. Tables whose query fails are
// logged and left out.
func (r *Reporter) Report(ctx context.Context, from, to time.Time) ([]Summary, error) {
	var out []Summary
	for _, t := range TrackedTables {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		s, err := r.ChangeSummary(ctx, t, from, to)
		if err != nil {
			r.log.Warn().Err(err).Str("table", t).Msg("change summary failed")
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
