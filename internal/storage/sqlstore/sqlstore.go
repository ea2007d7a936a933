// Package sqlstore implements storage.Repository over a database.Store.
package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/database"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/storage"
)

var _ storage.Repository = (*Store)(nil)

// Store persists simulator entities through a generic SQL store.
type Store struct {
	db  database.Store
	now func() time.Time
}

// New wraps db.
func New(db database.Store) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Health(ctx)
}

func (s *Store) selectAll(ctx context.Context, table, idColumn string) ([]database.Row, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY %s", table, idColumn))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load "+table)
	}
	return rows, nil
}

// --- Loads ---

func (s *Store) Members(ctx context.Context) ([]insurance.Member, error) {
	rows, err := s.selectAll(ctx, insurance.TableMembers, insurance.IDMember)
	if err != nil {
		return nil, err
	}
	out := make([]insurance.Member, len(rows))
	for i, r := range rows {
		out[i] = insurance.MemberFromRow(r)
	}
	return out, nil
}

func (s *Store) Plans(ctx context.Context) ([]insurance.CoveragePlan, error) {
	rows, err := s.selectAll(ctx, insurance.TableCoveragePlans, insurance.IDPlan)
	if err != nil {
		return nil, err
	}
	out := make([]insurance.CoveragePlan, 0, len(rows))
	for _, r := range rows {
		p, err := insurance.PlanFromRow(r)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to decode coverage plan "+r.String("PlanCode"))
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) Policies(ctx context.Context) ([]insurance.Policy, error) {
	rows, err := s.selectAll(ctx, insurance.TablePolicies, insurance.IDPolicy)
	if err != nil {
		return nil, err
	}
	out := make([]insurance.Policy, len(rows))
	for i, r := range rows {
		out[i] = insurance.PolicyFromRow(r)
	}
	return out, nil
}

func (s *Store) PolicyMembers(ctx context.Context) ([]insurance.PolicyMember, error) {
	rows, err := s.selectAll(ctx, insurance.TablePolicyMembers, insurance.IDPolicyMember)
	if err != nil {
		return nil, err
	}
	out := make([]insurance.PolicyMember, len(rows))
	for i, r := range rows {
		out[i] = insurance.PolicyMemberFromRow(r)
	}
	return out, nil
}

func (s *Store) Providers(ctx context.Context) ([]insurance.Provider, error) {
	rows, err := s.selectAll(ctx, insurance.TableProviders, insurance.IDProvider)
	if err != nil {
		return nil, err
	}
	out := make([]insurance.Provider, len(rows))
	for i, r := range rows {
		out[i] = insurance.ProviderFromRow(r)
	}
	return out, nil
}

func (s *Store) Claims(ctx context.Context) ([]insurance.Claim, error) {
	rows, err := s.selectAll(ctx, insurance.TableClaims, insurance.IDClaim)
	if err != nil {
		return nil, err
	}
	out := make([]insurance.Claim, len(rows))
	for i, r := range rows {
		out[i] = insurance.ClaimFromRow(r)
	}
	return out, nil
}

func (s *Store) Payments(ctx context.Context) ([]insurance.PremiumPayment, error) {
	rows, err := s.selectAll(ctx, insurance.TablePremiumPayments, insurance.IDPayment)
	if err != nil {
		return nil, err
	}
	out := make([]insurance.PremiumPayment, len(rows))
	for i, r := range rows {
		out[i] = insurance.PaymentFromRow(r)
	}
	return out, nil
}

// TransactionReferences returns references carrying date's TXN prefix.
func (s *Store) TransactionReferences(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx,
		"SELECT TransactionReference FROM FinancialTransactions WHERE TransactionReference LIKE ?",
		insurance.DatedPrefix(insurance.PrefixTransaction, date)+"%",
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load transaction references")
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.String("TransactionReference")
	}
	return out, nil
}

// --- Inserts ---

func (s *Store) insert(ctx context.Context, table, idColumn string, row database.Row) (int64, error) {
	id, err := s.db.InsertReturningID(ctx, table, idColumn, row)
	if err != nil {
		if isDuplicate(err) {
			return 0, apperrors.Conflict(fmt.Sprintf("duplicate row in %s", table))
		}
		return 0, apperrors.Wrap(err, "failed to insert into "+table)
	}
	return id, nil
}

func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func (s *Store) InsertMember(ctx context.Context, m *insurance.Member) error {
	id, err := s.insert(ctx, insurance.TableMembers, insurance.IDMember, m.Row())
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

func (s *Store) InsertPlan(ctx context.Context, p *insurance.CoveragePlan) error {
	row, err := p.Row()
	if err != nil {
		return apperrors.Wrap(err, "failed to encode coverage plan "+p.Code)
	}
	id, err := s.insert(ctx, insurance.TableCoveragePlans, insurance.IDPlan, row)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (s *Store) InsertProvider(ctx context.Context, p *insurance.Provider) error {
	id, err := s.insert(ctx, insurance.TableProviders, insurance.IDProvider, p.Row())
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (s *Store) InsertPolicy(ctx context.Context, p *insurance.Policy) error {
	id, err := s.insert(ctx, insurance.TablePolicies, insurance.IDPolicy, p.Row())
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (s *Store) InsertPolicyMember(ctx context.Context, pm *insurance.PolicyMember) error {
	id, err := s.insert(ctx, insurance.TablePolicyMembers, insurance.IDPolicyMember, pm.Row())
	if err != nil {
		return err
	}
	pm.ID = id
	return nil
}

func (s *Store) InsertClaim(ctx context.Context, c *insurance.Claim) error {
	id, err := s.insert(ctx, insurance.TableClaims, insurance.IDClaim, c.Row())
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (s *Store) InsertPayment(ctx context.Context, p *insurance.PremiumPayment) error {
	id, err := s.insert(ctx, insurance.TablePremiumPayments, insurance.IDPayment, p.Row())
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// --- Updates ---

// update rewrites every mapped column of one row and stamps LastModified.
func (s *Store) update(ctx context.Context, table, idColumn string, id int64, row database.Row) error {
	row[database.LastModifiedColumn] = s.now()
	cols := database.Columns([]database.Row{row})

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, row[c])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(sets, ", "), idColumn)
	n, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, "failed to update "+table)
	}
	if n == 0 {
		return apperrors.NotFound(table, strconv.FormatInt(id, 10))
	}
	return nil
}

func (s *Store) UpdateMember(ctx context.Context, m insurance.Member) error {
	return s.update(ctx, insurance.TableMembers, insurance.IDMember, m.ID, m.Row())
}

func (s *Store) UpdateProvider(ctx context.Context, p insurance.Provider) error {
	return s.update(ctx, insurance.TableProviders, insurance.IDProvider, p.ID, p.Row())
}

func (s *Store) UpdatePolicy(ctx context.Context, p insurance.Policy) error {
	return s.update(ctx, insurance.TablePolicies, insurance.IDPolicy, p.ID, p.Row())
}

func (s *Store) UpdateClaim(ctx context.Context, c insurance.Claim) error {
	return s.update(ctx, insurance.TableClaims, insurance.IDClaim, c.ID, c.Row())
}

// --- Enhanced bulk inserts ---

func (s *Store) bulk(ctx context.Context, table string, rows []database.Row) (int64, error) {
	n, err := s.db.BulkInsert(ctx, table, rows)
	if err != nil {
		return n, apperrors.Wrap(err, "failed to bulk insert into "+table)
	}
	return n, nil
}

func (s *Store) InsertFraudIndicators(ctx context.Context, rows []insurance.FraudIndicator) (int64, error) {
	out := make([]database.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Row()
	}
	return s.bulk(ctx, insurance.TableFraudIndicators, out)
}

func (s *Store) InsertTransactions(ctx context.Context, rows []insurance.FinancialTransaction) (int64, error) {
	out := make([]database.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Row()
	}
	return s.bulk(ctx, insurance.TableFinancialTransactions, out)
}

func (s *Store) InsertClaimPatterns(ctx context.Context, rows []insurance.ClaimPattern) (int64, error) {
	out := make([]database.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Row()
	}
	return s.bulk(ctx, insurance.TableClaimPatterns, out)
}

func (s *Store) InsertActuarialMetrics(ctx context.Context, rows []insurance.ActuarialMetric) (int64, error) {
	out := make([]database.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Row()
	}
	return s.bulk(ctx, insurance.TableActuarialMetrics, out)
}
