// Package memstore is an in-memory storage.Repository used by tests and
// dry runs. It assigns sequential IDs and enforces the (policy, member)
// uniqueness constraint the way the SQL schema does.
package memstore

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/storage"
)

var _ storage.Repository = (*Store)(nil)

// Store holds every table in slices guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	members       []insurance.Member
	plans         []insurance.CoveragePlan
	policies      []insurance.Policy
	policyMembers []insurance.PolicyMember
	providers     []insurance.Provider
	claims        []insurance.Claim
	payments      []insurance.PremiumPayment

	fraud        []insurance.FraudIndicator
	transactions []insurance.FinancialTransaction
	patterns     []insurance.ClaimPattern
	metrics      []insurance.ActuarialMetric

	pairs *insurance.PairSet

	// Fault, when set, is consulted before every write with the operation
	// ("insert" or "update") and table name. A non-nil result fails the write.
	Fault func(op, table string) error
}

// New returns an empty store.
func New() *Store {
	return &Store{pairs: insurance.NewPairSet(nil)}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) fault(op, table string) error {
	if s.Fault == nil {
		return nil
	}
	return s.Fault(op, table)
}

func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// --- Loads ---

func (s *Store) Members(context.Context) ([]insurance.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.members), nil
}

func (s *Store) Plans(context.Context) ([]insurance.CoveragePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.plans), nil
}

func (s *Store) Policies(context.Context) ([]insurance.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.policies), nil
}

func (s *Store) PolicyMembers(context.Context) ([]insurance.PolicyMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.policyMembers), nil
}

func (s *Store) Providers(context.Context) ([]insurance.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.providers), nil
}

func (s *Store) Claims(context.Context) ([]insurance.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.claims), nil
}

func (s *Store) Payments(context.Context) ([]insurance.PremiumPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.payments), nil
}

func (s *Store) TransactionReferences(_ context.Context, date time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := insurance.DatedPrefix(insurance.PrefixTransaction, date)
	var out []string
	for _, t := range s.transactions {
		if strings.HasPrefix(t.Reference, prefix) {
			out = append(out, t.Reference)
		}
	}
	return out, nil
}

// FraudIndicators returns the stored fraud indicators.
func (s *Store) FraudIndicators() []insurance.FraudIndicator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.fraud)
}

// Transactions returns the stored financial transactions.
func (s *Store) Transactions() []insurance.FinancialTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.transactions)
}

// ClaimPatterns returns the stored claim patterns.
func (s *Store) ClaimPatterns() []insurance.ClaimPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.patterns)
}

// ActuarialMetrics returns the stored actuarial metrics.
func (s *Store) ActuarialMetrics() []insurance.ActuarialMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.metrics)
}

// --- Inserts ---

func (s *Store) InsertMember(_ context.Context, m *insurance.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TableMembers); err != nil {
		return err
	}
	for _, e := range s.members {
		if e.MembershipNumber == m.MembershipNumber {
			return apperrors.Conflict("duplicate membership number " + m.MembershipNumber)
		}
	}
	m.ID = int64(len(s.members) + 1)
	s.members = append(s.members, *m)
	return nil
}

func (s *Store) InsertPlan(_ context.Context, p *insurance.CoveragePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TableCoveragePlans); err != nil {
		return err
	}
	p.ID = int64(len(s.plans) + 1)
	s.plans = append(s.plans, *p)
	return nil
}

func (s *Store) InsertProvider(_ context.Context, p *insurance.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TableProviders); err != nil {
		return err
	}
	p.ID = int64(len(s.providers) + 1)
	s.providers = append(s.providers, *p)
	return nil
}

func (s *Store) InsertPolicy(_ context.Context, p *insurance.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TablePolicies); err != nil {
		return err
	}
	if p.NextPremiumDueDate != nil && p.LastPremiumPaidDate != nil && p.NextPremiumDueDate.Before(*p.LastPremiumPaidDate) {
		return apperrors.Validation("next premium due date precedes last paid date", map[string]string{"policy": p.Number})
	}
	p.ID = int64(len(s.policies) + 1)
	s.policies = append(s.policies, *p)
	return nil
}

func (s *Store) InsertPolicyMember(_ context.Context, pm *insurance.PolicyMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TablePolicyMembers); err != nil {
		return err
	}
	if !s.pairs.Add(pm.PolicyID, pm.MemberID) {
		return apperrors.Conflict("duplicate row in " + insurance.TablePolicyMembers)
	}
	pm.ID = int64(len(s.policyMembers) + 1)
	s.policyMembers = append(s.policyMembers, *pm)
	return nil
}

func (s *Store) InsertClaim(_ context.Context, c *insurance.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TableClaims); err != nil {
		return err
	}
	c.ID = int64(len(s.claims) + 1)
	s.claims = append(s.claims, *c)
	return nil
}

func (s *Store) InsertPayment(_ context.Context, p *insurance.PremiumPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TablePremiumPayments); err != nil {
		return err
	}
	p.ID = int64(len(s.payments) + 1)
	s.payments = append(s.payments, *p)
	return nil
}

// --- Updates ---

// replace overwrites the element with the given 1-based ID.
func replace[T any](items []T, id int64, v T, table string) error {
	if id <= 0 || id > int64(len(items)) {
		return apperrors.NotFound(table, strconv.FormatInt(id, 10))
	}
	items[id-1] = v
	return nil
}

func (s *Store) UpdateMember(_ context.Context, m insurance.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("update", insurance.TableMembers); err != nil {
		return err
	}
	return replace(s.members, m.ID, m, insurance.TableMembers)
}

func (s *Store) UpdateProvider(_ context.Context, p insurance.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("update", insurance.TableProviders); err != nil {
		return err
	}
	return replace(s.providers, p.ID, p, insurance.TableProviders)
}

func (s *Store) UpdatePolicy(_ context.Context, p insurance.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("update", insurance.TablePolicies); err != nil {
		return err
	}
	if p.NextPremiumDueDate != nil && p.LastPremiumPaidDate != nil && p.NextPremiumDueDate.Before(*p.LastPremiumPaidDate) {
		return apperrors.Validation("next premium due date precedes last paid date", map[string]string{"policy": p.Number})
	}
	return replace(s.policies, p.ID, p, insurance.TablePolicies)
}

func (s *Store) UpdateClaim(_ context.Context, c insurance.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("update", insurance.TableClaims); err != nil {
		return err
	}
	return replace(s.claims, c.ID, c, insurance.TableClaims)
}

// --- Enhanced bulk inserts ---

func (s *Store) InsertFraudIndicators(_ context.Context, rows []insurance.FraudIndicator) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TableFraudIndicators); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = int64(len(s.fraud) + 1)
		s.fraud = append(s.fraud, r)
	}
	return int64(len(rows)), nil
}

func (s *Store) InsertTransactions(_ context.Context, rows []insurance.FinancialTransaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TableFinancialTransactions); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = int64(len(s.transactions) + 1)
		s.transactions = append(s.transactions, r)
	}
	return int64(len(rows)), nil
}

func (s *Store) InsertClaimPatterns(_ context.Context, rows []insurance.ClaimPattern) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TableClaimPatterns); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = int64(len(s.patterns) + 1)
		s.patterns = append(s.patterns, r)
	}
	return int64(len(rows)), nil
}

func (s *Store) InsertActuarialMetrics(_ context.Context, rows []insurance.ActuarialMetric) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert", insurance.TableActuarialMetrics); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = int64(len(s.metrics) + 1)
		s.metrics = append(s.metrics, r)
	}
	return int64(len(rows)), nil
}
