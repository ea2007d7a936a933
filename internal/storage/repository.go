// Package storage defines the persistence contract of the simulator. The
// sqlstore package implements it over a database.Store and memstore keeps
// everything in memory for tests and dry runs.
package storage

import (
	"context"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
)

// Repository loads snapshots and writes entities. Insert methods assign the
// entity's ID. Update methods return apperrors.ErrNotFound for unknown IDs.
type Repository interface {
	// Snapshot loads
	Members(ctx context.Context) ([]insurance.Member, error)
	Plans(ctx context.Context) ([]insurance.CoveragePlan, error)
	Policies(ctx context.Context) ([]insurance.Policy, error)
	PolicyMembers(ctx context.Context) ([]insurance.PolicyMember, error)
	Providers(ctx context.Context) ([]insurance.Provider, error)
	Claims(ctx context.Context) ([]insurance.Claim, error)
	Payments(ctx context.Context) ([]insurance.PremiumPayment, error)

	// Core inserts
	InsertMember(ctx context.Context, m *insurance.Member) error
	InsertPlan(ctx context.Context, p *insurance.CoveragePlan) error
	InsertProvider(ctx context.Context, p *insurance.Provider) error
	InsertPolicy(ctx context.Context, p *insurance.Policy) error
	InsertPolicyMember(ctx context.Context, pm *insurance.PolicyMember) error
	InsertClaim(ctx context.Context, c *insurance.Claim) error
	InsertPayment(ctx context.Context, p *insurance.PremiumPayment) error

	// Core updates
	UpdateMember(ctx context.Context, m insurance.Member) error
	UpdateProvider(ctx context.Context, p insurance.Provider) error
	UpdatePolicy(ctx context.Context, p insurance.Policy) error
	UpdateClaim(ctx context.Context, c insurance.Claim) error

	// Enhanced records, written in bulk
	InsertFraudIndicators(ctx context.Context, rows []insurance.FraudIndicator) (int64, error)
	InsertTransactions(ctx context.Context, rows []insurance.FinancialTransaction) (int64, error)
	InsertClaimPatterns(ctx context.Context, rows []insurance.ClaimPattern) (int64, error)
	InsertActuarialMetrics(ctx context.Context, rows []insurance.ActuarialMetric) (int64, error)

	// TransactionReferences returns the transaction references issued on date.
	TransactionReferences(ctx context.Context, date time.Time) ([]string, error)

	Ping(ctx context.Context) error
}
