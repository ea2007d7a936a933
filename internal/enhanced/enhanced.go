// Package enhanced derives fraud indicators, ledger transactions, provider
// billing attributes, claim patterns and actuarial metrics from the stored
// simulation data. Aggregates are computed in Go over a loaded snapshot so
// every storage backend behaves the same.
package enhanced

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/metrics"
	"github.com/ausphi/healthsim/internal/shared/random"
	"github.com/ausphi/healthsim/internal/storage"
)

// Generator names, also used as Result.Errors keys.
const (
	GenFraud        = "fraud"
	GenTransactions = "transactions"
	GenBilling      = "billing"
	GenPatterns     = "patterns"
	GenActuarial    = "actuarial"
)

// Result count keys
const (
	CountFraudIndicators = "fraud_indicators"
	CountClaimsScored    = "claims_scored"
	CountTransactions    = "transactions"
	CountClaimsPaid      = "claims_paid"
	CountProviders       = "providers_updated"
	CountPatterns        = "claim_patterns"
	CountMemberTiers     = "member_tiers_updated"
	CountMetrics         = "actuarial_metrics"
)

// Config toggles each generator.
type Config struct {
	Fraud          bool `json:"fraud"`
	Transactions   bool `json:"transactions"`
	Billing        bool `json:"billing"`
	Patterns       bool `json:"patterns"`
	Actuarial      bool `json:"actuarial"`
	ForceActuarial bool `json:"force_actuarial"`
	FraudSample    int  `json:"fraud_sample"`
	Adjustments    int  `json:"adjustments"`
}

// DefaultConfig enables every generator.
func DefaultConfig() Config {
	return Config{
		Fraud:        true,
		Transactions: true,
		Billing:      true,
		Patterns:     true,
		Actuarial:    true,
		FraudSample:  50,
		Adjustments:  5,
	}
}

// Result merges the counts of every generator that ran.
type Result struct {
	Date   time.Time         `json:"date"`
	Counts map[string]int    `json:"counts"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (r *Result) add(key string, n int) {
	r.Counts[key] += n
	metrics.RecordEnhanced(key, n)
}

func (r *Result) fail(gen string, err error) {
	r.Errors[gen] = err.Error()
	metrics.RecordEnhancedFailure(gen)
}

// Orchestrator runs the enhanced generators against a repository.
type Orchestrator struct {
	repo storage.Repository
	src  *random.Source
	log  zerolog.Logger
}

// New creates an orchestrator.
func New(repo storage.Repository, src *random.Source, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{repo: repo, src: src, log: log.With().Str("component", "enhanced").Logger()}
}

// Run executes the enabled generators for date. A failing generator is
// recorded in Result.Errors and the others still run. The returned error is
// non-nil only when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, date time.Time, cfg Config) (*Result, error) {
	date = insurance.DateOf(date)
	res := &Result{Date: date, Counts: map[string]int{}, Errors: map[string]string{}}

	snap, loadErrs := LoadSnapshot(ctx, o.repo)
	for name, err := range loadErrs {
		o.log.Warn().Err(err).Str("collection", name).Msg("load failed, treating as empty")
	}

	steps := []struct {
		name    string
		enabled bool
		run     func(context.Context, *Snapshot, time.Time, Config, *Result) error
	}{
		{GenFraud, cfg.Fraud, o.fraud},
		{GenTransactions, cfg.Transactions, o.transactions},
		{GenBilling, cfg.Billing, o.billing},
		{GenPatterns, cfg.Patterns, o.patterns},
		{GenActuarial, cfg.Actuarial, o.actuarial},
	}
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !st.enabled {
			continue
		}
		if err := st.run(ctx, snap, date, cfg, res); err != nil {
			res.fail(st.name, err)
			o.log.Error().Err(err).Str("generator", st.name).Msg("enhanced generator failed")
		}
	}

	o.log.Info().
		Time("date", date).
		Interface("counts", res.Counts).
		Int("failed_generators", len(res.Errors)).
		Msg("enhanced simulation completed")
	return res, nil
}

func (o *Orchestrator) fraud(ctx context.Context, snap *Snapshot, date time.Time, cfg Config, res *Result) error {
	fr := DetectFraud(o.src, snap, date, cfg.FraudSample)
	if len(fr.Indicators) > 0 {
		n, err := o.repo.InsertFraudIndicators(ctx, fr.Indicators)
		res.add(CountFraudIndicators, int(n))
		if err != nil {
			return err
		}
	}
	var errs []error
	for _, c := range fr.Claims {
		if err := o.repo.UpdateClaim(ctx, *c); err != nil {
			errs = append(errs, fmt.Errorf("claim %s: %w", c.Number, err))
			continue
		}
		res.add(CountClaimsScored, 1)
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) transactions(ctx context.Context, snap *Snapshot, date time.Time, cfg Config, res *Result) error {
	refs, err := o.repo.TransactionReferences(ctx, date)
	if err != nil {
		o.log.Warn().Err(err).Msg("could not load transaction references")
	}
	seq := insurance.NewSequence(insurance.PrefixTransaction, date, refs)

	tr := FinancialTransactions(o.src, snap, date, cfg.Adjustments, seq)
	errs := tr.Failures
	for _, c := range tr.PaidClaims {
		if err := o.repo.UpdateClaim(ctx, *c); err != nil {
			errs = append(errs, fmt.Errorf("claim %s: %w", c.Number, err))
			continue
		}
		metrics.RecordClaimTransition(string(insurance.ClaimApproved), string(insurance.ClaimPaid))
		res.add(CountClaimsPaid, 1)
	}
	if len(tr.Transactions) > 0 {
		n, err := o.repo.InsertTransactions(ctx, tr.Transactions)
		res.add(CountTransactions, int(n))
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) billing(ctx context.Context, snap *Snapshot, date time.Time, _ Config, res *Result) error {
	var errs []error
	for _, p := range ProviderBilling(o.src, snap, date) {
		if err := o.repo.UpdateProvider(ctx, *p); err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", p.Number, err))
			continue
		}
		res.add(CountProviders, 1)
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) patterns(ctx context.Context, snap *Snapshot, date time.Time, _ Config, res *Result) error {
	pr := ClaimPatterns(o.src, snap, date)
	var errs []error
	if len(pr.Patterns) > 0 {
		n, err := o.repo.InsertClaimPatterns(ctx, pr.Patterns)
		res.add(CountPatterns, int(n))
		if err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range pr.Members {
		if err := o.repo.UpdateMember(ctx, *m); err != nil {
			errs = append(errs, fmt.Errorf("member %s: %w", m.MembershipNumber, err))
			continue
		}
		res.add(CountMemberTiers, 1)
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) actuarial(ctx context.Context, snap *Snapshot, date time.Time, cfg Config, res *Result) error {
	rows := ActuarialMetrics(o.src, snap, date, cfg.ForceActuarial)
	if len(rows) == 0 {
		o.log.Debug().Time("date", date).Msg("actuarial metrics skipped, not month end")
		return nil
	}
	n, err := o.repo.InsertActuarialMetrics(ctx, rows)
	res.add(CountMetrics, int(n))
	return err
}
