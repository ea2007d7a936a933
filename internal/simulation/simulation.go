// Package simulation sequences the generators over simulated days and
// persists what they produce through a storage.Repository.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ausphi/healthsim/internal/enhanced"
	"github.com/ausphi/healthsim/internal/insurance"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/shared/events"
	"github.com/ausphi/healthsim/internal/shared/metrics"
	"github.com/ausphi/healthsim/internal/shared/outcome"
	"github.com/ausphi/healthsim/internal/shared/random"
	"github.com/ausphi/healthsim/internal/storage"
)

const eventSource = "healthsim"

// Simulation owns the in-memory snapshot of the insurer's book and runs the
// daily steps against it. A Simulation is used by one caller at a time.
type Simulation struct {
	repo     storage.Repository
	src      *random.Source
	log      zerolog.Logger
	pub      events.Publisher
	enhanced *enhanced.Orchestrator
	strict   bool

	members   []insurance.Member
	plans     []insurance.CoveragePlan
	policies  []insurance.Policy
	providers []insurance.Provider
	claims    []insurance.Claim
	payments  []insurance.PremiumPayment
	pairs     *insurance.PairSet
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Simulation) { s.log = l.With().Str("component", "simulation").Logger() }
}

// WithPublisher sets where day and run events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Simulation) { s.pub = p }
}

// WithEnhanced sets the orchestrator used when a day requests enhanced generators.
func WithEnhanced(o *enhanced.Orchestrator) Option {
	return func(s *Simulation) { s.enhanced = o }
}

// WithStrictMode makes the first failed entity abort the day.
func WithStrictMode(strict bool) Option {
	return func(s *Simulation) { s.strict = strict }
}

// New creates a Simulation over repo drawing randomness from src.
func New(repo storage.Repository, src *random.Source, opts ...Option) *Simulation {
	s := &Simulation{
		repo:  repo,
		src:   src,
		log:   zerolog.Nop(),
		pub:   events.Nop{},
		pairs: insurance.NewPairSet(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.enhanced == nil {
		s.enhanced = enhanced.New(repo, src, s.log)
	}
	return s
}

// LoadData refreshes every collection from the repository. A collection whose
// load fails is left empty; the failures are returned joined.
func (s *Simulation) LoadData(ctx context.Context) error {
	var errs []error
	load := func(name string, fn func() error) {
		if err := fn(); err != nil {
			s.log.Warn().Err(err).Str("collection", name).Msg("load failed, treating as empty")
			errs = append(errs, fmt.Errorf("load %s: %w", name, err))
		}
	}

	load("members", func() (err error) { s.members, err = s.repo.Members(ctx); return })
	load("plans", func() (err error) { s.plans, err = s.repo.Plans(ctx); return })
	load("policies", func() (err error) { s.policies, err = s.repo.Policies(ctx); return })
	load("providers", func() (err error) { s.providers, err = s.repo.Providers(ctx); return })
	load("claims", func() (err error) { s.claims, err = s.repo.Claims(ctx); return })
	load("payments", func() (err error) { s.payments, err = s.repo.Payments(ctx); return })

	var links []insurance.PolicyMember
	load("policy members", func() (err error) { links, err = s.repo.PolicyMembers(ctx); return })
	s.pairs = insurance.NewPairSet(links)

	s.log.Info().
		Int("members", len(s.members)).
		Int("plans", len(s.plans)).
		Int("policies", len(s.policies)).
		Int("providers", len(s.providers)).
		Int("claims", len(s.claims)).
		Int("payments", len(s.payments)).
		Int("policy_members", s.pairs.Len()).
		Msg("data loaded")
	return errors.Join(errs...)
}

// Counts reports the size of each in-memory collection.
func (s *Simulation) Counts() map[string]int {
	return map[string]int{
		"members":        len(s.members),
		"plans":          len(s.plans),
		"policies":       len(s.policies),
		"providers":      len(s.providers),
		"claims":         len(s.claims),
		"payments":       len(s.payments),
		"policy_members": s.pairs.Len(),
	}
}

// RunEnhanced runs the enhanced generators for date and publishes the result.
func (s *Simulation) RunEnhanced(ctx context.Context, date time.Time, cfg enhanced.Config) (*enhanced.Result, error) {
	res, err := s.enhanced.Run(ctx, date, cfg)
	if err != nil {
		return res, err
	}
	s.publish(ctx, events.NewEvent(events.TypeEnhancedCompleted, eventSource, res))
	return res, nil
}

func (s *Simulation) publish(ctx context.Context, e events.Event) {
	if err := s.pub.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event", e.Type).Msg("failed to publish event")
	}
}

// begin starts a step report.
func (s *Simulation) begin(step string) (*outcome.Report, time.Time) {
	return outcome.NewReport(step), time.Now()
}

// empty marks a step skipped because its input collection is empty.
func (s *Simulation) empty(r *outcome.Report, err error) *outcome.Report {
	r.Warning = err.Error()
	s.log.Warn().Str("step", r.Step).Msg(r.Warning)
	return r
}

// finish logs and records metrics for a completed step.
func (s *Simulation) finish(r *outcome.Report, started time.Time) *outcome.Report {
	metrics.RecordStep(r.Step, time.Since(started))

	type key struct {
		entity string
		kind   outcome.Kind
	}
	counts := map[key]int{}
	for _, o := range r.Outcomes {
		counts[key{o.Entity, o.Kind}]++
	}
	for k, n := range counts {
		metrics.RecordEntities(k.entity, k.kind.String(), n)
	}

	ev := s.log.Info()
	if r.Count(outcome.Failed) > 0 {
		ev = s.log.Warn()
	}
	ev.Str("step", r.Step).
		Int("inserted", r.Count(outcome.Inserted)).
		Int("updated", r.Count(outcome.Updated)).
		Int("skipped", r.Count(outcome.Skipped)).
		Int("failed", r.Count(outcome.Failed)).
		Msg("step completed")
	return r
}

// failed records a per-entity failure and keeps going.
func (s *Simulation) failed(r *outcome.Report, entity, ref string, err error) {
	r.Failed(entity, ref, err)
	s.log.Error().Err(err).Str("step", r.Step).Str("entity", entity).Str("ref", ref).Msg("entity write failed")
}

func isEmptyPrecondition(err error) bool {
	return apperrors.Is(err, apperrors.ErrEmptyPrecondition)
}
