package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/ausphi/healthsim/internal/enhanced"
	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/events"
	"github.com/ausphi/healthsim/internal/shared/metrics"
	"github.com/ausphi/healthsim/internal/shared/outcome"
)

// DailyOptions holds the per-step counts and switches for one simulated day.
type DailyOptions struct {
	NewMembers       int     `json:"new_members"`
	NewPlans         int     `json:"new_plans"`
	NewProviders     int     `json:"new_providers"`
	NewPolicies      int     `json:"new_policies"`
	MemberUpdates    int     `json:"member_updates"`
	ProviderUpdates  int     `json:"provider_updates"`
	EndAgreementsPct float64 `json:"end_agreements_pct"`
	PolicyChanges    int     `json:"policy_changes"`
	HospitalClaims   int     `json:"hospital_claims"`
	GeneralClaims    int     `json:"general_claims"`
	AssessmentLimit  int     `json:"assessment_limit"`

	SkipMembers         bool `json:"skip_members"`
	SkipPlans           bool `json:"skip_plans"`
	SkipProviders       bool `json:"skip_providers"`
	SkipPolicies        bool `json:"skip_policies"`
	SkipMemberUpdates   bool `json:"skip_member_updates"`
	SkipProviderUpdates bool `json:"skip_provider_updates"`
	SkipEndAgreements   bool `json:"skip_end_agreements"`
	SkipPolicyChanges   bool `json:"skip_policy_changes"`
	SkipHospitalClaims  bool `json:"skip_hospital_claims"`
	SkipGeneralClaims   bool `json:"skip_general_claims"`
	SkipPayments        bool `json:"skip_payments"`
	SkipAssessments     bool `json:"skip_assessments"`

	Enhanced       bool            `json:"enhanced"`
	EnhancedConfig enhanced.Config `json:"enhanced_config"`
}

// DefaultDailyOptions returns the counts used when a caller gives none.
// New plans are off: the catalogue is seeded once and rarely changes.
func DefaultDailyOptions() DailyOptions {
	return DailyOptions{
		NewMembers:       10,
		NewProviders:     2,
		NewPolicies:      5,
		MemberUpdates:    3,
		ProviderUpdates:  2,
		EndAgreementsPct: 2,
		PolicyChanges:    3,
		HospitalClaims:   5,
		GeneralClaims:    15,
		EnhancedConfig:   enhanced.DefaultConfig(),
	}
}

// DailyResult is what one simulated day produced.
type DailyResult struct {
	Date     time.Time         `json:"date"`
	Steps    []*outcome.Report `json:"steps"`
	Enhanced *enhanced.Result  `json:"enhanced,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// Step returns the report of the named step, or nil if it did not run.
func (d *DailyResult) Step(name string) *outcome.Report {
	for _, r := range d.Steps {
		if r.Step == name {
			return r
		}
	}
	return nil
}

// Total sums outcomes of kind k over every step.
func (d *DailyResult) Total(k outcome.Kind) int {
	n := 0
	for _, r := range d.Steps {
		n += r.Count(k)
	}
	return n
}

// TotalEntity sums outcomes of kind k for entity over every step.
func (d *DailyResult) TotalEntity(k outcome.Kind, entity string) int {
	n := 0
	for _, r := range d.Steps {
		n += r.CountEntity(k, entity)
	}
	return n
}

// Summary is the event payload for a completed day.
func (d *DailyResult) Summary() map[string]any {
	steps := make(map[string]string, len(d.Steps))
	for _, r := range d.Steps {
		steps[r.Step] = r.Summary()
	}
	out := map[string]any{
		"date":     d.Date.Format(time.DateOnly),
		"steps":    steps,
		"inserted": d.Total(outcome.Inserted),
		"updated":  d.Total(outcome.Updated),
		"failed":   d.Total(outcome.Failed),
	}
	if d.Enhanced != nil {
		out["enhanced"] = d.Enhanced.Counts
	}
	return out
}

// RunDaily reloads the snapshot and runs every enabled step for date in the
// fixed order: members, plans, providers, policies, member updates, provider
// updates, agreement endings, policy changes, hospital claims, general
// claims, premium payments, claim assessments, then optionally the enhanced
// generators. Failed entities are recorded in the step reports and the day
// carries on, unless strict mode is set, in which case the first failure
// stops the day and is returned.
func (s *Simulation) RunDaily(ctx context.Context, date time.Time, opts DailyOptions) (*DailyResult, error) {
	date = insurance.DateOf(date)
	started := time.Now()
	res := &DailyResult{Date: date}
	log := s.log.With().Str("date", date.Format(time.DateOnly)).Logger()
	log.Info().Msg("starting daily simulation")

	if err := s.LoadData(ctx); err != nil {
		if s.strict {
			return s.endDay(ctx, res, started, err)
		}
		res.Warnings = append(res.Warnings, err.Error())
	}

	steps := []struct {
		skip bool
		run  func() *outcome.Report
	}{
		{opts.SkipMembers, func() *outcome.Report { return s.AddMembers(ctx, date, opts.NewMembers) }},
		{opts.SkipPlans, func() *outcome.Report { return s.AddPlans(ctx, date, opts.NewPlans) }},
		{opts.SkipProviders, func() *outcome.Report { return s.AddProviders(ctx, date, opts.NewProviders) }},
		{opts.SkipPolicies, func() *outcome.Report { return s.CreatePolicies(ctx, date, opts.NewPolicies) }},
		{opts.SkipMemberUpdates, func() *outcome.Report { return s.UpdateMembers(ctx, opts.MemberUpdates) }},
		{opts.SkipProviderUpdates, func() *outcome.Report { return s.UpdateProviders(ctx, date, opts.ProviderUpdates) }},
		{opts.SkipEndAgreements, func() *outcome.Report { return s.EndProviderAgreements(ctx, date, opts.EndAgreementsPct) }},
		{opts.SkipPolicyChanges, func() *outcome.Report { return s.ProcessPolicyChanges(ctx, date, opts.PolicyChanges) }},
		{opts.SkipHospitalClaims, func() *outcome.Report { return s.GenerateHospitalClaims(ctx, date, opts.HospitalClaims) }},
		{opts.SkipGeneralClaims, func() *outcome.Report { return s.GenerateGeneralClaims(ctx, date, opts.GeneralClaims) }},
		{opts.SkipPayments, func() *outcome.Report { return s.ProcessPremiumPayments(ctx, date) }},
		{opts.SkipAssessments, func() *outcome.Report { return s.ProcessClaimAssessments(ctx, date, opts.AssessmentLimit) }},
	}
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return s.endDay(ctx, res, started, err)
		}
		if st.skip {
			continue
		}
		r := st.run()
		res.Steps = append(res.Steps, r)
		if r.Warning != "" {
			res.Warnings = append(res.Warnings, r.Warning)
		}
		if s.strict {
			if err := r.FirstError(); err != nil {
				return s.endDay(ctx, res, started, fmt.Errorf("%s: %w", r.Step, err))
			}
		}
	}

	if opts.Enhanced {
		er, err := s.RunEnhanced(ctx, date, opts.EnhancedConfig)
		res.Enhanced = er
		if err != nil {
			return s.endDay(ctx, res, started, err)
		}
		if s.strict && len(er.Errors) > 0 {
			return s.endDay(ctx, res, started, fmt.Errorf("enhanced generators failed: %v", er.Errors))
		}
	}
	return s.endDay(ctx, res, started, nil)
}

func (s *Simulation) endDay(ctx context.Context, res *DailyResult, started time.Time, err error) (*DailyResult, error) {
	res.Duration = time.Since(started)
	metrics.RecordDay(err == nil, res.Duration)
	if err != nil {
		s.log.Error().Err(err).Time("date", res.Date).Msg("daily simulation aborted")
		return res, err
	}
	s.publish(ctx, events.NewEvent(events.TypeDayCompleted, eventSource, res.Summary()))
	s.log.Info().
		Time("date", res.Date).
		Int("inserted", res.Total(outcome.Inserted)).
		Int("updated", res.Total(outcome.Updated)).
		Int("failed", res.Total(outcome.Failed)).
		Dur("duration", res.Duration).
		Msg("daily simulation completed")
	return res, nil
}
