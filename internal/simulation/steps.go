package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/ausphi/healthsim/internal/generator"
	"github.com/ausphi/healthsim/internal/insurance"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/shared/metrics"
	"github.com/ausphi/healthsim/internal/shared/outcome"
)

// Step names, in daily order.
const (
	StepAddMembers       = "add members"
	StepAddPlans         = "add plans"
	StepAddProviders     = "add providers"
	StepCreatePolicies   = "create policies"
	StepUpdateMembers    = "update members"
	StepUpdateProviders  = "update providers"
	StepEndAgreements    = "end provider agreements"
	StepPolicyChanges    = "process policy changes"
	StepHospitalClaims   = "generate hospital claims"
	StepGeneralClaims    = "generate general claims"
	StepPremiumPayments  = "process premium payments"
	StepClaimAssessments = "process claim assessments"
)

// Entity names used in reports and metrics.
const (
	EntityMember       = "member"
	EntityPlan         = "plan"
	EntityProvider     = "provider"
	EntityPolicy       = "policy"
	EntityPolicyMember = "policy_member"
	EntityClaim        = "claim"
	EntityPayment      = "payment"
)

// AddMembers generates and stores count new members joining on date.
func (s *Simulation) AddMembers(ctx context.Context, date time.Time, count int) *outcome.Report {
	r, started := s.begin(StepAddMembers)
	for _, m := range generator.Members(s.src, count, date, s.members) {
		if err := s.repo.InsertMember(ctx, &m); err != nil {
			s.failed(r, EntityMember, m.MembershipNumber, err)
			continue
		}
		s.members = append(s.members, m)
		r.Inserted(EntityMember, m.MembershipNumber)
	}
	return s.finish(r, started)
}

// AddPlans generates and stores count new coverage plans.
func (s *Simulation) AddPlans(ctx context.Context, date time.Time, count int) *outcome.Report {
	r, started := s.begin(StepAddPlans)
	for _, p := range generator.Plans(s.src, count, date, s.plans) {
		if err := s.repo.InsertPlan(ctx, &p); err != nil {
			s.failed(r, EntityPlan, p.Code, err)
			continue
		}
		s.plans = append(s.plans, p)
		r.Inserted(EntityPlan, p.Code)
	}
	return s.finish(r, started)
}

// AddProviders generates and stores count new providers.
func (s *Simulation) AddProviders(ctx context.Context, date time.Time, count int) *outcome.Report {
	r, started := s.begin(StepAddProviders)
	for _, p := range generator.Providers(s.src, count, date, s.providers) {
		if err := s.repo.InsertProvider(ctx, &p); err != nil {
			s.failed(r, EntityProvider, string(p.Number), err)
			continue
		}
		s.providers = append(s.providers, p)
		r.Inserted(EntityProvider, string(p.Number))
	}
	return s.finish(r, started)
}

// CreatePolicies drafts count policies, stores each one and then links its
// members. Links already present are reported as skipped.
func (s *Simulation) CreatePolicies(ctx context.Context, date time.Time, count int) *outcome.Report {
	r, started := s.begin(StepCreatePolicies)
	drafts, err := generator.Policies(s.src, s.members, s.plans, s.policies, count, date)
	if err != nil {
		if isEmptyPrecondition(err) {
			return s.finish(s.empty(r, err), started)
		}
		s.failed(r, EntityPolicy, "", err)
		return s.finish(r, started)
	}

	for _, d := range drafts {
		p := d.Policy
		if err := s.repo.InsertPolicy(ctx, &p); err != nil {
			s.failed(r, EntityPolicy, p.Number, err)
			continue
		}
		s.policies = append(s.policies, p)
		r.Inserted(EntityPolicy, p.Number)

		links, skipped := d.Links(p.ID, s.pairs)
		for _, memberID := range skipped {
			r.Skipped(EntityPolicyMember, pairRef(p.ID, memberID), "duplicate policy member pair")
		}
		for _, l := range links {
			if err := s.repo.InsertPolicyMember(ctx, &l); err != nil {
				s.failed(r, EntityPolicyMember, pairRef(l.PolicyID, l.MemberID), err)
				continue
			}
			r.Inserted(EntityPolicyMember, pairRef(l.PolicyID, l.MemberID))
		}
	}
	return s.finish(r, started)
}

func pairRef(policyID, memberID int64) string {
	return fmt.Sprintf("%d/%d", policyID, memberID)
}

// UpdateMembers rewrites contact or address details of count members.
func (s *Simulation) UpdateMembers(ctx context.Context, count int) *outcome.Report {
	r, started := s.begin(StepUpdateMembers)
	if len(s.members) == 0 {
		return s.finish(s.empty(r, apperrors.EmptyPrecondition(r.Step, "members")), started)
	}
	before := byID(s.members, func(m insurance.Member) int64 { return m.ID })
	for _, m := range generator.UpdateMembers(s.src, s.members, count) {
		if err := s.repo.UpdateMember(ctx, *m); err != nil {
			*m = before[m.ID]
			s.failed(r, EntityMember, m.MembershipNumber, err)
			continue
		}
		r.Updated(EntityMember, m.MembershipNumber)
	}
	return s.finish(r, started)
}

// UpdateProviders rewrites details of count providers.
func (s *Simulation) UpdateProviders(ctx context.Context, date time.Time, count int) *outcome.Report {
	r, started := s.begin(StepUpdateProviders)
	if len(s.providers) == 0 {
		return s.finish(s.empty(r, apperrors.EmptyPrecondition(r.Step, "providers")), started)
	}
	before := byID(s.providers, providerID)
	for _, p := range generator.UpdateProviderDetails(s.src, s.providers, count, date) {
		s.updateProvider(ctx, r, p, before[p.ID])
	}
	return s.finish(r, started)
}

// EndProviderAgreements ends pct percent of the open preferred-provider agreements.
func (s *Simulation) EndProviderAgreements(ctx context.Context, date time.Time, pct float64) *outcome.Report {
	r, started := s.begin(StepEndAgreements)
	if len(s.providers) == 0 {
		return s.finish(s.empty(r, apperrors.EmptyPrecondition(r.Step, "providers")), started)
	}
	before := byID(s.providers, providerID)
	for _, p := range generator.EndProviderAgreements(s.src, s.providers, pct, date) {
		s.updateProvider(ctx, r, p, before[p.ID])
	}
	return s.finish(r, started)
}

func providerID(p insurance.Provider) int64 { return p.ID }

func (s *Simulation) updateProvider(ctx context.Context, r *outcome.Report, p *insurance.Provider, before insurance.Provider) {
	if err := s.repo.UpdateProvider(ctx, *p); err != nil {
		*p = before
		s.failed(r, EntityProvider, string(p.Number), err)
		return
	}
	r.Updated(EntityProvider, string(p.Number))
}

// ProcessPolicyChanges applies plan, excess, payment method and status
// changes to count policies.
func (s *Simulation) ProcessPolicyChanges(ctx context.Context, date time.Time, count int) *outcome.Report {
	r, started := s.begin(StepPolicyChanges)
	if len(s.policies) == 0 {
		return s.finish(s.empty(r, apperrors.EmptyPrecondition(r.Step, "policies")), started)
	}
	before := byID(s.policies, func(p insurance.Policy) int64 { return p.ID })
	for _, c := range generator.ChangePolicies(s.src, s.policies, s.plans, count, date) {
		if err := s.repo.UpdatePolicy(ctx, *c.Policy); err != nil {
			*c.Policy = before[c.Policy.ID]
			s.failed(r, EntityPolicy, c.Policy.Number, err)
			continue
		}
		r.Updated(EntityPolicy, c.Policy.Number)
		s.log.Debug().Str("policy", c.Policy.Number).Str("change", string(c.Kind)).Str("detail", c.Detail).Msg("policy changed")
	}
	return s.finish(r, started)
}

// GenerateHospitalClaims creates count hospital claims dated date.
func (s *Simulation) GenerateHospitalClaims(ctx context.Context, date time.Time, count int) *outcome.Report {
	r, started := s.begin(StepHospitalClaims)
	claims, err := generator.HospitalClaims(s.src, s.claimInput(date), count)
	return s.finish(s.storeClaims(ctx, r, claims, err), started)
}

// GenerateGeneralClaims creates count extras claims dated date.
func (s *Simulation) GenerateGeneralClaims(ctx context.Context, date time.Time, count int) *outcome.Report {
	r, started := s.begin(StepGeneralClaims)
	claims, err := generator.GeneralClaims(s.src, s.claimInput(date), count)
	return s.finish(s.storeClaims(ctx, r, claims, err), started)
}

func (s *Simulation) claimInput(date time.Time) generator.ClaimInput {
	numbers := make([]string, len(s.claims))
	for i, c := range s.claims {
		numbers[i] = c.Number
	}
	return generator.ClaimInput{
		Policies:  s.policies,
		Providers: s.providers,
		Sequence:  insurance.NewSequence(insurance.PrefixClaim, date, numbers),
		SimDate:   date,
	}
}

func (s *Simulation) storeClaims(ctx context.Context, r *outcome.Report, claims []insurance.Claim, err error) *outcome.Report {
	if err != nil {
		if isEmptyPrecondition(err) {
			return s.empty(r, err)
		}
		s.failed(r, EntityClaim, "", err)
		return r
	}
	for _, c := range claims {
		if err := s.repo.InsertClaim(ctx, &c); err != nil {
			s.failed(r, EntityClaim, c.Number, err)
			continue
		}
		s.claims = append(s.claims, c)
		r.Inserted(EntityClaim, c.Number)
	}
	return r
}

// ProcessPremiumPayments collects premiums from every active policy due on
// or before date and moves the policies' due dates forward. A policy only
// advances once its payment and its own update are both stored.
func (s *Simulation) ProcessPremiumPayments(ctx context.Context, date time.Time) *outcome.Report {
	r, started := s.begin(StepPremiumPayments)
	if len(s.policies) == 0 {
		return s.finish(s.empty(r, apperrors.EmptyPrecondition(r.Step, "policies")), started)
	}

	refs := make([]string, len(s.payments))
	for i, p := range s.payments {
		refs[i] = p.Reference
	}
	seq := insurance.NewSequence(insurance.PrefixPayment, date, refs)

	for _, res := range generator.PremiumPayments(s.src, s.policies, date, seq) {
		pay := res.Payment
		if err := s.repo.InsertPayment(ctx, &pay); err != nil {
			s.failed(r, EntityPayment, pay.Reference, err)
			r.Skipped(EntityPolicy, res.Policy.Number, "payment not recorded")
			continue
		}
		s.payments = append(s.payments, pay)
		r.Inserted(EntityPayment, pay.Reference)

		advanced := res.Advanced()
		if err := s.repo.UpdatePolicy(ctx, advanced); err != nil {
			s.failed(r, EntityPolicy, advanced.Number, err)
			continue
		}
		*res.Policy = advanced
		r.Updated(EntityPolicy, advanced.Number)
	}
	return s.finish(r, started)
}

// ProcessClaimAssessments decides pending claims, at most limit of them
// when limit > 0.
func (s *Simulation) ProcessClaimAssessments(ctx context.Context, date time.Time, limit int) *outcome.Report {
	r, started := s.begin(StepClaimAssessments)
	if len(s.claims) == 0 {
		return s.finish(s.empty(r, apperrors.EmptyPrecondition(r.Step, "claims")), started)
	}
	for _, a := range generator.AssessClaims(s.src, s.claims, limit, date) {
		if a.Err != nil {
			s.failed(r, EntityClaim, a.Claim.Number, a.Err)
			continue
		}
		if err := s.repo.UpdateClaim(ctx, *a.Claim); err != nil {
			*a.Claim = a.Before
			s.failed(r, EntityClaim, a.Claim.Number, err)
			continue
		}
		metrics.RecordClaimTransition(string(a.From), string(a.Claim.Status))
		r.Updated(EntityClaim, a.Claim.Number)
	}
	return s.finish(r, started)
}

// byID copies items keyed by ID. Steps take one before a generator edits the
// snapshot in place, so an entity whose write fails goes back to what the
// store holds.
func byID[T any](items []T, id func(T) int64) map[int64]T {
	out := make(map[int64]T, len(items))
	for _, it := range items {
		out[id(it)] = it
	}
	return out
}
