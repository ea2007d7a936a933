package generator

import (
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/shared/random"
)

var claimStatusWeights = random.MustWeighted(
	random.Option[insurance.ClaimStatus]{Item: insurance.ClaimSubmitted, Weight: 0.1},
	random.Option[insurance.ClaimStatus]{Item: insurance.ClaimInProcess, Weight: 0.1},
	random.Option[insurance.ClaimStatus]{Item: insurance.ClaimApproved, Weight: 0.2},
	random.Option[insurance.ClaimStatus]{Item: insurance.ClaimPaid, Weight: 0.5},
	random.Option[insurance.ClaimStatus]{Item: insurance.ClaimRejected, Weight: 0.1},
)

const (
	medicareBenefitRate = 0.75
	hospitalExcessRate  = 0.3
)

// ClaimInput is what both claim generators draw from.
type ClaimInput struct {
	Policies  []insurance.Policy
	Providers []insurance.Provider
	Sequence  *insurance.Sequence
	SimDate   time.Time
}

func (in ClaimInput) activePolicies() []insurance.Policy {
	var out []insurance.Policy
	for _, p := range in.Policies {
		if p.Status == insurance.PolicyActive && p.ID != 0 {
			out = append(out, p)
		}
	}
	return out
}

func (in ClaimInput) providersWhere(keep func(insurance.Provider) bool) []insurance.Provider {
	var out []insurance.Provider
	for _, p := range in.Providers {
		if p.IsActive && p.ID != 0 && keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (in ClaimInput) check(step string) ([]insurance.Policy, error) {
	policies := in.activePolicies()
	if len(policies) == 0 {
		return nil, apperrors.EmptyPrecondition(step, "active policies")
	}
	if len(in.providersWhere(func(insurance.Provider) bool { return true })) == 0 {
		return nil, apperrors.EmptyPrecondition(step, "providers")
	}
	return policies, nil
}

// HospitalClaims generates count hospital claims priced from the MBS
// schedule: 1.5-3.0x markup, Medicare pays 75% of the fee and excess is
// applied to 30% of claims.
func HospitalClaims(src *random.Source, in ClaimInput, count int) ([]insurance.Claim, error) {
	if count <= 0 {
		return nil, nil
	}
	policies, err := in.check("generate hospital claims")
	if err != nil {
		return nil, err
	}
	hospitals := in.providersWhere(func(p insurance.Provider) bool { return p.Type == insurance.ProviderHospital })
	if len(hospitals) == 0 {
		hospitals = in.providersWhere(func(insurance.Provider) bool { return true })
	}

	out := make([]insurance.Claim, 0, count)
	for i := 0; i < count; i++ {
		policy := random.Pick(src, policies)
		provider := random.Pick(src, hospitals)
		item := random.Pick(src, mbsItems)

		charged := random.Round2(item.Fee * src.Uniform(1.5, 3.0))
		medicare := random.Round2(item.Fee * medicareBenefitRate)
		excess := 0.0
		if policy.ExcessAmount > 0 && src.Chance(hospitalExcessRate) {
			excess = min(policy.ExcessAmount, charged-medicare)
		}

		c := newClaim(src, in, policy, provider, insurance.ClaimHospital, item.Description)
		c.MBSItemNumber = item.Number
		c.Apply(insurance.Amounts{
			Charged:   charged,
			Medicare:  medicare,
			Insurance: charged - medicare - excess,
			Excess:    excess,
		})
		out = append(out, c)
	}
	return out, nil
}

// GeneralClaims generates count extras claims. Medicare pays nothing and
// the fund pays a 50-80% benefit.
func GeneralClaims(src *random.Source, in ClaimInput, count int) ([]insurance.Claim, error) {
	if count <= 0 {
		return nil, nil
	}
	policies, err := in.check("generate general claims")
	if err != nil {
		return nil, err
	}

	out := make([]insurance.Claim, 0, count)
	for i := 0; i < count; i++ {
		policy := random.Pick(src, policies)
		claimType := random.Pick(src, insurance.GeneralClaimTypes)
		provider := generalProvider(src, in, claimType)
		svc := random.Pick(src, generalServices[claimType])

		charged := random.Round2(src.Uniform(svc.MinFee, svc.MaxFee))
		c := newClaim(src, in, policy, provider, claimType, svc.Description)
		c.Apply(insurance.Amounts{
			Charged:   charged,
			Insurance: random.Round2(charged * src.Uniform(0.5, 0.8)),
		})
		out = append(out, c)
	}
	return out, nil
}

func generalProvider(src *random.Source, in ClaimInput, t insurance.ClaimType) insurance.Provider {
	want := t.ProviderTypeFor()
	if match := in.providersWhere(func(p insurance.Provider) bool { return p.Type == want }); len(match) > 0 {
		return random.Pick(src, match)
	}
	if other := in.providersWhere(func(p insurance.Provider) bool { return p.Type != insurance.ProviderHospital }); len(other) > 0 {
		return random.Pick(src, other)
	}
	return random.Pick(src, in.providersWhere(func(insurance.Provider) bool { return true }))
}

func newClaim(src *random.Source, in ClaimInput, policy insurance.Policy, provider insurance.Provider, t insurance.ClaimType, description string) insurance.Claim {
	sim := insurance.DateOf(in.SimDate)
	service := src.DaysBefore(sim, 1, 90)
	submission := insurance.MinDate(src.DaysAfter(service, 1, 10), sim)

	c := insurance.Claim{
		Number:             in.Sequence.Next(),
		PolicyID:           policy.ID,
		MemberID:           policy.PrimaryMemberID,
		ProviderID:         provider.ID,
		ServiceDate:        service,
		SubmissionDate:     submission,
		Type:               t,
		ServiceDescription: description,
		Status:             claimStatusWeights.Pick(src),
	}

	if c.Status.RequiresProcessedDate() {
		processed := insurance.MinDate(src.DaysAfter(submission, 1, 14), sim)
		c.ProcessedDate = &processed
		if c.Status == insurance.ClaimPaid {
			paid := insurance.MinDate(src.DaysAfter(processed, 1, 7), sim)
			c.PaymentDate = &paid
		}
	}
	if c.Status == insurance.ClaimRejected {
		c.RejectionReason = random.Pick(src, rejectionReasons)
	}
	return c
}
