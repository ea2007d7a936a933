package generator

import (
	"fmt"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
)

// ChangeKind names a policy change.
type ChangeKind string

const (
	ChangePlan          ChangeKind = "plan_change"
	ChangeExcess        ChangeKind = "excess_change"
	ChangePaymentMethod ChangeKind = "payment_method_change"
	ChangeSuspend       ChangeKind = "suspend"
	ChangeCancel        ChangeKind = "cancel"
	ChangeLapse         ChangeKind = "lapse"
	ChangeReactivate    ChangeKind = "reactivate"
)

var changeWeights = random.MustWeighted(
	random.Option[ChangeKind]{Item: ChangePlan, Weight: 0.30},
	random.Option[ChangeKind]{Item: ChangeExcess, Weight: 0.25},
	random.Option[ChangeKind]{Item: ChangePaymentMethod, Weight: 0.25},
	random.Option[ChangeKind]{Item: ChangeSuspend, Weight: 0.10},
	random.Option[ChangeKind]{Item: ChangeCancel, Weight: 0.07},
	random.Option[ChangeKind]{Item: ChangeLapse, Weight: 0.03},
)

// PolicyChange describes one applied change.
type PolicyChange struct {
	Policy *insurance.Policy
	Kind   ChangeKind
	Detail string
}

// ChangePolicies applies one change to each of up to count active or
// suspended policies. Suspended policies are reactivated half the time.
// Changes that cannot apply (no alternative plan or excess) are skipped.
func ChangePolicies(src *random.Source, policies []insurance.Policy, plans []insurance.CoveragePlan, count int, simDate time.Time) []PolicyChange {
	sim := insurance.DateOf(simDate)
	byID := make(map[int64]insurance.CoveragePlan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}

	var eligible []int
	for i, p := range policies {
		if p.ID != 0 && (p.Status == insurance.PolicyActive || p.Status == insurance.PolicySuspended) {
			eligible = append(eligible, i)
		}
	}

	var out []PolicyChange
	for _, i := range random.Sample(src, eligible, count) {
		p := &policies[i]
		if p.Status == insurance.PolicySuspended && src.Chance(0.5) {
			p.Status = insurance.PolicyActive
			if p.NextPremiumDueDate == nil || p.NextPremiumDueDate.Before(sim) {
				p.NextPremiumDueDate = insurance.DatePtr(sim)
			}
			out = append(out, PolicyChange{Policy: p, Kind: ChangeReactivate})
			continue
		}

		kind := changeWeights.Pick(src)
		detail, ok := applyChange(src, p, kind, byID, plans, sim)
		if ok {
			out = append(out, PolicyChange{Policy: p, Kind: kind, Detail: detail})
		}
	}
	return out
}

func applyChange(src *random.Source, p *insurance.Policy, kind ChangeKind, byID map[int64]insurance.CoveragePlan, plans []insurance.CoveragePlan, sim time.Time) (string, bool) {
	switch kind {
	case ChangePlan:
		var alternatives []insurance.CoveragePlan
		for _, pl := range plans {
			if pl.IsActive && pl.ID != p.PlanID && pl.ID != 0 {
				alternatives = append(alternatives, pl)
			}
		}
		if len(alternatives) == 0 {
			return "", false
		}
		next := random.Pick(src, alternatives)
		if !next.Type.HasHospitalCover() || len(next.ExcessOptions) == 0 {
			p.ExcessAmount = 0
		} else if !next.AllowsExcess(p.ExcessAmount) {
			p.ExcessAmount = random.Pick(src, next.ExcessOptions)
		}
		old := p.PlanID
		p.PlanID = next.ID
		p.CurrentPremium = Premium(next, p.CoverageType, p.ExcessAmount)
		return fmt.Sprintf("plan %d -> %d", old, next.ID), true

	case ChangeExcess:
		plan, ok := byID[p.PlanID]
		if !ok || !plan.Type.HasHospitalCover() {
			return "", false
		}
		var options []float64
		for _, e := range plan.ExcessOptions {
			if e != p.ExcessAmount {
				options = append(options, e)
			}
		}
		if len(options) == 0 {
			return "", false
		}
		old := p.ExcessAmount
		p.ExcessAmount = random.Pick(src, options)
		p.CurrentPremium = Premium(plan, p.CoverageType, p.ExcessAmount)
		return fmt.Sprintf("excess %.0f -> %.0f", old, p.ExcessAmount), true

	case ChangePaymentMethod:
		var options []insurance.PaymentMethod
		for _, m := range insurance.PaymentMethods {
			if m != p.PaymentMethod {
				options = append(options, m)
			}
		}
		old := p.PaymentMethod
		p.PaymentMethod = random.Pick(src, options)
		return fmt.Sprintf("%s -> %s", old, p.PaymentMethod), true

	case ChangeSuspend:
		if p.Status == insurance.PolicySuspended {
			return "", false
		}
		p.Status = insurance.PolicySuspended
		return "", true

	case ChangeCancel:
		p.Status = insurance.PolicyCancelled
		p.EndDate = insurance.DatePtr(sim)
		return "", true

	case ChangeLapse:
		p.Status = insurance.PolicyLapsed
		p.EndDate = insurance.DatePtr(sim)
		return "", true
	}
	return "", false
}
