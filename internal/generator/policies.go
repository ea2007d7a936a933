package generator

import (
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/shared/random"
)

var coverageWeights = random.MustWeighted(
	random.Option[insurance.CoverageType]{Item: insurance.CoverSingle, Weight: 0.4},
	random.Option[insurance.CoverageType]{Item: insurance.CoverCouple, Weight: 0.3},
	random.Option[insurance.CoverageType]{Item: insurance.CoverFamily, Weight: 0.2},
	random.Option[insurance.CoverageType]{Item: insurance.CoverSingleParent, Weight: 0.1},
)

var frequencyWeights = random.MustWeighted(
	random.Option[insurance.Frequency]{Item: insurance.FrequencyMonthly, Weight: 0.60},
	random.Option[insurance.Frequency]{Item: insurance.FrequencyQuarterly, Weight: 0.25},
	random.Option[insurance.Frequency]{Item: insurance.FrequencyAnnually, Weight: 0.15},
)

var paymentMethodWeights = random.MustWeighted(
	random.Option[insurance.PaymentMethod]{Item: insurance.PayDirectDebit, Weight: 0.6},
	random.Option[insurance.PaymentMethod]{Item: insurance.PayCreditCard, Weight: 0.3},
	random.Option[insurance.PaymentMethod]{Item: insurance.PayBPAY, Weight: 0.1},
)

const (
	adultAge          = 18
	maxPartnerAgeGap  = 15
	minParentAgeGap   = 18
	maxChildrenPerPol = 3
)

// Dependant is a member to be linked to a policy besides the primary.
type Dependant struct {
	MemberID     int64
	Relationship insurance.Relationship
}

// PolicyDraft is a policy ready to insert together with the members it covers.
// Links are built once the policy has an ID.
type PolicyDraft struct {
	Policy     insurance.Policy
	Dependants []Dependant
}

// Links returns the PolicyMember rows for a persisted policy, skipping pairs
// already present in pairs and recording the new ones.
func (d PolicyDraft) Links(policyID int64, pairs *insurance.PairSet) (links []insurance.PolicyMember, skipped []int64) {
	add := func(memberID int64, rel insurance.Relationship) {
		if !pairs.Add(policyID, memberID) {
			skipped = append(skipped, memberID)
			return
		}
		links = append(links, insurance.PolicyMember{
			PolicyID:     policyID,
			MemberID:     memberID,
			Relationship: rel,
			StartDate:    d.Policy.StartDate,
			IsActive:     true,
		})
	}
	add(d.Policy.PrimaryMemberID, insurance.RelSelf)
	for _, dep := range d.Dependants {
		add(dep.MemberID, dep.Relationship)
	}
	return links, skipped
}

// Premium applies the coverage multiplier and, for hospital cover, the
// excess discount to the plan's monthly premium.
func Premium(plan insurance.CoveragePlan, coverage insurance.CoverageType, excess float64) float64 {
	discount := 0.0
	if plan.Type.HasHospitalCover() {
		discount = excessDiscount[excess]
	}
	return random.Round2(plan.MonthlyPremium * coverage.PremiumMultiplier() * (1 - discount))
}

// PremiumSchedule returns the last paid date (start plus the largest whole
// number of intervals not after simDate) and the next due date.
func PremiumSchedule(start time.Time, freq insurance.Frequency, simDate time.Time) (last, next time.Time) {
	interval := freq.IntervalDays()
	elapsed := insurance.DaysBetween(start, simDate)
	if elapsed < 0 {
		elapsed = 0
	}
	k := elapsed / interval
	last = insurance.DateOf(start).AddDate(0, 0, k*interval)
	next = last.AddDate(0, 0, interval)
	return last, next
}

// Policies drafts up to count policies. Each primary member is an active
// adult not already primary on an active policy and is used at most once.
func Policies(src *random.Source, members []insurance.Member, plans []insurance.CoveragePlan, existing []insurance.Policy, count int, simDate time.Time) ([]PolicyDraft, error) {
	if count <= 0 {
		return nil, nil
	}
	var activePlans []insurance.CoveragePlan
	for _, p := range plans {
		if p.IsActive {
			activePlans = append(activePlans, p)
		}
	}
	if len(activePlans) == 0 {
		return nil, apperrors.EmptyPrecondition("create policies", "coverage plans")
	}

	hasPolicy := make(map[int64]bool)
	numbers := make([]string, 0, len(existing))
	for _, p := range existing {
		numbers = append(numbers, p.Number)
		if p.Status == insurance.PolicyActive {
			hasPolicy[p.PrimaryMemberID] = true
		}
	}

	var candidates []int
	for i, m := range members {
		if m.IsActive && m.ID != 0 && !hasPolicy[m.ID] && m.AgeAt(simDate) >= adultAge {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil, apperrors.EmptyPrecondition("create policies", "eligible members")
	}

	seq := insurance.NewSequence(insurance.PrefixPolicy, simDate, numbers)
	used := make(map[int64]bool)
	var drafts []PolicyDraft
	for _, ci := range random.Sample(src, candidates, len(candidates)) {
		if len(drafts) == count {
			break
		}
		primary := members[ci]
		if used[primary.ID] {
			continue
		}
		used[primary.ID] = true

		plan := random.Pick(src, activePlans)
		coverage := coverageWeights.Pick(src)
		d := PolicyDraft{Policy: newPolicy(src, seq.Next(), primary, plan, coverage, simDate)}

		if coverage.AllowsSpouse() {
			if partner, ok := pickPartner(src, members, primary, used, simDate); ok {
				used[partner.ID] = true
				d.Dependants = append(d.Dependants, Dependant{MemberID: partner.ID, Relationship: insurance.RelSpouse})
			}
		}
		if coverage.AllowsChildren() {
			for _, child := range pickChildren(src, members, primary, used, simDate) {
				used[child.ID] = true
				d.Dependants = append(d.Dependants, Dependant{MemberID: child.ID, Relationship: insurance.RelChild})
			}
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func newPolicy(src *random.Source, number string, primary insurance.Member, plan insurance.CoveragePlan, coverage insurance.CoverageType, simDate time.Time) insurance.Policy {
	excess := 0.0
	if plan.Type.HasHospitalCover() && len(plan.ExcessOptions) > 0 {
		excess = random.Pick(src, plan.ExcessOptions)
	}
	start := insurance.DateOf(src.DaysBefore(simDate, 30, 1095))
	freq := frequencyWeights.Pick(src)
	last, next := PremiumSchedule(start, freq, simDate)
	risk := random.Round2(src.Uniform(0.9, 1.2))
	underwriting := random.Round2(src.Uniform(50, 100))

	return insurance.Policy{
		Number:               number,
		PrimaryMemberID:      primary.ID,
		PlanID:               plan.ID,
		CoverageType:         coverage,
		StartDate:            start,
		CurrentPremium:       Premium(plan, coverage, excess),
		Frequency:            freq,
		ExcessAmount:         excess,
		RebatePercentage:     primary.RebateTier.RebatePercentage(),
		LHCLoading:           primary.LHCLoading,
		Status:               insurance.PolicyActive,
		PaymentMethod:        paymentMethodWeights.Pick(src),
		LastPremiumPaidDate:  &last,
		NextPremiumDueDate:   &next,
		RiskAdjustmentFactor: &risk,
		UnderwritingScore:    &underwriting,
	}
}

func pickPartner(src *random.Source, members []insurance.Member, primary insurance.Member, used map[int64]bool, simDate time.Time) (insurance.Member, bool) {
	primaryAge := primary.AgeAt(simDate)
	var pool []insurance.Member
	for _, m := range members {
		if !m.IsActive || m.ID == 0 || m.ID == primary.ID || used[m.ID] {
			continue
		}
		age := m.AgeAt(simDate)
		if age >= adultAge && abs(age-primaryAge) < maxPartnerAgeGap {
			pool = append(pool, m)
		}
	}
	if len(pool) == 0 {
		return insurance.Member{}, false
	}
	return random.Pick(src, pool), true
}

// pickChildren selects up to three members more than 18 years younger than
// the primary member.
func pickChildren(src *random.Source, members []insurance.Member, primary insurance.Member, used map[int64]bool, simDate time.Time) []insurance.Member {
	primaryAge := primary.AgeAt(simDate)
	var pool []insurance.Member
	for _, m := range members {
		if !m.IsActive || m.ID == 0 || m.ID == primary.ID || used[m.ID] {
			continue
		}
		if primaryAge-m.AgeAt(simDate) > minParentAgeGap {
			pool = append(pool, m)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	return random.Sample(src, pool, src.IntBetween(1, maxChildrenPerPol))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
