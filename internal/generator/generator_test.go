package generator

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausphi/healthsim/internal/insurance"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/shared/random"
	"github.com/ausphi/healthsim/internal/shared/types"
)

var simDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func withIDs[T any](items []T, set func(*T, int64)) []T {
	for i := range items {
		set(&items[i], int64(i+1))
	}
	return items
}

func seededWorld(t *testing.T, src *random.Source) ([]insurance.Member, []insurance.CoveragePlan, []insurance.Provider) {
	t.Helper()
	members := withIDs(Members(src, 100, simDate, nil), func(m *insurance.Member, id int64) { m.ID = id })
	plans := withIDs(Plans(src, 6, simDate, nil), func(p *insurance.CoveragePlan, id int64) { p.ID = id })
	providers := withIDs(Providers(src, 40, simDate, nil), func(p *insurance.Provider, id int64) { p.ID = id })
	return members, plans, providers
}

func persistDrafts(drafts []PolicyDraft, startID int64) []insurance.Policy {
	out := make([]insurance.Policy, len(drafts))
	for i, d := range drafts {
		out[i] = d.Policy
		out[i].ID = startID + int64(i)
	}
	return out
}

func TestMembers(t *testing.T) {
	src := random.New(1)
	existing := []insurance.Member{{MembershipNumber: "MBR-00000010"}}
	members := Members(src, 200, simDate, existing)
	require.Len(t, members, 200)

	assert.Equal(t, "MBR-00000011", members[0].MembershipNumber)
	for _, m := range members {
		age := m.AgeAt(simDate)
		assert.GreaterOrEqual(t, age, 0)
		assert.LessOrEqual(t, age, 85)
		assert.True(t, m.MedicareNumber.IsValid(), m.MedicareNumber)
		assert.Equal(t, simDate, m.JoinDate)
		assert.LessOrEqual(t, m.LHCLoading, 70.0)
		if age <= 30 {
			assert.Zero(t, m.LHCLoading)
		} else if m.LHCLoading > 0 {
			assert.Equal(t, LHCLoadingForAge(age), m.LHCLoading)
		}
		require.NotNil(t, m.RiskScore)
		assert.NotEmpty(t, m.ClaimFrequencyTier)
		assert.Contains(t, m.Contact.Email, "@")
	}
}

func TestLHCLoadingForAge(t *testing.T) {
	assert.Zero(t, LHCLoadingForAge(30))
	assert.Equal(t, 20.0, LHCLoadingForAge(40))
	assert.Equal(t, 70.0, LHCLoadingForAge(90))
}

func TestCompleteMemberKeepsImportedFields(t *testing.T) {
	src := random.New(5)
	m := insurance.Member{
		FirstName:   "Ava",
		LastName:    "Nguyen",
		DateOfBirth: time.Date(1960, 2, 1, 0, 0, 0, 0, time.UTC),
		Gender:      insurance.GenderFemale,
		Contact:     types.ContactInfo{Email: "ava@example.com.au"},
	}
	CompleteMember(src, &m, simDate)

	assert.Equal(t, "ava@example.com.au", m.Contact.Email)
	assert.Equal(t, insurance.GenderFemale, m.Gender)
	assert.NotEmpty(t, m.Address.Street)
	assert.NotEmpty(t, m.Contact.Mobile)
	assert.True(t, m.MedicareNumber.IsValid())
	assert.Equal(t, simDate, m.JoinDate)
	assert.True(t, m.IsActive)
	assert.NotEmpty(t, m.RebateTier)
	require.NotNil(t, m.RiskScore)
	if m.LHCLoading > 0 {
		assert.Equal(t, LHCLoadingForAge(64), m.LHCLoading)
	}
}

func TestUpdateMembersOnlyTouchesActive(t *testing.T) {
	src := random.New(2)
	members := Members(src, 10, simDate, nil)
	for i := range members[:5] {
		members[i].IsActive = false
	}
	changed := UpdateMembers(src, members, 20)
	assert.Len(t, changed, 5)
	for _, m := range changed {
		assert.True(t, m.IsActive)
	}
}

func TestPlans(t *testing.T) {
	src := random.New(3)
	existing := []insurance.CoveragePlan{{Code: "HOS-GOLD-004", Type: insurance.PlanHospital}}
	plans := Plans(src, 7, simDate, existing)
	require.Len(t, plans, 7)

	counts := map[insurance.PlanType]int{}
	for _, p := range plans {
		counts[p.Type]++
		assert.Equal(t, AnnualPremium(p.MonthlyPremium), p.AnnualPremium)
		assert.NotEmpty(t, p.WaitingPeriods)
		if p.Type.HasHospitalCover() {
			assert.NotEmpty(t, p.ExcessOptions)
			assert.NotEmpty(t, p.HospitalTier)
		} else {
			assert.Empty(t, p.ExcessOptions)
		}
	}
	assert.Equal(t, 3, counts[insurance.PlanHospital])
	assert.Equal(t, 2, counts[insurance.PlanExtras])
	assert.Equal(t, 2, counts[insurance.PlanCombined])
	assert.True(t, strings.HasSuffix(plans[0].Code, "-005"))
}

func TestProviderSplit(t *testing.T) {
	tests := []struct {
		count int
		want  Split
	}{
		{100, Split{10, 30, 30, 30}},
		{50, Split{5, 15, 15, 15}},
		{20, Split{2, 6, 6, 6}},
		{3, Split{1, 0, 0, 2}},
		{0, Split{}},
	}
	for _, tt := range tests {
		got := ProviderSplit(tt.count)
		assert.Equal(t, tt.want, got, "count %d", tt.count)
		assert.Equal(t, tt.count, got.Total())
	}
}

func TestProviders(t *testing.T) {
	src := random.New(4)
	providers := Providers(src, 50, simDate, nil)
	require.Len(t, providers, 50)

	numbers := map[string]bool{}
	for _, p := range providers {
		assert.True(t, p.Number.IsValid(), p.Number)
		assert.False(t, numbers[string(p.Number)], "duplicate number")
		numbers[string(p.Number)] = true
		if p.IsPreferred {
			require.NotNil(t, p.AgreementEndDate)
			assert.False(t, p.AgreementEndDate.Before(simDate))
			assert.True(t, p.AgreementStartDate.Before(*p.AgreementEndDate))
		}
	}
}

func TestEndProviderAgreements(t *testing.T) {
	src := random.New(5)
	providers := Providers(src, 40, simDate, nil)
	open := 0
	for _, p := range providers {
		if p.HasOpenAgreement(simDate) {
			open++
		}
	}
	ended := EndProviderAgreements(src, providers, 50, simDate)
	assert.Equal(t, int(float64(open)*0.5+0.5), len(ended))
	for _, p := range ended {
		days := insurance.DaysBetween(simDate, *p.AgreementEndDate)
		assert.GreaterOrEqual(t, days, 30)
		assert.LessOrEqual(t, days, 90)
	}
}

func TestPremium(t *testing.T) {
	hospital := insurance.CoveragePlan{Type: insurance.PlanHospital, MonthlyPremium: 200}
	extras := insurance.CoveragePlan{Type: insurance.PlanExtras, MonthlyPremium: 50}

	assert.Equal(t, 360.0, Premium(hospital, insurance.CoverCouple, 500))
	assert.Equal(t, 340.0, Premium(hospital, insurance.CoverCouple, 750))
	assert.Equal(t, 125.0, Premium(extras, insurance.CoverFamily, 500))
	assert.Equal(t, 300.0, Premium(hospital, insurance.CoverSingleParent, 0))
}

func TestPremiumSchedule(t *testing.T) {
	start := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	last, next := PremiumSchedule(start, insurance.FrequencyMonthly, simDate)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), last)
	assert.Equal(t, time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC), next)
	assert.True(t, next.After(simDate))
}

func TestPoliciesPrimaryAndDependants(t *testing.T) {
	src := random.New(6)
	members, plans, _ := seededWorld(t, src)

	drafts, err := Policies(src, members, plans, nil, 15, simDate)
	require.NoError(t, err)
	require.Len(t, drafts, 15)

	byID := map[int64]insurance.Member{}
	for _, m := range members {
		byID[m.ID] = m
	}
	primaries := map[int64]bool{}
	for _, d := range drafts {
		p := d.Policy
		assert.False(t, primaries[p.PrimaryMemberID], "primary reused")
		primaries[p.PrimaryMemberID] = true
		assert.GreaterOrEqual(t, byID[p.PrimaryMemberID].AgeAt(simDate), 18)
		assert.True(t, strings.HasPrefix(p.Number, "POL-20240315-"))
		assert.False(t, p.NextPremiumDueDate.Before(*p.LastPremiumPaidDate))
		assert.False(t, p.LastPremiumPaidDate.After(simDate))
		assert.Equal(t, byID[p.PrimaryMemberID].RebateTier.RebatePercentage(), p.RebatePercentage)

		days := insurance.DaysBetween(p.StartDate, simDate)
		assert.GreaterOrEqual(t, days, 30)
		assert.LessOrEqual(t, days, 1095)

		spouses, children := 0, 0
		for _, dep := range d.Dependants {
			switch dep.Relationship {
			case insurance.RelSpouse:
				spouses++
				gap := byID[dep.MemberID].AgeAt(simDate) - byID[p.PrimaryMemberID].AgeAt(simDate)
				assert.Less(t, math.Abs(float64(gap)), 15.0)
			case insurance.RelChild:
				children++
				assert.Greater(t, byID[p.PrimaryMemberID].AgeAt(simDate)-byID[dep.MemberID].AgeAt(simDate), 18)
			}
		}
		assert.LessOrEqual(t, spouses, 1)
		assert.LessOrEqual(t, children, 3)
		if !p.CoverageType.AllowsSpouse() {
			assert.Zero(t, spouses)
		}
		if !p.CoverageType.AllowsChildren() {
			assert.Zero(t, children)
		}
	}
}

func TestPoliciesSkipMembersWithActivePolicy(t *testing.T) {
	src := random.New(7)
	members := []insurance.Member{
		{ID: 1, IsActive: true, DateOfBirth: simDate.AddDate(-40, 0, 0)},
		{ID: 2, IsActive: true, DateOfBirth: simDate.AddDate(-35, 0, 0)},
	}
	plans := []insurance.CoveragePlan{{ID: 1, Type: insurance.PlanExtras, MonthlyPremium: 40, IsActive: true}}
	existing := []insurance.Policy{{ID: 9, Number: "POL-20240315-00003", PrimaryMemberID: 1, Status: insurance.PolicyActive}}

	drafts, err := Policies(src, members, plans, existing, 5, simDate)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, int64(2), drafts[0].Policy.PrimaryMemberID)
	assert.Equal(t, "POL-20240315-00004", drafts[0].Policy.Number)
}

func TestPoliciesEmptyPreconditions(t *testing.T) {
	src := random.New(8)
	_, err := Policies(src, nil, []insurance.CoveragePlan{{ID: 1, IsActive: true}}, nil, 3, simDate)
	assert.True(t, apperrors.Is(err, apperrors.ErrEmptyPrecondition))

	_, err = Policies(src, []insurance.Member{{ID: 1}}, nil, nil, 3, simDate)
	assert.True(t, apperrors.Is(err, apperrors.ErrEmptyPrecondition))
}

func TestDraftLinksNeverDuplicatePairs(t *testing.T) {
	d := PolicyDraft{
		Policy:     insurance.Policy{PrimaryMemberID: 1, StartDate: simDate},
		Dependants: []Dependant{{MemberID: 2, Relationship: insurance.RelSpouse}, {MemberID: 3, Relationship: insurance.RelChild}},
	}
	pairs := insurance.NewPairSet([]insurance.PolicyMember{{PolicyID: 10, MemberID: 2}})

	links, skipped := d.Links(10, pairs)
	require.Len(t, links, 2)
	assert.Equal(t, insurance.RelSelf, links[0].Relationship)
	assert.Equal(t, []int64{2}, skipped)

	again, skipped := d.Links(10, pairs)
	assert.Empty(t, again)
	assert.Len(t, skipped, 3)
}

func assertClaimInvariants(t *testing.T, c insurance.Claim) {
	t.Helper()
	if c.Type == insurance.ClaimHospital {
		assert.InDelta(t, c.ChargedAmount-c.MedicareAmount-c.ExcessApplied, c.InsuranceAmount, 0.011, c.Number)
	} else {
		assert.Zero(t, c.MedicareAmount, c.Number)
		assert.Zero(t, c.ExcessApplied, c.Number)
		assert.GreaterOrEqual(t, c.InsuranceAmount, random.Round2(c.ChargedAmount*0.5)-0.011, c.Number)
		assert.LessOrEqual(t, c.InsuranceAmount, random.Round2(c.ChargedAmount*0.8)+0.011, c.Number)
	}
	wantGap := math.Max(0, c.ChargedAmount-c.MedicareAmount-c.InsuranceAmount-c.ExcessApplied)
	assert.InDelta(t, wantGap, c.GapAmount, 0.011, c.Number)
	assert.NoError(t, c.CheckDates(simDate))
	assert.Equal(t, "20240315", insurance.DateSegment(c.Number))
	switch c.Status {
	case insurance.ClaimApproved, insurance.ClaimPaid:
		assert.NotNil(t, c.ProcessedDate)
	case insurance.ClaimRejected:
		assert.NotEmpty(t, c.RejectionReason)
		assert.Nil(t, c.PaymentDate)
	}
	if c.Status == insurance.ClaimPaid {
		assert.NotNil(t, c.PaymentDate)
	} else {
		assert.Nil(t, c.PaymentDate)
	}
}

func claimInput(t *testing.T, src *random.Source) ClaimInput {
	members, plans, providers := seededWorld(t, src)
	drafts, err := Policies(src, members, plans, nil, 20, simDate)
	require.NoError(t, err)
	return ClaimInput{
		Policies:  persistDrafts(drafts, 1),
		Providers: providers,
		Sequence:  insurance.NewSequence(insurance.PrefixClaim, simDate, nil),
		SimDate:   simDate,
	}
}

func TestHospitalClaims(t *testing.T) {
	src := random.New(9)
	in := claimInput(t, src)
	claims, err := HospitalClaims(src, in, 300)
	require.NoError(t, err)
	require.Len(t, claims, 300)

	hospitals := map[int64]bool{}
	for _, p := range in.Providers {
		if p.Type == insurance.ProviderHospital {
			hospitals[p.ID] = true
		}
	}
	for _, c := range claims {
		assertClaimInvariants(t, c)
		assert.True(t, hospitals[c.ProviderID])
		assert.NotEmpty(t, c.MBSItemNumber)
		assert.Greater(t, c.MedicareAmount, 0.0)
		assert.LessOrEqual(t, c.ExcessApplied, c.ChargedAmount-c.MedicareAmount+0.01)
	}
	assert.Equal(t, "CLM-20240315-00001", claims[0].Number)
	assert.Equal(t, "CLM-20240315-00300", claims[299].Number)
}

func TestGeneralClaims(t *testing.T) {
	src := random.New(10)
	in := claimInput(t, src)
	claims, err := GeneralClaims(src, in, 300)
	require.NoError(t, err)

	for _, c := range claims {
		assertClaimInvariants(t, c)
		assert.Zero(t, c.MedicareAmount)
		assert.Zero(t, c.ExcessApplied)
		assert.Empty(t, c.MBSItemNumber)
		assert.NotEqual(t, insurance.ClaimHospital, c.Type)
		assert.NotEqual(t, insurance.ClaimMedical, c.Type)
		rate := c.InsuranceAmount / c.ChargedAmount
		assert.GreaterOrEqual(t, rate, 0.49)
		assert.LessOrEqual(t, rate, 0.81)
	}
}

func TestClaimsEmptyPrecondition(t *testing.T) {
	src := random.New(11)
	in := ClaimInput{Sequence: insurance.NewSequence(insurance.PrefixClaim, simDate, nil), SimDate: simDate}
	claims, err := HospitalClaims(src, in, 3)
	assert.Nil(t, claims)
	assert.True(t, apperrors.Is(err, apperrors.ErrEmptyPrecondition))
}

func TestPremiumPaymentsQuarterly(t *testing.T) {
	src := random.New(12)
	due := simDate
	last := simDate.AddDate(0, 0, -90)
	policies := []insurance.Policy{
		{ID: 1, Status: insurance.PolicyActive, Frequency: insurance.FrequencyQuarterly, CurrentPremium: 540.5, PaymentMethod: insurance.PayBPAY, NextPremiumDueDate: &due, LastPremiumPaidDate: &last},
	}
	seq := insurance.NewSequence(insurance.PrefixPayment, simDate, nil)

	results := PremiumPayments(src, policies, simDate, seq)
	require.Len(t, results, 1)
	pay := results[0].Payment
	want := time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, pay.PeriodEnd)
	assert.Equal(t, simDate, pay.PeriodStart)
	assert.Equal(t, 540.5, pay.Amount)
	assert.Equal(t, "PMT-20240315-00001", pay.Reference)
	assert.Equal(t, want, results[0].NextDue)
	assert.Equal(t, simDate, results[0].LastPaid)
	assert.Equal(t, simDate, *policies[0].NextPremiumDueDate, "policy untouched until stored")

	advanced := results[0].Advanced()
	assert.Equal(t, want, *advanced.NextPremiumDueDate)
	assert.Equal(t, simDate, *advanced.LastPremiumPaidDate)
	assert.Equal(t, simDate, *policies[0].NextPremiumDueDate)
}

func TestPremiumPaymentsSelectsDueActiveOnly(t *testing.T) {
	src := random.New(13)
	past := simDate.AddDate(0, 0, -200)
	future := simDate.AddDate(0, 0, 1)
	due := simDate
	policies := []insurance.Policy{
		{ID: 1, Status: insurance.PolicyActive, Frequency: insurance.FrequencyMonthly, NextPremiumDueDate: &past},
		{ID: 2, Status: insurance.PolicyActive, Frequency: insurance.FrequencyMonthly, NextPremiumDueDate: &future},
		{ID: 3, Status: insurance.PolicySuspended, Frequency: insurance.FrequencyMonthly, NextPremiumDueDate: &due},
		{ID: 4, Status: insurance.PolicyActive, Frequency: insurance.FrequencyAnnually},
	}
	results := PremiumPayments(src, policies, simDate, insurance.NewSequence(insurance.PrefixPayment, simDate, nil))
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].Payment.PolicyID)

	next := results[0].NextDue
	assert.Equal(t, past.AddDate(0, 0, 30), next)
	assert.False(t, next.Before(results[0].LastPaid))
	assert.Equal(t, past, *policies[0].NextPremiumDueDate)
}

func TestAssessClaims(t *testing.T) {
	src := random.New(14)
	sub := simDate.AddDate(0, 0, -3)
	proc := simDate.AddDate(0, 0, -1)
	claims := []insurance.Claim{
		{Number: "A", Status: insurance.ClaimSubmitted, SubmissionDate: sub},
		{Number: "B", Status: insurance.ClaimInProcess, SubmissionDate: sub},
		{Number: "C", Status: insurance.ClaimPaid, SubmissionDate: sub, ProcessedDate: &proc, PaymentDate: &proc},
		{Number: "D", Status: insurance.ClaimRejected, SubmissionDate: sub, ProcessedDate: &proc, RejectionReason: "x"},
	}
	results := AssessClaims(src, claims, 0, simDate)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.True(t, r.From.IsPending())
		assert.False(t, r.Claim.Status.IsPending())
		assert.Equal(t, simDate, *r.Claim.ProcessedDate)
		assert.NoError(t, r.Claim.CheckDates(simDate))
	}
	assert.Equal(t, insurance.ClaimPaid, claims[2].Status)

	limited := AssessClaims(src, []insurance.Claim{
		{Status: insurance.ClaimSubmitted, SubmissionDate: sub},
		{Status: insurance.ClaimSubmitted, SubmissionDate: sub},
		{Status: insurance.ClaimSubmitted, SubmissionDate: sub},
	}, 2, simDate)
	assert.Len(t, limited, 2)
}

func TestAssessmentDistribution(t *testing.T) {
	src := random.New(15)
	claims := make([]insurance.Claim, 5000)
	for i := range claims {
		claims[i] = insurance.Claim{Status: insurance.ClaimSubmitted, SubmissionDate: simDate}
	}
	counts := map[insurance.ClaimStatus]int{}
	for _, r := range AssessClaims(src, claims, 0, simDate) {
		counts[r.Claim.Status]++
	}
	assert.InDelta(t, 0.7, float64(counts[insurance.ClaimPaid])/5000, 0.03)
	assert.InDelta(t, 0.2, float64(counts[insurance.ClaimApproved])/5000, 0.03)
}

func TestChangePolicies(t *testing.T) {
	src := random.New(16)
	members, plans, _ := seededWorld(t, src)
	drafts, err := Policies(src, members, plans, nil, 30, simDate)
	require.NoError(t, err)
	policies := persistDrafts(drafts, 1)
	policies[0].Status = insurance.PolicyCancelled

	planByID := map[int64]insurance.CoveragePlan{}
	for _, p := range plans {
		planByID[p.ID] = p
	}

	changes := ChangePolicies(src, policies, plans, 29, simDate)
	require.NotEmpty(t, changes)
	for _, c := range changes {
		assert.NotEqual(t, policies[0].Number, c.Policy.Number)
		switch c.Kind {
		case ChangePlan, ChangeExcess:
			plan := planByID[c.Policy.PlanID]
			assert.Equal(t, Premium(plan, c.Policy.CoverageType, c.Policy.ExcessAmount), c.Policy.CurrentPremium)
		case ChangeCancel, ChangeLapse:
			require.NotNil(t, c.Policy.EndDate)
			assert.Equal(t, simDate, *c.Policy.EndDate)
		case ChangeSuspend:
			assert.Equal(t, insurance.PolicySuspended, c.Policy.Status)
		}
	}
}
