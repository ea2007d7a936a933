package simulation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausphi/healthsim/internal/enhanced"
	"github.com/ausphi/healthsim/internal/generator"
	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/events"
	"github.com/ausphi/healthsim/internal/shared/outcome"
	"github.com/ausphi/healthsim/internal/shared/random"
	"github.com/ausphi/healthsim/internal/shared/types"
	"github.com/ausphi/healthsim/internal/storage/memstore"
)

var simDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

// seedWorld stores five adult members, two plans and three providers, one
// of them a hospital.
func seedWorld(t *testing.T, store *memstore.Store) {
	t.Helper()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		m := insurance.Member{
			MembershipNumber: fmt.Sprintf("MBR-%08d", i),
			FirstName:        "Member",
			LastName:         fmt.Sprint(i),
			DateOfBirth:      time.Date(1970+i*3, 6, 1, 0, 0, 0, 0, time.UTC),
			Gender:           insurance.GenderFemale,
			RebateTier:       insurance.RebateBase,
			JoinDate:         simDate.AddDate(-2, 0, 0),
			IsActive:         true,
		}
		require.NoError(t, store.InsertMember(ctx, &m))
	}

	for _, p := range generator.Plans(random.New(100), 2, simDate, nil) {
		require.NoError(t, store.InsertPlan(ctx, &p))
	}

	providers := []insurance.Provider{
		{Number: types.ProviderNumber("2345671A"), Name: "Northside Private Hospital", Type: insurance.ProviderHospital, IsActive: true},
		{Number: types.ProviderNumber("2345672B"), Name: "Bright Smile Dental", Type: insurance.ProviderDentist, IsActive: true},
		{Number: types.ProviderNumber("2345673C"), Name: "Coastal Physio", Type: insurance.ProviderPhysiotherapist, IsActive: true},
	}
	for i := range providers {
		require.NoError(t, store.InsertProvider(ctx, &providers[i]))
	}
}

func newSim(store *memstore.Store, seed uint64, opts ...Option) *Simulation {
	return New(store, random.New(seed), opts...)
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedWorld(t, store)

	sim := newSim(store, 42)
	require.NoError(t, sim.LoadData(ctx))

	r := sim.CreatePolicies(ctx, simDate, 3)
	require.Empty(t, r.Failures())
	assert.Equal(t, 3, r.CountEntity(outcome.Inserted, EntityPolicy))
	assert.GreaterOrEqual(t, r.CountEntity(outcome.Inserted, EntityPolicyMember), 3)

	policies, err := store.Policies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 3)
	for i, p := range policies {
		assert.Equal(t, fmt.Sprintf("POL-20240315-%05d", i+1), p.Number)
		assert.Equal(t, insurance.PolicyActive, p.Status)
	}

	links, err := store.PolicyMembers(ctx)
	require.NoError(t, err)
	seen := map[[2]int64]bool{}
	selfLinks := 0
	for _, l := range links {
		key := [2]int64{l.PolicyID, l.MemberID}
		assert.False(t, seen[key], "duplicate pair %v", key)
		seen[key] = true
		if l.Relationship == insurance.RelSelf {
			selfLinks++
		}
	}
	assert.Equal(t, 3, selfLinks)

	hr := sim.GenerateHospitalClaims(ctx, simDate, 2)
	gr := sim.GenerateGeneralClaims(ctx, simDate, 2)
	assert.Equal(t, 2, hr.Count(outcome.Inserted))
	assert.Equal(t, 2, gr.Count(outcome.Inserted))

	claims, err := store.Claims(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 4)
	for i, c := range claims {
		assert.Equal(t, fmt.Sprintf("CLM-20240315-%05d", i+1), c.Number)
		assert.NoError(t, c.CheckDates(simDate))
		assert.NotZero(t, c.PolicyID)
	}
	assert.Equal(t, int64(1), claims[0].ProviderID, "hospital claims bill the hospital")
	assert.Equal(t, int64(1), claims[1].ProviderID)
	for _, c := range claims[2:] {
		assert.NotEqual(t, insurance.ClaimHospital, c.Type)
		assert.NotEqual(t, int64(1), c.ProviderID)
	}
}

func TestQuarterlyPremiumPayment(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	due := simDate
	last := simDate.AddDate(0, 0, -90)
	p := insurance.Policy{
		Number:              "POL-20231216-00001",
		PrimaryMemberID:     1,
		PlanID:              1,
		Status:              insurance.PolicyActive,
		Frequency:           insurance.FrequencyQuarterly,
		CurrentPremium:      612.4,
		PaymentMethod:       insurance.PayDirectDebit,
		LastPremiumPaidDate: &last,
		NextPremiumDueDate:  &due,
	}
	require.NoError(t, store.InsertPolicy(ctx, &p))

	sim := newSim(store, 7)
	require.NoError(t, sim.LoadData(ctx))
	r := sim.ProcessPremiumPayments(ctx, simDate)
	require.Empty(t, r.Failures())
	assert.Equal(t, 1, r.CountEntity(outcome.Inserted, EntityPayment))
	assert.Equal(t, 1, r.CountEntity(outcome.Updated, EntityPolicy))

	payments, _ := store.Payments(ctx)
	require.Len(t, payments, 1)
	periodEnd := time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "PMT-20240315-00001", payments[0].Reference)
	assert.Equal(t, 612.4, payments[0].Amount)
	assert.Equal(t, simDate, payments[0].PeriodStart)
	assert.Equal(t, periodEnd, payments[0].PeriodEnd)

	policies, _ := store.Policies(ctx)
	assert.Equal(t, periodEnd, *policies[0].NextPremiumDueDate)
	assert.Equal(t, simDate, *policies[0].LastPremiumPaidDate)

	// Nothing is due the next day.
	require.NoError(t, sim.LoadData(ctx))
	again := sim.ProcessPremiumPayments(ctx, simDate.AddDate(0, 0, 1))
	assert.Zero(t, again.Count(outcome.Inserted))
}

func TestPaymentFailureSkipsPolicyUpdate(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	due := simDate
	p := insurance.Policy{
		Number:             "POL-20231216-00001",
		Status:             insurance.PolicyActive,
		Frequency:          insurance.FrequencyMonthly,
		CurrentPremium:     100,
		NextPremiumDueDate: &due,
	}
	require.NoError(t, store.InsertPolicy(ctx, &p))
	store.Fault = func(op, table string) error {
		if table == insurance.TablePremiumPayments {
			return errors.New("deadlock victim")
		}
		return nil
	}

	sim := newSim(store, 7)
	require.NoError(t, sim.LoadData(ctx))
	r := sim.ProcessPremiumPayments(ctx, simDate)
	assert.Equal(t, 1, r.CountEntity(outcome.Failed, EntityPayment))
	assert.Equal(t, 1, r.CountEntity(outcome.Skipped, EntityPolicy))
	assert.Zero(t, r.Count(outcome.Updated))

	policies, _ := store.Policies(ctx)
	assert.Equal(t, simDate, *policies[0].NextPremiumDueDate)
}

func dayOptions() DailyOptions {
	return DailyOptions{
		NewMembers:       4,
		NewProviders:     2,
		NewPolicies:      2,
		MemberUpdates:    1,
		ProviderUpdates:  1,
		EndAgreementsPct: 2,
		PolicyChanges:    1,
		HospitalClaims:   2,
		GeneralClaims:    3,
	}
}

func TestRunDailyTwiceContinuesSequences(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedWorld(t, store)
	pub := events.NewMemory()
	sim := newSim(store, 5, WithPublisher(pub))

	opts := dayOptions()
	opts.SkipAssessments = true

	first, err := sim.RunDaily(ctx, simDate, opts)
	require.NoError(t, err)
	assert.Len(t, first.Steps, 11)
	assert.Equal(t, 5, first.TotalEntity(outcome.Inserted, EntityClaim))
	assert.Equal(t, 4, first.Step(StepAddMembers).Count(outcome.Inserted))
	assert.Zero(t, first.Total(outcome.Failed))

	second, err := sim.RunDaily(ctx, simDate, opts)
	require.NoError(t, err)
	assert.Equal(t, 5, second.TotalEntity(outcome.Inserted, EntityClaim))

	claims, _ := store.Claims(ctx)
	require.Len(t, claims, 10)
	numbers := map[string]bool{}
	for _, c := range claims {
		assert.False(t, numbers[c.Number], c.Number)
		numbers[c.Number] = true
		assert.NoError(t, c.CheckDates(simDate))
	}
	assert.True(t, numbers["CLM-20240315-00010"])

	members, _ := store.Members(ctx)
	assert.Len(t, members, 13)
	assert.Equal(t, "MBR-00000013", members[12].MembershipNumber)

	completed := pub.OfType(events.TypeDayCompleted)
	require.Len(t, completed, 2)
	summary, ok := completed[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2024-03-15", summary["date"])
}

func TestRunDailyAssessesPendingClaims(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedWorld(t, store)
	sim := newSim(store, 9)

	opts := DailyOptions{NewPolicies: 3, HospitalClaims: 10, GeneralClaims: 10}
	_, err := sim.RunDaily(ctx, simDate, opts)
	require.NoError(t, err)

	next := simDate.AddDate(0, 0, 3)
	res, err := sim.RunDaily(ctx, next, DailyOptions{})
	require.NoError(t, err)
	r := res.Step(StepClaimAssessments)
	require.NotNil(t, r)
	assert.Empty(t, r.Failures())

	claims, _ := store.Claims(ctx)
	for _, c := range claims {
		assert.NoError(t, c.CheckDates(next), c.Number)
		if c.Status == insurance.ClaimRejected {
			assert.NotEmpty(t, c.RejectionReason)
		}
	}
}

func TestRunDailyEmptyStoreWarns(t *testing.T) {
	ctx := context.Background()
	sim := newSim(memstore.New(), 1)

	res, err := sim.RunDaily(ctx, simDate, DailyOptions{NewPolicies: 2, HospitalClaims: 1, MemberUpdates: 1})
	require.NoError(t, err)
	assert.Zero(t, res.Total(outcome.Failed))
	assert.NotEmpty(t, res.Step(StepCreatePolicies).Warning)
	assert.Contains(t, res.Step(StepHospitalClaims).Warning, "no active policies available")
	assert.Contains(t, res.Step(StepUpdateMembers).Warning, "no members available")
	assert.Contains(t, res.Warnings, res.Step(StepPremiumPayments).Warning)
}

func TestRunDailyFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedWorld(t, store)
	sim := newSim(store, 3)
	require.NoError(t, sim.LoadData(ctx))
	require.Empty(t, sim.CreatePolicies(ctx, simDate, 3).Failures())

	store.Fault = func(op, table string) error {
		if op == "insert" && table == insurance.TableClaims {
			return errors.New("connection reset")
		}
		return nil
	}
	res, err := sim.RunDaily(ctx, simDate, DailyOptions{NewMembers: 2, HospitalClaims: 2, GeneralClaims: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalEntity(outcome.Failed, EntityClaim))
	assert.Equal(t, 2, res.TotalEntity(outcome.Inserted, EntityMember))

	claims, _ := store.Claims(ctx)
	assert.Empty(t, claims)
}

func TestRunDailyStrictModeAborts(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedWorld(t, store)
	pub := events.NewMemory()
	sim := newSim(store, 3, WithStrictMode(true), WithPublisher(pub))
	require.NoError(t, sim.LoadData(ctx))
	require.Empty(t, sim.CreatePolicies(ctx, simDate, 3).Failures())

	store.Fault = func(op, table string) error {
		if op == "insert" && table == insurance.TableClaims {
			return errors.New("connection reset")
		}
		return nil
	}
	res, err := sim.RunDaily(ctx, simDate, DailyOptions{HospitalClaims: 2, GeneralClaims: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), StepHospitalClaims)
	assert.Nil(t, res.Step(StepGeneralClaims))
	assert.Empty(t, pub.OfType(events.TypeDayCompleted))
}

func TestRunDailyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim := newSim(memstore.New(), 1)

	res, err := sim.RunDaily(ctx, simDate, DefaultDailyOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Steps)
}

func TestRunDailyWithEnhanced(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedWorld(t, store)
	pub := events.NewMemory()
	sim := newSim(store, 11, WithPublisher(pub))

	opts := DailyOptions{NewPolicies: 3, HospitalClaims: 3, GeneralClaims: 5, Enhanced: true}
	opts.EnhancedConfig.Transactions = true
	opts.EnhancedConfig.Billing = true

	res, err := sim.RunDaily(ctx, simDate, opts)
	require.NoError(t, err)
	require.NotNil(t, res.Enhanced)
	assert.Empty(t, res.Enhanced.Errors)
	assert.Positive(t, res.Enhanced.Counts[enhanced.CountProviders])
	assert.Len(t, pub.OfType(events.TypeEnhancedCompleted), 1)
}

func TestCounts(t *testing.T) {
	store := memstore.New()
	seedWorld(t, store)
	sim := newSim(store, 1)
	require.NoError(t, sim.LoadData(context.Background()))

	c := sim.Counts()
	assert.Equal(t, 5, c["members"])
	assert.Equal(t, 2, c["plans"])
	assert.Equal(t, 3, c["providers"])
	assert.Zero(t, c["claims"])
}

func failOn(op, table string) func(string, string) error {
	return func(o, t string) error {
		if o == op && t == table {
			return errors.New("connection reset")
		}
		return nil
	}
}

func TestFailedPaymentLeavesPolicyDue(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedWorld(t, store)
	due := simDate
	p := insurance.Policy{
		Number:             "POL-20240214-00001",
		PrimaryMemberID:    1,
		PlanID:             1,
		Status:             insurance.PolicyActive,
		CoverageType:       insurance.CoverSingle,
		Frequency:          insurance.FrequencyMonthly,
		PaymentMethod:      insurance.PayDirectDebit,
		CurrentPremium:     150,
		NextPremiumDueDate: &due,
	}
	require.NoError(t, store.InsertPolicy(ctx, &p))
	store.Fault = failOn("insert", insurance.TablePremiumPayments)

	sim := newSim(store, 21)
	require.NoError(t, sim.LoadData(ctx))
	r := sim.ProcessPremiumPayments(ctx, simDate)
	require.Equal(t, 1, r.CountEntity(outcome.Failed, EntityPayment))
	assert.Equal(t, simDate, *sim.policies[0].NextPremiumDueDate)
	assert.Nil(t, sim.policies[0].LastPremiumPaidDate)

	// A later write of the same policy must not record it as paid.
	store.Fault = nil
	for i := 0; i < 5; i++ {
		sim.ProcessPolicyChanges(ctx, simDate, 1)
	}
	policies, _ := store.Policies(ctx)
	require.Len(t, policies, 1)
	assert.Equal(t, simDate, *policies[0].NextPremiumDueDate)
	assert.Nil(t, policies[0].LastPremiumPaidDate)
	payments, _ := store.Payments(ctx)
	assert.Empty(t, payments)
}

func TestFailedPolicyUpdateAfterPaymentKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	due := simDate
	p := insurance.Policy{
		Number:             "POL-20240214-00001",
		Status:             insurance.PolicyActive,
		Frequency:          insurance.FrequencyMonthly,
		CurrentPremium:     150,
		NextPremiumDueDate: &due,
	}
	require.NoError(t, store.InsertPolicy(ctx, &p))
	store.Fault = failOn("update", insurance.TablePolicies)

	sim := newSim(store, 21)
	require.NoError(t, sim.LoadData(ctx))
	r := sim.ProcessPremiumPayments(ctx, simDate)
	assert.Equal(t, 1, r.CountEntity(outcome.Inserted, EntityPayment))
	assert.Equal(t, 1, r.CountEntity(outcome.Failed, EntityPolicy))

	policies, _ := store.Policies(ctx)
	assert.Equal(t, policies, sim.policies)
}

func TestFailedUpdatesRestoreSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seedWorld(t, store)

	sub := simDate.AddDate(0, 0, -5)
	for i := 1; i <= 3; i++ {
		c := insurance.Claim{
			Number:         fmt.Sprintf("CLM-20240310-%05d", i),
			PolicyID:       1,
			MemberID:       1,
			ProviderID:     2,
			Status:         insurance.ClaimSubmitted,
			ServiceDate:    sub,
			SubmissionDate: sub,
			ChargedAmount:  200,
		}
		require.NoError(t, store.InsertClaim(ctx, &c))
	}

	tests := []struct {
		name  string
		table string
		run   func(sim *Simulation) *outcome.Report
		check func(t *testing.T, sim *Simulation)
	}{
		{
			name:  "claims",
			table: insurance.TableClaims,
			run:   func(sim *Simulation) *outcome.Report { return sim.ProcessClaimAssessments(ctx, simDate, 0) },
			check: func(t *testing.T, sim *Simulation) {
				stored, _ := store.Claims(ctx)
				assert.Equal(t, stored, sim.claims)
				for _, c := range sim.claims {
					assert.Equal(t, insurance.ClaimSubmitted, c.Status)
					assert.Nil(t, c.ProcessedDate)
				}
			},
		},
		{
			name:  "members",
			table: insurance.TableMembers,
			run:   func(sim *Simulation) *outcome.Report { return sim.UpdateMembers(ctx, 3) },
			check: func(t *testing.T, sim *Simulation) {
				stored, _ := store.Members(ctx)
				assert.Equal(t, stored, sim.members)
			},
		},
		{
			name:  "providers",
			table: insurance.TableProviders,
			run:   func(sim *Simulation) *outcome.Report { return sim.UpdateProviders(ctx, simDate, 3) },
			check: func(t *testing.T, sim *Simulation) {
				stored, _ := store.Providers(ctx)
				assert.Equal(t, stored, sim.providers)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.Fault = failOn("update", tt.table)
			defer func() { store.Fault = nil }()

			sim := newSim(store, 33)
			require.NoError(t, sim.LoadData(ctx))
			r := tt.run(sim)
			require.NotEmpty(t, r.Failures())
			assert.Zero(t, r.Count(outcome.Updated))
			tt.check(t, sim)
		})
	}
}
