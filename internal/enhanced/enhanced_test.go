package enhanced

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
	"github.com/ausphi/healthsim/internal/storage/memstore"
)

var simDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time { return simDate.AddDate(0, 0, offset) }

type claimSpec struct {
	member, provider, policy int64
	created                  time.Time
	service                  time.Time
	charged                  float64
	status                   insurance.ClaimStatus
	typ                      insurance.ClaimType
}

func buildSnapshot(specs ...claimSpec) *Snapshot {
	snap := &Snapshot{
		Members: []insurance.Member{
			{ID: 1, MembershipNumber: "MBR-00000001", IsActive: true},
			{ID: 2, MembershipNumber: "MBR-00000002", IsActive: true},
		},
		Plans: []insurance.CoveragePlan{
			{ID: 1, Type: insurance.PlanHospital, IsActive: true},
			{ID: 2, Type: insurance.PlanExtras, IsActive: true},
		},
		Policies: []insurance.Policy{
			{ID: 1, Number: "POL-20230101-00001", PrimaryMemberID: 1, PlanID: 1, Status: insurance.PolicyActive, CurrentPremium: 300},
			{ID: 2, Number: "POL-20230101-00002", PrimaryMemberID: 2, PlanID: 2, Status: insurance.PolicyActive, CurrentPremium: 60},
		},
		Providers: []insurance.Provider{
			{ID: 1, Number: "2345671A", Type: insurance.ProviderHospital, IsActive: true},
			{ID: 2, Number: "3456782B", Type: insurance.ProviderDentist, IsActive: true},
		},
	}
	seqs := map[string]*insurance.Sequence{}
	for i, s := range specs {
		key := s.created.Format("20060102")
		if seqs[key] == nil {
			seqs[key] = insurance.NewSequence(insurance.PrefixClaim, s.created, nil)
		}
		policy := s.policy
		if policy == 0 {
			policy = s.member
		}
		typ := s.typ
		if typ == "" {
			typ = insurance.ClaimDental
		}
		status := s.status
		if status == "" {
			status = insurance.ClaimSubmitted
		}
		c := insurance.Claim{
			ID:             int64(i + 1),
			Number:         seqs[key].Next(),
			PolicyID:       policy,
			MemberID:       s.member,
			ProviderID:     s.provider,
			ServiceDate:    s.service,
			SubmissionDate: s.service,
			Type:           typ,
			Status:         status,
		}
		c.Apply(insurance.Amounts{Charged: s.charged, Insurance: s.charged * 0.6})
		if status == insurance.ClaimApproved {
			c.ProcessedDate = insurance.DatePtr(s.service)
		}
		snap.Claims = append(snap.Claims, c)
	}
	return snap
}

func countType(inds []insurance.FraudIndicator, t string) int {
	n := 0
	for _, i := range inds {
		if i.Type == t {
			n++
		}
	}
	return n
}

func TestDetectFraudDuplicates(t *testing.T) {
	snap := buildSnapshot(
		claimSpec{member: 1, provider: 2, created: day(-5), service: day(-10), charged: 180},
		claimSpec{member: 1, provider: 2, created: simDate, service: day(-10), charged: 180},
		claimSpec{member: 2, provider: 2, created: simDate, service: day(-3), charged: 95},
	)
	res := DetectFraud(random.New(1), snap, simDate, 0)

	require.Equal(t, 1, countType(res.Indicators, insurance.FraudDuplicateClaim))
	ind := res.Indicators[0]
	assert.Equal(t, int64(2), *ind.ClaimID)
	assert.Contains(t, ind.Description, snap.Claims[0].Number)

	require.Len(t, res.Claims, 1)
	assert.True(t, *res.Claims[0].IsFlaggedForReview)
	assert.GreaterOrEqual(t, *res.Claims[0].FraudRiskScore, 0.9)
}

func TestDetectFraudHighFrequency(t *testing.T) {
	var specs []claimSpec
	for i := 0; i < 5; i++ {
		specs = append(specs, claimSpec{member: 1, provider: 2, created: day(-i), service: day(-i - 1), charged: 100 + float64(i)})
	}
	specs = append(specs, claimSpec{member: 2, provider: 2, created: simDate, service: day(-2), charged: 90})
	res := DetectFraud(random.New(2), buildSnapshot(specs...), simDate, 0)

	require.Equal(t, 1, countType(res.Indicators, insurance.FraudHighFrequency))
	for _, ind := range res.Indicators {
		if ind.Type == insurance.FraudHighFrequency {
			assert.Equal(t, int64(1), *ind.MemberID)
			assert.Equal(t, 0.5, ind.RiskScore)
		}
	}
}

func TestDetectFraudOverbilling(t *testing.T) {
	var specs []claimSpec
	for i := 0; i < 3; i++ {
		specs = append(specs, claimSpec{member: 1, provider: 1, created: day(-i), service: day(-i - 1), charged: 3000, typ: insurance.ClaimHospital})
	}
	for i := 0; i < 10; i++ {
		specs = append(specs, claimSpec{member: 2, provider: 2, created: day(-20 - i), service: day(-25 - i), charged: 100})
	}
	res := DetectFraud(random.New(3), buildSnapshot(specs...), simDate, 0)

	require.Equal(t, 1, countType(res.Indicators, insurance.FraudProviderOverbilling))
	for _, ind := range res.Indicators {
		if ind.Type == insurance.FraudProviderOverbilling {
			assert.Equal(t, int64(1), *ind.ProviderID)
			assert.Greater(t, ind.RiskScore, 0.0)
			assert.LessOrEqual(t, ind.RiskScore, 1.0)
		}
	}
}

func TestDetectFraudAnomalyScoresSample(t *testing.T) {
	var specs []claimSpec
	for i := 0; i < 10; i++ {
		specs = append(specs, claimSpec{member: 2, provider: 2, created: simDate, service: day(-i - 40), charged: 100 + float64(i)})
	}
	snap := buildSnapshot(specs...)
	res := DetectFraud(random.New(4), snap, simDate, 4)

	require.Len(t, res.Claims, 4)
	for _, c := range res.Claims {
		require.NotNil(t, c.FraudRiskScore)
		assert.GreaterOrEqual(t, *c.FraudRiskScore, 0.0)
		assert.LessOrEqual(t, *c.FraudRiskScore, 1.0)
		assert.Equal(t, *c.FraudRiskScore >= 0.8, *c.IsFlaggedForReview)
	}
}

func TestDetectFraudNothingCreatedToday(t *testing.T) {
	snap := buildSnapshot(claimSpec{member: 1, provider: 2, created: day(-1), service: day(-3), charged: 100})
	res := DetectFraud(random.New(5), snap, simDate, 10)
	assert.Empty(t, res.Indicators)
	assert.Empty(t, res.Claims)
}

func TestFinancialTransactions(t *testing.T) {
	snap := buildSnapshot(
		claimSpec{member: 1, provider: 1, created: day(-2), service: day(-4), charged: 500, status: insurance.ClaimApproved},
		claimSpec{member: 2, provider: 2, created: day(-2), service: day(-4), charged: 80, status: insurance.ClaimRejected},
	)
	snap.Payments = []insurance.PremiumPayment{
		{ID: 1, PolicyID: 1, PaymentDate: simDate, Amount: 300, Status: insurance.PaymentSuccessful, Reference: "PMT-20240315-00001"},
		{ID: 2, PolicyID: 2, PaymentDate: simDate, Amount: 60, Status: insurance.PaymentFailed, Reference: "PMT-20240315-00002"},
		{ID: 3, PolicyID: 2, PaymentDate: day(-30), Amount: 60, Status: insurance.PaymentSuccessful, Reference: "PMT-20240214-00001"},
	}
	seq := insurance.NewSequence(insurance.PrefixTransaction, simDate, []string{"TXN-20240315-00007"})

	res := FinancialTransactions(random.New(6), snap, simDate, 4, seq)
	require.Empty(t, res.Failures)
	require.Len(t, res.Transactions, 6)

	receipt := res.Transactions[0]
	assert.Equal(t, insurance.TxnPremiumReceipt, receipt.Type)
	assert.Equal(t, "TXN-20240315-00008", receipt.Reference)
	assert.Equal(t, 300.0, receipt.Amount)
	assert.Equal(t, int64(1), *receipt.MemberID)

	payment := res.Transactions[1]
	assert.Equal(t, insurance.TxnClaimPayment, payment.Type)
	assert.Equal(t, 300.0, payment.Amount)
	require.Len(t, res.PaidClaims, 1)
	paid := res.PaidClaims[0]
	assert.Equal(t, insurance.ClaimPaid, paid.Status)
	assert.Equal(t, simDate, *paid.PaymentDate)
	assert.NoError(t, paid.CheckDates(simDate))

	for _, tx := range res.Transactions[2:] {
		assert.Contains(t, []insurance.TransactionType{insurance.TxnAdjustment, insurance.TxnRefund}, tx.Type)
		if tx.Type == insurance.TxnRefund {
			assert.Less(t, tx.Amount, 0.0)
		}
	}
	assert.Equal(t, "TXN-20240315-00013", res.Transactions[5].Reference)
}

func TestProviderBilling(t *testing.T) {
	var specs []claimSpec
	for i := 0; i < 6; i++ {
		status := insurance.ClaimPaid
		if i < 3 {
			status = insurance.ClaimRejected
		}
		specs = append(specs, claimSpec{member: 2, provider: 2, created: day(-i), service: day(-i - 1), charged: 100, status: status})
	}
	specs = append(specs, claimSpec{member: 1, provider: 1, created: day(-400), service: day(-400), charged: 2000})
	snap := buildSnapshot(specs...)

	updated := ProviderBilling(random.New(7), snap, simDate)
	require.Len(t, updated, 1)
	p := updated[0]
	assert.Equal(t, int64(2), p.ID)
	assert.Equal(t, 100.0, *p.AverageClaimValue)
	assert.Equal(t, insurance.FrequencyMedium, p.ClaimFrequencyRating)
	assert.Equal(t, 0.5, *p.BillingPatternScore)
	assert.Equal(t, 0.9, *p.SpecialtyRiskFactor)
	assert.InDelta(t, 0.5, *p.ComplianceScore, 0.051)
}

func TestClaimPatterns(t *testing.T) {
	var specs []claimSpec
	for i := 0; i < 30; i++ {
		specs = append(specs, claimSpec{member: 1, provider: 2, created: day(-i * 10), service: day(-i*10 - 1), charged: 120})
	}
	specs = append(specs, claimSpec{member: 1, provider: 1, created: simDate, service: day(-5), charged: 4000, typ: insurance.ClaimHospital})
	specs = append(specs, claimSpec{member: 2, provider: 2, created: day(-3), service: day(-4), charged: 50})
	snap := buildSnapshot(specs...)

	res := ClaimPatterns(random.New(8), snap, simDate)
	require.Len(t, res.Patterns, 2)

	byType := map[insurance.ClaimType]insurance.ClaimPattern{}
	for _, p := range res.Patterns {
		assert.Equal(t, int64(1), p.MemberID)
		assert.GreaterOrEqual(t, p.TrendFactor, 0.8)
		assert.LessOrEqual(t, p.TrendFactor, 1.2)
		byType[p.ClaimType] = p
	}
	dental := byType[insurance.ClaimDental]
	assert.Equal(t, 30, dental.ClaimCount)
	assert.Equal(t, 2.5, dental.ClaimsPerMonth)
	assert.Equal(t, insurance.PatternFrequent, dental.PatternType)
	assert.Equal(t, insurance.PatternHighValue, byType[insurance.ClaimHospital].PatternType)

	require.Len(t, res.Members, 1)
	assert.Equal(t, insurance.FrequencyHigh, res.Members[0].ClaimFrequencyTier)
}

func TestClassifyPattern(t *testing.T) {
	assert.Equal(t, insurance.PatternOccasional, classifyPattern(2, 0.17, 150))
	assert.Equal(t, insurance.PatternRegular, classifyPattern(6, 0.5, 150))
	assert.Equal(t, insurance.PatternFrequent, classifyPattern(24, 2, 150))
	assert.Equal(t, insurance.PatternHighValue, classifyPattern(24, 2, 1500))
}

func TestActuarialMetricsMonthEndOnly(t *testing.T) {
	snap := buildSnapshot(
		claimSpec{member: 1, provider: 1, created: day(-5), service: day(-6), charged: 500, status: insurance.ClaimPaid, typ: insurance.ClaimHospital},
	)
	snap.Payments = []insurance.PremiumPayment{
		{ID: 1, PolicyID: 1, PaymentDate: day(-2), Amount: 300, Status: insurance.PaymentSuccessful},
	}
	src := random.New(9)

	assert.Nil(t, ActuarialMetrics(src, snap, simDate, false))

	metrics := ActuarialMetrics(src, snap, simDate, true)
	require.NotEmpty(t, metrics)
	byKey := map[string]insurance.ActuarialMetric{}
	for _, m := range metrics {
		byKey[string(m.PlanType)+"/"+m.MetricType] = m
	}
	loss := byKey["Hospital/"+insurance.MetricLossRatio]
	assert.InDelta(t, 1.0, loss.Value, 0.051)
	assert.Equal(t, 1000.0, byKey["Hospital/"+insurance.MetricClaimFrequency].Value)
	assert.Equal(t, 500.0, byKey["Hospital/"+insurance.MetricAverageClaim].Value)
	assert.Equal(t, 0.0, byKey["Extras/"+insurance.MetricLapseRate].Value)
	_, hasExtrasLoss := byKey["Extras/"+insurance.MetricLossRatio]
	assert.False(t, hasExtrasLoss)

	monthEnd := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	assert.NotEmpty(t, ActuarialMetrics(src, snap, monthEnd, false))
}

func TestLossRatioIsClamped(t *testing.T) {
	snap := buildSnapshot(
		claimSpec{member: 1, provider: 1, created: day(-5), service: day(-6), charged: 50000, status: insurance.ClaimPaid, typ: insurance.ClaimHospital},
	)
	snap.Payments = []insurance.PremiumPayment{{ID: 1, PolicyID: 1, PaymentDate: day(-2), Amount: 100, Status: insurance.PaymentSuccessful}}
	for _, m := range ActuarialMetrics(random.New(10), snap, simDate, true) {
		if m.MetricType == insurance.MetricLossRatio {
			assert.Equal(t, 1.5, m.Value)
		}
	}
}

func seedStore(t *testing.T, snap *Snapshot) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()
	for i := range snap.Members {
		require.NoError(t, s.InsertMember(ctx, &snap.Members[i]))
	}
	for i := range snap.Plans {
		require.NoError(t, s.InsertPlan(ctx, &snap.Plans[i]))
	}
	for i := range snap.Providers {
		require.NoError(t, s.InsertProvider(ctx, &snap.Providers[i]))
	}
	for i := range snap.Policies {
		require.NoError(t, s.InsertPolicy(ctx, &snap.Policies[i]))
	}
	for i := range snap.Claims {
		require.NoError(t, s.InsertClaim(ctx, &snap.Claims[i]))
	}
	for i := range snap.Payments {
		require.NoError(t, s.InsertPayment(ctx, &snap.Payments[i]))
	}
	return s
}

func TestOrchestratorRun(t *testing.T) {
	snap := buildSnapshot(
		claimSpec{member: 1, provider: 2, created: day(-5), service: day(-10), charged: 180},
		claimSpec{member: 1, provider: 2, created: simDate, service: day(-10), charged: 180},
		claimSpec{member: 2, provider: 1, created: simDate, service: day(-2), charged: 900, status: insurance.ClaimApproved, typ: insurance.ClaimHospital},
	)
	snap.Payments = []insurance.PremiumPayment{
		{PolicyID: 1, PaymentDate: simDate, Amount: 300, Status: insurance.PaymentSuccessful, Reference: "PMT-20240315-00001"},
	}
	store := seedStore(t, snap)

	cfg := DefaultConfig()
	cfg.ForceActuarial = true
	res, err := New(store, random.New(11), zerolog.Nop()).Run(context.Background(), simDate, cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	assert.GreaterOrEqual(t, res.Counts[CountFraudIndicators], 1)
	assert.Equal(t, 1, res.Counts[CountClaimsPaid])
	assert.Equal(t, 7, res.Counts[CountTransactions])
	assert.Equal(t, 2, res.Counts[CountProviders])
	assert.Greater(t, res.Counts[CountMetrics], 0)
	assert.Len(t, store.Transactions(), 7)
	assert.Len(t, store.FraudIndicators(), res.Counts[CountFraudIndicators])

	claims, err := store.Claims(context.Background())
	require.NoError(t, err)
	assert.Equal(t, insurance.ClaimPaid, claims[2].Status)
}

func TestOrchestratorIsolatesFailures(t *testing.T) {
	snap := buildSnapshot(
		claimSpec{member: 1, provider: 2, created: day(-5), service: day(-10), charged: 180},
		claimSpec{member: 1, provider: 2, created: simDate, service: day(-10), charged: 180},
	)
	store := seedStore(t, snap)
	store.Fault = func(op, table string) error {
		if table == insurance.TableFraudIndicators {
			return assert.AnError
		}
		return nil
	}

	cfg := DefaultConfig()
	cfg.Actuarial = false
	res, err := New(store, random.New(12), zerolog.Nop()).Run(context.Background(), simDate, cfg)
	require.NoError(t, err)
	assert.Contains(t, res.Errors, GenFraud)
	assert.NotContains(t, res.Errors, GenTransactions)
	assert.Equal(t, 5, res.Counts[CountTransactions])
	assert.Equal(t, 1, res.Counts[CountProviders])
}

func TestOrchestratorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(memstore.New(), random.New(13), zerolog.Nop()).Run(ctx, simDate, DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
