package enhanced

import (
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
)

var planTypes = []insurance.PlanType{insurance.PlanHospital, insurance.PlanExtras, insurance.PlanCombined}

// ActuarialMetrics computes month-to-date portfolio statistics per plan type:
// loss ratio (benefits over premiums with noise in [-0.05, 0.05], clamped to
// [0, 1.5]), claim frequency per 1000 policies, average claim size and lapse
// rate. It returns nothing unless date is the last day of its month or force
// is set.
func ActuarialMetrics(src *random.Source, snap *Snapshot, date time.Time, force bool) []insurance.ActuarialMetric {
	date = insurance.DateOf(date)
	if !force && !insurance.IsLastDayOfMonth(date) {
		return nil
	}
	monthStart := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
	inMonth := func(t time.Time) bool { return !t.Before(monthStart) && !t.After(date) }

	planTypeOf := snap.planTypes()
	policyType := map[int64]insurance.PlanType{}
	type portfolio struct {
		policies, inForce, lapsed int
		premiums, benefits        float64
		claims                    int
		charged                   float64
	}
	stats := map[insurance.PlanType]*portfolio{}
	for _, t := range planTypes {
		stats[t] = &portfolio{}
	}

	for _, p := range snap.Policies {
		t, ok := planTypeOf[p.PlanID]
		if !ok {
			continue
		}
		policyType[p.ID] = t
		s := stats[t]
		s.policies++
		if p.Status == insurance.PolicyActive || p.Status == insurance.PolicySuspended {
			s.inForce++
		}
		if (p.Status == insurance.PolicyLapsed || p.Status == insurance.PolicyCancelled) && p.EndDate != nil && inMonth(*p.EndDate) {
			s.lapsed++
		}
	}
	for _, pay := range snap.Payments {
		t, ok := policyType[pay.PolicyID]
		if ok && pay.Status == insurance.PaymentSuccessful && inMonth(pay.PaymentDate) {
			stats[t].premiums += pay.Amount
		}
	}
	for _, c := range snap.Claims {
		t, ok := policyType[c.PolicyID]
		if !ok || !inMonth(c.SubmissionDate) {
			continue
		}
		s := stats[t]
		s.claims++
		s.charged += c.ChargedAmount
		if c.Status == insurance.ClaimApproved || c.Status == insurance.ClaimPaid {
			s.benefits += c.InsuranceAmount
		}
	}

	var out []insurance.ActuarialMetric
	metric := func(t insurance.PlanType, kind string, v float64, n int) {
		out = append(out, insurance.ActuarialMetric{
			MetricDate: date,
			MetricType: kind,
			PlanType:   t,
			Value:      round4(v),
			SampleSize: n,
		})
	}
	for _, t := range planTypes {
		s := stats[t]
		if s.policies == 0 {
			continue
		}
		if s.premiums > 0 {
			loss := random.Clamp(s.benefits/s.premiums+src.Uniform(-0.05, 0.05), 0, 1.5)
			metric(t, insurance.MetricLossRatio, loss, s.claims)
		}
		if s.inForce > 0 {
			metric(t, insurance.MetricClaimFrequency, float64(s.claims)/float64(s.inForce)*1000, s.inForce)
		}
		if s.claims > 0 {
			metric(t, insurance.MetricAverageClaim, s.charged/float64(s.claims), s.claims)
		}
		metric(t, insurance.MetricLapseRate, float64(s.lapsed)/float64(s.policies), s.policies)
	}
	return out
}
