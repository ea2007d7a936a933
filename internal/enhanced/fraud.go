package enhanced

import (
	"fmt"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
)

const (
	overbillingRatio     = 1.5
	overbillingMinClaims = 3
	overbillingWindow    = 90
	frequencyThreshold   = 5
	frequencyWindow      = 30
	anomalyFlagThreshold = 0.8
	indicatorStatusOpen  = "Open"
)

// FraudResult holds new indicators and the claims whose fraud fields changed.
type FraudResult struct {
	Indicators []insurance.FraudIndicator
	Claims     []*insurance.Claim
}

// DetectFraud examines the claims created on date. Provider over-billing and
// member frequency look back over recent history, duplicates are matched
// against every stored claim and up to sample of the day's claims receive an
// anomaly score. Claims in snap are updated in place.
func DetectFraud(src *random.Source, snap *Snapshot, date time.Time, sample int) FraudResult {
	date = insurance.DateOf(date)
	var res FraudResult

	var today []int
	for i, c := range snap.Claims {
		if c.ID != 0 && createdOn(c.Number, date) {
			today = append(today, i)
		}
	}
	if len(today) == 0 {
		return res
	}

	res.Indicators = append(res.Indicators, overbilling(snap, today, date)...)
	res.Indicators = append(res.Indicators, highFrequency(snap, today, date)...)
	res.Indicators = append(res.Indicators, duplicates(snap, today, date)...)

	touched := map[int]bool{}
	for _, i := range random.Sample(src, today, sample) {
		c := &snap.Claims[i]
		score, flagged := anomalyScore(src, snap, *c)
		c.FraudRiskScore = &score
		c.IsFlaggedForReview = &flagged
		touched[i] = true
		if flagged {
			res.Indicators = append(res.Indicators, insurance.FraudIndicator{
				ClaimID:      ptr(c.ID),
				MemberID:     ptr(c.MemberID),
				ProviderID:   ptr(c.ProviderID),
				Type:         insurance.FraudAnomalyScore,
				RiskScore:    score,
				Description:  fmt.Sprintf("claim %s scored %.2f", c.Number, score),
				DetectedDate: date,
				Status:       indicatorStatusOpen,
			})
		}
	}

	// Duplicates are always flagged for review.
	for _, ind := range res.Indicators {
		if ind.Type != insurance.FraudDuplicateClaim || ind.ClaimID == nil {
			continue
		}
		for _, i := range today {
			c := &snap.Claims[i]
			if c.ID == *ind.ClaimID {
				flagged := true
				score := max(ind.RiskScore, valueOr(c.FraudRiskScore))
				c.IsFlaggedForReview = &flagged
				c.FraudRiskScore = &score
				touched[i] = true
			}
		}
	}

	for _, i := range today {
		if touched[i] {
			res.Claims = append(res.Claims, &snap.Claims[i])
		}
	}
	return res
}

func overbilling(snap *Snapshot, today []int, date time.Time) []insurance.FraudIndicator {
	type agg struct {
		sum float64
		n   int
	}
	byProvider := map[int64]*agg{}
	var total agg
	for _, c := range snap.Claims {
		if !within(c.SubmissionDate, date, overbillingWindow) && !createdOn(c.Number, date) {
			continue
		}
		a := byProvider[c.ProviderID]
		if a == nil {
			a = &agg{}
			byProvider[c.ProviderID] = a
		}
		a.sum += c.ChargedAmount
		a.n++
		total.sum += c.ChargedAmount
		total.n++
	}
	if total.n == 0 {
		return nil
	}
	overall := total.sum / float64(total.n)

	seen := map[int64]bool{}
	var out []insurance.FraudIndicator
	for _, i := range today {
		pid := snap.Claims[i].ProviderID
		if seen[pid] {
			continue
		}
		seen[pid] = true
		a := byProvider[pid]
		if a == nil || a.n < overbillingMinClaims {
			continue
		}
		avg := a.sum / float64(a.n)
		if avg <= overbillingRatio*overall {
			continue
		}
		ratio := avg / overall
		out = append(out, insurance.FraudIndicator{
			ProviderID:   ptr(pid),
			Type:         insurance.FraudProviderOverbilling,
			RiskScore:    round4(random.Clamp(ratio/3, 0, 1)),
			Description:  fmt.Sprintf("average charge %.2f is %.1fx the portfolio average across %d claims", avg, ratio, a.n),
			DetectedDate: date,
			Status:       indicatorStatusOpen,
		})
	}
	return out
}

func highFrequency(snap *Snapshot, today []int, date time.Time) []insurance.FraudIndicator {
	counts := map[int64]int{}
	for _, c := range snap.Claims {
		if within(c.ServiceDate, date, frequencyWindow) {
			counts[c.MemberID]++
		}
	}

	seen := map[int64]bool{}
	var out []insurance.FraudIndicator
	for _, i := range today {
		mid := snap.Claims[i].MemberID
		if seen[mid] {
			continue
		}
		seen[mid] = true
		n := counts[mid]
		if n < frequencyThreshold {
			continue
		}
		out = append(out, insurance.FraudIndicator{
			MemberID:     ptr(mid),
			Type:         insurance.FraudHighFrequency,
			RiskScore:    round4(random.Clamp(0.5+0.05*float64(n-frequencyThreshold), 0, 1)),
			Description:  fmt.Sprintf("%d claims with service in the last %d days", n, frequencyWindow),
			DetectedDate: date,
			Status:       indicatorStatusOpen,
		})
	}
	return out
}

type duplicateKey struct {
	member, provider int64
	service          time.Time
	cents            int64
}

func keyOf(c insurance.Claim) duplicateKey {
	return duplicateKey{c.MemberID, c.ProviderID, insurance.DateOf(c.ServiceDate), int64(c.ChargedAmount*100 + 0.5)}
}

func duplicates(snap *Snapshot, today []int, date time.Time) []insurance.FraudIndicator {
	first := map[duplicateKey]insurance.Claim{}
	for _, c := range snap.Claims {
		k := keyOf(c)
		if prev, ok := first[k]; !ok || c.ID < prev.ID {
			first[k] = c
		}
	}

	var out []insurance.FraudIndicator
	for _, i := range today {
		c := snap.Claims[i]
		orig := first[keyOf(c)]
		if orig.ID == c.ID {
			continue
		}
		out = append(out, insurance.FraudIndicator{
			ClaimID:      ptr(c.ID),
			MemberID:     ptr(c.MemberID),
			ProviderID:   ptr(c.ProviderID),
			Type:         insurance.FraudDuplicateClaim,
			RiskScore:    0.9,
			Description:  fmt.Sprintf("claim %s duplicates %s", c.Number, orig.Number),
			DetectedDate: date,
			Status:       indicatorStatusOpen,
		})
	}
	return out
}

// anomalyScore rates a claim by its charge relative to the average for its
// type, plus noise in [-0.05, 0.05].
func anomalyScore(src *random.Source, snap *Snapshot, c insurance.Claim) (float64, bool) {
	var sum float64
	var n int
	for _, o := range snap.Claims {
		if o.Type == c.Type {
			sum += o.ChargedAmount
			n++
		}
	}
	base := 0.2
	if n > 0 && sum > 0 {
		base = random.Clamp(c.ChargedAmount/(sum/float64(n))/3, 0, 1)
	}
	if c.Status == insurance.ClaimRejected {
		base += 0.1
	}
	score := round4(random.Clamp(base+src.Uniform(-0.05, 0.05), 0, 1))
	return score, score >= anomalyFlagThreshold
}

func ptr[T any](v T) *T { return &v }

func valueOr(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
