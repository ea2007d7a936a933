package enhanced

import (
	"sort"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
)

const (
	patternWindow        = 365
	highValueClaimAmount = 1000
)

// PatternResult holds the analysed patterns and members whose claim
// frequency tier changed.
type PatternResult struct {
	Patterns []insurance.ClaimPattern
	Members  []*insurance.Member
}

// classifyPattern names a member's claiming behaviour for one claim type.
func classifyPattern(count int, perMonth, average float64) string {
	switch {
	case average >= highValueClaimAmount:
		return insurance.PatternHighValue
	case perMonth >= 2:
		return insurance.PatternFrequent
	case count >= 4:
		return insurance.PatternRegular
	default:
		return insurance.PatternOccasional
	}
}

func memberTier(perMonth float64) insurance.FrequencyTier {
	switch {
	case perMonth >= 2:
		return insurance.FrequencyHigh
	case perMonth >= 0.5:
		return insurance.FrequencyMedium
	default:
		return insurance.FrequencyLow
	}
}

// ClaimPatterns analyses claims serviced in the last 365 days per member and
// claim type. Only members with a claim created on date are analysed so a
// daily run does not repeat unchanged patterns.
func ClaimPatterns(src *random.Source, snap *Snapshot, date time.Time) PatternResult {
	date = insurance.DateOf(date)

	active := map[int64]bool{}
	for _, c := range snap.Claims {
		if createdOn(c.Number, date) {
			active[c.MemberID] = true
		}
	}
	if len(active) == 0 {
		return PatternResult{}
	}

	type key struct {
		member int64
		typ    insurance.ClaimType
	}
	type agg struct {
		sum float64
		n   int
	}
	byKey := map[key]*agg{}
	perMember := map[int64]int{}
	for _, c := range snap.Claims {
		if !active[c.MemberID] || !within(c.ServiceDate, date, patternWindow) {
			continue
		}
		k := key{c.MemberID, c.Type}
		a := byKey[k]
		if a == nil {
			a = &agg{}
			byKey[k] = a
		}
		a.sum += c.ChargedAmount
		a.n++
		perMember[c.MemberID]++
	}

	keys := make([]key, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].member != keys[j].member {
			return keys[i].member < keys[j].member
		}
		return keys[i].typ < keys[j].typ
	})

	var res PatternResult
	for _, k := range keys {
		a := byKey[k]
		perMonth := float64(a.n) / 12
		avg := random.Round2(a.sum / float64(a.n))
		res.Patterns = append(res.Patterns, insurance.ClaimPattern{
			MemberID:           k.member,
			ClaimType:          k.typ,
			AnalysisDate:       date,
			ClaimCount:         a.n,
			ClaimsPerMonth:     float64(int64(perMonth*1000+0.5)) / 1000,
			AverageClaimAmount: avg,
			PatternType:        classifyPattern(a.n, perMonth, avg),
			TrendFactor:        float64(int64((1+src.Uniform(-0.2, 0.2))*1000+0.5)) / 1000,
		})
	}

	for i := range snap.Members {
		m := &snap.Members[i]
		n, ok := perMember[m.ID]
		if !ok {
			continue
		}
		tier := memberTier(float64(n) / 12)
		if m.ClaimFrequencyTier != tier {
			m.ClaimFrequencyTier = tier
			res.Members = append(res.Members, m)
		}
	}
	return res
}
