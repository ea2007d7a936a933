package generator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
)

var planCodePrefix = map[insurance.PlanType]string{
	insurance.PlanHospital: "HOS",
	insurance.PlanExtras:   "EXT",
	insurance.PlanCombined: "CMB",
}

// Plans builds count coverage plans split roughly into thirds across
// hospital, extras and combined templates.
func Plans(src *random.Source, count int, simDate time.Time, existing []insurance.CoveragePlan) []insurance.CoveragePlan {
	if count <= 0 {
		return nil
	}
	seq := planSequences(existing)

	hospital := (count + 2) / 3
	extras := (count + 1) / 3
	combined := count - hospital - extras

	var out []insurance.CoveragePlan
	for _, batch := range []struct {
		templates []planTemplate
		n         int
	}{
		{hospitalTemplates, hospital},
		{extrasTemplates, extras},
		{combinedTemplates, combined},
	} {
		for i := 0; i < batch.n; i++ {
			t := random.Pick(src, batch.templates)
			out = append(out, newPlan(src, t, seq, simDate))
		}
	}
	return out
}

func planSequences(existing []insurance.CoveragePlan) map[insurance.PlanType]int {
	seq := map[insurance.PlanType]int{}
	for _, p := range existing {
		parts := strings.Split(p.Code, "-")
		if len(parts) < 3 {
			continue
		}
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err == nil && n > seq[p.Type] {
			seq[p.Type] = n
		}
	}
	return seq
}

func newPlan(src *random.Source, t planTemplate, seq map[insurance.PlanType]int, simDate time.Time) insurance.CoveragePlan {
	seq[t.Type]++
	monthly := random.Round2(t.BasePremium * src.Uniform(0.9, 1.1))

	p := insurance.CoveragePlan{
		Code:           fmt.Sprintf("%s-%s-%03d", planCodePrefix[t.Type], strings.ToUpper(t.Tier), seq[t.Type]),
		Name:           t.Name,
		Type:           t.Type,
		MonthlyPremium: monthly,
		AnnualPremium:  AnnualPremium(monthly),
		ExcessOptions:  []float64{},
		IsActive:       true,
		EffectiveDate:  insurance.DateOf(simDate),
	}

	details := map[string]any{
		"tier":       t.Tier,
		"included":   t.Included,
		"restricted": nonNil(t.Restricted),
		"excluded":   nonNil(t.Excluded),
	}
	if len(t.AnnualLimits) > 0 {
		details["annual_limits"] = t.AnnualLimits
	}
	p.CoverageDetails = details

	switch t.Type {
	case insurance.PlanHospital:
		p.HospitalTier = t.Tier
		p.ExcessOptions = append([]float64(nil), excessOptionsByTier[t.Tier]...)
		p.WaitingPeriods = copyPeriods(hospitalWaitingPeriods)
	case insurance.PlanExtras:
		p.WaitingPeriods = copyPeriods(extrasWaitingPeriods)
	case insurance.PlanCombined:
		p.HospitalTier = t.Tier
		p.ExcessOptions = append([]float64(nil), excessOptionsByTier[t.Tier]...)
		p.WaitingPeriods = copyPeriods(hospitalWaitingPeriods)
		for k, v := range extrasWaitingPeriods {
			p.WaitingPeriods[k] = v
		}
	}
	return p
}

// AnnualPremium is twelve months less the 4% annual payment discount.
func AnnualPremium(monthly float64) float64 {
	return random.Round2(monthly * 12 * 0.96)
}

func copyPeriods(src map[string]int) map[string]int {
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
