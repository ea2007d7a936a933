package generator

import (
	"strings"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
	"github.com/ausphi/healthsim/internal/shared/types"
)

// Split is the number of providers per bucket.
type Split struct {
	Hospitals   int
	GPs         int
	Specialists int
	Other       int
}

// Total returns the sum of all buckets.
func (s Split) Total() int {
	return s.Hospitals + s.GPs + s.Specialists + s.Other
}

// ProviderSplit divides count using the floors max(5, n/10) hospitals and
// max(10, 3n/10) GPs and specialists. When the floors do not fit, it falls
// back to a proportional 10/30/30/30 split with at least one hospital.
func ProviderSplit(count int) Split {
	if count <= 0 {
		return Split{}
	}
	s := Split{
		Hospitals:   max(5, count/10),
		GPs:         max(10, count*3/10),
		Specialists: max(10, count*3/10),
	}
	if s.Hospitals+s.GPs+s.Specialists > count {
		s = Split{
			Hospitals:   max(1, count/10),
			GPs:         count * 3 / 10,
			Specialists: count * 3 / 10,
		}
	}
	s.Other = count - s.Hospitals - s.GPs - s.Specialists
	return s
}

// Providers generates count providers across the buckets of ProviderSplit.
func Providers(src *random.Source, count int, simDate time.Time, existing []insurance.Provider) []insurance.Provider {
	split := ProviderSplit(count)
	used := make(map[string]bool, len(existing))
	for _, p := range existing {
		if len(p.Number) >= 6 {
			used[string(p.Number)[:6]] = true
		}
	}

	out := make([]insurance.Provider, 0, count)
	add := func(t insurance.ProviderType) {
		out = append(out, newProvider(src, t, simDate, used))
	}
	for i := 0; i < split.Hospitals; i++ {
		add(insurance.ProviderHospital)
	}
	for i := 0; i < split.GPs; i++ {
		add(insurance.ProviderGP)
	}
	for i := 0; i < split.Specialists; i++ {
		add(insurance.ProviderSpecialist)
	}
	for i := 0; i < split.Other; i++ {
		add(random.Pick(src, otherProviderTypes))
	}
	return out
}

func newProvider(src *random.Source, t insurance.ProviderType, simDate time.Time, used map[string]bool) insurance.Provider {
	loc := random.Pick(src, localities)
	name := providerName(src, t, loc)
	p := insurance.Provider{
		Number:  providerNumber(src, used),
		Name:    name,
		Type:    t,
		Address: randomAddress(src, loc),
		Contact: types.ContactInfo{
			Phone: landline(src, loc),
			Email: "reception@" + slug(name) + ".com.au",
		},
		IsActive: true,
	}

	prob, ok := preferredProbability[t]
	if !ok {
		prob = otherPreferredProbability
	}
	if src.Chance(prob) {
		startAgreement(src, &p, src.DaysBefore(simDate, 0, 730), simDate)
	}
	return p
}

// startAgreement makes p preferred from start for one to three years, never
// ending before simDate.
func startAgreement(src *random.Source, p *insurance.Provider, start, simDate time.Time) {
	end := start.AddDate(0, 0, src.IntBetween(365, 1095))
	if end.Before(simDate) {
		end = simDate.AddDate(0, 0, src.IntBetween(30, 365))
	}
	p.IsPreferred = true
	p.AgreementStartDate = insurance.DatePtr(start)
	p.AgreementEndDate = insurance.DatePtr(end)
}

func providerName(src *random.Source, t insurance.ProviderType, loc locality) string {
	switch t {
	case insurance.ProviderHospital:
		name := random.Pick(src, hospitalNamePrefixes) + " " + random.Pick(src, hospitalNameSuffixes)
		if src.Chance(0.5) {
			name += " " + loc.Suburb
		}
		return name
	case insurance.ProviderGP:
		if src.Chance(0.5) {
			return "Dr " + random.Pick(src, doctorFirstNames) + " " + random.Pick(src, lastNames)
		}
		return loc.Suburb + " " + random.Pick(src, practiceNameSuffixes[t])
	case insurance.ProviderSpecialist:
		return loc.Suburb + " " + random.Pick(src, specialties) + " " + random.Pick(src, practiceNameSuffixes[t])
	default:
		return loc.Suburb + " " + random.Pick(src, practiceNameSuffixes[t])
	}
}

func providerNumber(src *random.Source, used map[string]bool) types.ProviderNumber {
	for {
		stem := src.Digits(6)
		if used[stem] {
			continue
		}
		used[stem] = true
		n, err := types.NewProviderNumber(stem, src.Intn(32))
		if err == nil {
			return n
		}
	}
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EndProviderAgreements sets an end date 30-90 days after simDate on pct
// percent of the preferred providers whose agreement is still open.
func EndProviderAgreements(src *random.Source, providers []insurance.Provider, pct float64, simDate time.Time) []*insurance.Provider {
	var open []int
	for i, p := range providers {
		if p.IsActive && p.HasOpenAgreement(simDate) {
			open = append(open, i)
		}
	}
	n := int(float64(len(open))*pct/100 + 0.5)
	var out []*insurance.Provider
	for _, i := range random.Sample(src, open, n) {
		p := &providers[i]
		p.AgreementEndDate = insurance.DatePtr(src.DaysAfter(simDate, 30, 90))
		out = append(out, p)
	}
	return out
}

// UpdateProviderDetails rewrites contact or address details of up to count
// active providers. Each has a 5% chance to flip preferred status; joining
// starts a new agreement, leaving ends the current one on simDate.
func UpdateProviderDetails(src *random.Source, providers []insurance.Provider, count int, simDate time.Time) []*insurance.Provider {
	var active []int
	for i, p := range providers {
		if p.IsActive {
			active = append(active, i)
		}
	}

	var out []*insurance.Provider
	for _, i := range random.Sample(src, active, count) {
		p := &providers[i]
		loc := random.Pick(src, localities)
		switch src.Intn(3) {
		case 0:
			p.Contact.Phone = landline(src, loc)
		case 1:
			p.Contact.Email = "admin@" + slug(p.Name) + ".com.au"
		default:
			p.Address = randomAddress(src, loc)
		}

		if src.Chance(0.05) {
			if p.IsPreferred {
				p.IsPreferred = false
				p.AgreementEndDate = insurance.DatePtr(simDate)
			} else {
				startAgreement(src, p, simDate, simDate)
			}
		}
		out = append(out, p)
	}
	return out
}
