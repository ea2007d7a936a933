// Package generator builds synthetic insurance entities. Every function takes
// an explicit random source so runs are reproducible from a seed.
package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
	"github.com/ausphi/healthsim/internal/shared/types"
)

var genderWeights = random.MustWeighted(
	random.Option[insurance.Gender]{Item: insurance.GenderMale, Weight: 0.49},
	random.Option[insurance.Gender]{Item: insurance.GenderFemale, Weight: 0.49},
	random.Option[insurance.Gender]{Item: insurance.GenderOther, Weight: 0.02},
)

var rebateTierWeights = random.MustWeighted(
	random.Option[insurance.RebateTier]{Item: insurance.RebateBase, Weight: 0.55},
	random.Option[insurance.RebateTier]{Item: insurance.RebateTier1, Weight: 0.20},
	random.Option[insurance.RebateTier]{Item: insurance.RebateTier2, Weight: 0.15},
	random.Option[insurance.RebateTier]{Item: insurance.RebateTier3, Weight: 0.10},
)

type ageBand struct{ min, max int }

var ageBands = random.MustWeighted(
	random.Option[ageBand]{Item: ageBand{0, 17}, Weight: 0.18},
	random.Option[ageBand]{Item: ageBand{18, 30}, Weight: 0.22},
	random.Option[ageBand]{Item: ageBand{31, 50}, Weight: 0.30},
	random.Option[ageBand]{Item: ageBand{51, 65}, Weight: 0.20},
	random.Option[ageBand]{Item: ageBand{66, 85}, Weight: 0.10},
)

// Members creates count new members joining on simDate. Membership numbers
// continue after those in existing.
func Members(src *random.Source, count int, simDate time.Time, existing []insurance.Member) []insurance.Member {
	if count <= 0 {
		return nil
	}
	numbers := make([]string, len(existing))
	for i, m := range existing {
		numbers[i] = m.MembershipNumber
	}
	seq := insurance.NewMembershipSequence(numbers)

	out := make([]insurance.Member, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, newMember(src, seq.Next(), simDate))
	}
	return out
}

func newMember(src *random.Source, number string, simDate time.Time) insurance.Member {
	gender := genderWeights.Pick(src)
	first := firstName(src, gender)
	last := random.Pick(src, lastNames)

	band := ageBands.Pick(src)
	age := src.IntBetween(band.min, band.max)
	dob := insurance.DateOf(simDate.AddDate(-age, 0, -src.IntBetween(0, 364)))
	age = insurance.YearsBetween(dob, simDate)

	loc := random.Pick(src, localities)
	m := insurance.Member{
		MembershipNumber: number,
		FirstName:        first,
		LastName:         last,
		DateOfBirth:      dob,
		Gender:           gender,
		Address:          randomAddress(src, loc),
		Contact: types.ContactInfo{
			Email:  email(src, first, last),
			Phone:  landline(src, loc),
			Mobile: mobile(src),
		},
		MedicareNumber: medicareNumber(src),
		LHCLoading:     lhcLoading(src, age),
		RebateTier:     rebateTierWeights.Pick(src),
		JoinDate:       insurance.DateOf(simDate),
		IsActive:       true,
	}
	applyRiskProfile(src, &m, age)
	return m
}

// CompleteMember fills what an imported member lacks: address and contact
// details when absent, a Medicare number, LHC loading, rebate tier and risk
// profile. The member joins on simDate.
func CompleteMember(src *random.Source, m *insurance.Member, simDate time.Time) {
	loc := random.Pick(src, localities)
	if m.Address.Street == "" {
		m.Address = randomAddress(src, loc)
	}
	if m.Contact.Email == "" {
		m.Contact.Email = email(src, m.FirstName, m.LastName)
	}
	if m.Contact.Phone == "" && m.Contact.Mobile == "" {
		m.Contact.Mobile = mobile(src)
	}
	if m.MedicareNumber.IsZero() {
		m.MedicareNumber = medicareNumber(src)
	}
	if m.Gender == "" {
		m.Gender = genderWeights.Pick(src)
	}

	age := m.AgeAt(simDate)
	m.LHCLoading = lhcLoading(src, age)
	m.RebateTier = rebateTierWeights.Pick(src)
	m.JoinDate = insurance.DateOf(simDate)
	m.IsActive = true
	applyRiskProfile(src, m, age)
}

func firstName(src *random.Source, g insurance.Gender) string {
	switch g {
	case insurance.GenderMale:
		return random.Pick(src, maleNames)
	case insurance.GenderFemale:
		return random.Pick(src, femaleNames)
	default:
		return random.Pick(src, neutralNames)
	}
}

// lhcLoading applies Lifetime Health Cover: 2% per year of age above 30 at
// join, capped at 70%, unless the member held continuous cover.
func lhcLoading(src *random.Source, age int) float64 {
	if age <= 30 {
		return 0
	}
	if src.Chance(0.5) {
		return 0
	}
	return LHCLoadingForAge(age)
}

// LHCLoadingForAge returns the uncovered loading for a member joining at age.
func LHCLoadingForAge(age int) float64 {
	if age <= 30 {
		return 0
	}
	loading := float64(age-30) * 2
	if loading > 70 {
		loading = 70
	}
	return loading
}

func applyRiskProfile(src *random.Source, m *insurance.Member, age int) {
	lifestyle := random.Round2(src.Uniform(0.8, 1.5))
	chronic := src.Chance(random.Clamp(0.05+float64(age)*0.006, 0, 0.7))

	score := float64(age)/85*50 + (lifestyle-0.8)/0.7*30
	if chronic {
		score += 20
	}
	score = random.Round2(random.Clamp(score, 0, 100))
	churn := float64(int(src.Uniform(0, 0.3)*10000)) / 10000

	m.RiskScore = &score
	m.HasChronicCondition = &chronic
	m.LifestyleRiskFactor = &lifestyle
	m.PredictedChurn = &churn
	m.ClaimFrequencyTier = frequencyTierForRisk(score)
}

func frequencyTierForRisk(score float64) insurance.FrequencyTier {
	switch {
	case score < 35:
		return insurance.FrequencyLow
	case score < 65:
		return insurance.FrequencyMedium
	default:
		return insurance.FrequencyHigh
	}
}

func randomAddress(src *random.Source, loc locality) types.Address {
	street := fmt.Sprintf("%d %s %s", src.IntBetween(1, 250), random.Pick(src, streetNames), random.Pick(src, streetTypes))
	if src.Chance(0.2) {
		street = fmt.Sprintf("Unit %d/%s", src.IntBetween(1, 40), street)
	}
	return types.NewAddress(street, loc.Suburb, loc.State, loc.Postcode)
}

func email(src *random.Source, first, last string) string {
	local := strings.ToLower(first + "." + strings.ReplaceAll(last, "'", ""))
	if src.Chance(0.5) {
		local += src.Digits(2)
	}
	return local + "@" + random.Pick(src, emailDomains)
}

func landline(src *random.Source, loc locality) string {
	return fmt.Sprintf("%s %d%s %s", loc.Area, src.IntBetween(8, 9), src.Digits(3), src.Digits(4))
}

func mobile(src *random.Source) string {
	return fmt.Sprintf("04%s %s %s", src.Digits(2), src.Digits(3), src.Digits(3))
}

func medicareNumber(src *random.Source) types.MedicareNumber {
	stem := fmt.Sprintf("%d%s", src.IntBetween(2, 6), src.Digits(7))
	m, err := types.NewMedicareNumber(stem, src.IntBetween(1, 9))
	if err != nil {
		return ""
	}
	return m
}

// UpdateMembers rewrites contact or address details of up to count random
// active members in place and returns pointers to the changed members.
func UpdateMembers(src *random.Source, members []insurance.Member, count int) []*insurance.Member {
	var active []int
	for i := range members {
		if members[i].IsActive {
			active = append(active, i)
		}
	}
	picked := random.Sample(src, active, count)

	out := make([]*insurance.Member, 0, len(picked))
	for _, i := range picked {
		m := &members[i]
		changed := false
		if src.Chance(0.4) {
			m.Contact.Phone = landline(src, random.Pick(src, localities))
			m.Contact.Mobile = mobile(src)
			changed = true
		}
		if src.Chance(0.3) {
			m.Contact.Email = email(src, m.FirstName, m.LastName)
			changed = true
		}
		if !changed || src.Chance(0.3) {
			m.Address = randomAddress(src, random.Pick(src, localities))
		}
		out = append(out, m)
	}
	return out
}
