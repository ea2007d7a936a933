package generator

import (
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
)

var paymentStatusWeights = random.MustWeighted(
	random.Option[insurance.PaymentStatus]{Item: insurance.PaymentSuccessful, Weight: 0.95},
	random.Option[insurance.PaymentStatus]{Item: insurance.PaymentFailed, Weight: 0.03},
	random.Option[insurance.PaymentStatus]{Item: insurance.PaymentPending, Weight: 0.02},
)

// PaymentResult pairs a payment with the policy it is collected from and the
// due dates the policy moves to once the payment is recorded.
type PaymentResult struct {
	Payment  insurance.PremiumPayment
	Policy   *insurance.Policy
	LastPaid time.Time
	NextDue  time.Time
}

// Advanced returns a copy of the policy with the new due dates applied.
func (r PaymentResult) Advanced() insurance.Policy {
	p := *r.Policy
	last, next := r.LastPaid, r.NextDue
	p.LastPremiumPaidDate = &last
	p.NextPremiumDueDate = &next
	return p
}

// PremiumPayments collects one premium from every active policy due on or
// before simDate. The covered period starts at the old due date and runs one
// frequency interval; the new due dates apply whatever the payment status.
// Policies are left untouched: callers apply Advanced after the payment is
// stored.
func PremiumPayments(src *random.Source, policies []insurance.Policy, simDate time.Time, seq *insurance.Sequence) []PaymentResult {
	sim := insurance.DateOf(simDate)
	var out []PaymentResult
	for i := range policies {
		p := &policies[i]
		if p.ID == 0 || !p.IsDue(sim) {
			continue
		}

		start := insurance.DateOf(*p.NextPremiumDueDate)
		end := start.AddDate(0, 0, p.Frequency.IntervalDays())
		pay := insurance.PremiumPayment{
			PolicyID:    p.ID,
			PaymentDate: sim,
			Amount:      p.CurrentPremium,
			Method:      p.PaymentMethod,
			Reference:   seq.Next(),
			Status:      paymentStatusWeights.Pick(src),
			PeriodStart: start,
			PeriodEnd:   end,
		}

		out = append(out, PaymentResult{
			Payment:  pay,
			Policy:   p,
			LastPaid: insurance.MinDate(sim, end),
			NextDue:  end,
		})
	}
	return out
}
