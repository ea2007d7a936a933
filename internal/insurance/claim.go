package insurance

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
)

// ClaimStatus is the claim lifecycle state.
type ClaimStatus string

const (
	ClaimSubmitted ClaimStatus = "Submitted"
	ClaimInProcess ClaimStatus = "In Process"
	ClaimApproved  ClaimStatus = "Approved"
	ClaimPaid      ClaimStatus = "Paid"
	ClaimRejected  ClaimStatus = "Rejected"
)

var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimSubmitted: {ClaimInProcess, ClaimApproved, ClaimRejected, ClaimPaid},
	ClaimInProcess: {ClaimApproved, ClaimRejected, ClaimPaid},
	ClaimApproved:  {ClaimPaid},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	for _, allowed := range claimTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ClaimStatus) IsTerminal() bool {
	return len(claimTransitions[s]) == 0
}

// IsPending reports whether the claim still awaits assessment.
func (s ClaimStatus) IsPending() bool {
	return s == ClaimSubmitted || s == ClaimInProcess
}

// RequiresProcessedDate reports whether a claim in this state carries a processed date.
func (s ClaimStatus) RequiresProcessedDate() bool {
	return s == ClaimApproved || s == ClaimPaid || s == ClaimRejected
}

// Transition moves the claim to next on date, stamping processed and
// payment dates. reason is required for rejections.
func (c *Claim) Transition(next ClaimStatus, date time.Time, reason string) error {
	if !c.Status.CanTransitionTo(next) {
		return apperrors.InvalidTransition("claim "+c.Number, string(c.Status), string(next))
	}
	if date.Before(c.SubmissionDate) {
		return apperrors.Validation("transition date precedes submission", map[string]string{
			"claim": c.Number,
			"date":  date.Format(time.DateOnly),
		})
	}

	d := DateOf(date)
	switch next {
	case ClaimApproved:
		c.ProcessedDate = &d
	case ClaimPaid:
		if c.ProcessedDate == nil {
			c.ProcessedDate = &d
		}
		c.PaymentDate = &d
	case ClaimRejected:
		if reason == "" {
			return fmt.Errorf("rejecting claim %s: reason required", c.Number)
		}
		c.ProcessedDate = &d
		c.PaymentDate = nil
		c.RejectionReason = reason
	}
	c.Status = next
	return nil
}

// Amounts holds the financial split of a claim.
type Amounts struct {
	Charged   float64
	Medicare  float64
	Insurance float64
	Excess    float64
}

// Gap returns max(0, charged - medicare - insurance - excess) in cents.
func (a Amounts) Gap() float64 {
	return math.Max(0, round2(a.Charged-a.Medicare-a.Insurance-a.Excess))
}

// Apply copies the amounts and derived gap onto the claim.
func (c *Claim) Apply(a Amounts) {
	c.ChargedAmount = round2(a.Charged)
	c.MedicareAmount = round2(a.Medicare)
	c.InsuranceAmount = round2(a.Insurance)
	c.ExcessApplied = round2(a.Excess)
	c.GapAmount = a.Gap()
}

// CheckDates validates the date invariants relative to the simulation date.
func (c Claim) CheckDates(simDate time.Time) error {
	switch {
	case c.SubmissionDate.Before(c.ServiceDate):
		return fmt.Errorf("claim %s: submitted before service", c.Number)
	case c.SubmissionDate.After(simDate):
		return fmt.Errorf("claim %s: submitted after simulation date", c.Number)
	}
	if c.ProcessedDate != nil {
		if c.ProcessedDate.Before(c.SubmissionDate) || c.ProcessedDate.After(simDate) {
			return fmt.Errorf("claim %s: processed date out of range", c.Number)
		}
	}
	if c.PaymentDate != nil {
		if c.ProcessedDate == nil || c.PaymentDate.Before(*c.ProcessedDate) || c.PaymentDate.After(simDate) {
			return fmt.Errorf("claim %s: payment date out of range", c.Number)
		}
	}
	if c.Status == ClaimRejected && (c.RejectionReason == "" || c.PaymentDate != nil) {
		return fmt.Errorf("claim %s: rejected claim needs a reason and no payment", c.Number)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
