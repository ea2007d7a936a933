package generator

import (
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
)

var assessmentWeights = random.MustWeighted(
	random.Option[insurance.ClaimStatus]{Item: insurance.ClaimApproved, Weight: 0.2},
	random.Option[insurance.ClaimStatus]{Item: insurance.ClaimPaid, Weight: 0.7},
	random.Option[insurance.ClaimStatus]{Item: insurance.ClaimRejected, Weight: 0.1},
)

// Assessment records one claim decision. Before holds the claim as it was
// so a caller can restore it when the decision cannot be stored.
type Assessment struct {
	Claim  *insurance.Claim
	Before insurance.Claim
	From   insurance.ClaimStatus
	Err    error
}

// AssessClaims decides pending (Submitted or In Process) claims on simDate,
// at most limit of them when limit > 0. Illegal moves are reported in Err
// and leave the claim untouched.
func AssessClaims(src *random.Source, claims []insurance.Claim, limit int, simDate time.Time) []Assessment {
	sim := insurance.DateOf(simDate)
	var pending []int
	for i := range claims {
		if claims[i].Status.IsPending() && !claims[i].SubmissionDate.After(sim) {
			pending = append(pending, i)
		}
	}
	if limit > 0 && limit < len(pending) {
		pending = random.Sample(src, pending, limit)
	}

	out := make([]Assessment, 0, len(pending))
	for _, i := range pending {
		c := &claims[i]
		from := c.Status
		next := assessmentWeights.Pick(src)
		reason := ""
		if next == insurance.ClaimRejected {
			reason = random.Pick(src, rejectionReasons)
		}
		before := *c
		if err := c.Transition(next, sim, reason); err != nil {
			*c = before
			out = append(out, Assessment{Claim: c, Before: before, From: from, Err: err})
			continue
		}
		out = append(out, Assessment{Claim: c, Before: before, From: from})
	}
	return out
}
