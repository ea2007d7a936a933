package enhanced

import (
	"fmt"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/random"
)

const transactionCompleted = "Completed"

// TransactionResult holds new ledger entries and the claims paid to produce them.
type TransactionResult struct {
	Transactions []insurance.FinancialTransaction
	PaidClaims   []*insurance.Claim
	Failures     []error
}

// FinancialTransactions books the day's ledger: a premium receipt for every
// successful payment made on date, a claim payment for every Approved claim
// (moving it to Paid), and adjustments random adjustments or refunds against
// active policies.
func FinancialTransactions(src *random.Source, snap *Snapshot, date time.Time, adjustments int, seq *insurance.Sequence) TransactionResult {
	date = insurance.DateOf(date)
	var res TransactionResult

	policyMember := map[int64]int64{}
	for _, p := range snap.Policies {
		policyMember[p.ID] = p.PrimaryMemberID
	}

	for _, pay := range snap.Payments {
		if pay.Status != insurance.PaymentSuccessful || !pay.PaymentDate.Equal(date) {
			continue
		}
		res.Transactions = append(res.Transactions, insurance.FinancialTransaction{
			Reference:   seq.Next(),
			Type:        insurance.TxnPremiumReceipt,
			Date:        date,
			Amount:      pay.Amount,
			PolicyID:    ptr(pay.PolicyID),
			MemberID:    memberRef(policyMember, pay.PolicyID),
			Description: "Premium receipt " + pay.Reference,
			Status:      transactionCompleted,
		})
	}

	for i := range snap.Claims {
		c := &snap.Claims[i]
		if c.ID == 0 || c.Status != insurance.ClaimApproved {
			continue
		}
		if err := c.Transition(insurance.ClaimPaid, date, ""); err != nil {
			res.Failures = append(res.Failures, err)
			continue
		}
		res.PaidClaims = append(res.PaidClaims, c)
		res.Transactions = append(res.Transactions, insurance.FinancialTransaction{
			Reference:   seq.Next(),
			Type:        insurance.TxnClaimPayment,
			Date:        date,
			Amount:      c.InsuranceAmount,
			PolicyID:    ptr(c.PolicyID),
			ClaimID:     ptr(c.ID),
			MemberID:    ptr(c.MemberID),
			ProviderID:  ptr(c.ProviderID),
			Description: "Benefit paid for " + c.Number,
			Status:      transactionCompleted,
		})
	}

	var active []insurance.Policy
	for _, p := range snap.Policies {
		if p.ID != 0 && p.Status == insurance.PolicyActive {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return res
	}
	for i := 0; i < adjustments; i++ {
		p := random.Pick(src, active)
		t := insurance.FinancialTransaction{
			Reference: seq.Next(),
			Date:      date,
			PolicyID:  ptr(p.ID),
			MemberID:  ptr(p.PrimaryMemberID),
			Status:    transactionCompleted,
		}
		if src.Chance(0.5) {
			t.Type = insurance.TxnAdjustment
			t.Amount = random.Round2(src.Uniform(-50, 50))
			t.Description = fmt.Sprintf("Premium adjustment on %s", p.Number)
		} else {
			t.Type = insurance.TxnRefund
			t.Amount = -random.Round2(src.Uniform(10, max(10.01, p.CurrentPremium)))
			t.Description = fmt.Sprintf("Premium refund on %s", p.Number)
		}
		res.Transactions = append(res.Transactions, t)
	}
	return res
}

func memberRef(policyMember map[int64]int64, policyID int64) *int64 {
	if id, ok := policyMember[policyID]; ok && id != 0 {
		return &id
	}
	return nil
}
