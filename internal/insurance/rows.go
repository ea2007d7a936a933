package insurance

import (
	"time"

	"github.com/ausphi/healthsim/internal/shared/database"
	"github.com/ausphi/healthsim/internal/shared/types"
)

// Table names
const (
	TableMembers               = "Members"
	TableCoveragePlans         = "CoveragePlans"
	TablePolicies              = "Policies"
	TablePolicyMembers         = "PolicyMembers"
	TableProviders             = "Providers"
	TableClaims                = "Claims"
	TablePremiumPayments       = "PremiumPayments"
	TableFraudIndicators       = "FraudIndicators"
	TableFinancialTransactions = "FinancialTransactions"
	TableClaimPatterns         = "ClaimPatterns"
	TableActuarialMetrics      = "ActuarialMetrics"
)

// Identity columns
const (
	IDMember       = "MemberID"
	IDPlan         = "PlanID"
	IDPolicy       = "PolicyID"
	IDPolicyMember = "PolicyMemberID"
	IDProvider     = "ProviderID"
	IDClaim        = "ClaimID"
	IDPayment      = "PaymentID"
)

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Row maps a member to its Members columns.
func (m Member) Row() database.Row {
	return database.Row{
		"MembershipNumber":     m.MembershipNumber,
		"FirstName":            m.FirstName,
		"LastName":             m.LastName,
		"DateOfBirth":          m.DateOfBirth,
		"Gender":               string(m.Gender),
		"Email":                nullString(m.Contact.Email),
		"Phone":                nullString(m.Contact.Phone),
		"Mobile":               nullString(m.Contact.Mobile),
		"AddressLine1":         nullString(m.Address.Street),
		"Suburb":               nullString(m.Address.Suburb),
		"State":                nullString(string(m.Address.State)),
		"Postcode":             nullString(m.Address.Postcode),
		"MedicareNumber":       nullString(string(m.MedicareNumber)),
		"LHCLoadingPercentage": m.LHCLoading,
		"PHIRebateTier":        string(m.RebateTier),
		"JoinDate":             m.JoinDate,
		"IsActive":             m.IsActive,
		"RiskScore":            nullFloat(m.RiskScore),
		"HasChronicCondition":  nullBool(m.HasChronicCondition),
		"LifestyleRiskFactor":  nullFloat(m.LifestyleRiskFactor),
		"ClaimFrequencyTier":   nullString(string(m.ClaimFrequencyTier)),
		"PredictedChurn":       nullFloat(m.PredictedChurn),
	}
}

// MemberFromRow reads a Members row.
func MemberFromRow(r database.Row) Member {
	return Member{
		ID:               r.Int64(IDMember),
		MembershipNumber: r.String("MembershipNumber"),
		FirstName:        r.String("FirstName"),
		LastName:         r.String("LastName"),
		DateOfBirth:      r.Date("DateOfBirth"),
		Gender:           Gender(r.String("Gender")),
		Address: types.Address{
			Street:   r.String("AddressLine1"),
			Suburb:   r.String("Suburb"),
			State:    types.State(r.String("State")),
			Postcode: r.String("Postcode"),
			Country:  "AU",
		},
		Contact: types.ContactInfo{
			Email:  r.String("Email"),
			Phone:  r.String("Phone"),
			Mobile: r.String("Mobile"),
		},
		MedicareNumber:      types.MedicareNumber(r.String("MedicareNumber")),
		LHCLoading:          r.Float("LHCLoadingPercentage"),
		RebateTier:          RebateTier(r.String("PHIRebateTier")),
		JoinDate:            r.Date("JoinDate"),
		IsActive:            r.Bool("IsActive"),
		RiskScore:           r.FloatPtr("RiskScore"),
		HasChronicCondition: r.BoolPtr("HasChronicCondition"),
		LifestyleRiskFactor: r.FloatPtr("LifestyleRiskFactor"),
		ClaimFrequencyTier:  FrequencyTier(r.String("ClaimFrequencyTier")),
		PredictedChurn:      r.FloatPtr("PredictedChurn"),
	}
}

// Row maps a plan to CoveragePlans columns; the map and slice fields become JSON text.
func (p CoveragePlan) Row() (database.Row, error) {
	excess, err := database.JSONText(p.ExcessOptions)
	if err != nil {
		return nil, err
	}
	waiting, err := database.JSONText(p.WaitingPeriods)
	if err != nil {
		return nil, err
	}
	details, err := database.JSONText(p.CoverageDetails)
	if err != nil {
		return nil, err
	}
	return database.Row{
		"PlanCode":        p.Code,
		"PlanName":        p.Name,
		"PlanType":        string(p.Type),
		"MonthlyPremium":  p.MonthlyPremium,
		"AnnualPremium":   p.AnnualPremium,
		"HospitalTier":    nullString(p.HospitalTier),
		"ExcessOptions":   excess,
		"WaitingPeriods":  waiting,
		"CoverageDetails": details,
		"IsActive":        p.IsActive,
		"EffectiveDate":   p.EffectiveDate,
		"EndDate":         nullTime(p.EndDate),
	}, nil
}

// PlanFromRow reads a CoveragePlans row, decoding its JSON columns.
func PlanFromRow(r database.Row) (CoveragePlan, error) {
	p := CoveragePlan{
		ID:             r.Int64(IDPlan),
		Code:           r.String("PlanCode"),
		Name:           r.String("PlanName"),
		Type:           PlanType(r.String("PlanType")),
		MonthlyPremium: r.Float("MonthlyPremium"),
		AnnualPremium:  r.Float("AnnualPremium"),
		HospitalTier:   r.String("HospitalTier"),
		IsActive:       r.Bool("IsActive"),
		EffectiveDate:  r.Date("EffectiveDate"),
		EndDate:        r.DatePtr("EndDate"),
	}
	if err := r.JSON("ExcessOptions", &p.ExcessOptions); err != nil {
		return p, err
	}
	if err := r.JSON("WaitingPeriods", &p.WaitingPeriods); err != nil {
		return p, err
	}
	if err := r.JSON("CoverageDetails", &p.CoverageDetails); err != nil {
		return p, err
	}
	return p, nil
}

// Row maps a policy to Policies columns.
func (p Policy) Row() database.Row {
	return database.Row{
		"PolicyNumber":         p.Number,
		"PrimaryMemberID":      p.PrimaryMemberID,
		"PlanID":               p.PlanID,
		"CoverageType":         string(p.CoverageType),
		"StartDate":            p.StartDate,
		"EndDate":              nullTime(p.EndDate),
		"CurrentPremium":       p.CurrentPremium,
		"PremiumFrequency":     string(p.Frequency),
		"ExcessAmount":         p.ExcessAmount,
		"RebatePercentage":     p.RebatePercentage,
		"LHCLoadingPercentage": p.LHCLoading,
		"Status":               string(p.Status),
		"PaymentMethod":        string(p.PaymentMethod),
		"LastPremiumPaidDate":  nullTime(p.LastPremiumPaidDate),
		"NextPremiumDueDate":   nullTime(p.NextPremiumDueDate),
		"RiskAdjustmentFactor": nullFloat(p.RiskAdjustmentFactor),
		"UnderwritingScore":    nullFloat(p.UnderwritingScore),
	}
}

// PolicyFromRow reads a Policies row.
func PolicyFromRow(r database.Row) Policy {
	return Policy{
		ID:                   r.Int64(IDPolicy),
		Number:               r.String("PolicyNumber"),
		PrimaryMemberID:      r.Int64("PrimaryMemberID"),
		PlanID:               r.Int64(IDPlan),
		CoverageType:         CoverageType(r.String("CoverageType")),
		StartDate:            r.Date("StartDate"),
		EndDate:              r.DatePtr("EndDate"),
		CurrentPremium:       r.Float("CurrentPremium"),
		Frequency:            Frequency(r.String("PremiumFrequency")),
		ExcessAmount:         r.Float("ExcessAmount"),
		RebatePercentage:     r.Float("RebatePercentage"),
		LHCLoading:           r.Float("LHCLoadingPercentage"),
		Status:               PolicyStatus(r.String("Status")),
		PaymentMethod:        PaymentMethod(r.String("PaymentMethod")),
		LastPremiumPaidDate:  r.DatePtr("LastPremiumPaidDate"),
		NextPremiumDueDate:   r.DatePtr("NextPremiumDueDate"),
		RiskAdjustmentFactor: r.FloatPtr("RiskAdjustmentFactor"),
		UnderwritingScore:    r.FloatPtr("UnderwritingScore"),
	}
}

// Row maps a link to PolicyMembers columns.
func (pm PolicyMember) Row() database.Row {
	return database.Row{
		"PolicyID":              pm.PolicyID,
		"MemberID":              pm.MemberID,
		"RelationshipToPrimary": string(pm.Relationship),
		"StartDate":             pm.StartDate,
		"EndDate":               nullTime(pm.EndDate),
		"IsActive":              pm.IsActive,
	}
}

// PolicyMemberFromRow reads a PolicyMembers row.
func PolicyMemberFromRow(r database.Row) PolicyMember {
	return PolicyMember{
		ID:           r.Int64(IDPolicyMember),
		PolicyID:     r.Int64(IDPolicy),
		MemberID:     r.Int64(IDMember),
		Relationship: Relationship(r.String("RelationshipToPrimary")),
		StartDate:    r.Date("StartDate"),
		EndDate:      r.DatePtr("EndDate"),
		IsActive:     r.Bool("IsActive"),
	}
}

// Row maps a provider to Providers columns.
func (p Provider) Row() database.Row {
	return database.Row{
		"ProviderNumber":       string(p.Number),
		"ProviderName":         p.Name,
		"ProviderType":         string(p.Type),
		"AddressLine1":         nullString(p.Address.Street),
		"Suburb":               nullString(p.Address.Suburb),
		"State":                nullString(string(p.Address.State)),
		"Postcode":             nullString(p.Address.Postcode),
		"Phone":                nullString(p.Contact.Phone),
		"Email":                nullString(p.Contact.Email),
		"IsPreferredProvider":  p.IsPreferred,
		"AgreementStartDate":   nullTime(p.AgreementStartDate),
		"AgreementEndDate":     nullTime(p.AgreementEndDate),
		"IsActive":             p.IsActive,
		"BillingPatternScore":  nullFloat(p.BillingPatternScore),
		"AverageClaimValue":    nullFloat(p.AverageClaimValue),
		"ClaimFrequencyRating": nullString(string(p.ClaimFrequencyRating)),
		"SpecialtyRiskFactor":  nullFloat(p.SpecialtyRiskFactor),
		"ComplianceScore":      nullFloat(p.ComplianceScore),
	}
}

// ProviderFromRow reads a Providers row.
func ProviderFromRow(r database.Row) Provider {
	return Provider{
		ID:     r.Int64(IDProvider),
		Number: types.ProviderNumber(r.String("ProviderNumber")),
		Name:   r.String("ProviderName"),
		Type:   ProviderType(r.String("ProviderType")),
		Address: types.Address{
			Street:   r.String("AddressLine1"),
			Suburb:   r.String("Suburb"),
			State:    types.State(r.String("State")),
			Postcode: r.String("Postcode"),
			Country:  "AU",
		},
		Contact: types.ContactInfo{
			Phone: r.String("Phone"),
			Email: r.String("Email"),
		},
		IsPreferred:          r.Bool("IsPreferredProvider"),
		AgreementStartDate:   r.DatePtr("AgreementStartDate"),
		AgreementEndDate:     r.DatePtr("AgreementEndDate"),
		IsActive:             r.Bool("IsActive"),
		BillingPatternScore:  r.FloatPtr("BillingPatternScore"),
		AverageClaimValue:    r.FloatPtr("AverageClaimValue"),
		ClaimFrequencyRating: FrequencyTier(r.String("ClaimFrequencyRating")),
		SpecialtyRiskFactor:  r.FloatPtr("SpecialtyRiskFactor"),
		ComplianceScore:      r.FloatPtr("ComplianceScore"),
	}
}

// Row maps a claim to Claims columns.
func (c Claim) Row() database.Row {
	return database.Row{
		"ClaimNumber":        c.Number,
		"PolicyID":           c.PolicyID,
		"MemberID":           c.MemberID,
		"ProviderID":         c.ProviderID,
		"ServiceDate":        c.ServiceDate,
		"SubmissionDate":     c.SubmissionDate,
		"ClaimType":          string(c.Type),
		"ServiceDescription": nullString(c.ServiceDescription),
		"MBSItemNumber":      nullString(c.MBSItemNumber),
		"ChargedAmount":      c.ChargedAmount,
		"MedicareAmount":     c.MedicareAmount,
		"InsuranceAmount":    c.InsuranceAmount,
		"GapAmount":          c.GapAmount,
		"ExcessApplied":      c.ExcessApplied,
		"Status":             string(c.Status),
		"ProcessedDate":      nullTime(c.ProcessedDate),
		"PaymentDate":        nullTime(c.PaymentDate),
		"RejectionReason":    nullString(c.RejectionReason),
		"FraudRiskScore":     nullFloat(c.FraudRiskScore),
		"IsFlaggedForReview": nullBool(c.IsFlaggedForReview),
	}
}

// ClaimFromRow reads a Claims row.
func ClaimFromRow(r database.Row) Claim {
	return Claim{
		ID:                 r.Int64(IDClaim),
		Number:             r.String("ClaimNumber"),
		PolicyID:           r.Int64(IDPolicy),
		MemberID:           r.Int64(IDMember),
		ProviderID:         r.Int64(IDProvider),
		ServiceDate:        r.Date("ServiceDate"),
		SubmissionDate:     r.Date("SubmissionDate"),
		Type:               ClaimType(r.String("ClaimType")),
		ServiceDescription: r.String("ServiceDescription"),
		MBSItemNumber:      r.String("MBSItemNumber"),
		ChargedAmount:      r.Float("ChargedAmount"),
		MedicareAmount:     r.Float("MedicareAmount"),
		InsuranceAmount:    r.Float("InsuranceAmount"),
		GapAmount:          r.Float("GapAmount"),
		ExcessApplied:      r.Float("ExcessApplied"),
		Status:             ClaimStatus(r.String("Status")),
		ProcessedDate:      r.DatePtr("ProcessedDate"),
		PaymentDate:        r.DatePtr("PaymentDate"),
		RejectionReason:    r.String("RejectionReason"),
		FraudRiskScore:     r.FloatPtr("FraudRiskScore"),
		IsFlaggedForReview: r.BoolPtr("IsFlaggedForReview"),
	}
}

// Row maps a payment to PremiumPayments columns.
func (p PremiumPayment) Row() database.Row {
	return database.Row{
		"PolicyID":         p.PolicyID,
		"PaymentDate":      p.PaymentDate,
		"PaymentAmount":    p.Amount,
		"PaymentMethod":    string(p.Method),
		"PaymentReference": p.Reference,
		"PaymentStatus":    string(p.Status),
		"PeriodStartDate":  p.PeriodStart,
		"PeriodEndDate":    p.PeriodEnd,
	}
}

// PaymentFromRow reads a PremiumPayments row.
func PaymentFromRow(r database.Row) PremiumPayment {
	return PremiumPayment{
		ID:          r.Int64(IDPayment),
		PolicyID:    r.Int64(IDPolicy),
		PaymentDate: r.Date("PaymentDate"),
		Amount:      r.Float("PaymentAmount"),
		Method:      PaymentMethod(r.String("PaymentMethod")),
		Reference:   r.String("PaymentReference"),
		Status:      PaymentStatus(r.String("PaymentStatus")),
		PeriodStart: r.Date("PeriodStartDate"),
		PeriodEnd:   r.Date("PeriodEndDate"),
	}
}

// Row maps a fraud indicator to FraudIndicators columns.
func (f FraudIndicator) Row() database.Row {
	return database.Row{
		"ClaimID":       nullInt(f.ClaimID),
		"MemberID":      nullInt(f.MemberID),
		"ProviderID":    nullInt(f.ProviderID),
		"IndicatorType": f.Type,
		"RiskScore":     f.RiskScore,
		"Description":   nullString(f.Description),
		"DetectedDate":  f.DetectedDate,
		"Status":        f.Status,
	}
}

// Row maps a transaction to FinancialTransactions columns.
func (t FinancialTransaction) Row() database.Row {
	return database.Row{
		"TransactionReference": t.Reference,
		"TransactionType":      string(t.Type),
		"TransactionDate":      t.Date,
		"Amount":               t.Amount,
		"PolicyID":             nullInt(t.PolicyID),
		"ClaimID":              nullInt(t.ClaimID),
		"MemberID":             nullInt(t.MemberID),
		"ProviderID":           nullInt(t.ProviderID),
		"Description":          nullString(t.Description),
		"Status":               t.Status,
	}
}

// Row maps a pattern to ClaimPatterns columns.
func (p ClaimPattern) Row() database.Row {
	return database.Row{
		"MemberID":           p.MemberID,
		"ClaimType":          string(p.ClaimType),
		"AnalysisDate":       p.AnalysisDate,
		"ClaimCount":         p.ClaimCount,
		"ClaimsPerMonth":     p.ClaimsPerMonth,
		"AverageClaimAmount": p.AverageClaimAmount,
		"PatternType":        p.PatternType,
		"TrendFactor":        p.TrendFactor,
	}
}

// Row maps a metric to ActuarialMetrics columns.
func (m ActuarialMetric) Row() database.Row {
	return database.Row{
		"MetricDate":  m.MetricDate,
		"MetricType":  m.MetricType,
		"PlanType":    string(m.PlanType),
		"MetricValue": m.Value,
		"SampleSize":  m.SampleSize,
	}
}
