// Package insurance holds the private health insurance domain: members,
// coverage plans, policies, providers, claims, premium payments and the
// derived records written by the enhanced generators.
package insurance

import (
	"time"

	"github.com/ausphi/healthsim/internal/shared/types"
)

// Gender of a member
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// RebateTier is the Australian Government PHI rebate income tier.
type RebateTier string

const (
	RebateBase  RebateTier = "Base"
	RebateTier1 RebateTier = "Tier 1"
	RebateTier2 RebateTier = "Tier 2"
	RebateTier3 RebateTier = "Tier 3"
)

// RebatePercentage returns the rebate for the tier (under-65 rates).
func (t RebateTier) RebatePercentage() float64 {
	switch t {
	case RebateBase:
		return 24.608
	case RebateTier1:
		return 16.405
	case RebateTier2:
		return 8.202
	default:
		return 0
	}
}

// FrequencyTier buckets how often a member claims.
type FrequencyTier string

const (
	FrequencyLow    FrequencyTier = "Low"
	FrequencyMedium FrequencyTier = "Medium"
	FrequencyHigh   FrequencyTier = "High"
)

// Member is an insured person.
type Member struct {
	ID               int64                `json:"id"`
	MembershipNumber string               `json:"membership_number"`
	FirstName        string               `json:"first_name"`
	LastName         string               `json:"last_name"`
	DateOfBirth      time.Time            `json:"date_of_birth"`
	Gender           Gender               `json:"gender"`
	Address          types.Address        `json:"address"`
	Contact          types.ContactInfo    `json:"contact"`
	MedicareNumber   types.MedicareNumber `json:"medicare_number,omitempty"`
	LHCLoading       float64              `json:"lhc_loading_percentage"`
	RebateTier       RebateTier           `json:"phi_rebate_tier"`
	JoinDate         time.Time            `json:"join_date"`
	IsActive         bool                 `json:"is_active"`

	// Risk profile, filled by the member generator and refreshed by claim pattern analysis.
	RiskScore           *float64      `json:"risk_score,omitempty"`
	HasChronicCondition *bool         `json:"has_chronic_condition,omitempty"`
	LifestyleRiskFactor *float64      `json:"lifestyle_risk_factor,omitempty"`
	ClaimFrequencyTier  FrequencyTier `json:"claim_frequency_tier,omitempty"`
	PredictedChurn      *float64      `json:"predicted_churn,omitempty"`
}

// FullName returns "First Last".
func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// AgeAt returns the member's age in whole years on date.
func (m Member) AgeAt(date time.Time) int {
	return YearsBetween(m.DateOfBirth, date)
}

// YearsBetween counts completed years from a to b.
func YearsBetween(a, b time.Time) int {
	years := b.Year() - a.Year()
	if b.Month() < a.Month() || (b.Month() == a.Month() && b.Day() < a.Day()) {
		years--
	}
	return years
}

// PlanType classifies coverage plans.
type PlanType string

const (
	PlanHospital PlanType = "Hospital"
	PlanExtras   PlanType = "Extras"
	PlanCombined PlanType = "Combined"
)

// HasHospitalCover reports whether the plan covers hospital treatment.
func (t PlanType) HasHospitalCover() bool {
	return t == PlanHospital || t == PlanCombined
}

// CoveragePlan is a product offered to members.
type CoveragePlan struct {
	ID              int64          `json:"id"`
	Code            string         `json:"plan_code"`
	Name            string         `json:"plan_name"`
	Type            PlanType       `json:"plan_type"`
	MonthlyPremium  float64        `json:"monthly_premium"`
	AnnualPremium   float64        `json:"annual_premium"`
	HospitalTier    string         `json:"hospital_tier,omitempty"`
	ExcessOptions   []float64      `json:"excess_options"`
	WaitingPeriods  map[string]int `json:"waiting_periods"`
	CoverageDetails map[string]any `json:"coverage_details"`
	IsActive        bool           `json:"is_active"`
	EffectiveDate   time.Time      `json:"effective_date"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
}

// AllowsExcess reports whether amount is one of the plan's excess options.
func (p CoveragePlan) AllowsExcess(amount float64) bool {
	for _, e := range p.ExcessOptions {
		if e == amount {
			return true
		}
	}
	return false
}

// CoverageType is who a policy covers.
type CoverageType string

const (
	CoverSingle       CoverageType = "Single"
	CoverCouple       CoverageType = "Couple"
	CoverFamily       CoverageType = "Family"
	CoverSingleParent CoverageType = "Single Parent"
)

// PremiumMultiplier scales the plan premium by coverage type.
func (c CoverageType) PremiumMultiplier() float64 {
	switch c {
	case CoverCouple:
		return 2.0
	case CoverFamily:
		return 2.5
	case CoverSingleParent:
		return 1.5
	default:
		return 1.0
	}
}

// AllowsSpouse reports whether a partner may be attached.
func (c CoverageType) AllowsSpouse() bool {
	return c == CoverCouple || c == CoverFamily
}

// AllowsChildren reports whether dependants may be attached.
func (c CoverageType) AllowsChildren() bool {
	return c == CoverFamily || c == CoverSingleParent
}

// Frequency is how often premiums are collected.
type Frequency string

const (
	FrequencyMonthly   Frequency = "Monthly"
	FrequencyQuarterly Frequency = "Quarterly"
	FrequencyAnnually  Frequency = "Annually"
)

// IntervalDays is the premium period length.
func (f Frequency) IntervalDays() int {
	switch f {
	case FrequencyQuarterly:
		return 90
	case FrequencyAnnually:
		return 365
	default:
		return 30
	}
}

// PolicyStatus of a policy
type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "Active"
	PolicySuspended PolicyStatus = "Suspended"
	PolicyCancelled PolicyStatus = "Cancelled"
	PolicyLapsed    PolicyStatus = "Lapsed"
)

// PaymentMethod used for premiums
type PaymentMethod string

const (
	PayDirectDebit PaymentMethod = "Direct Debit"
	PayCreditCard  PaymentMethod = "Credit Card"
	PayBPAY        PaymentMethod = "BPAY"
)

// PaymentMethods lists every method.
var PaymentMethods = []PaymentMethod{PayDirectDebit, PayCreditCard, PayBPAY}

// Policy is a contract between the insurer and a primary member.
type Policy struct {
	ID                   int64         `json:"id"`
	Number               string        `json:"policy_number"`
	PrimaryMemberID      int64         `json:"primary_member_id"`
	PlanID               int64         `json:"plan_id"`
	CoverageType         CoverageType  `json:"coverage_type"`
	StartDate            time.Time     `json:"start_date"`
	EndDate              *time.Time    `json:"end_date,omitempty"`
	CurrentPremium       float64       `json:"current_premium"`
	Frequency            Frequency     `json:"premium_frequency"`
	ExcessAmount         float64       `json:"excess_amount"`
	RebatePercentage     float64       `json:"rebate_percentage"`
	LHCLoading           float64       `json:"lhc_loading_percentage"`
	Status               PolicyStatus  `json:"status"`
	PaymentMethod        PaymentMethod `json:"payment_method"`
	LastPremiumPaidDate  *time.Time    `json:"last_premium_paid_date,omitempty"`
	NextPremiumDueDate   *time.Time    `json:"next_premium_due_date,omitempty"`
	RiskAdjustmentFactor *float64      `json:"risk_adjustment_factor,omitempty"`
	UnderwritingScore    *float64      `json:"underwriting_score,omitempty"`
}

// IsDue reports whether a premium payment should be collected on date.
func (p Policy) IsDue(date time.Time) bool {
	return p.Status == PolicyActive && p.NextPremiumDueDate != nil && !p.NextPremiumDueDate.After(date)
}

// Relationship of a covered person to the primary member.
type Relationship string

const (
	RelSelf   Relationship = "Self"
	RelSpouse Relationship = "Spouse"
	RelChild  Relationship = "Child"
)

// PolicyMember links a member to a policy.
type PolicyMember struct {
	ID           int64        `json:"id"`
	PolicyID     int64        `json:"policy_id"`
	MemberID     int64        `json:"member_id"`
	Relationship Relationship `json:"relationship_to_primary"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      *time.Time   `json:"end_date,omitempty"`
	IsActive     bool         `json:"is_active"`
}

// ProviderType classifies providers.
type ProviderType string

const (
	ProviderHospital        ProviderType = "Hospital"
	ProviderGP              ProviderType = "General Practitioner"
	ProviderSpecialist      ProviderType = "Specialist"
	ProviderDentist         ProviderType = "Dentist"
	ProviderPhysiotherapist ProviderType = "Physiotherapist"
	ProviderOptometrist     ProviderType = "Optometrist"
	ProviderChiropractor    ProviderType = "Chiropractor"
	ProviderPsychologist    ProviderType = "Psychologist"
	ProviderPodiatrist      ProviderType = "Podiatrist"
)

// Provider is a hospital or practitioner that bills claims.
type Provider struct {
	ID                 int64                `json:"id"`
	Number             types.ProviderNumber `json:"provider_number"`
	Name               string               `json:"provider_name"`
	Type               ProviderType         `json:"provider_type"`
	Address            types.Address        `json:"address"`
	Contact            types.ContactInfo    `json:"contact"`
	IsPreferred        bool                 `json:"is_preferred_provider"`
	AgreementStartDate *time.Time           `json:"agreement_start_date,omitempty"`
	AgreementEndDate   *time.Time           `json:"agreement_end_date,omitempty"`
	IsActive           bool                 `json:"is_active"`

	BillingPatternScore  *float64      `json:"billing_pattern_score,omitempty"`
	AverageClaimValue    *float64      `json:"average_claim_value,omitempty"`
	ClaimFrequencyRating FrequencyTier `json:"claim_frequency_rating,omitempty"`
	SpecialtyRiskFactor  *float64      `json:"specialty_risk_factor,omitempty"`
	ComplianceScore      *float64      `json:"compliance_score,omitempty"`
}

// HasOpenAgreement reports whether a preferred-provider agreement is in force on date.
func (p Provider) HasOpenAgreement(date time.Time) bool {
	if !p.IsPreferred {
		return false
	}
	return p.AgreementEndDate == nil || !p.AgreementEndDate.Before(date)
}

// ClaimType classifies claims.
type ClaimType string

const (
	ClaimHospital      ClaimType = "Hospital"
	ClaimMedical       ClaimType = "Medical"
	ClaimDental        ClaimType = "Dental"
	ClaimOptical       ClaimType = "Optical"
	ClaimPhysiotherapy ClaimType = "Physiotherapy"
	ClaimChiropractic  ClaimType = "Chiropractic"
	ClaimPsychology    ClaimType = "Psychology"
	ClaimPodiatry      ClaimType = "Podiatry"
)

// GeneralClaimTypes are the extras claim types.
var GeneralClaimTypes = []ClaimType{
	ClaimDental, ClaimOptical, ClaimPhysiotherapy, ClaimChiropractic, ClaimPsychology, ClaimPodiatry,
}

// ProviderTypeFor returns the provider type that bills a general claim type.
func (t ClaimType) ProviderTypeFor() ProviderType {
	switch t {
	case ClaimDental:
		return ProviderDentist
	case ClaimOptical:
		return ProviderOptometrist
	case ClaimPhysiotherapy:
		return ProviderPhysiotherapist
	case ClaimChiropractic:
		return ProviderChiropractor
	case ClaimPsychology:
		return ProviderPsychologist
	case ClaimPodiatry:
		return ProviderPodiatrist
	case ClaimHospital:
		return ProviderHospital
	default:
		return ProviderGP
	}
}

// Claim is a request for benefit against a policy.
type Claim struct {
	ID                 int64       `json:"id"`
	Number             string      `json:"claim_number"`
	PolicyID           int64       `json:"policy_id"`
	MemberID           int64       `json:"member_id"`
	ProviderID         int64       `json:"provider_id"`
	ServiceDate        time.Time   `json:"service_date"`
	SubmissionDate     time.Time   `json:"submission_date"`
	Type               ClaimType   `json:"claim_type"`
	ServiceDescription string      `json:"service_description"`
	MBSItemNumber      string      `json:"mbs_item_number,omitempty"`
	ChargedAmount      float64     `json:"charged_amount"`
	MedicareAmount     float64     `json:"medicare_amount"`
	InsuranceAmount    float64     `json:"insurance_amount"`
	GapAmount          float64     `json:"gap_amount"`
	ExcessApplied      float64     `json:"excess_applied"`
	Status             ClaimStatus `json:"status"`
	ProcessedDate      *time.Time  `json:"processed_date,omitempty"`
	PaymentDate        *time.Time  `json:"payment_date,omitempty"`
	RejectionReason    string      `json:"rejection_reason,omitempty"`
	FraudRiskScore     *float64    `json:"fraud_risk_score,omitempty"`
	IsFlaggedForReview *bool       `json:"is_flagged_for_review,omitempty"`
}

// PaymentStatus of a premium payment
type PaymentStatus string

const (
	PaymentSuccessful PaymentStatus = "Successful"
	PaymentFailed     PaymentStatus = "Failed"
	PaymentPending    PaymentStatus = "Pending"
)

// PremiumPayment is one premium collection.
type PremiumPayment struct {
	ID          int64         `json:"id"`
	PolicyID    int64         `json:"policy_id"`
	PaymentDate time.Time     `json:"payment_date"`
	Amount      float64       `json:"payment_amount"`
	Method      PaymentMethod `json:"payment_method"`
	Reference   string        `json:"payment_reference"`
	Status      PaymentStatus `json:"payment_status"`
	PeriodStart time.Time     `json:"period_start_date"`
	PeriodEnd   time.Time     `json:"period_end_date"`
}

// FraudIndicator flags suspicious activity.
type FraudIndicator struct {
	ID           int64     `json:"id"`
	ClaimID      *int64    `json:"claim_id,omitempty"`
	MemberID     *int64    `json:"member_id,omitempty"`
	ProviderID   *int64    `json:"provider_id,omitempty"`
	Type         string    `json:"indicator_type"`
	RiskScore    float64   `json:"risk_score"`
	Description  string    `json:"description"`
	DetectedDate time.Time `json:"detected_date"`
	Status       string    `json:"status"`
}

// Fraud indicator types
const (
	FraudProviderOverbilling = "Provider Overbilling"
	FraudHighFrequency       = "High Claim Frequency"
	FraudDuplicateClaim      = "Duplicate Claim"
	FraudAnomalyScore        = "Anomalous Claim"
)

// TransactionType classifies financial transactions.
type TransactionType string

const (
	TxnPremiumReceipt TransactionType = "Premium Receipt"
	TxnClaimPayment   TransactionType = "Claim Payment"
	TxnAdjustment     TransactionType = "Adjustment"
	TxnRefund         TransactionType = "Refund"
)

// FinancialTransaction is a ledger entry.
type FinancialTransaction struct {
	ID          int64           `json:"id"`
	Reference   string          `json:"transaction_reference"`
	Type        TransactionType `json:"transaction_type"`
	Date        time.Time       `json:"transaction_date"`
	Amount      float64         `json:"amount"`
	PolicyID    *int64          `json:"policy_id,omitempty"`
	ClaimID     *int64          `json:"claim_id,omitempty"`
	MemberID    *int64          `json:"member_id,omitempty"`
	ProviderID  *int64          `json:"provider_id,omitempty"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
}

// ClaimPattern summarises a member's claiming for one claim type.
type ClaimPattern struct {
	ID                 int64     `json:"id"`
	MemberID           int64     `json:"member_id"`
	ClaimType          ClaimType `json:"claim_type"`
	AnalysisDate       time.Time `json:"analysis_date"`
	ClaimCount         int       `json:"claim_count"`
	ClaimsPerMonth     float64   `json:"claims_per_month"`
	AverageClaimAmount float64   `json:"average_claim_amount"`
	PatternType        string    `json:"pattern_type"`
	TrendFactor        float64   `json:"trend_factor"`
}

// Claim pattern types
const (
	PatternRegular    = "Regular"
	PatternFrequent   = "Frequent"
	PatternOccasional = "Occasional"
	PatternHighValue  = "High Value"
)

// ActuarialMetric is a monthly portfolio statistic.
type ActuarialMetric struct {
	ID         int64     `json:"id"`
	MetricDate time.Time `json:"metric_date"`
	MetricType string    `json:"metric_type"`
	PlanType   PlanType  `json:"plan_type"`
	Value      float64   `json:"metric_value"`
	SampleSize int       `json:"sample_size"`
}

// Actuarial metric types
const (
	MetricLossRatio      = "Loss Ratio"
	MetricClaimFrequency = "Claim Frequency per 1000"
	MetricAverageClaim   = "Average Claim Size"
	MetricLapseRate      = "Lapse Rate"
)
