package generator

import (
	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/types"
)

var maleNames = []string{
	"Oliver", "Jack", "William", "Noah", "Thomas", "James", "Lucas", "Henry", "Liam", "Ethan",
	"Lachlan", "Cooper", "Mason", "Hudson", "Archie", "Samuel", "Daniel", "Benjamin", "Riley", "Harrison",
}

var femaleNames = []string{
	"Charlotte", "Olivia", "Amelia", "Isla", "Mia", "Ava", "Grace", "Chloe", "Sophie", "Ruby",
	"Matilda", "Harper", "Zoe", "Evie", "Lily", "Emily", "Hannah", "Georgia", "Sienna", "Willow",
}

var doctorFirstNames = append(append([]string{}, maleNames...), femaleNames...)

var neutralNames = []string{"Alex", "Jordan", "Sam", "Charlie", "Riley", "Jamie", "Taylor", "Casey"}

var lastNames = []string{
	"Smith", "Jones", "Williams", "Brown", "Wilson", "Taylor", "Nguyen", "Johnson", "Martin", "White",
	"Anderson", "Walker", "Thompson", "Thomas", "Lee", "Ryan", "Robinson", "Kelly", "King", "Harris",
	"Campbell", "Mitchell", "Clarke", "Young", "Murphy", "Tran", "Singh", "Patel", "Chen", "Wang",
}

var streetNames = []string{
	"George", "King", "Queen", "Elizabeth", "Victoria", "Church", "High", "Park", "Station", "Railway",
	"Beach", "Bridge", "Albert", "William", "Market", "Hill", "Forest", "River", "Ocean", "Wattle",
}

var streetTypes = []string{"St", "Rd", "Ave", "Pde", "Cres", "Dr", "Ct", "Pl", "Tce", "Way"}

type locality struct {
	Suburb   string
	State    types.State
	Postcode string
	Area     string
}

var localities = []locality{
	{"Parramatta", types.StateNSW, "2150", "02"},
	{"Bondi", types.StateNSW, "2026", "02"},
	{"Newcastle", types.StateNSW, "2300", "02"},
	{"Wollongong", types.StateNSW, "2500", "02"},
	{"Richmond", types.StateVIC, "3121", "03"},
	{"Geelong", types.StateVIC, "3220", "03"},
	{"Ballarat", types.StateVIC, "3350", "03"},
	{"St Kilda", types.StateVIC, "3182", "03"},
	{"Fortitude Valley", types.StateQLD, "4006", "07"},
	{"Southport", types.StateQLD, "4215", "07"},
	{"Townsville", types.StateQLD, "4810", "07"},
	{"Fremantle", types.StateWA, "6160", "08"},
	{"Joondalup", types.StateWA, "6027", "08"},
	{"Glenelg", types.StateSA, "5045", "08"},
	{"Norwood", types.StateSA, "5067", "08"},
	{"Sandy Bay", types.StateTAS, "7005", "03"},
	{"Launceston", types.StateTAS, "7250", "03"},
	{"Belconnen", types.StateACT, "2617", "02"},
	{"Darwin City", types.StateNT, "0800", "08"},
}

var emailDomains = []string{"gmail.com", "outlook.com", "bigpond.com", "yahoo.com.au", "icloud.com", "optusnet.com.au"}

// mbsItem is a Medicare Benefits Schedule item used for hospital claims.
type mbsItem struct {
	Number      string
	Description string
	Fee         float64
}

var mbsItems = []mbsItem{
	{"30001", "Hospital admission - general", 510.50},
	{"30026", "Repair of wound - superficial", 98.50},
	{"30390", "Laparoscopy - diagnostic", 403.15},
	{"30443", "Cholecystectomy - laparoscopic", 1102.40},
	{"31340", "Appendicectomy", 701.05},
	{"35503", "Hysteroscopy", 253.70},
	{"38200", "Cardiac catheterisation", 612.40},
	{"42702", "Cataract surgery - lens extraction", 816.90},
	{"47558", "Fracture of wrist - closed reduction", 428.35},
	{"49518", "Total knee replacement", 1567.75},
}

// service is an extras service with a typical fee range.
type service struct {
	Description string
	MinFee      float64
	MaxFee      float64
}

var generalServices = map[insurance.ClaimType][]service{
	insurance.ClaimDental: {
		{"Periodic oral examination", 55, 90},
		{"Scale and clean", 110, 180},
		{"Amalgam filling - one surface", 120, 220},
		{"Root canal treatment", 800, 1500},
		{"Tooth extraction", 180, 350},
	},
	insurance.ClaimOptical: {
		{"Prescription spectacles", 150, 600},
		{"Contact lenses", 120, 400},
		{"Eye examination", 60, 120},
	},
	insurance.ClaimPhysiotherapy: {
		{"Initial physiotherapy consultation", 85, 140},
		{"Standard physiotherapy consultation", 75, 120},
		{"Hydrotherapy session", 60, 100},
	},
	insurance.ClaimChiropractic: {
		{"Initial chiropractic consultation", 70, 120},
		{"Chiropractic adjustment", 55, 90},
	},
	insurance.ClaimPsychology: {
		{"Individual psychology session", 180, 280},
		{"Initial psychological assessment", 220, 320},
	},
	insurance.ClaimPodiatry: {
		{"Podiatry consultation", 70, 110},
		{"Custom orthotics", 350, 650},
	},
}

var rejectionReasons = []string{
	"Service not covered under policy",
	"Waiting period not served",
	"Annual limit reached",
	"Insufficient documentation",
	"Duplicate claim",
	"Policy not active at date of service",
	"Provider not recognised",
}

// planTemplate describes one product tier.
type planTemplate struct {
	Type         insurance.PlanType
	Tier         string
	Name         string
	BasePremium  float64
	Included     []string
	Restricted   []string
	Excluded     []string
	AnnualLimits map[string]float64
}

var hospitalTemplates = []planTemplate{
	{
		Type: insurance.PlanHospital, Tier: "Basic", Name: "Basic Hospital", BasePremium: 95,
		Included:   []string{"Rehabilitation", "Hospital psychiatric services", "Palliative care"},
		Restricted: []string{"Dental surgery", "Podiatric surgery"},
		Excluded:   []string{"Heart and vascular system", "Joint replacements", "Pregnancy and birth", "Cataracts"},
	},
	{
		Type: insurance.PlanHospital, Tier: "Bronze", Name: "Bronze Hospital", BasePremium: 135,
		Included:   []string{"Rehabilitation", "Hospital psychiatric services", "Palliative care", "Tonsils, adenoids and grommets", "Bone, joint and muscle"},
		Restricted: []string{"Back, neck and spine"},
		Excluded:   []string{"Joint replacements", "Pregnancy and birth", "Cataracts"},
	},
	{
		Type: insurance.PlanHospital, Tier: "Silver", Name: "Silver Hospital", BasePremium: 185,
		Included:   []string{"Rehabilitation", "Hospital psychiatric services", "Palliative care", "Bone, joint and muscle", "Heart and vascular system", "Back, neck and spine"},
		Restricted: []string{"Joint replacements"},
		Excluded:   []string{"Pregnancy and birth", "Assisted reproductive services"},
	},
	{
		Type: insurance.PlanHospital, Tier: "Gold", Name: "Gold Hospital", BasePremium: 260,
		Included: []string{"All clinical categories", "Pregnancy and birth", "Joint replacements", "Cataracts", "Assisted reproductive services"},
	},
}

var extrasTemplates = []planTemplate{
	{
		Type: insurance.PlanExtras, Tier: "Basic", Name: "Basic Extras", BasePremium: 25,
		Included:     []string{"General dental", "Optical"},
		Excluded:     []string{"Major dental", "Orthodontics", "Psychology"},
		AnnualLimits: map[string]float64{"General dental": 300, "Optical": 150},
	},
	{
		Type: insurance.PlanExtras, Tier: "Mid", Name: "Mid Extras", BasePremium: 45,
		Included:     []string{"General dental", "Optical", "Physiotherapy", "Chiropractic", "Podiatry"},
		Restricted:   []string{"Major dental"},
		Excluded:     []string{"Orthodontics"},
		AnnualLimits: map[string]float64{"General dental": 600, "Optical": 250, "Physiotherapy": 400},
	},
	{
		Type: insurance.PlanExtras, Tier: "Top", Name: "Top Extras", BasePremium: 75,
		Included:     []string{"General dental", "Major dental", "Orthodontics", "Optical", "Physiotherapy", "Chiropractic", "Psychology", "Podiatry"},
		AnnualLimits: map[string]float64{"General dental": 1000, "Major dental": 1500, "Optical": 350, "Psychology": 800},
	},
}

var combinedTemplates = []planTemplate{
	{
		Type: insurance.PlanCombined, Tier: "Bronze", Name: "Bronze Combined", BasePremium: 165,
		Included: []string{"Bronze hospital categories", "General dental", "Optical"},
		Excluded: []string{"Pregnancy and birth", "Joint replacements"},
	},
	{
		Type: insurance.PlanCombined, Tier: "Silver", Name: "Silver Combined", BasePremium: 235,
		Included:   []string{"Silver hospital categories", "General dental", "Optical", "Physiotherapy"},
		Restricted: []string{"Joint replacements"},
	},
	{
		Type: insurance.PlanCombined, Tier: "Gold", Name: "Gold Combined", BasePremium: 330,
		Included: []string{"All clinical categories", "General dental", "Major dental", "Optical", "Physiotherapy", "Psychology"},
	},
}

// excessOptionsByTier holds the hospital excess choices per tier.
var excessOptionsByTier = map[string][]float64{
	"Gold":   {0, 250, 500},
	"Silver": {250, 500, 750},
	"Bronze": {500, 750},
	"Basic":  {500, 750},
}

// excessDiscount is the premium reduction for a chosen hospital excess.
var excessDiscount = map[float64]float64{0: 0, 250: 0.05, 500: 0.10, 750: 0.15}

var hospitalWaitingPeriods = map[string]int{
	"general":         2,
	"pre_existing":    12,
	"pregnancy":       12,
	"psychiatric":     2,
	"rehabilitation":  2,
	"palliative_care": 2,
}

var extrasWaitingPeriods = map[string]int{
	"general_dental": 2,
	"major_dental":   12,
	"optical":        6,
	"physiotherapy":  2,
	"orthodontics":   12,
}

var hospitalNamePrefixes = []string{"St Vincent's", "Royal", "Mater", "St John of God", "Prince of Wales", "Calvary", "Epworth", "Ramsay", "Holy Spirit", "Mercy"}

var hospitalNameSuffixes = []string{"Hospital", "Private Hospital", "Medical Centre", "Day Surgery"}

var practiceNameSuffixes = map[insurance.ProviderType][]string{
	insurance.ProviderGP:              {"Medical Practice", "Family Clinic", "Medical Centre", "General Practice"},
	insurance.ProviderSpecialist:      {"Specialist Rooms", "Specialist Centre", "Consulting Suites"},
	insurance.ProviderDentist:         {"Dental", "Dental Care", "Smiles"},
	insurance.ProviderPhysiotherapist: {"Physiotherapy", "Physio & Sports Injury"},
	insurance.ProviderOptometrist:     {"Optometrists", "Eyecare"},
	insurance.ProviderChiropractor:    {"Chiropractic", "Spinal Health"},
	insurance.ProviderPsychologist:    {"Psychology", "Wellbeing Centre"},
	insurance.ProviderPodiatrist:      {"Podiatry", "Foot Clinic"},
}

var specialties = []string{"Cardiology", "Orthopaedics", "Dermatology", "Gastroenterology", "Neurology", "Oncology", "Ophthalmology", "Urology"}

var otherProviderTypes = []insurance.ProviderType{
	insurance.ProviderDentist,
	insurance.ProviderPhysiotherapist,
	insurance.ProviderOptometrist,
	insurance.ProviderChiropractor,
	insurance.ProviderPsychologist,
	insurance.ProviderPodiatrist,
}

// preferredProbability is the chance a new provider signs a preferred agreement.
var preferredProbability = map[insurance.ProviderType]float64{
	insurance.ProviderHospital:   0.8,
	insurance.ProviderGP:         0.5,
	insurance.ProviderSpecialist: 0.7,
}

const otherPreferredProbability = 0.4
