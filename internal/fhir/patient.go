package fhir

import (
	"strings"
	"time"
	"unicode"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/types"
)

// Identifier systems from the AU Base profiles
const (
	MedicareSystem = "http://ns.electronichealth.net.au/id/medicare-number"
	IHISystem      = "http://ns.electronichealth.net.au/id/hi/ihi/1.0"
)

// Patient represents a FHIR R4 Patient resource (the fields the import reads)
type Patient struct {
	ResourceType     string         `json:"resourceType"`
	ID               string         `json:"id,omitempty"`
	Meta             *Meta          `json:"meta,omitempty"`
	Identifier       []Identifier   `json:"identifier,omitempty"`
	Active           *bool          `json:"active,omitempty"`
	Name             []HumanName    `json:"name,omitempty"`
	Telecom          []ContactPoint `json:"telecom,omitempty"`
	Gender           string         `json:"gender,omitempty"`
	BirthDate        string         `json:"birthDate,omitempty"`
	DeceasedBoolean  *bool          `json:"deceasedBoolean,omitempty"`
	DeceasedDateTime string         `json:"deceasedDateTime,omitempty"`
	Address          []Address      `json:"address,omitempty"`
}

// Meta holds resource metadata
type Meta struct {
	VersionID   string   `json:"versionId,omitempty"`
	LastUpdated string   `json:"lastUpdated,omitempty"`
	Profile     []string `json:"profile,omitempty"`
}

// Identifier represents a FHIR Identifier
type Identifier struct {
	Use    string           `json:"use,omitempty"`
	Type   *CodeableConcept `json:"type,omitempty"`
	System string           `json:"system,omitempty"`
	Value  string           `json:"value,omitempty"`
}

// CodeableConcept represents a FHIR CodeableConcept
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Coding represents a FHIR Coding
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// HumanName represents a FHIR HumanName
type HumanName struct {
	Use    string   `json:"use,omitempty"` // usual, official, temp, nickname, anonymous, old, maiden
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
	Prefix []string `json:"prefix,omitempty"`
}

// ContactPoint represents a FHIR ContactPoint
type ContactPoint struct {
	System string `json:"system,omitempty"` // phone, fax, email, pager, url, sms, other
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"` // home, work, temp, old, mobile
}

// Address represents a FHIR Address
type Address struct {
	Use        string   `json:"use,omitempty"`
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Country    string   `json:"country,omitempty"`
}

var stateNames = map[string]types.State{
	"nsw": types.StateNSW, "new south wales": types.StateNSW,
	"vic": types.StateVIC, "victoria": types.StateVIC,
	"qld": types.StateQLD, "queensland": types.StateQLD,
	"wa": types.StateWA, "western australia": types.StateWA,
	"sa": types.StateSA, "south australia": types.StateSA,
	"tas": types.StateTAS, "tasmania": types.StateTAS,
	"act": types.StateACT, "australian capital territory": types.StateACT,
	"nt": types.StateNT, "northern territory": types.StateNT,
}

// IsDeceased reports either deceased flag.
func (p *Patient) IsDeceased() bool {
	return (p.DeceasedBoolean != nil && *p.DeceasedBoolean) || p.DeceasedDateTime != ""
}

// officialName returns the official name, falling back to the first one.
func (p *Patient) officialName() (HumanName, bool) {
	if len(p.Name) == 0 {
		return HumanName{}, false
	}
	for _, n := range p.Name {
		if n.Use == "official" {
			return n, true
		}
	}
	return p.Name[0], true
}

// toMember maps the demographic fields onto a Member. ok is false with a
// reason when the patient cannot become a member.
func (p *Patient) toMember(simDate time.Time) (m insurance.Member, reason string, ok bool) {
	if p.IsDeceased() {
		return m, "deceased", false
	}
	if p.Active != nil && !*p.Active {
		return m, "inactive record", false
	}

	name, found := p.officialName()
	if !found || name.Family == "" || len(name.Given) == 0 {
		return m, "missing name", false
	}
	m.FirstName = cleanName(name.Given[0])
	m.LastName = cleanName(name.Family)
	if m.FirstName == "" || m.LastName == "" {
		return m, "missing name", false
	}

	dob, err := time.Parse(time.DateOnly, p.BirthDate)
	if err != nil {
		return m, "missing or invalid birthDate", false
	}
	if dob.After(simDate) {
		return m, "born after simulation date", false
	}
	m.DateOfBirth = dob

	switch p.Gender {
	case "male":
		m.Gender = insurance.GenderMale
	case "female":
		m.Gender = insurance.GenderFemale
	case "other", "unknown":
		m.Gender = insurance.GenderOther
	}

	for _, t := range p.Telecom {
		switch {
		case t.System == "email" && m.Contact.Email == "":
			m.Contact.Email = strings.TrimSpace(t.Value)
		case t.System == "phone" && t.Use == "mobile" && m.Contact.Mobile == "":
			m.Contact.Mobile = strings.TrimSpace(t.Value)
		case t.System == "phone" && m.Contact.Phone == "":
			m.Contact.Phone = strings.TrimSpace(t.Value)
		}
	}

	if addr, ok := p.australianAddress(); ok {
		m.Address = addr
	}
	m.MedicareNumber = p.medicareNumber()
	return m, "", true
}

// australianAddress returns the home (or first) address when it is in Australia.
func (p *Patient) australianAddress() (types.Address, bool) {
	if len(p.Address) == 0 {
		return types.Address{}, false
	}
	a := p.Address[0]
	for _, cand := range p.Address {
		if cand.Use == "home" {
			a = cand
			break
		}
	}
	switch strings.ToUpper(strings.TrimSpace(a.Country)) {
	case "", "AU", "AUS", "AUSTRALIA":
	default:
		return types.Address{}, false
	}
	state, ok := stateNames[strings.ToLower(strings.TrimSpace(a.State))]
	if !ok || len(a.Line) == 0 {
		return types.Address{}, false
	}
	return types.NewAddress(strings.Join(a.Line, ", "), a.City, state, a.PostalCode), true
}

// medicareNumber returns the card number from a Medicare identifier. The
// value may carry the individual reference number as an eleventh digit.
func (p *Patient) medicareNumber() types.MedicareNumber {
	for _, id := range p.Identifier {
		if id.System != MedicareSystem {
			continue
		}
		v := strings.ReplaceAll(id.Value, " ", "")
		if len(v) > 10 {
			v = v[:10]
		}
		if m, err := types.ParseMedicareNumber(v); err == nil {
			return m
		}
	}
	return ""
}

// cleanName drops the digits Synthea appends to generated names.
func cleanName(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, s))
}
