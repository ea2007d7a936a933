package types

import "fmt"

// State is an Australian state or territory code.
type State string

const (
	StateNSW State = "NSW"
	StateVIC State = "VIC"
	StateQLD State = "QLD"
	StateWA  State = "WA"
	StateSA  State = "SA"
	StateTAS State = "TAS"
	StateACT State = "ACT"
	StateNT  State = "NT"
)

// Address represents a physical address
type Address struct {
	Street   string `json:"street"`
	Suburb   string `json:"suburb"`
	State    State  `json:"state"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"` // ISO 3166-1 alpha-2, default "AU"
}

// NewAddress creates a new address with Australia as default country
func NewAddress(street, suburb string, state State, postcode string) Address {
	return Address{
		Street:   street,
		Suburb:   suburb,
		State:    state,
		Postcode: postcode,
		Country:  "AU",
	}
}

// String renders the single-line postal form.
func (a Address) String() string {
	return fmt.Sprintf("%s, %s %s %s", a.Street, a.Suburb, a.State, a.Postcode)
}

// ContactInfo represents contact information
type ContactInfo struct {
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}
