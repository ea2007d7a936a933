package types

import (
	"fmt"
	"regexp"
	"strings"
)

// MedicareNumber is an Australian Medicare card number (10 digits).
// Format: SNNNNNNNCI where:
// - S: first digit, 2 to 6
// - NNNNNNN: identifier
// - C: check digit over the first 8 digits
// - I: issue number
type MedicareNumber string

var medicareRegex = regexp.MustCompile(`^[2-6]\d{9}$`)

var medicareWeights = []int{1, 3, 7, 9, 1, 3, 7, 9}

// ParseMedicareNumber validates a Medicare number, ignoring spaces.
func ParseMedicareNumber(s string) (MedicareNumber, error) {
	s = strings.ReplaceAll(s, " ", "")
	if !medicareRegex.MatchString(s) {
		return "", fmt.Errorf("medicare number must be 10 digits starting with 2-6")
	}

	m := MedicareNumber(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid medicare check digit")
	}

	return m, nil
}

// NewMedicareNumber completes an 8-digit stem with its check digit and issue number.
func NewMedicareNumber(stem string, issue int) (MedicareNumber, error) {
	if len(stem) != 8 || stem[0] < '2' || stem[0] > '6' {
		return "", fmt.Errorf("medicare stem must be 8 digits starting with 2-6")
	}
	if issue < 1 || issue > 9 {
		return "", fmt.Errorf("issue number must be 1-9")
	}
	check, err := medicareCheckDigit(stem)
	if err != nil {
		return "", err
	}
	return MedicareNumber(fmt.Sprintf("%s%d%d", stem, check, issue)), nil
}

func medicareCheckDigit(stem string) (int, error) {
	sum := 0
	for i := 0; i < 8; i++ {
		c := stem[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("medicare stem must be numeric")
		}
		sum += int(c-'0') * medicareWeights[i]
	}
	return sum % 10, nil
}

// String returns the string representation
func (m MedicareNumber) String() string {
	return string(m)
}

// Formatted renders the card layout "2123 45670 1".
func (m MedicareNumber) Formatted() string {
	if len(m) != 10 {
		return string(m)
	}
	s := string(m)
	return s[:4] + " " + s[4:9] + " " + s[9:]
}

// Masked returns a masked version for display (last 4 digits visible)
func (m MedicareNumber) Masked() string {
	if len(m) < 10 {
		return "**********"
	}
	return "******" + string(m)[6:]
}

// IsValid validates the check digit
func (m MedicareNumber) IsValid() bool {
	if !medicareRegex.MatchString(string(m)) {
		return false
	}
	check, err := medicareCheckDigit(string(m)[:8])
	if err != nil {
		return false
	}
	return int(m[8]-'0') == check
}

// IsZero checks if the number is empty
func (m MedicareNumber) IsZero() bool {
	return m == ""
}

// ProviderNumber is a Medicare provider number: 6-digit stem, practice
// location character and check character.
type ProviderNumber string

const (
	providerLocationChars = "0123456789ABCDEFGHJKLMNPQRTUVWXY"
	providerCheckChars    = "YXWTLKJHFBA"
)

var providerWeights = []int{3, 5, 8, 4, 2, 1}

// NewProviderNumber builds a provider number from a 6-digit stem and location index.
func NewProviderNumber(stem string, location int) (ProviderNumber, error) {
	if len(stem) != 6 {
		return "", fmt.Errorf("provider stem must be 6 digits")
	}
	if location < 0 || location >= len(providerLocationChars) {
		return "", fmt.Errorf("provider location out of range")
	}
	sum := location * 6
	for i := 0; i < 6; i++ {
		c := stem[i]
		if c < '0' || c > '9' {
			return "", fmt.Errorf("provider stem must be numeric")
		}
		sum += int(c-'0') * providerWeights[i]
	}
	check := providerCheckChars[sum%11]
	return ProviderNumber(fmt.Sprintf("%s%c%c", stem, providerLocationChars[location], check)), nil
}

// IsValid recomputes the check character.
func (p ProviderNumber) IsValid() bool {
	if len(p) != 8 {
		return false
	}
	loc := strings.IndexByte(providerLocationChars, p[6])
	if loc < 0 {
		return false
	}
	rebuilt, err := NewProviderNumber(string(p)[:6], loc)
	if err != nil {
		return false
	}
	return rebuilt == p
}

// String returns the string representation
func (p ProviderNumber) String() string {
	return string(p)
}
