package insurance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reference prefixes
const (
	PrefixClaim       = "CLM"
	PrefixPayment     = "PMT"
	PrefixPolicy      = "POL"
	PrefixTransaction = "TXN"
	PrefixMember      = "MBR"
)

// DatedPrefix returns "CLM-20240315-" style prefixes.
func DatedPrefix(kind string, date time.Time) string {
	return kind + "-" + date.Format("20060102") + "-"
}

// Sequence hands out dated reference numbers, continuing after the highest
// suffix already issued for the same prefix.
type Sequence struct {
	prefix string
	next   int
}

// NewSequence scans existing references and starts after the highest match.
func NewSequence(kind string, date time.Time, existing []string) *Sequence {
	prefix := DatedPrefix(kind, date)
	return &Sequence{prefix: prefix, next: maxSuffix(prefix, existing) + 1}
}

// Next returns "PREFIX-YYYYMMDD-NNNNN".
func (s *Sequence) Next() string {
	ref := fmt.Sprintf("%s%05d", s.prefix, s.next)
	s.next++
	return ref
}

func maxSuffix(prefix string, refs []string) int {
	best := 0
	for _, r := range refs {
		if !strings.HasPrefix(r, prefix) {
			continue
		}
		n, err := strconv.Atoi(r[len(prefix):])
		if err == nil && n > best {
			best = n
		}
	}
	return best
}

// MembershipSequence issues "MBR-NNNNNNNN" numbers.
type MembershipSequence struct {
	next int
}

// NewMembershipSequence continues after the highest existing membership number.
func NewMembershipSequence(existing []string) *MembershipSequence {
	return &MembershipSequence{next: maxSuffix(PrefixMember+"-", existing) + 1}
}

// Next returns the next membership number.
func (s *MembershipSequence) Next() string {
	ref := fmt.Sprintf("%s-%08d", PrefixMember, s.next)
	s.next++
	return ref
}

// DateSegment extracts the YYYYMMDD part of a dated reference.
func DateSegment(ref string) string {
	parts := strings.Split(ref, "-")
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}
