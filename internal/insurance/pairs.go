package insurance

// pairKey identifies a (policy, member) link.
type pairKey struct {
	policyID int64
	memberID int64
}

// PairSet tracks (policy, member) pairs already linked so the generator never
// emits a duplicate PolicyMember row.
type PairSet struct {
	pairs map[pairKey]struct{}
}

// NewPairSet builds a set from existing links.
func NewPairSet(links []PolicyMember) *PairSet {
	s := &PairSet{pairs: make(map[pairKey]struct{}, len(links))}
	for _, l := range links {
		s.Add(l.PolicyID, l.MemberID)
	}
	return s
}

// Has reports whether the pair is already linked.
func (s *PairSet) Has(policyID, memberID int64) bool {
	_, ok := s.pairs[pairKey{policyID, memberID}]
	return ok
}

// Add records a pair and reports whether it was new.
func (s *PairSet) Add(policyID, memberID int64) bool {
	k := pairKey{policyID, memberID}
	if _, ok := s.pairs[k]; ok {
		return false
	}
	s.pairs[k] = struct{}{}
	return true
}

// Len returns the number of pairs.
func (s *PairSet) Len() int {
	return len(s.pairs)
}
