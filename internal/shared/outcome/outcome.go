// Package outcome records what happened to each entity a simulation step touched,
// so callers and tests can assert on partial failures instead of scraping logs.
package outcome

import (
	"fmt"
	"strings"
)

// Kind classifies a single entity outcome.
type Kind int

const (
	Inserted Kind = iota
	Updated
	Skipped
	Failed
)

func (k Kind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText lets Kind serialize as its name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{Inserted, Updated, Skipped, Failed} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", b)
}

// Outcome is the result for one entity.
type Outcome struct {
	Kind   Kind   `json:"kind"`
	Entity string `json:"entity"`
	Ref    string `json:"ref,omitempty"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// Error returns the failure message, if any.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Report collects the outcomes of one step.
type Report struct {
	Step     string    `json:"step"`
	Warning  string    `json:"warning,omitempty"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// NewReport creates an empty report for step.
func NewReport(step string) *Report {
	return &Report{Step: step}
}

// Inserted records a created entity.
func (r *Report) Inserted(entity, ref string) {
	r.Outcomes = append(r.Outcomes, Outcome{Kind: Inserted, Entity: entity, Ref: ref})
}

// Updated records a modified entity.
func (r *Report) Updated(entity, ref string) {
	r.Outcomes = append(r.Outcomes, Outcome{Kind: Updated, Entity: entity, Ref: ref})
}

// Skipped records an entity that was deliberately not written.
func (r *Report) Skipped(entity, ref, reason string) {
	r.Outcomes = append(r.Outcomes, Outcome{Kind: Skipped, Entity: entity, Ref: ref, Reason: reason})
}

// Failed records an entity whose write failed.
func (r *Report) Failed(entity, ref string, err error) {
	r.Outcomes = append(r.Outcomes, Outcome{Kind: Failed, Entity: entity, Ref: ref, Err: err})
}

// Count returns the number of outcomes of kind k.
func (r *Report) Count(k Kind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// CountEntity returns the number of outcomes of kind k for entity.
func (r *Report) CountEntity(k Kind, entity string) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k && o.Entity == entity {
			n++
		}
	}
	return n
}

// Failures returns the failed outcomes.
func (r *Report) Failures() []Outcome {
	if r == nil {
		return nil
	}
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Kind == Failed {
			out = append(out, o)
		}
	}
	return out
}

// FirstError returns the first failure error or nil.
func (r *Report) FirstError() error {
	for _, o := range r.Failures() {
		if o.Err != nil {
			return fmt.Errorf("%s %s: %w", o.Entity, o.Ref, o.Err)
		}
	}
	return nil
}

// Summary renders "inserted=3 updated=0 skipped=1 failed=0".
func (r *Report) Summary() string {
	var b strings.Builder
	for i, k := range []Kind{Inserted, Updated, Skipped, Failed} {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d", k, r.Count(k))
	}
	return b.String()
}
