// Package fhir imports members from FHIR R4 Patient resources, such as the
// bundles Synthea writes.
package fhir

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/ausphi/healthsim/internal/generator"
	"github.com/ausphi/healthsim/internal/insurance"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/shared/random"
)

// Bundle is a FHIR R4 Bundle with undecoded entry resources.
type Bundle struct {
	ResourceType string  `json:"resourceType"`
	Type         string  `json:"type,omitempty"`
	Entry        []Entry `json:"entry,omitempty"`
}

// Entry is one bundle entry.
type Entry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource"`
}

type resourceHeader struct {
	ResourceType string `json:"resourceType"`
}

// Skip records a patient that was not imported.
type Skip struct {
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason"`
}

// ImportResult holds the members built from a bundle and the patients left out.
type ImportResult struct {
	Members []insurance.Member `json:"members"`
	Skipped []Skip             `json:"skipped,omitempty"`
}

// Patients decodes the Patient resources in data, which holds either a
// Bundle or a single Patient. Other resource types are ignored.
func Patients(data []byte) ([]Patient, error) {
	var head resourceHeader
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid FHIR JSON: %v", err))
	}

	switch head.ResourceType {
	case "Patient":
		var p Patient
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("invalid Patient: %v", err))
		}
		return []Patient{p}, nil
	case "Bundle":
	default:
		return nil, apperrors.BadRequest(fmt.Sprintf("expected Bundle or Patient, got %q", head.ResourceType))
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid Bundle: %v", err))
	}
	var out []Patient
	for i, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		var h resourceHeader
		if err := json.Unmarshal(e.Resource, &h); err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("invalid entry %d: %v", i, err))
		}
		if h.ResourceType != "Patient" {
			continue
		}
		var p Patient
		if err := json.Unmarshal(e.Resource, &p); err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("invalid Patient in entry %d: %v", i, err))
		}
		out = append(out, p)
	}
	return out, nil
}

// ImportMembers builds new members joining on simDate from the patients in
// data. Membership numbers continue after existing; a patient whose
// Medicare number already belongs to a member is skipped. Attributes FHIR
// does not carry are generated from src.
func ImportMembers(data []byte, simDate time.Time, src *random.Source, existing []insurance.Member) (*ImportResult, error) {
	patients, err := Patients(data)
	if err != nil {
		return nil, err
	}
	simDate = insurance.DateOf(simDate)

	numbers := make([]string, len(existing))
	known := make(map[string]bool, len(existing))
	for i, m := range existing {
		numbers[i] = m.MembershipNumber
		if !m.MedicareNumber.IsZero() {
			known[string(m.MedicareNumber)] = true
		}
	}
	seq := insurance.NewMembershipSequence(numbers)

	res := &ImportResult{}
	for i := range patients {
		p := &patients[i]
		m, reason, ok := p.toMember(simDate)
		if !ok {
			res.Skipped = append(res.Skipped, Skip{PatientID: p.ID, Reason: reason})
			continue
		}
		if !m.MedicareNumber.IsZero() {
			if known[string(m.MedicareNumber)] {
				res.Skipped = append(res.Skipped, Skip{PatientID: p.ID, Reason: "medicare number already registered"})
				continue
			}
			known[string(m.MedicareNumber)] = true
		}

		generator.CompleteMember(src, &m, simDate)
		m.MembershipNumber = seq.Next()
		res.Members = append(res.Members, m)
	}
	return res, nil
}
