package enhanced

import (
	"context"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/storage"
)

// Snapshot is the data every generator aggregates over.
type Snapshot struct {
	Members   []insurance.Member
	Plans     []insurance.CoveragePlan
	Policies  []insurance.Policy
	Providers []insurance.Provider
	Claims    []insurance.Claim
	Payments  []insurance.PremiumPayment
}

// LoadSnapshot reads every collection from repo. Each failing load leaves its
// collection empty; the errors are returned keyed by collection.
func LoadSnapshot(ctx context.Context, repo storage.Repository) (*Snapshot, map[string]error) {
	s := &Snapshot{}
	errs := map[string]error{}
	var err error
	if s.Members, err = repo.Members(ctx); err != nil {
		errs["members"] = err
	}
	if s.Plans, err = repo.Plans(ctx); err != nil {
		errs["plans"] = err
	}
	if s.Policies, err = repo.Policies(ctx); err != nil {
		errs["policies"] = err
	}
	if s.Providers, err = repo.Providers(ctx); err != nil {
		errs["providers"] = err
	}
	if s.Claims, err = repo.Claims(ctx); err != nil {
		errs["claims"] = err
	}
	if s.Payments, err = repo.Payments(ctx); err != nil {
		errs["payments"] = err
	}
	return s, errs
}

func (s *Snapshot) planTypes() map[int64]insurance.PlanType {
	out := make(map[int64]insurance.PlanType, len(s.Plans))
	for _, p := range s.Plans {
		out[p.ID] = p.Type
	}
	return out
}

// createdOn reports whether a dated reference was issued on date.
func createdOn(ref string, date time.Time) bool {
	return insurance.DateSegment(ref) == date.Format("20060102")
}

// within reports whether t falls in (date-days, date].
func within(t, date time.Time, days int) bool {
	return t.After(date.AddDate(0, 0, -days)) && !t.After(date)
}
