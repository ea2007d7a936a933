package simulation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ausphi/healthsim/internal/insurance"
	"github.com/ausphi/healthsim/internal/shared/events"
	"github.com/ausphi/healthsim/internal/shared/outcome"
	"github.com/ausphi/healthsim/internal/shared/random"
	"github.com/ausphi/healthsim/internal/shared/types"
)

// Frequency is the stride of a historical run.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// ParseFrequency accepts daily, weekly or monthly in any case.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Daily, Weekly, Monthly:
		return f, nil
	case "":
		return Daily, nil
	default:
		return "", fmt.Errorf("unknown frequency %q (want daily, weekly or monthly)", s)
	}
}

// StrideDays is the number of days between simulated dates. Months are
// approximated as 30 days.
func (f Frequency) StrideDays() int {
	switch f {
	case Weekly:
		return 7
	case Monthly:
		return 30
	default:
		return 1
	}
}

const (
	randomizeFraction     = 0.2
	weekendMemberFactor   = 0.5
	monthBoundaryClaims   = 1.3
	monthBoundaryDayRange = 3
)

// HistoricalOptions configures RunHistorical. Daily supplies the base counts;
// NewPlans only applies to the first simulated date.
type HistoricalOptions struct {
	Frequency Frequency    `json:"frequency"`
	Randomize bool         `json:"randomize"`
	Enhanced  bool         `json:"enhanced"`
	Daily     DailyOptions `json:"daily"`
}

// HistoricalResult summarises a run over a date range.
type HistoricalResult struct {
	RunID    types.ID       `json:"run_id"`
	Start    time.Time      `json:"start"`
	End      time.Time      `json:"end"`
	Days     []*DailyResult `json:"days"`
	Duration time.Duration  `json:"duration"`
}

// Total sums outcomes of kind k across every day.
func (h *HistoricalResult) Total(k outcome.Kind) int {
	n := 0
	for _, d := range h.Days {
		n += d.Total(k)
	}
	return n
}

// Dates returns the simulated dates from start to end inclusive at the
// frequency's stride.
func Dates(start, end time.Time, f Frequency) []time.Time {
	start, end = insurance.DateOf(start), insurance.DateOf(end)
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, f.StrideDays()) {
		out = append(out, d)
	}
	return out
}

// OptionsForDay adjusts the base counts for date: weekends add half the
// members, the first and last three days of a month bring 30% more claims,
// and randomize varies each count by up to 20% either way.
func OptionsForDay(base DailyOptions, date time.Time, randomize bool, src *random.Source) DailyOptions {
	o := base
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		o.NewMembers = scale(o.NewMembers, weekendMemberFactor)
	}
	if nearMonthBoundary(date) {
		o.HospitalClaims = scale(o.HospitalClaims, monthBoundaryClaims)
		o.GeneralClaims = scale(o.GeneralClaims, monthBoundaryClaims)
	}
	if randomize {
		for _, n := range []*int{
			&o.NewMembers, &o.NewProviders, &o.NewPolicies, &o.MemberUpdates,
			&o.ProviderUpdates, &o.PolicyChanges, &o.HospitalClaims, &o.GeneralClaims,
		} {
			*n = src.Jitter(*n, randomizeFraction)
		}
	}
	return o
}

func scale(n int, factor float64) int {
	return int(math.Round(float64(n) * factor))
}

func nearMonthBoundary(date time.Time) bool {
	last := time.Date(date.Year(), date.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return date.Day() <= monthBoundaryDayRange || date.Day() > last-monthBoundaryDayRange
}

// RunHistorical runs RunDaily for every date from start to end at the chosen
// frequency. It stops early when ctx is cancelled or a day returns an error.
func (s *Simulation) RunHistorical(ctx context.Context, start, end time.Time, opts HistoricalOptions) (*HistoricalResult, error) {
	start, end = insurance.DateOf(start), insurance.DateOf(end)
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if opts.Frequency == "" {
		opts.Frequency = Daily
	}

	res := &HistoricalResult{RunID: types.NewID(), Start: start, End: end}
	began := time.Now()
	log := s.log.With().Str("run_id", res.RunID.String()).Logger()
	dates := Dates(start, end, opts.Frequency)
	log.Info().
		Time("start", start).
		Time("end", end).
		Str("frequency", string(opts.Frequency)).
		Int("days", len(dates)).
		Msg("starting historical simulation")
	s.publish(ctx, events.NewEvent(events.TypeHistoricalStarted, eventSource, map[string]any{
		"start":     start.Format(time.DateOnly),
		"end":       end.Format(time.DateOnly),
		"frequency": opts.Frequency,
		"days":      len(dates),
	}).WithCorrelation(res.RunID.String()))

	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(began)
			return res, err
		}
		day := OptionsForDay(opts.Daily, date, opts.Randomize, s.src)
		day.Enhanced = opts.Enhanced
		if i > 0 {
			day.NewPlans = 0
		}

		dr, err := s.RunDaily(ctx, date, day)
		if dr != nil {
			res.Days = append(res.Days, dr)
		}
		if err != nil {
			res.Duration = time.Since(began)
			log.Error().Err(err).Time("date", date).Msg("historical simulation stopped")
			return res, fmt.Errorf("simulating %s: %w", date.Format(time.DateOnly), err)
		}
		log.Debug().Int("day", i+1).Int("of", len(dates)).Msg("day simulated")
	}

	res.Duration = time.Since(began)
	s.publish(ctx, events.NewEvent(events.TypeHistoricalCompleted, eventSource, map[string]any{
		"days":     len(res.Days),
		"inserted": res.Total(outcome.Inserted),
		"updated":  res.Total(outcome.Updated),
		"failed":   res.Total(outcome.Failed),
	}).WithCorrelation(res.RunID.String()))
	log.Info().
		Int("days", len(res.Days)).
		Int("inserted", res.Total(outcome.Inserted)).
		Dur("duration", res.Duration).
		Msg("historical simulation completed")
	return res, nil
}
