package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ausphi/healthsim/internal/enhanced"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/shared/outcome"
	"github.com/ausphi/healthsim/internal/simulation"
)

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperrors.Validation("invalid date", map[string]string{"date": fmt.Sprintf("%q is not YYYY-MM-DD", s)})
	}
	return d, nil
}

// addCountFlags binds the per-day volume flags onto opts.
func addCountFlags(cmd *cobra.Command, opts *simulation.DailyOptions) {
	f := cmd.Flags()
	f.IntVar(&opts.NewMembers, "members", opts.NewMembers, "new members")
	f.IntVar(&opts.NewPlans, "plans", opts.NewPlans, "new coverage plans")
	f.IntVar(&opts.NewProviders, "providers", opts.NewProviders, "new providers")
	f.IntVar(&opts.NewPolicies, "policies", opts.NewPolicies, "new policies")
	f.IntVar(&opts.MemberUpdates, "member-updates", opts.MemberUpdates, "member detail updates")
	f.IntVar(&opts.ProviderUpdates, "provider-updates", opts.ProviderUpdates, "provider detail updates")
	f.Float64Var(&opts.EndAgreementsPct, "end-agreements-pct", opts.EndAgreementsPct, "percent of active agreements to end")
	f.IntVar(&opts.PolicyChanges, "policy-changes", opts.PolicyChanges, "policy status changes")
	f.IntVar(&opts.HospitalClaims, "hospital-claims", opts.HospitalClaims, "hospital claims")
	f.IntVar(&opts.GeneralClaims, "general-claims", opts.GeneralClaims, "general treatment claims")
	f.IntVar(&opts.AssessmentLimit, "assessment-limit", opts.AssessmentLimit, "max pending claims assessed (0 for all)")

	for _, skip := range []struct {
		name string
		dst  *bool
	}{
		{"members", &opts.SkipMembers},
		{"plans", &opts.SkipPlans},
		{"providers", &opts.SkipProviders},
		{"policies", &opts.SkipPolicies},
		{"member-updates", &opts.SkipMemberUpdates},
		{"provider-updates", &opts.SkipProviderUpdates},
		{"end-agreements", &opts.SkipEndAgreements},
		{"policy-changes", &opts.SkipPolicyChanges},
		{"hospital-claims", &opts.SkipHospitalClaims},
		{"general-claims", &opts.SkipGeneralClaims},
		{"payments", &opts.SkipPayments},
		{"assessments", &opts.SkipAssessments},
	} {
		f.BoolVar(skip.dst, "skip-"+skip.name, false, "skip the "+skip.name+" step")
	}
}

func dailyCmd(flags *globalFlags) *cobra.Command {
	opts := simulation.DefaultDailyOptions()
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Simulate one day of operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dateStr, _ := cmd.Flags().GetString("date")
			date, err := parseDateFlag(dateStr)
			if err != nil {
				return err
			}
			return withApp(flags, func(ctx context.Context, app *App) error {
				defer app.pushMetrics()
				res, err := app.Simulation().RunDaily(ctx, date, opts)
				if res != nil {
					printDay(res)
				}
				return err
			})
		},
	}
	cmd.Flags().String("date", "", "simulation date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&opts.Enhanced, "enhanced", false, "run the enhanced generators after the day")
	addCountFlags(cmd, &opts)
	return cmd
}

func historicalCmd(flags *globalFlags) *cobra.Command {
	opts := simulation.HistoricalOptions{Daily: simulation.DefaultDailyOptions()}
	cmd := &cobra.Command{
		Use:   "historical",
		Short: "Backfill a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			freq, _ := cmd.Flags().GetString("frequency")

			start, err := parseDateFlag(startStr)
			if err != nil {
				return err
			}
			end, err := parseDateFlag(endStr)
			if err != nil {
				return err
			}
			if opts.Frequency, err = simulation.ParseFrequency(freq); err != nil {
				return err
			}

			return withApp(flags, func(ctx context.Context, app *App) error {
				defer app.pushMetrics()
				res, err := app.Simulation().RunHistorical(ctx, start, end, opts)
				if res != nil {
					for _, d := range res.Days {
						printDay(d)
					}
					fmt.Printf("\n%d days, %d inserted, %d updated, %d failed in %s\n",
						len(res.Days), res.Total(outcome.Inserted), res.Total(outcome.Updated),
						res.Total(outcome.Failed), res.Duration.Round(time.Millisecond))
				}
				return err
			})
		},
	}
	cmd.Flags().String("start", "", "first date YYYY-MM-DD")
	cmd.Flags().String("end", "", "last date YYYY-MM-DD (default today)")
	cmd.Flags().String("frequency", string(simulation.Daily), "daily, weekly or monthly")
	cmd.Flags().BoolVar(&opts.Randomize, "randomize", false, "vary volumes by weekday and month boundary")
	cmd.Flags().BoolVar(&opts.Enhanced, "enhanced", false, "run the enhanced generators each day")
	_ = cmd.MarkFlagRequired("start")
	addCountFlags(cmd, &opts.Daily)
	return cmd
}

func enhancedCmd(flags *globalFlags) *cobra.Command {
	cfg := enhanced.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "enhanced",
		Short: "Run the analytics generators for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			dateStr, _ := cmd.Flags().GetString("date")
			date, err := parseDateFlag(dateStr)
			if err != nil {
				return err
			}
			for name, dst := range map[string]*bool{
				"no-fraud":        &cfg.Fraud,
				"no-transactions": &cfg.Transactions,
				"no-billing":      &cfg.Billing,
				"no-patterns":     &cfg.Patterns,
				"no-actuarial":    &cfg.Actuarial,
			} {
				if off, _ := cmd.Flags().GetBool(name); off {
					*dst = false
				}
			}
			return withApp(flags, func(ctx context.Context, app *App) error {
				defer app.pushMetrics()
				sim := app.Simulation()
				if err := sim.LoadData(ctx); err != nil {
					app.Log.Warn().Err(err).Msg("partial snapshot")
				}
				res, err := sim.RunEnhanced(ctx, date, cfg)
				if res != nil {
					printEnhanced(res)
				}
				return err
			})
		},
	}
	f := cmd.Flags()
	f.String("date", "", "simulation date YYYY-MM-DD (default today)")
	f.Bool("no-fraud", false, "skip fraud detection")
	f.Bool("no-transactions", false, "skip financial transactions")
	f.Bool("no-billing", false, "skip provider billing attributes")
	f.Bool("no-patterns", false, "skip claim patterns")
	f.Bool("no-actuarial", false, "skip actuarial metrics")
	f.BoolVar(&cfg.ForceActuarial, "force-actuarial", false, "compute actuarial metrics even when not month end")
	f.IntVar(&cfg.FraudSample, "fraud-sample", cfg.FraudSample, "claims sampled for anomaly scoring")
	f.IntVar(&cfg.Adjustments, "adjustments", cfg.Adjustments, "adjustment transactions to generate")
	return cmd
}

func printDay(d *simulation.DailyResult) {
	fmt.Printf("\n=== %s ===\n", d.Date.Format(time.DateOnly))
	for _, r := range d.Steps {
		fmt.Printf("  %-28s %s\n", r.Step, r.Summary())
	}
	for _, w := range d.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if d.Enhanced != nil {
		printEnhanced(d.Enhanced)
	}
	fmt.Printf("  inserted=%d updated=%d failed=%d (%s)\n",
		d.Total(outcome.Inserted), d.Total(outcome.Updated), d.Total(outcome.Failed),
		d.Duration.Round(time.Millisecond))
}

func printEnhanced(r *enhanced.Result) {
	fmt.Println("  enhanced:")
	for k, n := range r.Counts {
		fmt.Printf("    %-26s %d\n", k, n)
	}
	for gen, msg := range r.Errors {
		fmt.Printf("    %-26s FAILED: %s\n", gen, msg)
	}
}
