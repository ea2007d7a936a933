package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ausphi/healthsim/internal/cdc"
	"github.com/ausphi/healthsim/internal/fhir"
	"github.com/ausphi/healthsim/internal/shared/database"
)

func migrateCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, app *App) error {
				db, err := app.sqlStore()
				if err != nil {
					return err
				}
				applied, err := database.Migrate(ctx, db)
				for _, v := range applied {
					fmt.Printf("  applied %s\n", v)
				}
				if err != nil {
					return err
				}
				fmt.Printf("%d migration(s) applied\n", len(applied))
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, app *App) error {
				db, err := app.sqlStore()
				if err != nil {
					return err
				}
				statuses, err := database.Status(ctx, db)
				if err != nil {
					return err
				}
				fmt.Printf("%-45s %-10s %s\n", "VERSION", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					state, at := "pending", ""
					if s.Applied {
						state = "applied"
						if s.AppliedAt != nil {
							at = s.AppliedAt.Format(time.RFC3339)
						}
					}
					fmt.Printf("%-45s %-10s %s\n", s.Version, state, at)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(up, status)
	return cmd
}

func cdcCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cdc",
		Short: "SQL Server change data capture",
	}

	enable := &cobra.Command{
		Use:   "enable [table...]",
		Short: "Enable CDC on the database and the given tables (default all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(flags, func(ctx context.Context, app *App) error {
				r, err := newReporter(app)
				if err != nil {
					return err
				}
				if len(args) == 0 {
					return r.EnableAll(ctx)
				}
				if err := r.EnableDatabase(ctx); err != nil {
					return err
				}
				for _, t := range args {
					if err := r.EnableTable(ctx, t); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	report := &cobra.Command{
		Use:   "report",
		Short: "Summarise captured changes per table",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			to := time.Now().UTC()
			if toStr != "" {
				d, err := parseDateFlag(toStr)
				if err != nil {
					return err
				}
				to = d.AddDate(0, 0, 1)
			}
			from := to.AddDate(0, 0, -1)
			if fromStr != "" {
				d, err := parseDateFlag(fromStr)
				if err != nil {
					return err
				}
				from = d
			}

			return withApp(flags, func(ctx context.Context, app *App) error {
				r, err := newReporter(app)
				if err != nil {
					return err
				}
				sums, err := r.Report(ctx, from, to)
				if err != nil {
					return err
				}
				fmt.Printf("%-32s %8s %8s %8s\n", "TABLE", "INSERTS", "UPDATES", "DELETES")
				for _, s := range sums {
					fmt.Printf("%-32s %8d %8d %8d\n", s.Table, s.Inserts, s.Updates, s.Deletes)
				}
				return nil
			})
		},
	}
	report.Flags().String("from", "", "start date YYYY-MM-DD (default one day before --to)")
	report.Flags().String("to", "", "end date YYYY-MM-DD, inclusive (default now)")

	cmd.AddCommand(enable, report)
	return cmd
}

func newReporter(app *App) (*cdc.Reporter, error) {
	db, err := app.sqlStore()
	if err != nil {
		return nil, err
	}
	return cdc.NewReporter(db, app.Log)
}

func importFHIRCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-fhir FILE",
		Short: "Import members from a FHIR Patient bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dateStr, _ := cmd.Flags().GetString("date")
			date, err := parseDateFlag(dateStr)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			return withApp(flags, func(ctx context.Context, app *App) error {
				existing, err := app.Repo.Members(ctx)
				if err != nil {
					return fmt.Errorf("failed to load members: %w", err)
				}
				res, err := fhir.ImportMembers(data, date, app.Src, existing)
				if err != nil {
					return err
				}
				inserted := 0
				for i := range res.Members {
					m := &res.Members[i]
					if err := app.Repo.InsertMember(ctx, m); err != nil {
						app.Log.Error().Err(err).Str("membership_number", m.MembershipNumber).Msg("failed to insert member")
						continue
					}
					inserted++
				}
				for _, s := range res.Skipped {
					fmt.Printf("  skipped %-20s %s\n", s.PatientID, s.Reason)
				}
				fmt.Printf("%d member(s) imported, %d skipped\n", inserted, len(res.Skipped))
				return nil
			})
		},
	}
	cmd.Flags().String("date", "", "simulation date YYYY-MM-DD (default today)")
	return cmd
}
