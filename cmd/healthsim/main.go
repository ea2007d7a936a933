// Command healthsim simulates the daily operations of an Australian private
// health insurer against SQL Server or PostgreSQL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "healthsim",
		Short: "Australian private health insurance simulator",
		Long: `healthsim generates members, policies, providers, claims and premium
payments day by day, plus fraud indicators, financial transactions,
claim patterns and actuarial metrics for analytics.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Uint64Var(&flags.seed, "seed", 0, "random seed (0 uses SIM_SEED or the clock)")
	rootCmd.PersistentFlags().BoolVar(&flags.strict, "strict", false, "abort a day on the first failed entity")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(
		dailyCmd(flags),
		historicalCmd(flags),
		enhancedCmd(flags),
		migrateCmd(flags),
		cdcCmd(flags),
		importFHIRCmd(flags),
		serveCmd(flags),
	)
	return rootCmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// withApp runs fn with a connected App and closes it afterwards.
func withApp(flags *globalFlags, fn func(ctx context.Context, app *App) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := newApp(ctx, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	defer app.Close()

	if err := fn(ctx, app); err != nil {
		app.Log.Error().Err(err).Msg("command failed")
		return err
	}
	return nil
}
