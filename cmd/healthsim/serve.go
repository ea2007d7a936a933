package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ausphi/healthsim/internal/simulation"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(context.Background(), flags)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return err
			}
			defer app.Close()
			return serve(app)
		},
	}
}

func serve(app *App) error {
	cfg := app.Config
	h := simulation.NewHandler(app.Simulation(), app.Log)
	r := h.Router(simulation.RouterConfig{
		Auth:           cfg.Auth,
		RequireAuth:    cfg.IsProduction(),
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})

	// Historical runs can take minutes.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan error, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		app.Log.Info().Msg("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		done <- srv.Shutdown(ctx)
	}()

	fmt.Printf("healthsim listening on :%d (env=%s, db=%s, auth=%v)\n",
		cfg.Server.Port, cfg.Server.Env, cfg.Database.Driver, cfg.IsProduction())
	app.Log.Info().Int("port", cfg.Server.Port).Msg("server started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	app.Log.Info().Msg("server stopped")
	return nil
}
