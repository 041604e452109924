// Command srest runs a REST server assembled from a TOML configuration file.
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

	"github.com/Suhaibinator/SRest/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "srest",
		Short: "SRest, a pipelined REST server",
		Long: `SRest serves HTTP requests through a chain of request and response
handlers in front of a content-negotiating router.

Configuration is read from --config, ./srest.toml or SREST_* environment
variables, in that order of precedence after the environment.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(configCmd(&configPath))
	root.AddCommand(routesCmd(&configPath))
	return root
}

// ─── serve ───────────────────────────────────────────────────────────────────

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			a, err := build(cfg, logger)
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, a, cfg.Server.ShutdownTimeout, logger)
		},
	}
}

// run serves until ctx is cancelled and then shuts the server down, allowing
// in-flight requests up to timeout to complete.
func run(ctx context.Context, a *app, timeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server", zap.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

// ─── config ──────────────────────────────────────────────────────────────────

func configCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			out, err := config.Export(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}

// ─── routes ──────────────────────────────────────────────────────────────────

func routesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the pipeline stages and routes the configuration produces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			a, err := build(cfg, zap.NewNop())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "stages:")
			for _, s := range a.server.Stages() {
				fmt.Fprintf(w, "  %-8s %s\n", s.Role, s.Name)
			}
			fmt.Fprintln(w, "routes:")
			for _, p := range a.server.Routes() {
				fmt.Fprintf(w, "  %s\n", p)
			}
			return nil
		},
	}
}
