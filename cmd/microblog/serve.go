package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/microblog/internal/server"
)

func serveCmd(flags *configFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logLevel, err := loadConfig(os.Getenv, *flags)
			if err != nil {
				return err
			}
			logger := newLogger(logLevel)

			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET must be set (e.g. JWT_SECRET=$(openssl rand -hex 32))")
			}
			if !cfg.EnforceNonEmpty {
				logger.Warn("ENFORCE_NON_EMPTY=false: empty titles, contents and credentials are accepted")
			}
			if err := ensureDBDir(cfg.DBPath); err != nil {
				return err
			}

			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}

			// Start blocks until the server is shut down (via Ctrl+C or SIGTERM)
			if err := srv.Start(); err != nil {
				logger.Error("server error", slog.String("error", err.Error()))
				return err
			}
			return nil
		},
	}
}
