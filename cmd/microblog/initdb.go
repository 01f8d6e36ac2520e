package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"

	"github.com/sakif/microblog/internal/auth"
	sqliteRepo "github.com/sakif/microblog/internal/repository/sqlite"
	"github.com/sakif/microblog/internal/service"
)

// initDBCmd creates the schema and seeds an account so a fresh install has
// someone to log in as.
func initDBCmd(flags *configFlags) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema and seed an initial account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logLevel, err := loadConfig(os.Getenv, *flags)
			if err != nil {
				return err
			}
			logger := newLogger(logLevel)

			if err := ensureDBDir(cfg.DBPath); err != nil {
				return err
			}
			db, err := sqliteRepo.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			// The token issued for the seeded account is thrown away, so any
			// secret will do when none is configured.
			secret := cfg.JWTSecret
			if len(secret) < 16 {
				secret = hex.EncodeToString(securecookie.GenerateRandomKey(32))
			}
			tokens, err := auth.NewTokenService(secret, cfg.SessionTTL)
			if err != nil {
				return err
			}

			policy := service.Policy{EnforceNonEmpty: cfg.EnforceNonEmpty}
			svc := service.NewAuthService(db, tokens, auth.NewPasswordService(), policy, logger)

			created, err := svc.EnsureUser(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("seeding user %q: %w", username, err)
			}

			if created {
				logger.Info("database initialised, account created",
					slog.String("database", cfg.DBPath),
					slog.String("username", username),
				)
			} else {
				logger.Info("database initialised, account already exists",
					slog.String("database", cfg.DBPath),
					slog.String("username", username),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "admin", "username of the seeded account")
	cmd.Flags().StringVar(&password, "password", "", "password of the seeded account")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
