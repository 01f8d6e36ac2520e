// Command microblog runs the microblog server.
//
// Usage:
//
//	microblog [serve] [--port 8080] [--db data/microblog.db]
//	microblog init-db [--username admin --password secret]
//
// Configuration comes from the environment (optionally from a .env file in
// the working directory); see config.go for the variables.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags configFlags

	serve := serveCmd(&flags)

	rootCmd := &cobra.Command{
		Use:           "microblog",
		Short:         "A small social blogging server",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Running without a subcommand starts the server.
		RunE: serve.RunE,
	}
	rootCmd.PersistentFlags().IntVar(&flags.port, "port", 0, "HTTP port (overrides PORT)")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serve, initDBCmd(&flags))
	return rootCmd
}

// newLogger builds the text logger used by every command.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
