package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/db"
	"github.com/sevigo/merge-warden/internal/gitlab"
	"github.com/sevigo/merge-warden/internal/llm"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verifies connectivity to GitLab, the LLM endpoint, and the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

		out := cmd.OutOrStdout()

		host, err := gitlab.NewClient(cfg, quiet)
		if err != nil {
			return fmt.Errorf("gitlab: %w", err)
		}
		botUser, err := host.CurrentBotUser(ctx)
		if err != nil {
			return fmt.Errorf("gitlab: %w", err)
		}
		fmt.Fprintf(out, "gitlab: ok (bot user %s)\n", botUser.Username)

		chat := llm.NewService(cfg, quiet)
		if err := chat.Check(ctx); err != nil {
			return fmt.Errorf("llm: %w", err)
		}
		fmt.Fprintf(out, "llm: ok (model %s)\n", chat.Model())

		_, dbCleanup, err := db.NewDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer dbCleanup()
		fmt.Fprintln(out, "database: ok")

		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.AddCommand(checkCmd)
}
