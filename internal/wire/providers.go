// Package wire assembles the application's dependency graph.
package wire

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	"github.com/jmoiron/sqlx"

	"github.com/sevigo/merge-warden/internal/app"
	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/db"
	"github.com/sevigo/merge-warden/internal/gitlab"
	"github.com/sevigo/merge-warden/internal/i18n"
	"github.com/sevigo/merge-warden/internal/jobs"
	"github.com/sevigo/merge-warden/internal/llm"
	"github.com/sevigo/merge-warden/internal/logger"
	"github.com/sevigo/merge-warden/internal/review"
	"github.com/sevigo/merge-warden/internal/server"
	"github.com/sevigo/merge-warden/internal/storage"
)

var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	config.LoadConfig,
	db.NewDatabase,
	storage.NewStore,
	gitlab.NewClient,
	llm.NewService,
	llm.NewPromptManager,
	llm.NewRenderer,
	review.NewCoordinator,
	jobs.NewReviewJob,
	jobs.NewDispatcher,
	provideTranslator,
	provideBotUser,
	provideReviewer,
	provideMaxWorkers,
	provideDBConfig,
	provideLoggerConfig,
	provideSlogLogger,
	provideSQLDB,
)

func provideTranslator(cfg *config.Config) (*i18n.Translator, error) {
	return i18n.New(cfg.Locale)
}

// provideBotUser resolves the bot identity once at startup. A configured
// GITLAB_BOT_USERNAME wins over the token's own account, which lets one
// admin token act for a dedicated reviewer bot. Failure here is fatal:
// without the bot identity the reviewer gate cannot work.
func provideBotUser(ctx context.Context, cfg *config.Config, host gitlab.Client) (*gitlab.User, error) {
	if cfg.GitLab.BotUsername != "" {
		return host.GetUserByUsername(ctx, cfg.GitLab.BotUsername)
	}
	return host.CurrentBotUser(ctx)
}

func provideReviewer(coordinator *review.Coordinator) jobs.Reviewer {
	return coordinator
}

func provideMaxWorkers(cfg *config.Config) int {
	return cfg.MaxWorkers
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return cfg.Database
}

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

// provideSlogLogger leaves output selection to the logger package, which
// already falls back to stdout when the configured file cannot be opened.
func provideSlogLogger(loggerConfig logger.Config) *slog.Logger {
	return logger.NewLogger(loggerConfig, nil)
}

func provideSQLDB(conn *db.DB) *sqlx.DB {
	return conn.DB
}
