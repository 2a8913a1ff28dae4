// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"context"
	"fmt"

	"github.com/sevigo/merge-warden/internal/app"
	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/db"
	"github.com/sevigo/merge-warden/internal/gitlab"
	"github.com/sevigo/merge-warden/internal/jobs"
	"github.com/sevigo/merge-warden/internal/llm"
	"github.com/sevigo/merge-warden/internal/review"
	"github.com/sevigo/merge-warden/internal/server"
	"github.com/sevigo/merge-warden/internal/storage"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	loggerConfig := provideLoggerConfig(cfg)
	slogLogger := provideSlogLogger(loggerConfig)

	translator, err := provideTranslator(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load translations: %w", err)
	}

	dbConfig := provideDBConfig(cfg)
	dbConn, dbCleanup, err := db.NewDatabase(dbConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := storage.NewStore(provideSQLDB(dbConn), translator)

	host, err := gitlab.NewClient(cfg, slogLogger)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}

	botUser, err := provideBotUser(ctx, cfg, host)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to resolve bot user: %w", err)
	}

	chat := llm.NewService(cfg, slogLogger)

	promptMgr, err := llm.NewPromptManager()
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to create prompt manager: %w", err)
	}
	renderer := llm.NewRenderer(promptMgr, cfg)

	coordinator := review.NewCoordinator(host, chat, store, renderer, translator, slogLogger)

	reviewJob := jobs.NewReviewJob(host, coordinator, botUser, slogLogger)
	dispatcher := jobs.NewDispatcher(reviewJob, provideMaxWorkers(cfg), slogLogger)

	srv := server.NewServer(ctx, cfg, dispatcher, translator, slogLogger)

	application := app.NewApp(ctx, cfg, dbConn, chat, botUser, dispatcher, srv, slogLogger)

	cleanup := func() {
		dbCleanup()
	}

	return application, cleanup, nil
}
