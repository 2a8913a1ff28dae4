// Package app initializes and orchestrates the main components of the
// Merge-Warden application. It ties together the configuration, server,
// dispatcher, and supporting services.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/db"
	"github.com/sevigo/merge-warden/internal/gitlab"
	"github.com/sevigo/merge-warden/internal/llm"
	"github.com/sevigo/merge-warden/internal/server"
)

// App holds the main application components.
type App struct {
	ctx        context.Context
	cfg        *config.Config
	server     *server.Server
	logger     *slog.Logger
	dispatcher core.JobDispatcher
	chat       llm.ChatService
	botUser    *gitlab.User
	dbConn     *db.DB
}

// NewApp assembles the application from its already constructed components.
func NewApp(ctx context.Context, cfg *config.Config, dbConn *db.DB, chat llm.ChatService, botUser *gitlab.User, dispatcher core.JobDispatcher, srv *server.Server, logger *slog.Logger) *App {
	return &App{
		ctx:        ctx,
		cfg:        cfg,
		server:     srv,
		logger:     logger,
		dispatcher: dispatcher,
		chat:       chat,
		botUser:    botUser,
		dbConn:     dbConn,
	}
}

// Start probes the LLM endpoint and runs the HTTP server. A failing probe is
// logged but does not block startup; the service may become reachable later
// and every review falls back to a rejecting verdict until then.
func (a *App) Start() error {
	a.logger.Info("starting Merge-Warden",
		"server_port", a.cfg.ServerPort,
		"bot_user", a.botUser.Username,
		"llm_model", a.chat.Model(),
		"max_workers", a.cfg.MaxWorkers)

	checkCtx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	defer cancel()
	if err := a.chat.Check(checkCtx); err != nil {
		a.logger.Warn("LLM endpoint check failed, reviews will be rejected until it recovers", "error", err)
	}

	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the application cleanly. The database connection is closed
// by the injector's cleanup function after Stop returns.
func (a *App) Stop() error {
	a.logger.Info("shutting down Merge-Warden services")

	// Stop the HTTP server first to prevent new incoming requests.
	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
		// Continue to stop other components even if the server failed.
	}

	// Stop the job dispatcher, allowing in-flight jobs to finish.
	a.dispatcher.Stop()

	if serverErr != nil {
		a.logger.Error("Merge-Warden stopped with errors", "error", serverErr)
		return serverErr
	}

	a.logger.Info("Merge-Warden stopped successfully")
	return nil
}
