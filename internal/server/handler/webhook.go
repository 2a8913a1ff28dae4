// Package handler provides HTTP handlers for the Merge-Warden application.
package handler

import (
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/i18n"
)

// GitLab webhook request headers.
const (
	headerGitLabToken = "X-Gitlab-Token"
	headerGitLabEvent = "X-Gitlab-Event"
)

const eventMergeRequestHook = "Merge Request Hook"

// maxPayloadBytes caps the webhook body size. Merge request payloads are a
// few kilobytes; anything near the limit is not a GitLab webhook.
const maxPayloadBytes = 1 << 20

// WebhookHandler processes incoming webhooks from GitLab.
type WebhookHandler struct {
	cfg        *config.Config
	dispatcher core.JobDispatcher
	tr         *i18n.Translator
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler with the given configuration and dispatcher.
func NewWebhookHandler(cfg *config.Config, dispatcher core.JobDispatcher, tr *i18n.Translator, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg:        cfg,
		dispatcher: dispatcher,
		tr:         tr,
		logger:     logger,
	}
}

// Handle processes GitLab webhook requests. Unhandled event types are
// acknowledged with 200 so GitLab does not disable the hook.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !h.validToken(r) {
		h.logger.Error("webhook token mismatch", "remote", r.RemoteAddr)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	if eventType := r.Header.Get(headerGitLabEvent); eventType != eventMergeRequestHook {
		h.logger.Debug("ignoring unhandled webhook event type", "type", eventType)
		_, _ = fmt.Fprint(w, h.tr.T("response.event_not_handled", map[string]any{"EventType": eventType}))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		h.logger.Error("could not read webhook body", "error", err)
		http.Error(w, "Could not read request body", http.StatusBadRequest)
		return
	}

	event, err := core.EventFromMergeRequestPayload(body)
	if err != nil {
		h.logger.Error("could not parse webhook payload", "error", err)
		http.Error(w, "Could not parse webhook", http.StatusBadRequest)
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
		h.logger.Error("failed to dispatch review job",
			"error", err, "project", event.ProjectPath, "mr_iid", event.MergeRequestIID)
		http.Error(w, h.tr.T("response.internal_server_error", nil), http.StatusInternalServerError)
		return
	}

	h.logger.Info("review job dispatched successfully",
		"project", event.ProjectPath, "mr_iid", event.MergeRequestIID, "action", event.Action)
	w.WriteHeader(http.StatusAccepted)
	_, _ = fmt.Fprint(w, h.tr.T("response.merge_request_queued", nil))
}

// validToken compares the webhook token in constant time. GitLab sends the
// configured secret verbatim rather than an HMAC signature.
func (h *WebhookHandler) validToken(r *http.Request) bool {
	token := r.Header.Get(headerGitLabToken)
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.GitLab.WebhookSecret)) == 1
}
