// Package llm implements the chat collaborator for code reviews: an
// OpenAI-compatible completions client with bounded retries, plus the prompt
// and comment templating around it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/core"
)

const (
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Second
	maxTokens         = 4096
	temperature       = 0.7
)

// ChatService is the LLM collaborator contract. Chat returns a parsed verdict
// for a well-formed response and an error otherwise; it never returns a
// partial verdict.
type ChatService interface {
	Chat(ctx context.Context, messages []core.ChatMessage) (*core.Verdict, error)
	Model() string
	Check(ctx context.Context) error
}

// Service talks to an OpenAI-compatible chat completions endpoint.
type Service struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	client     *http.Client
	logger     *slog.Logger
}

// NewService builds the chat service from configuration.
func NewService(cfg *config.Config, logger *slog.Logger) ChatService {
	maxRetries := cfg.LLM.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	timeout := cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Service{
		baseURL:    strings.TrimSuffix(cfg.LLM.APIURL, "/"),
		apiKey:     cfg.LLM.APIKey,
		model:      cfg.LLM.Model,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Model returns the configured model identifier, recorded with each persisted
// verdict.
func (s *Service) Model() string {
	return s.model
}

type chatCompletionRequest struct {
	Model       string             `json:"model"`
	Messages    []core.ChatMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat sends the conversation to the model and parses the verdict out of the
// reply. Any failure, including an empty completion or a reply the verdict
// cannot be parsed from, is retried with
// exponential backoff (1s, 2s, ...) up to the configured attempt count; the
// final error wraps the last underlying failure.
func (s *Service) Chat(ctx context.Context, messages []core.ChatMessage) (*core.Verdict, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("chat called with an empty message list")
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		s.logger.Info("sending chat request", "model", s.model, "attempt", attempt+1, "max_retries", s.maxRetries)

		content, tokens, err := s.complete(ctx, body)
		if err == nil {
			duration := time.Since(start).Seconds()
			verdict, parseErr := ParseVerdict(content, duration)
			if parseErr == nil {
				s.logger.Info("chat request succeeded", "duration_s", duration, "tokens", tokens)
				return verdict, nil
			}
			// A reply the model mangled is as transient as a transport
			// failure; the next attempt may produce valid JSON.
			err = parseErr
		}

		lastErr = err
		s.logger.Warn("chat request failed", "attempt", attempt+1, "max_retries", s.maxRetries, "error", err)

		if attempt < s.maxRetries-1 {
			wait := time.Duration(1<<attempt) * time.Second
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("chat request failed after %d attempts: %w", s.maxRetries, lastErr)
}

// complete performs one request round trip and returns the first choice's
// content. An empty choice list or empty content is an error so the caller
// retries it like any transport failure.
func (s *Service) complete(ctx context.Context, body []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("chat endpoint returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", 0, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", 0, fmt.Errorf("chat endpoint returned an empty response")
	}

	return completion.Choices[0].Message.Content, completion.Usage.TotalTokens, nil
}

// Check probes the models endpoint to verify the service is reachable and the
// configured model exists.
func (s *Service) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models/"+s.model, nil)
	if err != nil {
		return fmt.Errorf("failed to create model probe request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("model probe failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model %q is unavailable: status %d", s.model, resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
