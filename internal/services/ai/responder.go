package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tg-groupguard-go/internal/config"
)

// Service answers a user message. Implementations are treated as opaque
// collaborators: one call per message, no automatic retries.
type Service interface {
	Answer(ctx context.Context, question string) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Responder calls an OpenAI-compatible chat-completions endpoint.
type Responder struct {
	cfg        *config.ResponderConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewResponder creates the generative answer service.
func NewResponder(cfg *config.ResponderConfig, logger *logrus.Logger) *Responder {
	return &Responder{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Answer performs a single request with the configured persona prompt
// and the raw message text. Any failure is returned to the caller, who
// converts it into a fixed apology; there is no retry here.
func (r *Responder) Answer(ctx context.Context, question string) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: r.cfg.SystemPrompt},
		{Role: "user", Content: question},
	}

	reqBody := chatRequest{
		Model:       r.cfg.Model,
		Messages:    messages,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: 0.7,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimSuffix(r.cfg.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.cfg.APIKey))
	}

	r.logger.WithFields(logrus.Fields{
		"model": r.cfg.Model,
		"url":   url,
	}).Debug("Sending responder request")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Error("Responder request failed")
		return "", fmt.Errorf("responder request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Error.Message != "" {
		return "", fmt.Errorf("responder error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("responder returned no choices")
	}

	answer := strings.TrimSpace(result.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("responder returned an empty answer")
	}

	return answer, nil
}
