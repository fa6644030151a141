// Package llm talks to an OpenAI-compatible chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/metrics"
	"healthcare-call-insights/internal/types"
)

const serviceName = "llm"

type Config struct {
	Enabled      bool
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetryTime time.Duration
}

// Request is one prompt with its sampling parameters.
type Request struct {
	Prompt      string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

type Client struct {
	cfg     Config
	http    *http.Client
	log     *logger.Logger
	metrics *metrics.AnalysisMetrics
}

func New(cfg Config, log *logger.Logger, m *metrics.AnalysisMetrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 2 * cfg.Timeout
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logger.OrDiscard(log).Component("llm"),
		metrics: m,
	}
}

// Enabled reports whether the client is switched on and has an endpoint and key.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Enabled && c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.cfg.Model }

// Endpoint returns the chat completions URL derived from the base URL.
func (c *Client) Endpoint() string {
	return APIBase(c.cfg.BaseURL) + "/chat/completions"
}

// APIBase normalises a base URL so it ends with /v1.
func APIBase(base string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one user prompt and returns choices[0].message.content.
// Transport errors and 5xx responses are retried; 4xx responses are not.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.Enabled() {
		return "", types.NewCollaboratorError(serviceName, types.ErrNotConfigured, 0,
			"LLM endpoint or API key missing", "Set NEMOTRON_BASE_URL and a CDP token, or disable NEMOTRON_ENABLED")
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal llm request: %w", err)
	}
	log := c.log.WithField("payload_len", len(payload)).WithField("max_tokens", req.MaxTokens)

	start := time.Now()
	var content string
	op := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			log.WithError(err).Warn("llm request failed")
			if ctx.Err() != nil {
				return backoff.Permanent(types.NewCollaboratorError(serviceName, types.ErrTimeout, 0, err.Error(), ""))
			}
			return types.NewCollaboratorError(serviceName, types.ErrTransport, 0, err.Error(), "Check that NEMOTRON_BASE_URL is reachable")
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		log.WithField("http_status", resp.StatusCode).Debug("llm response received")

		if resp.StatusCode != http.StatusOK {
			cerr := types.NewCollaboratorError(serviceName, types.KindForStatus(resp.StatusCode), resp.StatusCode, truncate(string(body), 200), remedyFor(resp.StatusCode))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				// Permanent: don't retry on client errors
				return backoff.Permanent(cerr)
			}
			return cerr
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
			return backoff.Permanent(types.NewCollaboratorError(serviceName, types.ErrMalformedResponse, resp.StatusCode, "no choices in response", ""))
		}
		content = strings.TrimSpace(parsed.Choices[0].Message.Content)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryTime
	err = backoff.Retry(op, backoff.WithContext(b, ctx))
	c.metrics.ObserveCollaborator(serviceName, err, time.Since(start).Seconds())
	if err != nil {
		var cerr *types.CollaboratorError
		if errors.As(err, &cerr) {
			return "", cerr
		}
		return "", fmt.Errorf("llm complete: %w", err)
	}
	return content, nil
}

func remedyFor(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "Refresh the CDP token or check its permissions"
	case status == http.StatusNotFound:
		return "Check NEMOTRON_BASE_URL and NEMOTRON_MODEL_ID"
	case status >= 500:
		return "The model endpoint is failing, try again later"
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
