// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

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

	"go.uber.org/zap"

	"github.com/pdiddy/specgraph/internal/httputil"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// backoffBase controls the base duration for exponential backoff between
// failed calls. Tests override this to avoid real sleeps.
var backoffBase = time.Second

const (
	defaultModel      = "claude-sonnet-4-5"
	defaultMaxTokens  = 1024
	defaultMaxRetries = 3
)

// ClaudeOracle answers transcripts through the Claude Messages API.
type ClaudeOracle struct {
	APIKey     string
	Model      string
	MaxTokens  int
	MaxRetries int
	Client     *http.Client
	Log        *zap.Logger
}

type claudeRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// errPermanent marks failures that another attempt cannot fix.
var errPermanent = errors.New("permanent failure")

// Ask implements Oracle. Transport errors and 5xx replies are retried with
// exponential backoff. Rate limiting and overload are retried inside
// httputil.Do with the same budget and fail once it is spent; other 4xx
// replies fail at once.
func (c *ClaudeOracle) Ask(ctx context.Context, transcript []Message) (string, error) {
	if len(transcript) == 0 {
		return "", fmt.Errorf("empty transcript")
	}

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := c.send(ctx, transcript, maxRetries)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, errPermanent) || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
		c.logger().Warn("oracle call failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

func (c *ClaudeOracle) send(ctx context.Context, transcript []Message, maxRetries int) (string, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	bodyBytes, err := json.Marshal(claudeRequest{Model: model, MaxTokens: maxTokens, Messages: transcript})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w: %w", errPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w: %w", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := httputil.Do(ctx, c.Client, req, httputil.Options{MaxRetries: maxRetries, Log: c.Log})
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode < 500 || httputil.Retryable(resp.StatusCode) {
			return "", fmt.Errorf("%w: %w", errPermanent, err)
		}
		return "", err
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	var parts []string
	for _, block := range cResp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text content in Claude API response")
	}
	return strings.Join(parts, ""), nil
}

func (c *ClaudeOracle) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}
