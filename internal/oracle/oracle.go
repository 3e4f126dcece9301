// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package oracle defines the contract of the external reasoning oracle
// consulted by the classification pass and the command interpreter, and
// provides its backends.
package oracle

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/specgraph/pkg/types"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of an oracle conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Oracle answers the last user message of a transcript with free text.
// The whole transcript is passed on every call so stateless backends see
// the full exchange.
type Oracle interface {
	Ask(ctx context.Context, transcript []Message) (string, error)
}

// Func adapts an ordinary function to the Oracle interface.
type Func func(ctx context.Context, transcript []Message) (string, error)

// Ask implements Oracle.
func (f Func) Ask(ctx context.Context, transcript []Message) (string, error) {
	return f(ctx, transcript)
}

// Ask sends a single user prompt to o.
func Ask(ctx context.Context, o Oracle, prompt string) (string, error) {
	return o.Ask(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

// New builds the oracle selected by cfg. The none backend returns a nil
// Oracle and no error; callers treat that as "enrichment disabled".
// The terminal backend reads replies from in and shows prompts on out.
func New(cfg types.OracleConfig, client *http.Client, in io.Reader, out io.Writer, log *zap.Logger) (Oracle, error) {
	switch cfg.Backend {
	case "", types.OracleNone:
		return nil, nil
	case types.OracleClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude oracle: no API key (set oracle.api_key or .secrets/anthropic-api-key)")
		}
		return &ClaudeOracle{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			MaxTokens:  cfg.MaxTokens,
			MaxRetries: cfg.MaxRetries,
			Client:     client,
			Log:        log,
		}, nil
	case types.OracleTerminal:
		return NewTerminal(in, out), nil
	default:
		return nil, fmt.Errorf("unsupported oracle backend %q: use none, claude or terminal", cfg.Backend)
	}
}
