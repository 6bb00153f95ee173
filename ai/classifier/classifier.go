// Package classifier asks an external language model which specialist should
// handle a query.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/yosefsha/myassistant/ai/core/llm"
	"github.com/yosefsha/myassistant/ai/internal/strutil"
	"github.com/yosefsha/myassistant/ai/observability/tracing"
	"github.com/yosefsha/myassistant/ai/session"
	"github.com/yosefsha/myassistant/ai/specialist"
)

const (
	defaultTimeout = 2 * time.Second
	excerptRunes   = 80
)

// Result is a validated classification.
type Result struct {
	Specialist         specialist.ID `json:"specialist"`
	Confidence         float64       `json:"confidence"`
	Rationale          string        `json:"rationale"`
	NeedsClarification bool          `json:"needs_clarification"`
	// Known is false when the model named a specialist the registry lacks.
	Known bool `json:"known"`
}

// Classifier picks a specialist for a query given recent turns.
type Classifier interface {
	Classify(ctx context.Context, query string, recent []session.Turn, maxContextTurns int) (*Result, error)
}

// Config configures a Client.
type Config struct {
	Timeout time.Duration // default: 2s
	Logger  *slog.Logger
}

// Client classifies through an llm.Service with a single bounded attempt.
type Client struct {
	llm      llm.Service
	registry *specialist.Registry
	timeout  time.Duration
	system   string
	logger   *slog.Logger
}

// NewClient creates a Client. The system prompt is rendered once from the
// registry, which never changes after load.
func NewClient(svc llm.Service, registry *specialist.Registry, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		llm:      svc,
		registry: registry,
		timeout:  cfg.Timeout,
		system:   buildSystemPrompt(registry),
		logger:   cfg.Logger,
	}
}

// Classify implements Classifier. Every failure is a *ClassificationError.
func (c *Client) Classify(ctx context.Context, query string, recent []session.Turn, maxContextTurns int) (*Result, error) {
	lines := CompactContext(recent, maxContextTurns)

	ctx, span := tracing.StartClassifySpan(ctx, c.llm.Provider(), len(lines))
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	messages := []llm.Message{
		llm.SystemPrompt(c.system),
		llm.UserMessage(buildUserMessage(query, lines)),
	}
	content, _, err := c.llm.Chat(ctx, messages)
	if err != nil {
		cerr := fromLLM(err)
		c.logger.Debug("classifier: call failed",
			"kind", cerr.Kind.String(),
			"latency_ms", time.Since(start).Milliseconds(),
			"error", err)
		tracing.End(span, cerr)
		return nil, cerr
	}

	result, err := c.parse(content)
	if err != nil {
		c.logger.Debug("classifier: unusable response",
			"response", strutil.Truncate(content, 200),
			"error", err)
		tracing.End(span, err)
		return nil, err
	}

	c.logger.Debug("classifier: classified",
		"query", strutil.Truncate(query, 50),
		"specialist", result.Specialist,
		"confidence", result.Confidence,
		"known", result.Known,
		"needs_clarification", result.NeedsClarification,
		"latency_ms", time.Since(start).Milliseconds())
	tracing.End(span, nil)
	return result, nil
}

// rawResult holds the only fields trusted from the model. Confidence is
// decoded as a raw number so a missing value can be told apart from zero.
type rawResult struct {
	Specialist         string       `json:"specialist"`
	Confidence         *json.Number `json:"confidence"`
	Rationale          string       `json:"rationale"`
	NeedsClarification bool         `json:"needs_clarification"`
}

func (c *Client) parse(content string) (*Result, error) {
	content = stripFences(content)

	var raw rawResult
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, malformed("decode response: %w", err)
	}

	id := specialist.ID(strings.ToLower(strings.TrimSpace(raw.Specialist)))
	if id == "" {
		return nil, malformed("missing specialist")
	}
	if raw.Confidence == nil {
		return nil, malformed("missing confidence")
	}
	confidence, err := raw.Confidence.Float64()
	if err != nil {
		return nil, malformed("confidence %q is not a number", raw.Confidence.String())
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, malformed("confidence %v outside [0,1]", confidence)
	}

	return &Result{
		Specialist:         id,
		Confidence:         confidence,
		Rationale:          strings.TrimSpace(raw.Rationale),
		NeedsClarification: raw.NeedsClarification,
		Known:              c.registry.Has(id),
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// CompactContext reduces the last maxTurns turns to "specialist: excerpt"
// lines, oldest first.
func CompactContext(recent []session.Turn, maxTurns int) []string {
	if maxTurns <= 0 || len(recent) == 0 {
		return nil
	}
	if len(recent) > maxTurns {
		recent = recent[len(recent)-maxTurns:]
	}
	lines := make([]string, len(recent))
	for i, t := range recent {
		lines[i] = fmt.Sprintf("%s: %s", t.Specialist, strutil.Excerpt(t.Query, excerptRunes))
	}
	return lines
}
