// Package generator renders specialist prompts and produces replies through
// the external generation model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yosefsha/myassistant/ai/core/llm"
	"github.com/yosefsha/myassistant/ai/observability/tracing"
	"github.com/yosefsha/myassistant/ai/session"
	"github.com/yosefsha/myassistant/ai/specialist"
)

const (
	defaultTimeout       = 20 * time.Second
	defaultMaxConcurrent = 8
)

// Generator builds prompts and generates replies.
type Generator interface {
	BuildPrompt(spec specialist.Specialist, query string, recent []session.Turn) string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Recorder receives generation metrics. *metrics.PrometheusExporter
// satisfies it.
type Recorder interface {
	ObserveGeneration(outcome string, latency time.Duration)
	RecordLLMTokens(provider, tokenType string, count int)
}

// Config configures an Adapter.
type Config struct {
	Timeout       time.Duration // default: 20s
	MaxConcurrent int64         // default: 8
	Recorder      Recorder
	Logger        *slog.Logger
}

// Adapter is the Generator backed by an llm.Service.
type Adapter struct {
	llm      llm.Service
	timeout  time.Duration
	sem      *semaphore.Weighted
	recorder Recorder
	logger   *slog.Logger
}

// NewAdapter creates an Adapter.
func NewAdapter(svc llm.Service, cfg Config) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Adapter{
		llm:      svc,
		timeout:  cfg.Timeout,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
}

// BuildPrompt implements Generator.
func (a *Adapter) BuildPrompt(spec specialist.Specialist, query string, recent []session.Turn) string {
	return RenderPrompt(spec, query, recent)
}

// Generate implements Generator. It makes one attempt; every failure is a
// *GenerationError.
func (a *Adapter) Generate(ctx context.Context, prompt string) (string, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return "", &GenerationError{Kind: llm.KindUnavailable, Err: fmt.Errorf("waiting for generation slot: %w", err)}
	}
	defer a.sem.Release(1)

	ctx, span := tracing.StartGenerateSpan(ctx, a.llm.Provider(), len(prompt))
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	text, stats, err := a.llm.Chat(ctx, []llm.Message{llm.UserMessage(prompt)})
	if err == nil && strings.TrimSpace(text) == "" {
		err = &llm.Error{Provider: a.llm.Provider(), Kind: llm.KindMalformed, Err: errors.New("empty reply")}
	}
	latency := time.Since(start)

	if err != nil {
		gerr := &GenerationError{Kind: llm.KindOf(err), Err: err}
		a.observe(gerr.Kind.String(), latency, nil)
		a.logger.Warn("generation failed",
			"kind", gerr.Kind.String(),
			"latency_ms", latency.Milliseconds(),
			"error", err)
		tracing.End(span, gerr)
		return "", gerr
	}

	a.observe("ok", latency, stats)
	a.logger.Debug("generation complete",
		"reply_length", len(text),
		"latency_ms", latency.Milliseconds())
	tracing.End(span, nil)
	return text, nil
}

func (a *Adapter) observe(outcome string, latency time.Duration, stats *llm.CallStats) {
	if a.recorder == nil {
		return
	}
	a.recorder.ObserveGeneration(outcome, latency)
	if stats != nil {
		a.recorder.RecordLLMTokens(a.llm.Provider(), "prompt", stats.PromptTokens)
		a.recorder.RecordLLMTokens(a.llm.Provider(), "completion", stats.CompletionTokens)
	}
}
