package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"

	"github.com/yosefsha/myassistant/ai/assistant"
	"github.com/yosefsha/myassistant/ai/classifier"
	"github.com/yosefsha/myassistant/ai/core/llm"
	"github.com/yosefsha/myassistant/ai/events"
	"github.com/yosefsha/myassistant/ai/generator"
	"github.com/yosefsha/myassistant/ai/metrics"
	"github.com/yosefsha/myassistant/ai/routing"
	"github.com/yosefsha/myassistant/ai/session"
	"github.com/yosefsha/myassistant/ai/specialist"
	"github.com/yosefsha/myassistant/internal/profile"
	"github.com/yosefsha/myassistant/store"
	"github.com/yosefsha/myassistant/store/db"
)

// engine owns every long-lived component behind the session API.
type engine struct {
	profile   *profile.Profile
	assistant *assistant.Service
	sessions  *session.Manager
	store     *store.Store
	cache     *routing.ScoreCache
	events    events.Sink
	metrics   *metrics.PrometheusExporter
}

// newEngine builds the engine in dependency order: registry, providers,
// classifier, scorer, sessions, orchestrator, generator.
func newEngine(ctx context.Context, p *profile.Profile) (*engine, error) {
	e := &engine{profile: p, events: events.NopSink{}}
	ok := false
	defer func() {
		if !ok {
			e.close()
		}
	}()

	registry, err := specialist.Load(p.SpecialistsFile)
	if err != nil {
		return nil, err
	}
	slog.Info("specialist registry loaded", "specialists", len(registry.Routable()), "file", p.SpecialistsFile)

	if p.MetricsEnabled {
		e.metrics = metrics.NewPrometheusExporter(metrics.DefaultConfig())
	}

	var cls classifier.Classifier
	if p.IsAIEnabled() {
		classifierLLM, err := llm.NewService(&llm.Config{
			Provider: p.LLMProvider,
			Model:    p.ClassifierModel,
			APIKey:   p.LLMAPIKey,
			BaseURL:  p.LLMBaseURL,
			JSONMode: true,
			Timeout:  p.ClassifyTimeout,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create classifier llm")
		}
		cls = classifier.NewClient(classifierLLM, registry, classifier.Config{Timeout: p.ClassifyTimeout})
		slog.Info("classifier initialized", "provider", p.LLMProvider, "model", p.ClassifierModel)
	} else {
		slog.Warn("LLM API key not configured, routing will use the keyword fallback only", "provider", p.LLMProvider)
	}

	scorerCfg := routing.ScorerConfig{
		Weights: routing.Weights{
			Keyword: p.WeightKeyword,
			Domain:  p.WeightDomain,
			Context: p.WeightContext,
		},
		ContextBonus: p.ContextBonus,
		HintWeight:   p.HintWeight,
	}
	if p.ScoreCache {
		cacheCfg := routing.CacheConfig{}
		if e.metrics != nil {
			cacheCfg.Recorder = e.metrics
		}
		if e.cache, err = routing.NewScoreCache(cacheCfg); err != nil {
			return nil, err
		}
		scorerCfg.Cache = e.cache
	}
	scorer, err := routing.NewScorer(registry, scorerCfg)
	if err != nil {
		return nil, err
	}

	sessionCfg := session.Config{IdleTimeout: p.SessionIdleTimeout}
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	if driver != nil {
		e.store = store.New(driver, p)
		if err := e.store.Migrate(ctx); err != nil {
			return nil, errors.Wrap(err, "migrate")
		}
		sessionCfg.Persister = session.NewPersister(e.store, 0, slog.Default())
	}
	e.sessions = session.NewManager(sessionCfg)
	if _, err := e.sessions.Restore(ctx); err != nil {
		slog.Warn("failed to restore sessions", "error", err)
	}
	if e.metrics != nil {
		e.metrics.TrackActiveSessions(e.sessions.Count)
	}

	if p.NATSURL != "" {
		sink, err := events.ConnectNATS(p.NATSURL, p.NATSSubject)
		if err != nil {
			return nil, errors.Wrap(err, "connect nats")
		}
		e.events = sink
		slog.Info("routing events enabled", "url", p.NATSURL, "subject", p.NATSSubject)
	}

	orchCfg := routing.OrchestratorConfig{
		Registry:        registry,
		Sessions:        e.sessions,
		Scorer:          scorer,
		Classifier:      cls,
		MaxContextTurns: p.MaxContextTurns,
		HintFloor:       p.HintFloor,
		Events:          e.events,
	}
	if e.metrics != nil {
		orchCfg.Recorder = e.metrics
	}
	orch, err := routing.NewOrchestrator(orchCfg)
	if err != nil {
		return nil, err
	}

	generatorLLM, err := llm.NewService(&llm.Config{
		Provider:    p.LLMProvider,
		Model:       p.LLMModel,
		APIKey:      p.LLMAPIKey,
		BaseURL:     p.LLMBaseURL,
		Temperature: 0.7,
		Timeout:     p.GenerateTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create generator llm")
	}
	genCfg := generator.Config{
		Timeout:       p.GenerateTimeout,
		MaxConcurrent: int64(p.GenerateConcurrency),
	}
	if e.metrics != nil {
		genCfg.Recorder = e.metrics
	}

	e.assistant, err = assistant.NewService(assistant.Config{
		Registry:             registry,
		Sessions:             e.sessions,
		Router:               orch,
		Generator:            generator.NewAdapter(generatorLLM, genCfg),
		ClassifierConfigured: cls != nil,
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return e, nil
}

// metricsHandler is nil when metrics are disabled.
func (e *engine) metricsHandler() http.Handler {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.Handler()
}

// close stops components in reverse dependency order.
func (e *engine) close() {
	if e.sessions != nil {
		e.sessions.Shutdown()
	}
	if e.events != nil {
		if err := e.events.Close(); err != nil {
			slog.Warn("failed to close event sink", "error", err)
		}
	}
	if e.cache != nil {
		e.cache.Close()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}
}
