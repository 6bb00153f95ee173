// Package assistant is the session API over the routing engine: it starts
// and continues conversations, routing each message and generating the
// specialist's reply.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yosefsha/myassistant/ai/core/llm"
	"github.com/yosefsha/myassistant/ai/generator"
	"github.com/yosefsha/myassistant/ai/internal/strutil"
	"github.com/yosefsha/myassistant/ai/routing"
	"github.com/yosefsha/myassistant/ai/session"
	"github.com/yosefsha/myassistant/ai/specialist"
	"github.com/yosefsha/myassistant/internal/version"
)

// ErrEmptyMessage is returned for blank messages.
var ErrEmptyMessage = errors.New("message is empty")

// Router decides the specialist for a message. *routing.Orchestrator
// satisfies it.
type Router interface {
	Route(ctx context.Context, sessionID, query string) (*routing.Outcome, error)
}

// Sessions is the slice of the session manager the service needs.
type Sessions interface {
	CreateOrGet(id string) *session.Session
	Get(id string) (*session.Session, error)
	Stats(id string) (*session.Stats, error)
	Expire(id string) error
	Count() int
}

// Reply is the result of one message.
type Reply struct {
	SessionID string           `json:"session_id"`
	Decision  routing.Decision `json:"decision"`
	Text      string           `json:"reply"`
}

// Status is the engine health summary.
type Status struct {
	RegistryLoaded bool         `json:"registry_loaded"`
	Specialists    int          `json:"specialists"`
	ActiveSessions int          `json:"active_sessions"`
	Classifier     Reachability `json:"classifier"`
	Generator      Reachability `json:"generator"`
	Version        version.Info `json:"version"`
	StartedAt      time.Time    `json:"started_at"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
}

// Config wires a Service.
type Config struct {
	Registry  *specialist.Registry
	Sessions  Sessions
	Router    Router
	Generator generator.Generator
	// ClassifierConfigured reports whether an external classifier is wired
	// into the router.
	ClassifierConfigured bool
	Logger               *slog.Logger
	Now                  func() time.Time
	NewID                func() string
}

// Service implements the session API.
type Service struct {
	registry  *specialist.Registry
	sessions  Sessions
	router    Router
	generator generator.Generator
	health    *healthTracker
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	startedAt time.Time
}

// NewService creates a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Registry == nil || cfg.Sessions == nil || cfg.Router == nil || cfg.Generator == nil {
		return nil, errors.New("assistant: registry, sessions, router and generator are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Service{
		registry:  cfg.Registry,
		sessions:  cfg.Sessions,
		router:    cfg.Router,
		generator: cfg.Generator,
		health:    newHealthTracker(cfg.ClassifierConfigured, true),
		logger:    cfg.Logger,
		now:       cfg.Now,
		newID:     cfg.NewID,
		startedAt: cfg.Now(),
	}, nil
}

// StartSession opens a new session and answers its first message.
func (s *Service) StartSession(ctx context.Context, message string) (*Reply, error) {
	if isBlank(message) {
		return nil, ErrEmptyMessage
	}
	id := s.newID()
	s.sessions.CreateOrGet(id)
	s.logger.Info("session started", "session_id", id)
	return s.handle(ctx, id, message)
}

// Continue answers a message in an existing session. Unknown or expired
// sessions return session.ErrSessionNotFound.
func (s *Service) Continue(ctx context.Context, sessionID, message string) (*Reply, error) {
	if isBlank(message) {
		return nil, ErrEmptyMessage
	}
	return s.handle(ctx, sessionID, message)
}

// handle routes then generates. A generation failure returns the reply with
// its decision alongside the *generator.GenerationError.
func (s *Service) handle(ctx context.Context, sessionID, message string) (*Reply, error) {
	outcome, err := s.router.Route(ctx, sessionID, message)
	if err != nil {
		return nil, err
	}
	s.health.observeClassifier(outcome.Decision.ClassifierOutcome, s.now())

	reply := &Reply{SessionID: sessionID, Decision: outcome.Decision}
	prompt := s.generator.BuildPrompt(outcome.Specialist, message, outcome.Context)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.health.observeGenerator(generationOutcome(err), s.now())
		s.logger.Warn("reply generation failed",
			"session_id", sessionID,
			"specialist", outcome.Decision.Specialist,
			"query", strutil.Truncate(message, 50),
			"error", err)
		return reply, err
	}
	s.health.observeGenerator("ok", s.now())
	reply.Text = text
	return reply, nil
}

// SessionStats returns the analytics summary for a session.
func (s *Service) SessionStats(sessionID string) (*session.Stats, error) {
	return s.sessions.Stats(sessionID)
}

// EndSession terminates a session.
func (s *Service) EndSession(sessionID string) error {
	if err := s.sessions.Expire(sessionID); err != nil {
		return err
	}
	s.logger.Info("session ended", "session_id", sessionID)
	return nil
}

// Status reports the engine health summary.
func (s *Service) Status() Status {
	classifierHealth, generatorHealth := s.health.snapshot()
	now := s.now()
	return Status{
		RegistryLoaded: s.registry != nil && s.registry.Len() > 0,
		Specialists:    len(s.registry.Routable()),
		ActiveSessions: s.sessions.Count(),
		Classifier:     classifierHealth,
		Generator:      generatorHealth,
		Version:        version.Current(),
		StartedAt:      s.startedAt,
		UptimeSeconds:  int64(now.Sub(s.startedAt).Seconds()),
	}
}

func generationOutcome(err error) string {
	var gerr *generator.GenerationError
	if errors.As(err, &gerr) {
		return gerr.Kind.String()
	}
	return llm.KindOf(err).String()
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
