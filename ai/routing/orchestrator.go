package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/yosefsha/myassistant/ai/classifier"
	"github.com/yosefsha/myassistant/ai/core/llm"
	"github.com/yosefsha/myassistant/ai/events"
	"github.com/yosefsha/myassistant/ai/internal/strutil"
	"github.com/yosefsha/myassistant/ai/observability/tracing"
	"github.com/yosefsha/myassistant/ai/session"
	"github.com/yosefsha/myassistant/ai/specialist"
)

// State is the branch a routing request took before reaching Decided.
type State string

const (
	StateClassifiedHighConfidence State = "classified_high_confidence"
	StateClassifiedLowConfidence  State = "classified_low_confidence"
	StateClassificationFailed     State = "classification_failed"
)

const clarificationRationale = "clarification requested"

// Decision is the routing outcome recorded for one turn.
type Decision struct {
	SessionID  string         `json:"session_id"`
	TurnIndex  int            `json:"turn_index"`
	Specialist specialist.ID  `json:"specialist"`
	Confidence float64        `json:"confidence"`
	Rationale  string         `json:"rationale"`
	Source     session.Source `json:"source"`
	State      State          `json:"state"`
	Previous   specialist.ID  `json:"previous"`
	Switched   bool           `json:"switched"`
	// ClassifierOutcome is "ok" or the classification failure kind.
	ClassifierOutcome string `json:"classifier_outcome"`
	LatencyMs         int64  `json:"latency_ms"`
}

// Outcome is what Route hands to response generation.
type Outcome struct {
	Decision   Decision
	Specialist specialist.Specialist
	// Context holds the turns preceding this one, oldest first.
	Context []session.Turn
	Turn    session.Turn
}

// Sessions is the slice of the session manager the orchestrator needs.
type Sessions interface {
	Acquire(ctx context.Context, id string) (func(), error)
	Get(id string) (*session.Session, error)
	AppendTurn(id string, turn session.Turn) (*session.Session, error)
}

// Recorder receives routing metrics. *metrics.PrometheusExporter
// satisfies it.
type Recorder interface {
	RecordDecision(source, state, specialistID string)
	RecordSwitch(from, to string)
	ObserveClassification(outcome string, latency time.Duration)
}

// Stock orchestrator tuning. OrchestratorConfig takes its values as given,
// so callers that want these must set them.
const (
	DefaultMaxContextTurns = 5
	DefaultHintFloor       = 0.3
)

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Registry *specialist.Registry
	Sessions Sessions
	Scorer   *Scorer
	// Classifier may be nil, in which case every request falls back.
	Classifier      classifier.Classifier
	MaxContextTurns int     // zero sends no history to the classifier
	HintFloor       float64 // zero lets any positive low-confidence answer act as a hint
	Recorder        Recorder
	Events          events.Sink
	Logger          *slog.Logger
}

// Orchestrator runs the per-request routing state machine.
type Orchestrator struct {
	registry        *specialist.Registry
	sessions        Sessions
	scorer          *Scorer
	classifier      classifier.Classifier
	maxContextTurns int
	hintFloor       float64
	recorder        Recorder
	events          events.Sink
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Registry == nil || cfg.Sessions == nil || cfg.Scorer == nil {
		return nil, errors.New("routing: registry, sessions and scorer are required")
	}
	if cfg.MaxContextTurns < 0 {
		return nil, fmt.Errorf("%w: max context turns %d is negative", specialist.ErrConfigInvalid, cfg.MaxContextTurns)
	}
	if !unitInterval(cfg.HintFloor) {
		return nil, fmt.Errorf("%w: hint floor %v outside [0,1]", specialist.ErrConfigInvalid, cfg.HintFloor)
	}
	if cfg.Events == nil {
		cfg.Events = events.NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		registry:        cfg.Registry,
		sessions:        cfg.Sessions,
		scorer:          cfg.Scorer,
		classifier:      cfg.Classifier,
		maxContextTurns: cfg.MaxContextTurns,
		hintFloor:       cfg.HintFloor,
		recorder:        cfg.Recorder,
		events:          cfg.Events,
		logger:          cfg.Logger,
	}, nil
}

// Route decides the specialist for query and appends exactly one turn to
// the session. Requests for the same session are serialized; the session
// must exist.
func (o *Orchestrator) Route(ctx context.Context, sessionID, query string) (*Outcome, error) {
	start := time.Now()
	ctx, span := tracing.StartRouteSpan(ctx, sessionID)

	release, err := o.sessions.Acquire(ctx, sessionID)
	if err != nil {
		tracing.End(span, err)
		return nil, err
	}
	defer release()

	sess, err := o.sessions.Get(sessionID)
	if err != nil {
		tracing.End(span, err)
		return nil, err
	}
	previous := sess.ActiveSpecialist
	if previous == "" {
		previous = specialist.General
	}
	recent := sess.Turns
	if len(recent) > o.maxContextTurns {
		recent = recent[len(recent)-o.maxContextTurns:]
	}

	result, cerr := o.classify(ctx, query, recent)
	d := o.decide(query, previous, result, cerr)
	if d.ClassifierOutcome == "" {
		d.ClassifierOutcome = "ok"
	}
	d.SessionID = sessionID
	d.Previous = previous
	d.Switched = d.Specialist != previous

	updated, err := o.sessions.AppendTurn(sessionID, session.Turn{
		Query:      query,
		Specialist: d.Specialist,
		Confidence: d.Confidence,
		Rationale:  d.Rationale,
		Source:     d.Source,
	})
	if err != nil {
		tracing.End(span, err)
		return nil, fmt.Errorf("record turn: %w", err)
	}
	turn, _ := updated.LastTurn()
	d.TurnIndex = turn.Index
	d.LatencyMs = time.Since(start).Milliseconds()

	spec, err := o.registry.Get(d.Specialist)
	if err != nil {
		spec = o.registry.General()
	}

	o.observe(ctx, d, turn.Timestamp)
	tracing.RecordDecision(span, string(d.Specialist), string(d.Source), string(d.State), d.Confidence, d.Switched)
	tracing.End(span, nil)

	return &Outcome{
		Decision:   d,
		Specialist: spec,
		Context:    append([]session.Turn(nil), recent...),
		Turn:       turn,
	}, nil
}

func (o *Orchestrator) classify(ctx context.Context, query string, recent []session.Turn) (*classifier.Result, error) {
	if o.classifier == nil {
		return nil, &classifier.ClassificationError{Kind: llm.KindUnavailable, Err: errors.New("no classifier configured")}
	}

	start := time.Now()
	result, err := o.classifier.Classify(ctx, query, recent, o.maxContextTurns)
	outcome := "ok"
	if err != nil {
		outcome = failureKind(err)
	}
	if o.recorder != nil {
		o.recorder.ObserveClassification(outcome, time.Since(start))
	}
	if err == nil && result == nil {
		err = &classifier.ClassificationError{Kind: llm.KindMalformed, Err: errors.New("empty result")}
	}
	return result, err
}

// decide is the pure part of the state machine: given the classifier's
// answer, pick the target, source and rationale.
func (o *Orchestrator) decide(query string, previous specialist.ID, result *classifier.Result, cerr error) Decision {
	if cerr == nil && !validConfidence(result.Confidence) {
		cerr = &classifier.ClassificationError{
			Kind: llm.KindMalformed,
			Err:  fmt.Errorf("confidence %v outside [0,1]", result.Confidence),
		}
	}
	if cerr != nil {
		sel := o.scorer.Select(query, previous, nil)
		return Decision{
			Specialist: sel.Specialist,
			Confidence: sel.Confidence,
			Source:     session.SourceFallback,
			State:      StateClassificationFailed,
			Rationale:  fmt.Sprintf("classifier %s: %v; %s", failureKind(cerr), unwrapCause(cerr), sel.Rationale),

			ClassifierOutcome: failureKind(cerr),
		}
	}

	threshold := 1.0
	spec, err := o.registry.Get(result.Specialist)
	known := err == nil
	if known {
		threshold = spec.Threshold
	}

	if known && result.Confidence+thresholdEpsilon >= threshold {
		rationale := result.Rationale
		if rationale == "" {
			rationale = fmt.Sprintf("classifier: %s confidence %.3f >= threshold %.3f", result.Specialist, result.Confidence, threshold)
		}
		return Decision{
			Specialist: result.Specialist,
			Confidence: result.Confidence,
			Source:     session.SourceClassifier,
			State:      StateClassifiedHighConfidence,
			Rationale:  rationale,
		}
	}

	if result.NeedsClarification {
		rationale := clarificationRationale
		if result.Rationale != "" {
			rationale += ": " + result.Rationale
		}
		return Decision{
			Specialist: specialist.General,
			Confidence: result.Confidence,
			Source:     session.SourceClassifier,
			State:      StateClassifiedLowConfidence,
			Rationale:  rationale,
		}
	}

	var hint *Hint
	prefix := fmt.Sprintf("classifier low confidence (%s %.3f)", result.Specialist, result.Confidence)
	switch {
	case !known:
		prefix = fmt.Sprintf("classifier named unknown specialist %q", result.Specialist)
	case result.Confidence > o.hintFloor:
		hint = &Hint{Specialist: result.Specialist, Confidence: result.Confidence}
		prefix += ", used as hint"
	}
	sel := o.scorer.Select(query, previous, hint)
	return Decision{
		Specialist: sel.Specialist,
		Confidence: sel.Confidence,
		Source:     session.SourceFallback,
		State:      StateClassifiedLowConfidence,
		Rationale:  prefix + "; " + sel.Rationale,
	}
}

func (o *Orchestrator) observe(ctx context.Context, d Decision, at time.Time) {
	o.logger.Info("routing decision",
		"session_id", d.SessionID,
		"turn", d.TurnIndex,
		"specialist", d.Specialist,
		"previous", d.Previous,
		"switched", d.Switched,
		"source", d.Source,
		"state", d.State,
		"confidence", d.Confidence,
		"latency_ms", d.LatencyMs,
	)
	o.logger.Debug("routing rationale", "session_id", d.SessionID, "rationale", strutil.Truncate(d.Rationale, 300))

	if o.recorder != nil {
		o.recorder.RecordDecision(string(d.Source), string(d.State), string(d.Specialist))
		if d.Switched {
			o.recorder.RecordSwitch(string(d.Previous), string(d.Specialist))
		}
	}

	ev := events.Event{
		Kind:       events.KindDecision,
		SessionID:  d.SessionID,
		TurnIndex:  d.TurnIndex,
		Specialist: string(d.Specialist),
		Previous:   string(d.Previous),
		Source:     string(d.Source),
		State:      string(d.State),
		Confidence: d.Confidence,
		Rationale:  d.Rationale,
		Timestamp:  at,
	}
	o.publish(ctx, ev)
	if d.Switched {
		ev.Kind = events.KindSwitch
		o.publish(ctx, ev)
	}
}

func (o *Orchestrator) publish(ctx context.Context, ev events.Event) {
	if err := o.events.Publish(ctx, ev); err != nil {
		o.logger.Warn("failed to publish routing event", "kind", ev.Kind, "session_id", ev.SessionID, "error", err)
	}
}

func validConfidence(c float64) bool {
	return !math.IsNaN(c) && c >= 0 && c <= 1
}

// failureKind labels a classification failure for metrics and rationale.
func failureKind(err error) string {
	var cerr *classifier.ClassificationError
	if errors.As(err, &cerr) {
		return cerr.Kind.String()
	}
	return llm.KindOf(err).String()
}

func unwrapCause(err error) error {
	var cerr *classifier.ClassificationError
	if errors.As(err, &cerr) && cerr.Err != nil {
		return cerr.Err
	}
	return err
}
