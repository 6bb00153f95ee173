// Package routing decides which specialist handles each query: the
// keyword fallback scorer and the orchestrator that combines it with the
// external classifier.
package routing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yosefsha/myassistant/ai/specialist"
)

// thresholdEpsilon absorbs float error when a score lands on a threshold.
const thresholdEpsilon = 1e-9

// Weights are the fallback score weights. They must be non-negative and sum
// to 1.
type Weights struct {
	Keyword float64 `json:"keyword"`
	Domain  float64 `json:"domain"`
	Context float64 `json:"context"`
}

// DefaultWeights returns 0.5 keyword, 0.3 domain, 0.2 context.
func DefaultWeights() Weights {
	return Weights{Keyword: 0.5, Domain: 0.3, Context: 0.2}
}

// Validate checks the weights.
func (w Weights) Validate() error {
	named := []struct {
		name string
		v    float64
	}{{"keyword", w.Keyword}, {"domain", w.Domain}, {"context", w.Context}}
	for _, n := range named {
		if math.IsNaN(n.v) || n.v < 0 {
			return fmt.Errorf("%w: %s weight %v is negative", specialist.ErrConfigInvalid, n.name, n.v)
		}
	}
	if sum := w.Keyword + w.Domain + w.Context; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: weights sum to %v, want 1", specialist.ErrConfigInvalid, sum)
	}
	return nil
}

// ScorerConfig configures a Scorer. Every field is used as given; a zero
// ContextBonus or HintWeight disables that term.
type ScorerConfig struct {
	Weights      Weights
	ContextBonus float64
	HintWeight   float64
	Cache        *ScoreCache // optional memo for Select
}

// DefaultScorerConfig returns the stock tuning: default weights, a context
// bonus of 0.5 and a hint weight of 0.2.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Weights:      DefaultWeights(),
		ContextBonus: 0.5,
		HintWeight:   0.2,
	}
}

// Score is one specialist's fallback score with its components.
type Score struct {
	Specialist specialist.ID `json:"specialist"`
	Confidence float64       `json:"confidence"`
	Keyword    float64       `json:"keyword"`
	Domain     float64       `json:"domain"`
	Context    float64       `json:"context"`
	Hint       float64       `json:"hint,omitempty"`
}

// Hint is a low-confidence classifier suggestion used as a weak prior.
type Hint struct {
	Specialist specialist.ID
	Confidence float64
}

// Selection is the outcome of Select.
type Selection struct {
	Specialist specialist.ID `json:"specialist"`
	Confidence float64       `json:"confidence"`
	// Qualified is false when no specialist met its threshold and the
	// target fell back to General.
	Qualified bool    `json:"qualified"`
	Rationale string  `json:"rationale"`
	Scores    []Score `json:"scores"`
}

type scoredSpecialist struct {
	spec    specialist.Specialist
	primary keywordSet
	intent  keywordSet
}

// Scorer is the deterministic keyword fallback. It holds no mutable state
// apart from the optional cache and is safe for concurrent use.
type Scorer struct {
	specialists  []scoredSpecialist
	weights      Weights
	contextBonus float64
	hintWeight   float64
	cache        *ScoreCache
}

// NewScorer compiles the registry's routable specialists.
func NewScorer(registry *specialist.Registry, cfg ScorerConfig) (*Scorer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if !unitInterval(cfg.ContextBonus) || !unitInterval(cfg.HintWeight) {
		return nil, fmt.Errorf("%w: context bonus and hint weight must be within [0,1]", specialist.ErrConfigInvalid)
	}

	routable := registry.Routable()
	s := &Scorer{
		specialists:  make([]scoredSpecialist, len(routable)),
		weights:      cfg.Weights,
		contextBonus: cfg.ContextBonus,
		hintWeight:   cfg.HintWeight,
		cache:        cfg.Cache,
	}
	for i, spec := range routable {
		s.specialists[i] = scoredSpecialist{
			spec:    spec,
			primary: newKeywordSet(spec.Keywords),
			intent:  newKeywordSet(spec.IntentKeywords),
		}
	}
	return s, nil
}

// Score returns one score per routable specialist, highest first. Ties keep
// registry declaration order.
func (s *Scorer) Score(text string, previous specialist.ID) []Score {
	return s.score(newQuery(text), previous, nil)
}

func (s *Scorer) score(q query, previous specialist.ID, hint *Hint) []Score {
	scores := make([]Score, len(s.specialists))
	for i, ss := range s.specialists {
		sc := Score{
			Specialist: ss.spec.ID,
			Keyword:    ss.primary.match(q),
			Domain:     ss.intent.match(q),
		}
		if previous != "" && ss.spec.ID == previous {
			sc.Context = s.contextBonus
		}
		sc.Confidence = s.weights.Keyword*sc.Keyword + s.weights.Domain*sc.Domain + s.weights.Context*sc.Context
		if hint != nil && hint.Specialist == ss.spec.ID {
			sc.Hint = s.hintWeight * hint.Confidence
			sc.Confidence += sc.Hint
		}
		sc.Confidence = clamp01(sc.Confidence)
		scores[i] = sc
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})
	return scores
}

// Select picks the highest-scoring specialist that meets its own threshold,
// or General with the best score achieved when none does. hint may be nil.
func (s *Scorer) Select(text string, previous specialist.ID, hint *Hint) Selection {
	if s.cache != nil {
		if sel, ok := s.cache.Get(text, previous, hint); ok {
			return sel
		}
	}

	sel := s.selectUncached(text, previous, hint)
	if s.cache != nil {
		s.cache.Set(text, previous, hint, sel)
	}
	return sel
}

func (s *Scorer) selectUncached(text string, previous specialist.ID, hint *Hint) Selection {
	scores := s.score(newQuery(text), previous, hint)
	sel := Selection{Specialist: specialist.General, Scores: scores}
	if len(scores) == 0 {
		sel.Rationale = "fallback: no routable specialists; routed to general"
		return sel
	}

	for _, sc := range scores {
		threshold := s.threshold(sc.Specialist)
		if sc.Confidence+thresholdEpsilon >= threshold {
			sel.Specialist = sc.Specialist
			sel.Confidence = sc.Confidence
			sel.Qualified = true
			sel.Rationale = fmt.Sprintf("fallback: %s %s >= threshold %.3f", sc.Specialist, describe(sc), threshold)
			return sel
		}
	}

	best := scores[0]
	sel.Confidence = best.Confidence
	sel.Rationale = fmt.Sprintf("fallback: no specialist met its threshold (best %s %s, threshold %.3f); routed to general",
		best.Specialist, describe(best), s.threshold(best.Specialist))
	return sel
}

func (s *Scorer) threshold(id specialist.ID) float64 {
	for _, ss := range s.specialists {
		if ss.spec.ID == id {
			return ss.spec.Threshold
		}
	}
	return 1
}

func describe(sc Score) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "score=%.3f (keyword=%.3f domain=%.3f context=%.3f", sc.Confidence, sc.Keyword, sc.Domain, sc.Context)
	if sc.Hint > 0 {
		fmt.Fprintf(&sb, " hint=%.3f", sc.Hint)
	}
	sb.WriteByte(')')
	return sb.String()
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func unitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
