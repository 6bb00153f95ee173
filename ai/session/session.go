// Package session owns per-conversation routing state: the ordered turn
// history, the active specialist and the switch counters.
package session

import (
	"errors"
	"time"

	"github.com/yosefsha/myassistant/ai/specialist"
)

// ErrSessionNotFound is returned for unknown, expired or terminated sessions.
var ErrSessionNotFound = errors.New("session not found")

// Source records which path produced a routing decision.
type Source string

const (
	SourceClassifier Source = "classifier"
	SourceFallback   Source = "fallback"
)

// Turn is one query/decision unit. Turns are append-only.
type Turn struct {
	Index      int           `json:"index"`
	Query      string        `json:"query"`
	Specialist specialist.ID `json:"specialist"`
	Confidence float64       `json:"confidence"`
	Rationale  string        `json:"rationale"`
	Source     Source        `json:"source"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Session is a snapshot of one conversation's routing state. Values handed
// out by the Manager are copies; mutating them has no effect on the manager.
type Session struct {
	ID               string        `json:"id"`
	CreatedAt        time.Time     `json:"created_at"`
	Turns            []Turn        `json:"turns"`
	ActiveSpecialist specialist.ID `json:"active_specialist"`
	SwitchCount      int           `json:"switch_count"`
	LastActivity     time.Time     `json:"last_activity"`
}

// LastTurn returns the most recent turn, if any.
func (s *Session) LastTurn() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

func (s *Session) clone() *Session {
	c := *s
	c.Turns = make([]Turn, len(s.Turns))
	copy(c.Turns, s.Turns)
	return &c
}

// Stats summarizes a session for analytics.
type Stats struct {
	SessionID              string                `json:"session_id"`
	TurnCount              int                   `json:"turn_count"`
	SwitchCount            int                   `json:"switch_count"`
	SpecialistDistribution map[specialist.ID]int `json:"specialist_distribution"`
	ActiveSpecialist       specialist.ID         `json:"active_specialist"`
	CreatedAt              time.Time             `json:"created_at"`
	LastActivity           time.Time             `json:"last_activity"`
}

func (s *Session) stats() *Stats {
	dist := make(map[specialist.ID]int)
	for _, t := range s.Turns {
		dist[t.Specialist]++
	}
	return &Stats{
		SessionID:              s.ID,
		TurnCount:              len(s.Turns),
		SwitchCount:            s.SwitchCount,
		SpecialistDistribution: dist,
		ActiveSpecialist:       s.ActiveSpecialist,
		CreatedAt:              s.CreatedAt,
		LastActivity:           s.LastActivity,
	}
}
