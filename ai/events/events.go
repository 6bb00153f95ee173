// Package events publishes routing decisions to an external event stream.
package events

import (
	"context"
	"time"
)

// Kind identifies the event type. It is also the subject suffix.
type Kind string

const (
	KindDecision Kind = "decision"
	KindSwitch   Kind = "switch"
)

// Event describes one routing decision or specialist switch.
type Event struct {
	Kind       Kind      `json:"kind"`
	SessionID  string    `json:"session_id"`
	TurnIndex  int       `json:"turn_index"`
	Specialist string    `json:"specialist"`
	Previous   string    `json:"previous"`
	Source     string    `json:"source"`
	State      string    `json:"state"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink receives routing events. Publish must not block on the network.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }

func (NopSink) Close() error { return nil }
