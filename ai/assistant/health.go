package assistant

import (
	"sync"
	"time"
)

// Reachability is the last observed outcome of calls to one external
// capability. It is informational only; routing never consults it.
type Reachability struct {
	Configured bool      `json:"configured"`
	Observed   bool      `json:"observed"`
	Reachable  bool      `json:"reachable"`
	Outcome    string    `json:"outcome,omitempty"`
	CheckedAt  time.Time `json:"checked_at,omitempty"`
}

// healthTracker records the latest classification and generation outcomes.
type healthTracker struct {
	mu         sync.RWMutex
	classifier Reachability
	generator  Reachability
}

func newHealthTracker(classifierConfigured, generatorConfigured bool) *healthTracker {
	return &healthTracker{
		classifier: Reachability{Configured: classifierConfigured},
		generator:  Reachability{Configured: generatorConfigured},
	}
}

// reachable treats malformed and rejected answers as reachable: the service
// responded.
func reachable(outcome string) bool {
	return outcome == "ok" || outcome == "malformed" || outcome == "rejected"
}

func (h *healthTracker) observeClassifier(outcome string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.classifier.Configured {
		return
	}
	h.classifier = Reachability{Configured: true, Observed: true, Reachable: reachable(outcome), Outcome: outcome, CheckedAt: at}
}

func (h *healthTracker) observeGenerator(outcome string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.generator = Reachability{Configured: h.generator.Configured, Observed: true, Reachable: reachable(outcome), Outcome: outcome, CheckedAt: at}
}

func (h *healthTracker) snapshot() (classifier, generator Reachability) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.classifier, h.generator
}
