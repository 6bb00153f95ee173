// Package specialist holds the static definitions of the response roles the
// router can choose from.
package specialist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yosefsha/myassistant/ai/internal/strutil"
)

// ID identifies a specialist. IDs are stable strings used in configuration,
// classifier output, session state and metrics.
type ID string

// General is the generic assistant role. A session whose active specialist is
// General has no named specialist.
const General ID = "general"

// String returns the id as a plain string.
func (id ID) String() string {
	return string(id)
}

// IsGeneral reports whether id denotes the general assistant.
// The empty id is treated as general.
func (id ID) IsGeneral() bool {
	return id == "" || id == General
}

// Specialist describes one response role.
type Specialist struct {
	ID             ID       `json:"id" yaml:"id" toml:"id"`
	Label          string   `json:"label" yaml:"label" toml:"label"`
	Keywords       []string `json:"keywords" yaml:"keywords" toml:"keywords"`
	IntentKeywords []string `json:"intent_keywords" yaml:"intent_keywords" toml:"intent_keywords"`
	Threshold      float64  `json:"threshold" yaml:"threshold" toml:"threshold"`
	PromptTemplate string   `json:"prompt_template" yaml:"prompt_template" toml:"prompt_template"`
	// Generic marks the fallback role. A generic specialist may have no keywords.
	Generic bool `json:"generic,omitempty" yaml:"generic,omitempty" toml:"generic"`
}

var (
	// ErrNotFound is returned by Get for ids missing from the registry.
	ErrNotFound = errors.New("specialist not found")
	// ErrConfigInvalid is the sentinel wrapped by every ConfigInvalidError.
	ErrConfigInvalid = errors.New("specialist configuration invalid")
)

// ConfigInvalidError reports every problem found while validating a set of
// specialist definitions.
type ConfigInvalidError struct {
	Problems []string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfigInvalid, strings.Join(e.Problems, "; "))
}

// Unwrap returns ErrConfigInvalid so callers can use errors.Is.
func (e *ConfigInvalidError) Unwrap() error {
	return ErrConfigInvalid
}

// Registry is an immutable, ordered set of specialists. It is safe for
// concurrent reads without synchronization.
type Registry struct {
	ordered []Specialist
	byID    map[ID]int
	general Specialist
}

// New validates specs and builds a registry preserving declaration order.
// When specs declare no generic specialist, a built-in general role is used
// for prompts routed to General.
func New(specs []Specialist) (*Registry, error) {
	var problems []string
	byID := make(map[ID]int, len(specs))
	ordered := make([]Specialist, 0, len(specs))
	general := defaultGeneral()
	generics := 0

	for i, s := range specs {
		s.ID = ID(strings.TrimSpace(string(s.ID)))
		switch {
		case s.ID == "":
			problems = append(problems, fmt.Sprintf("specialist #%d: empty id", i))
			continue
		case s.ID == General && !s.Generic:
			problems = append(problems, fmt.Sprintf("%s: reserved id must be marked generic", s.ID))
		}
		if _, dup := byID[s.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate id", s.ID))
			continue
		}
		if s.Threshold < 0 || s.Threshold > 1 || s.Threshold != s.Threshold {
			problems = append(problems, fmt.Sprintf("%s: threshold %v outside [0,1]", s.ID, s.Threshold))
		}
		s.Keywords = normalizeKeywords(s.Keywords)
		s.IntentKeywords = normalizeKeywords(s.IntentKeywords)
		if len(s.Keywords) == 0 && !s.Generic {
			problems = append(problems, fmt.Sprintf("%s: empty keyword set", s.ID))
		}
		if strings.TrimSpace(s.PromptTemplate) == "" {
			problems = append(problems, fmt.Sprintf("%s: empty prompt template", s.ID))
		}
		if s.Label == "" {
			s.Label = string(s.ID)
		}

		if s.Generic {
			generics++
			general = s
		}
		byID[s.ID] = len(ordered)
		ordered = append(ordered, s)
	}

	if generics > 1 {
		problems = append(problems, fmt.Sprintf("%d generic specialists declared, at most one allowed", generics))
	}
	if len(ordered)-generics == 0 && len(problems) == 0 {
		problems = append(problems, "no routable specialists declared")
	}
	if len(problems) > 0 {
		return nil, &ConfigInvalidError{Problems: problems}
	}

	return &Registry{ordered: ordered, byID: byID, general: general}, nil
}

// List returns the specialists in declaration order.
func (r *Registry) List() []Specialist {
	out := make([]Specialist, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Routable returns the non-generic specialists in declaration order.
func (r *Registry) Routable() []Specialist {
	out := make([]Specialist, 0, len(r.ordered))
	for _, s := range r.ordered {
		if !s.Generic {
			out = append(out, s)
		}
	}
	return out
}

// Get returns the specialist with the given id. General always resolves,
// falling back to the built-in general role.
func (r *Registry) Get(id ID) (Specialist, error) {
	if i, ok := r.byID[id]; ok {
		return r.ordered[i], nil
	}
	if id.IsGeneral() {
		return r.general, nil
	}
	return Specialist{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Has reports whether id resolves, including General.
func (r *Registry) Has(id ID) bool {
	_, err := r.Get(id)
	return err == nil
}

// General returns the generic role.
func (r *Registry) General() Specialist {
	return r.general
}

// Len returns the number of declared specialists.
func (r *Registry) Len() int {
	return len(r.ordered)
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, kw := range in {
		kw = strutil.Normalize(kw)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
