package classifier

import (
	"errors"
	"fmt"

	"github.com/yosefsha/myassistant/ai/core/llm"
)

// Sentinels matched by errors.Is against a *ClassificationError.
var (
	ErrUnavailable = errors.New("classifier unavailable")
	ErrMalformed   = errors.New("classifier response malformed")
	ErrRejected    = errors.New("classifier rejected request")
)

// ClassificationError is a failed classification. It is always recoverable:
// the router falls back to keyword scoring.
type ClassificationError struct {
	Kind llm.ErrorKind
	Err  error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification %s: %v", e.Kind, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *ClassificationError) Is(target error) bool {
	switch e.Kind {
	case llm.KindUnavailable:
		return target == ErrUnavailable
	case llm.KindMalformed:
		return target == ErrMalformed
	case llm.KindRejected:
		return target == ErrRejected
	}
	return false
}

func malformed(format string, args ...any) *ClassificationError {
	return &ClassificationError{Kind: llm.KindMalformed, Err: fmt.Errorf(format, args...)}
}

// fromLLM converts an LLM layer failure, keeping its kind.
func fromLLM(err error) *ClassificationError {
	return &ClassificationError{Kind: llm.KindOf(err), Err: err}
}
