package generator

import (
	"errors"
	"fmt"

	"github.com/yosefsha/myassistant/ai/core/llm"
)

// Sentinels matched by errors.Is against a *GenerationError.
var (
	ErrUnavailable = errors.New("generation unavailable")
	ErrMalformed   = errors.New("generation response malformed")
	ErrRejected    = errors.New("generation rejected")
)

// GenerationError is a failed generation. The routing decision it belongs
// to stays recorded.
type GenerationError struct {
	Kind llm.ErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *GenerationError) Is(target error) bool {
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
