package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ErrorKind is the failure category callers branch on.
type ErrorKind int

const (
	// KindUnavailable covers network failures, timeouts, throttling and 5xx.
	KindUnavailable ErrorKind = iota
	// KindMalformed covers empty or unparsable responses.
	KindMalformed
	// KindRejected covers auth failures, invalid requests and refusals.
	KindRejected
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

var (
	errEmptyResponse   = errors.New("empty response from LLM")
	errContentFiltered = errors.New("response blocked by provider content filter")
)

// Error is a classified provider failure.
type Error struct {
	Provider string
	Kind     ErrorKind
	Status   int // HTTP status when known
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s (status=%d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, classifying unwrapped errors on the fly.
func KindOf(err error) ErrorKind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return ClassifyError("", err).Kind
}

// ClassifyError maps a provider SDK error to an *Error.
func ClassifyError(provider string, err error) *Error {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	out := &Error{Provider: provider, Kind: KindUnavailable, Err: err}
	if status := statusOf(err); status > 0 {
		out.Status = status
		out.Kind = kindForStatus(status)
		return out
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return out
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return out
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		out.Kind = KindMalformed
		return out
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "unauthorized", "forbidden", "invalid api key", "permission denied", "refus"):
		out.Kind = KindRejected
	case containsAny(msg, "invalid character", "unexpected end of json", "cannot unmarshal"):
		out.Kind = KindMalformed
	}
	return out
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code
	}
	return 0
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return KindUnavailable
	case status >= 400:
		return KindRejected
	default:
		return KindMalformed
	}
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
