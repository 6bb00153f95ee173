package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletionBody(content, finishReason string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "test-model",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": %q}],
		"usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
	}`, content, finishReason)
}

func newOpenAITestService(t *testing.T, handler http.HandlerFunc, mutate func(*Config)) Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &Config{Provider: "openai", Model: "test-model", APIKey: "k", BaseURL: srv.URL}
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := NewService(cfg)
	require.NoError(t, err)
	return svc
}

func TestOpenAIService_Chat(t *testing.T) {
	var gotBody map[string]any
	svc := newOpenAITestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletionBody("hello", "stop"))
	}, func(c *Config) { c.JSONMode = true })

	content, stats, err := svc.Chat(context.Background(), []Message{SystemPrompt("sys"), UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	assert.Equal(t, 10, stats.TotalTokens)
	assert.Equal(t, "openai", svc.Provider())

	require.NotNil(t, gotBody)
	assert.Equal(t, "test-model", gotBody["model"])
	format, ok := gotBody["response_format"].(map[string]any)
	require.True(t, ok, "json mode sets response_format")
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIService_ChatErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		want    ErrorKind
		status  int
	}{
		{
			name: "server error is unavailable",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
			},
			want:   KindUnavailable,
			status: http.StatusInternalServerError,
		},
		{
			name: "throttling is unavailable",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
			},
			want:   KindUnavailable,
			status: http.StatusTooManyRequests,
		},
		{
			name: "auth failure is rejected",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
			},
			want:   KindRejected,
			status: http.StatusUnauthorized,
		},
		{
			name: "content filter is rejected",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, chatCompletionBody("", "content_filter"))
			},
			want: KindRejected,
		},
		{
			name: "empty content is malformed",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, chatCompletionBody("", "stop"))
			},
			want: KindMalformed,
		},
		{
			name: "no choices is malformed",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
			},
			want: KindMalformed,
		},
		{
			name: "timeout is unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(500 * time.Millisecond):
				case <-r.Context().Done():
				}
			},
			timeout: 30 * time.Millisecond,
			want:    KindUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newOpenAITestService(t, tt.handler, func(c *Config) { c.Timeout = tt.timeout })

			_, _, err := svc.Chat(context.Background(), []Message{UserMessage("hi")})
			require.Error(t, err)

			var llmErr *Error
			require.True(t, errors.As(err, &llmErr))
			assert.Equal(t, tt.want, llmErr.Kind, llmErr.Error())
			if tt.status > 0 {
				assert.Equal(t, tt.status, llmErr.Status)
			}
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestAnthropicService_Chat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "bonjour"}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 4, "output_tokens": 2}
		}`)
	}))
	defer srv.Close()

	svc, err := NewService(&Config{Provider: "anthropic", Model: "claude-test", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	content, stats, err := svc.Chat(context.Background(), []Message{SystemPrompt("be brief"), UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", content)
	assert.Equal(t, 6, stats.TotalTokens)
	assert.Equal(t, "anthropic", svc.Provider())

	require.NotNil(t, gotBody)
	assert.Equal(t, "claude-test", gotBody["model"])
	assert.NotNil(t, gotBody["system"], "system prompt is sent out of band")
}

func TestAnthropicService_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`)
	}))
	defer srv.Close()

	svc, err := NewService(&Config{Provider: "anthropic", Model: "claude-test", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, _, err = svc.Chat(context.Background(), []Message{UserMessage("hi")})
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewService_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing model", Config{Provider: "openai", APIKey: "k"}, true},
		{"anthropic without key", Config{Provider: "anthropic", Model: "m"}, true},
		{"gemini without key", Config{Provider: "gemini", Model: "m"}, true},
		{"deepseek defaults", Config{Provider: "deepseek", Model: "deepseek-chat", APIKey: "k"}, false},
		{"generic compatible provider", Config{Provider: "local-llm", Model: "m", BaseURL: "http://localhost:1234/v1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", context.DeadlineExceeded, KindUnavailable},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindUnavailable},
		{"unauthorized message", errors.New("401 Unauthorized"), KindRejected},
		{"json syntax", &json.SyntaxError{Offset: 1}, KindMalformed},
		{"unknown defaults to unavailable", errors.New("connection reset by peer"), KindUnavailable},
		{"already classified", &Error{Kind: KindRejected, Err: errors.New("x")}, KindRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError("test", tt.err).Kind)
		})
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{SystemPrompt("a"), UserMessage("q"), SystemPrompt("b"), AssistantMessage("r")})
	assert.Equal(t, "a\n\nb", system)
	require.Len(t, rest, 2)
	assert.Equal(t, RoleUser, rest[0].Role)
	assert.Equal(t, RoleAssistant, rest[1].Role)
}
