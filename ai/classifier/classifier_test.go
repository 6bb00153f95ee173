package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yosefsha/myassistant/ai/core/llm"
	"github.com/yosefsha/myassistant/ai/session"
	"github.com/yosefsha/myassistant/ai/specialist"
)

// fakeLLM answers every Chat with a fixed reply or error and records the
// messages it saw.
type fakeLLM struct {
	reply    string
	err      error
	delay    time.Duration
	messages []llm.Message
	calls    int
}

func (f *fakeLLM) Provider() string { return "fake" }

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message) (string, *llm.CallStats, error) {
	f.calls++
	f.messages = messages
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", nil, llm.ClassifyError("fake", ctx.Err())
		}
	}
	if f.err != nil {
		return "", nil, f.err
	}
	return f.reply, &llm.CallStats{}, nil
}

func newTestClient(t *testing.T, svc llm.Service) *Client {
	t.Helper()
	registry, err := specialist.New(specialist.Defaults())
	require.NoError(t, err)
	return NewClient(svc, registry, Config{Timeout: 100 * time.Millisecond})
}

func TestClassify_ParsesResult(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Result
	}{
		{
			name:  "plain json",
			reply: `{"specialist":"technical","confidence":0.95,"rationale":"sql tuning","needs_clarification":false}`,
			want:  Result{Specialist: "technical", Confidence: 0.95, Rationale: "sql tuning", Known: true},
		},
		{
			name:  "fenced json with extra fields",
			reply: "```json\n{\"specialist\":\"Financial\",\"confidence\":0.7,\"rationale\":\"roi\",\"extra\":[1,2]}\n```",
			want:  Result{Specialist: "financial", Confidence: 0.7, Rationale: "roi", Known: true},
		},
		{
			name:  "clarification",
			reply: `{"specialist":"business-analyst","confidence":0.4,"rationale":"ambiguous","needs_clarification":true}`,
			want:  Result{Specialist: "business-analyst", Confidence: 0.4, Rationale: "ambiguous", NeedsClarification: true, Known: true},
		},
		{
			name:  "general is known",
			reply: `{"specialist":"general","confidence":0.8}`,
			want:  Result{Specialist: specialist.General, Confidence: 0.8, Known: true},
		},
		{
			name:  "unknown specialist is not an error",
			reply: `{"specialist":"astrologer","confidence":0.9,"rationale":"stars"}`,
			want:  Result{Specialist: "astrologer", Confidence: 0.9, Rationale: "stars", Known: false},
		},
		{
			name:  "boundary confidence",
			reply: `{"specialist":"creative","confidence":1}`,
			want:  Result{Specialist: "creative", Confidence: 1, Known: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &fakeLLM{reply: tt.reply})
			got, err := client.Classify(context.Background(), "query", nil, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestClassify_Malformed(t *testing.T) {
	replies := map[string]string{
		"not json":            "I think technical",
		"missing confidence":  `{"specialist":"technical"}`,
		"string confidence":   `{"specialist":"technical","confidence":"high"}`,
		"confidence above 1":  `{"specialist":"technical","confidence":1.5}`,
		"negative confidence": `{"specialist":"technical","confidence":-0.1}`,
		"empty specialist":    `{"specialist":"  ","confidence":0.5}`,
		"wrong shape":         `["technical", 0.9]`,
	}

	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, &fakeLLM{reply: reply})
			got, err := client.Classify(context.Background(), "query", nil, 5)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.NotErrorIs(t, err, ErrUnavailable)

			var cerr *ClassificationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, llm.KindMalformed, cerr.Kind)
		})
	}
}

func TestClassify_ServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
		want error
	}{
		{
			name: "unavailable",
			llm:  &fakeLLM{err: &llm.Error{Provider: "fake", Kind: llm.KindUnavailable, Status: 503, Err: errors.New("down")}},
			want: ErrUnavailable,
		},
		{
			name: "rejected",
			llm:  &fakeLLM{err: &llm.Error{Provider: "fake", Kind: llm.KindRejected, Status: 401, Err: errors.New("bad key")}},
			want: ErrRejected,
		},
		{
			name: "malformed",
			llm:  &fakeLLM{err: &llm.Error{Provider: "fake", Kind: llm.KindMalformed, Err: errors.New("empty")}},
			want: ErrMalformed,
		},
		{
			name: "timeout",
			llm:  &fakeLLM{delay: time.Second, reply: `{"specialist":"technical","confidence":0.9}`},
			want: ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.llm)
			start := time.Now()
			_, err := client.Classify(context.Background(), "query", nil, 5)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Less(t, time.Since(start), 900*time.Millisecond)
			assert.Equal(t, 1, tt.llm.calls, "a single attempt per call")
		})
	}
}

func TestClassify_PromptCarriesCompactContext(t *testing.T) {
	fake := &fakeLLM{reply: `{"specialist":"technical","confidence":0.9}`}
	client := newTestClient(t, fake)

	recent := []session.Turn{
		{Index: 1, Query: "oldest turn that should be dropped", Specialist: "creative"},
		{Index: 2, Query: "Fit a regression on this dataset", Specialist: "data-scientist"},
		{Index: 3, Query: strings.Repeat("word ", 60), Specialist: "technical"},
	}

	_, err := client.Classify(context.Background(), "Why is the server slow?", recent, 2)
	require.NoError(t, err)
	require.Len(t, fake.messages, 2)

	system := fake.messages[0].Content
	assert.Contains(t, system, "- technical (")
	assert.Contains(t, system, "- general (")
	assert.Contains(t, system, `"needs_clarification"`)

	user := fake.messages[1].Content
	assert.NotContains(t, user, "oldest turn")
	assert.Contains(t, user, "- data-scientist: Fit a regression on this dataset")
	assert.Contains(t, user, "- technical: word word")
	assert.True(t, strings.HasSuffix(user, "Query: Why is the server slow?"))
}

func TestCompactContext(t *testing.T) {
	turns := []session.Turn{
		{Query: "a", Specialist: "technical"},
		{Query: "b\n\n  c", Specialist: specialist.General},
	}

	assert.Nil(t, CompactContext(turns, 0))
	assert.Nil(t, CompactContext(nil, 3))
	assert.Equal(t, []string{"general: b c"}, CompactContext(turns, 1))
	assert.Equal(t, []string{"technical: a", "general: b c"}, CompactContext(turns, 5))

	long := CompactContext([]session.Turn{{Query: strings.Repeat("x", 200), Specialist: "creative"}}, 1)
	require.Len(t, long, 1)
	assert.LessOrEqual(t, len([]rune(long[0])), len("creative: ")+80+3)
}
