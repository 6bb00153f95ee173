package generator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yosefsha/myassistant/ai/internal/strutil"
	"github.com/yosefsha/myassistant/ai/session"
	"github.com/yosefsha/myassistant/ai/specialist"
)

const maxTopics = 8

// stopwords are dropped from topic hints.
var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "could": {}, "does": {}, "from": {}, "have": {},
	"help": {}, "into": {}, "just": {}, "need": {}, "should": {}, "that": {},
	"their": {}, "there": {}, "these": {}, "this": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "will": {}, "with": {}, "would": {}, "your": {},
}

// RenderPrompt fills the specialist's template. {{context}} receives hints
// derived from recent turns, never their text.
func RenderPrompt(spec specialist.Specialist, query string, recent []session.Turn) string {
	label := spec.Label
	if label == "" {
		label = string(spec.ID)
	}
	r := strings.NewReplacer(
		"{{specialist}}", label,
		"{{context}}", ContextHints(recent),
		"{{query}}", query,
	)
	return strings.TrimSpace(r.Replace(spec.PromptTemplate))
}

// ContextHints summarizes recent turns as the specialists that handled them
// and a handful of topic words.
func ContextHints(recent []session.Turn) string {
	if len(recent) == 0 {
		return "This is the first message of the conversation."
	}

	var trail []string
	for _, t := range recent {
		id := string(t.Specialist)
		if len(trail) == 0 || trail[len(trail)-1] != id {
			trail = append(trail, id)
		}
	}

	var topics []string
	seen := make(map[string]struct{})
	for i := len(recent) - 1; i >= 0 && len(topics) < maxTopics; i-- {
		for _, w := range topicWords(recent[i].Query) {
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			topics = append(topics, w)
			if len(topics) == maxTopics {
				break
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Conversation so far: %d earlier turn(s), handled by %s.", len(recent), strings.Join(trail, " -> "))
	if len(topics) > 0 {
		fmt.Fprintf(&sb, "\nRecent topics: %s.", strings.Join(topics, ", "))
	}
	return sb.String()
}

func topicWords(s string) []string {
	fields := strutil.Tokenize(s)
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 4 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}
