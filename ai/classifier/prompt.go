package classifier

import (
	"fmt"
	"strings"

	"github.com/yosefsha/myassistant/ai/specialist"
)

const systemPromptHeader = `You route user queries to the specialist best suited to answer them.

Specialists:
`

const systemPromptFooter = `
Reply with a single JSON object and nothing else:
{"specialist": "<id>", "confidence": <number between 0 and 1>, "rationale": "<one sentence>", "needs_clarification": <true|false>}

Use "%s" when no specialist fits. Set needs_clarification to true only when the query is too ambiguous to route.
Recent turns show which specialist handled the conversation so far; prefer continuity only when the topic has not changed.`

func buildSystemPrompt(registry *specialist.Registry) string {
	var sb strings.Builder
	sb.WriteString(systemPromptHeader)
	for _, s := range registry.Routable() {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", s.ID, s.Label, strings.Join(s.Keywords, ", "))
	}
	general := registry.General()
	fmt.Fprintf(&sb, "- %s (%s): anything else\n", general.ID, general.Label)
	fmt.Fprintf(&sb, systemPromptFooter, general.ID)
	return sb.String()
}

func buildUserMessage(query string, contextLines []string) string {
	var sb strings.Builder
	if len(contextLines) > 0 {
		sb.WriteString("Recent turns:\n")
		for _, line := range contextLines {
			sb.WriteString("- ")
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("Query: ")
	sb.WriteString(query)
	return sb.String()
}
