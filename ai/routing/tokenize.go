package routing

import (
	"strings"

	"github.com/yosefsha/myassistant/ai/internal/strutil"
)

// keywordSet matches a specialist's keywords against tokenized queries.
type keywordSet struct {
	words   map[string]struct{}
	phrases []string // space-padded normalized multi-word keywords
	size    int
}

func newKeywordSet(keywords []string) keywordSet {
	ks := keywordSet{words: make(map[string]struct{})}
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		norm := strutil.Normalize(kw)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		if strings.Contains(norm, " ") {
			ks.phrases = append(ks.phrases, " "+norm+" ")
		} else {
			ks.words[norm] = struct{}{}
		}
	}
	ks.size = len(seen)
	return ks
}

// query is a tokenized input, computed once per scoring pass.
type query struct {
	tokens map[string]struct{}
	padded string
}

func newQuery(s string) query {
	tokens := strutil.Tokenize(s)
	q := query{
		tokens: make(map[string]struct{}, len(tokens)),
		padded: " " + strings.Join(tokens, " ") + " ",
	}
	for _, t := range tokens {
		q.tokens[t] = struct{}{}
	}
	return q
}

// match returns the fraction of keywords present in q.
func (ks keywordSet) match(q query) float64 {
	if ks.size == 0 {
		return 0
	}
	hits := 0
	for w := range ks.words {
		if _, ok := q.tokens[w]; ok {
			hits++
		}
	}
	for _, p := range ks.phrases {
		if strings.Contains(q.padded, p) {
			hits++
		}
	}
	return float64(hits) / float64(ks.size)
}
