package strutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"punctuation splits", "What's the ROI on 15%... Café?", []string{"what", "s", "the", "roi", "on", "15", "café"}},
		{"hyphenated", "Machine-Learning", []string{"machine", "learning"}},
		{"punctuation only", " -- !! ", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cash flow", Normalize("  Cash-Flow "))
	assert.Equal(t, "machine learning", Normalize("Machine   Learning"))
	assert.Empty(t, Normalize("!!!"))
}
