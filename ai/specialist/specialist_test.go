package specialist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec(id ID) Specialist {
	return Specialist{
		ID:             id,
		Keywords:       []string{"alpha"},
		Threshold:      0.5,
		PromptTemplate: "{{query}}",
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		specs   []Specialist
		problem string
	}{
		{
			name:    "duplicate id",
			specs:   []Specialist{validSpec("a"), validSpec("a")},
			problem: "a: duplicate id",
		},
		{
			name: "threshold above one",
			specs: []Specialist{func() Specialist {
				s := validSpec("a")
				s.Threshold = 1.2
				return s
			}()},
			problem: "outside [0,1]",
		},
		{
			name: "negative threshold",
			specs: []Specialist{func() Specialist {
				s := validSpec("a")
				s.Threshold = -0.1
				return s
			}()},
			problem: "outside [0,1]",
		},
		{
			name: "empty keywords on routable specialist",
			specs: []Specialist{func() Specialist {
				s := validSpec("a")
				s.Keywords = nil
				return s
			}()},
			problem: "a: empty keyword set",
		},
		{
			name: "punctuation-only keywords on routable specialist",
			specs: []Specialist{func() Specialist {
				s := validSpec("a")
				s.Keywords = []string{"!!!", " -- ", "?"}
				return s
			}()},
			problem: "a: empty keyword set",
		},
		{
			name:    "empty id",
			specs:   []Specialist{validSpec("")},
			problem: "empty id",
		},
		{
			name: "empty template",
			specs: []Specialist{func() Specialist {
				s := validSpec("a")
				s.PromptTemplate = "  "
				return s
			}()},
			problem: "empty prompt template",
		},
		{
			name: "two generic roles",
			specs: []Specialist{
				validSpec("a"),
				{ID: "g1", Generic: true, PromptTemplate: "x"},
				{ID: "g2", Generic: true, PromptTemplate: "x"},
			},
			problem: "at most one allowed",
		},
		{
			name:    "reserved id not generic",
			specs:   []Specialist{validSpec("a"), validSpec(General)},
			problem: "reserved id",
		},
		{
			name:    "only generic",
			specs:   []Specialist{{ID: General, Generic: true, PromptTemplate: "x"}},
			problem: "no routable specialists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.specs)
			require.Error(t, err)
			assert.Nil(t, r)
			assert.True(t, errors.Is(err, ErrConfigInvalid))

			var cfgErr *ConfigInvalidError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, cfgErr.Error(), tt.problem)
		})
	}
}

func TestNew_GenericWithoutKeywordsIsValid(t *testing.T) {
	r, err := New([]Specialist{
		validSpec("a"),
		{ID: General, Generic: true, PromptTemplate: "hello {{query}}"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Len(t, r.Routable(), 1)
	assert.Equal(t, "hello {{query}}", r.General().PromptTemplate)
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	r, err := New(Defaults())
	require.NoError(t, err)

	list := r.List()
	require.NotEmpty(t, list)
	assert.Equal(t, ID("technical"), list[0].ID)
	assert.Equal(t, General, list[len(list)-1].ID)

	s, err := r.Get("financial")
	require.NoError(t, err)
	assert.Equal(t, "Financial Advisor", s.Label)
	assert.Contains(t, s.Keywords, "roi")

	_, err = r.Get("astrologer")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, r.Has("astrologer"))

	g, err := r.Get(General)
	require.NoError(t, err)
	assert.True(t, g.Generic)

	// Mutating a returned slice must not leak into the registry.
	list[0].ID = "changed"
	assert.Equal(t, ID("technical"), r.List()[0].ID)
}

func TestRegistry_BuiltinGeneralWhenUndeclared(t *testing.T) {
	r, err := New([]Specialist{validSpec("a")})
	require.NoError(t, err)

	g, err := r.Get(General)
	require.NoError(t, err)
	assert.Equal(t, General, g.ID)
	assert.NotEmpty(t, g.PromptTemplate)
}

func TestNew_NormalizesKeywords(t *testing.T) {
	s := validSpec("a")
	s.Keywords = []string{" SQL ", "sql", "Machine   Learning", "machine-learning", "", "!!!"}
	r, err := New([]Specialist{s})
	require.NoError(t, err)

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"sql", "machine learning"}, got.Keywords)
	assert.Equal(t, "a", got.Label)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "specialists.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`specialists:
  - id: legal
    label: Legal Counsel
    keywords: [contract, clause, liability]
    intent_keywords: [review]
    threshold: 0.2
    prompt_template: "You are {{specialist}}. {{query}}"
  - id: general
    generic: true
    prompt_template: "{{query}}"
`), 0o600))

	tomlPath := filepath.Join(dir, "specialists.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`[[specialists]]
id = "legal"
keywords = ["contract"]
threshold = 0.3
prompt_template = "{{query}}"
`), 0o600))

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte(`specialists:
  - id: legal
    keywords: [contract]
    threshold: 3
    prompt_template: "{{query}}"
`), 0o600))

	t.Run("yaml", func(t *testing.T) {
		r, err := Load(yamlPath)
		require.NoError(t, err)
		s, err := r.Get("legal")
		require.NoError(t, err)
		assert.Equal(t, 0.2, s.Threshold)
		assert.Equal(t, []string{"review"}, s.IntentKeywords)
		assert.True(t, r.General().Generic)
	})

	t.Run("toml", func(t *testing.T) {
		r, err := Load(tomlPath)
		require.NoError(t, err)
		s, err := r.Get("legal")
		require.NoError(t, err)
		assert.Equal(t, 0.3, s.Threshold)
	})

	t.Run("defaults for empty path", func(t *testing.T) {
		r, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, len(Defaults()), r.Len())
	})

	t.Run("invalid threshold is config invalid", func(t *testing.T) {
		_, err := Load(badPath)
		assert.ErrorIs(t, err, ErrConfigInvalid)
	})

	t.Run("missing file is config invalid", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.yaml"))
		assert.ErrorIs(t, err, ErrConfigInvalid)
	})
}

func TestCheckMinVersion(t *testing.T) {
	tests := []struct {
		name    string
		min     string
		running string
		wantErr bool
	}{
		{"unset", "", "0.1.0", false},
		{"satisfied", "0.2.0", "0.3.1", false},
		{"equal", "0.3.0", "0.3.0", false},
		{"too old", "0.4.0", "0.3.1", true},
		{"dev build skips", "9.0.0", "0.0.0-dev", false},
		{"invalid min", "latest", "0.3.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkMinVersion(tt.min, tt.running)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
