package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `yaml:"name" toml:"name"`
	Items []string `yaml:"items" toml:"items"`
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a.yaml", FormatYAML, false},
		{"a.YML", FormatYAML, false},
		{"dir/a.toml", FormatTOML, false},
		{"a.json", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.yaml"), []byte("name: y\nitems: [a, b]\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.toml"), []byte("name = \"t\"\nitems = [\"c\"]\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: [unclosed\n"), 0o600))

	l := NewLoader(dir)

	t.Run("yaml", func(t *testing.T) {
		var s sample
		require.NoError(t, l.Load("s.yaml", &s))
		assert.Equal(t, sample{Name: "y", Items: []string{"a", "b"}}, s)
	})

	t.Run("toml", func(t *testing.T) {
		var s sample
		require.NoError(t, l.Load("s.toml", &s))
		assert.Equal(t, sample{Name: "t", Items: []string{"c"}}, s)
	})

	t.Run("absolute path ignores base dir", func(t *testing.T) {
		var s sample
		require.NoError(t, NewLoader("/nonexistent").Load(filepath.Join(dir, "s.yaml"), &s))
		assert.Equal(t, "y", s.Name)
	})

	t.Run("missing file", func(t *testing.T) {
		var s sample
		assert.Error(t, l.Load("missing.yaml", &s))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		var s sample
		assert.Error(t, l.Load("bad.yaml", &s))
	})
}
