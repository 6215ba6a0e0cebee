package interact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadArtifact(t *testing.T) {
	want := []byte{0x60, 0x80, 0x60, 0x40}

	tests := []struct {
		name    string
		content []byte
	}{
		{"json code", []byte(`{"code": "0x60806040"}`)},
		{"forge bytecode", []byte(`{"abi": [], "bytecode": {"object": "0x60806040"}}`)},
		{"hex text", []byte("0x60806040\n")},
		{"bare hex text", []byte("60806040")},
		{"raw binary", want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "code")
			require.NoError(t, os.WriteFile(path, tt.content, 0o644))

			code, err := LoadArtifact(path)
			require.NoError(t, err)
			assert.Equal(t, want, code)
		})
	}
}

func TestLoadArtifactErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadArtifact(filepath.Join(dir, "absent.json"))
		require.Error(t, err)
	})

	t.Run("empty code", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"code": ""}`), 0o644))

		_, err := LoadArtifact(path)
		require.ErrorIs(t, err, ErrMissingCode)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"code": `), 0o644))

		_, err := LoadArtifact(path)
		require.Error(t, err)
	})
}

func TestLoadArtifacts(t *testing.T) {
	dir := t.TempDir()
	counter := filepath.Join(dir, "counter.json")
	caller := filepath.Join(dir, "caller.json")
	require.NoError(t, os.WriteFile(counter, []byte(`{"code": "0x01"}`), 0o644))

	_, err := LoadArtifacts(counter, caller)
	require.Error(t, err, "both artifacts are required")

	require.NoError(t, os.WriteFile(caller, []byte(`{"code": "0x02"}`), 0o644))
	artifacts, err := LoadArtifacts(counter, caller)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, artifacts.Counter)
	assert.Equal(t, []byte{0x02}, artifacts.Caller)
}
