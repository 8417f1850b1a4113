package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeArgPassesNonPaths(t *testing.T) {
	got, err := SanitizeArg("", "plainvalue")
	require.NoError(t, err)
	assert.Equal(t, "plainvalue", got)
}

func TestSanitizeArgRejectsAbsolute(t *testing.T) {
	_, err := SanitizeArg(t.TempDir(), "/etc/passwd")
	assert.Error(t, err)
}

func TestSanitizeArgRejectsTraversal(t *testing.T) {
	for _, arg := range []string{"../secret.txt", "uploads/../../secret.txt", ".."} {
		_, err := SanitizeArg(t.TempDir(), arg)
		assert.Error(t, err, arg)
	}
}

func TestSanitizeArgAcceptsRelativeInsideBase(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "uploads", "a.txt"), []byte("x"), 0o644))

	got, err := SanitizeArg(base, "uploads/a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("uploads/a.txt"), got)
}

func TestSanitizeArgAcceptsNotYetExistingPath(t *testing.T) {
	got, err := SanitizeArg(t.TempDir(), "./downloads/new.bin")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("downloads/new.bin"), got)
}
