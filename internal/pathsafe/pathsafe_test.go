package pathsafe

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRejectsTraversal(t *testing.T) {
	root := t.TempDir()

	names := []string{
		"",
		"..",
		"../etc/passwd",
		"a/../../b",
		"uploads/../../secret.txt",
		"/etc/passwd",
		"\\etc\\passwd",
		"..\\..\\windows\\system32",
		".",
		"./",
		"???", // sanitizes down to nothing
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(root, name)
			require.ErrorIs(t, err, ErrTraversal)
		})
	}
}

func TestResolveStaysUnderRoot(t *testing.T) {
	root := t.TempDir()

	names := []string{
		"photo.jpg",
		"uploads/photo.jpg",
		"a/b/c/d.bin",
		"a/./b.txt",
		"weird name.txt",
	}
	for _, name := range names {
		p, err := Resolve(root, name)
		require.NoError(t, err, name)
		assert.True(t, strings.HasPrefix(p, root+string(filepath.Separator)), "%q resolved to %q", name, p)
	}
}

func TestResolveSanitizesFinalSegment(t *testing.T) {
	root := t.TempDir()

	p, err := Resolve(root, "uploads/my photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "uploads", "my_photo.jpg"), p)

	// Intermediate segments pass through untouched.
	p, err = Resolve(root, "my dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "my dir", "file.txt"), p)
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":       "photo.jpg",
		"my file.txt":     "my_file.txt",
		"a<b>c:d.txt":     "abcd.txt",
		"..hidden":        "hidden",
		"trailing._":      "trailing",
		"  padded.txt  ":  "padded.txt",
		"ctrl\x00\x1f.go": "ctrl.go",
		"sla/sh.txt":      "slash.txt",
		"???":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}
