package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func existsIn(taken ...string) func(string) bool {
	set := make(map[string]bool, len(taken))
	for _, n := range taken {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestAllocateFreeNameUnchanged(t *testing.T) {
	got := Allocate("photo.jpg", existsIn())
	assert.Equal(t, "photo.jpg", got)
}

func TestAllocateSkipsTakenSuffixes(t *testing.T) {
	got := Allocate("photo.jpg", existsIn("photo.jpg", "photo_1.jpg"))
	assert.Equal(t, "photo_2.jpg", got)
}

func TestAllocateWithoutExtension(t *testing.T) {
	got := Allocate("readme", existsIn("readme"))
	assert.Equal(t, "readme_1", got)
}

func TestAllocatePreservesDirectory(t *testing.T) {
	got := Allocate("uploads/photo.jpg", existsIn("uploads/photo.jpg"))
	assert.Equal(t, "uploads/photo_1.jpg", got)
}

func TestCandidate(t *testing.T) {
	assert.Equal(t, "a.txt", Candidate("a.txt", 0))
	assert.Equal(t, "a_3.txt", Candidate("a.txt", 3))
	assert.Equal(t, "dir/a.tar_1.gz", Candidate("dir/a.tar.gz", 1))
	assert.Equal(t, "noext_2", Candidate("noext", 2))
}

func TestSplit(t *testing.T) {
	dir, stem, ext := Split("uploads/archive.tar.gz")
	assert.Equal(t, "uploads/", dir)
	assert.Equal(t, "archive.tar", stem)
	assert.Equal(t, ".gz", ext)

	dir, stem, ext = Split("readme")
	assert.Equal(t, "", dir)
	assert.Equal(t, "readme", stem)
	assert.Equal(t, "", ext)
}
