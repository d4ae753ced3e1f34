package naming

import (
	"path"
	"strconv"
	"strings"
)

// Split breaks a slash-separated name into its directory part, stem and
// extension. The extension includes its leading dot; names without one get
// an empty extension.
func Split(name string) (dir, stem, ext string) {
	dir, file := path.Split(name)
	ext = path.Ext(file)
	stem = strings.TrimSuffix(file, ext)
	return dir, stem, ext
}

// Candidate returns the nth alternative for a desired name. n == 0 is the
// name itself; n >= 1 appends an underscore-joined counter to the stem,
// preserving the directory part and the extension.
func Candidate(name string, n int) string {
	if n == 0 {
		return name
	}
	dir, stem, ext := Split(name)
	return dir + stem + "_" + strconv.Itoa(n) + ext
}

// Allocate returns the first candidate for name, starting from the desired
// one, for which exists reports false. This is a probe, not a reservation:
// a concurrent allocator may hand out the same candidate, so callers that
// create files must pair this with exclusive-create and retry on conflict.
func Allocate(name string, exists func(string) bool) string {
	for n := 0; ; n++ {
		if c := Candidate(name, n); !exists(c) {
			return c
		}
	}
}
