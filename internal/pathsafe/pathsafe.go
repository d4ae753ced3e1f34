package pathsafe

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrTraversal is returned when a relative name would resolve to a path
// outside the storage root.
var ErrTraversal = errors.New("path escapes storage root")

// illegal characters for file names on common filesystems. Separators are
// listed here too so a sanitized segment can never re-introduce one.
const illegalChars = "/\\<>:\"|?*"

// SanitizeFilename cleans a single path segment: spaces become underscores,
// control characters and characters illegal on common filesystems are
// dropped, and leading/trailing dots and underscores are trimmed. The result
// may be empty if nothing usable remains.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			// control characters
		case strings.ContainsRune(illegalChars, r):
		case r == ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// Resolve joins a caller-supplied relative name under root and guarantees
// the result stays inside root. The final path segment is sanitized with
// SanitizeFilename; intermediate segments are kept as-is but validated.
// Absolute names, ".." segments and names that sanitize down to nothing all
// fail with ErrTraversal before any filesystem access.
func Resolve(root, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("resolve %q: %w", name, ErrTraversal)
	}
	// Treat backslashes as separators so a crafted Windows-style name
	// cannot smuggle segments past the checks below.
	slashed := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("resolve %q: %w", name, ErrTraversal)
	}

	var segs []string
	for _, seg := range strings.Split(slashed, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("resolve %q: %w", name, ErrTraversal)
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return "", fmt.Errorf("resolve %q: %w", name, ErrTraversal)
	}
	last := SanitizeFilename(segs[len(segs)-1])
	if last == "" {
		return "", fmt.Errorf("resolve %q: %w", name, ErrTraversal)
	}
	segs[len(segs)-1] = last

	joined := filepath.Join(append([]string{root}, segs...)...)

	// Belt and suspenders: the segment checks above should make an escape
	// impossible, but verify the cleaned result anyway.
	rel, err := filepath.Rel(root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("resolve %q: %w", name, ErrTraversal)
	}
	return joined, nil
}
