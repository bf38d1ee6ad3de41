package pathutil

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ResolveSafePath validates and resolves a relative path within baseDir.
// It rejects any path that would escape baseDir (path traversal).
func ResolveSafePath(baseDir, relPath string) (string, error) {
	cleanBase := filepath.Clean(baseDir)
	full := filepath.Join(cleanBase, filepath.FromSlash(relPath))
	full = filepath.Clean(full)
	if full != cleanBase && !strings.HasPrefix(full, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal denied: %s", relPath)
	}
	return full, nil
}

// Relative resolves a reference found inside owner against the owner's
// directory. References already anchored at the root keep their path, with
// the leading slash dropped so names stay slash-relative.
func Relative(owner, ref string) string {
	if strings.HasPrefix(ref, "/") {
		return path.Clean(strings.TrimPrefix(ref, "/"))
	}
	return path.Clean(path.Join(path.Dir(owner), ref))
}

// Merge joins URL segments with single slashes, trimming redundant ones.
func Merge(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return "/" + strings.Join(parts, "/")
}
