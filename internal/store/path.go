package store

import "strings"

// normalizePath collapses a path to the canonical "a/b/c" form: no leading
// or trailing slashes, no empty segments. The root is the empty string.
func normalizePath(path string) string {
	parts := splitPath(path)
	return strings.Join(parts, "/")
}

// splitPath splits a path into its non-empty segments.
func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	parts := raw[:0]
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// parentKey splits a normalized path into its parent path and final key.
// The parent of a top-level key is the root (empty string).
func parentKey(path string) (parent, key string) {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}
