package util

import (
	"errors"
	"path"
	"strings"
)

// CleanObjectKey normalizes a slash-separated storage key and rejects traversal patterns.
func CleanObjectKey(key string) (string, error) {
	s := strings.TrimSpace(key)
	s = strings.ReplaceAll(s, "\\", "/")
	if s == "" || strings.Contains(s, "..") {
		return "", errors.New("invalid storage key")
	}
	s = strings.TrimLeft(path.Clean("/"+s), "/")
	if s == "" {
		return "", errors.New("invalid storage key")
	}
	return s, nil
}

// TruncateRunes caps s at max Unicode code points.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
