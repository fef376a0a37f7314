package utils

import (
	"path"
	"strings"
)

// StripPrefixes removes each prefix from s at most once, in the given order
func StripPrefixes(s string, prefixes ...string) string {
	for _, prefix := range prefixes {
		s = strings.TrimPrefix(s, prefix)
	}

	return s
}

// RepoBasename returns the last path element of a git URL without ".git"
func RepoBasename(url string) string {
	url = strings.TrimRight(url, "/")

	// scp-like syntax (host:path) has no slash before the path
	if i := strings.LastIndexAny(url, "/:"); i >= 0 {
		url = url[i+1:]
	}

	return strings.TrimSuffix(path.Base(url), ".git")
}
