// Package mirror keeps local bare mirrors of the git repositories an overlay
// uses and checks revisions out of them.
package mirror

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Mirror is the source mirror contract used by the resolver and the
// snapshot generator.
type Mirror interface {
	// Ensure creates the mirror of src if needed, fetching when asked
	Ensure(ctx context.Context, src string, fetch bool) error
	// FetchFrom pulls the HEAD of a local repository into the mirror of src
	// and returns its revision
	FetchFrom(ctx context.Context, src, localRepo string) (string, error)
	// ResolveRef returns the commit a branch, tag or revision points to
	ResolveRef(ctx context.Context, src, ref string) (string, error)
	// Describe computes a human readable descriptor for rev
	Describe(ctx context.Context, src, rev string) (Description, error)
	// Checkout writes a working tree of rev to dest
	Checkout(ctx context.Context, src, rev, dest string) error
}

// Description is the result of describing a revision
type Description struct {
	// Tag is the nearest tag, empty when the history has none
	Tag string
	// Revision identifies the commit relative to Tag ("<count>.g<abbrev>"),
	// or is the abbreviated commit when there is no tag
	Revision string
	// Commit is the full commit id
	Commit string
}

// Descriptor returns "tag-revision", or the bare revision without a tag
func (d Description) Descriptor() string {
	if d.Tag == "" {
		return d.Revision
	}

	return d.Tag + "-" + d.Revision
}

// RelativePath maps a source URL to its mirror location below the mirror
// root, e.g. https://github.com/ostreedev/ostree.git -> github.com/ostreedev/ostree
func RelativePath(src string) (string, error) {
	if src == "" {
		return "", fmt.Errorf("empty source URL")
	}

	var host, path string

	switch {
	case strings.Contains(src, "://"):
		u, err := url.Parse(src)
		if err != nil {
			return "", fmt.Errorf("invalid source URL %q: %w", src, err)
		}

		host, path = u.Host, u.Path
		if u.Scheme == "file" {
			host = "local"
		}
	case filepath.IsAbs(src):
		host, path = "local", src
	case strings.Contains(src, ":"):
		// scp-like syntax, e.g. git@github.com:ostreedev/ostree.git
		i := strings.Index(src, ":")
		host, path = src[:i], src[i+1:]
		if at := strings.LastIndex(host, "@"); at >= 0 {
			host = host[at+1:]
		}
	default:
		return "", fmt.Errorf("unsupported source URL %q", src)
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	rel := filepath.Clean(filepath.Join(host, filepath.FromSlash(path)))

	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("unsupported source URL %q", src)
	}

	return rel, nil
}
