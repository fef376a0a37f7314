// Package fake provides in-memory implementations of the external tool
// interfaces for tests.
package fake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/mirror"
)

// Repo is a fake git repository
type Repo struct {
	// Refs maps branch and tag names to commits
	Refs map[string]string
	// Descriptions maps commits to their describe result
	Descriptions map[string]mirror.Description
	// Trees maps commits to file contents by relative path
	Trees map[string]map[string]string
}

// Commit adds a commit with its tree and points ref at it
func (r *Repo) Commit(ref, commit string, desc mirror.Description, tree map[string]string) {
	if ref != "" {
		r.Refs[ref] = commit
	}

	desc.Commit = commit
	r.Descriptions[commit] = desc
	r.Trees[commit] = tree
}

// Mirror is an in-memory mirror.Mirror
type Mirror struct {
	mu    sync.Mutex
	repos map[string]*Repo
	// local maps local repository paths used by FetchFrom to a source and
	// the commit their HEAD points to
	local map[string][2]string

	Ensured   []string
	Fetched   []string
	Checkouts []string

	// FailCheckout makes Checkout of the given source fail
	FailCheckout map[string]error
}

var _ mirror.Mirror = (*Mirror)(nil)

// NewMirror creates an empty fake mirror
func NewMirror() *Mirror {
	return &Mirror{
		repos:        make(map[string]*Repo),
		local:        make(map[string][2]string),
		FailCheckout: make(map[string]error),
	}
}

// Repo returns the repository for src, creating it on first use
func (m *Mirror) Repo(src string) *Repo {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repos[src]
	if !ok {
		r = &Repo{
			Refs:         make(map[string]string),
			Descriptions: make(map[string]mirror.Description),
			Trees:        make(map[string]map[string]string),
		}
		m.repos[src] = r
	}

	return r
}

// AddLocal registers a local repository whose HEAD is commit of src
func (m *Mirror) AddLocal(path, src, commit string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.local[path] = [2]string{src, commit}
}

func (m *Mirror) repo(src string) (*Repo, error) {
	r, ok := m.repos[src]
	if !ok {
		return nil, fmt.Errorf("unknown source %s", src)
	}

	return r, nil
}

// Ensure records the call and fails for unknown sources
func (m *Mirror) Ensure(ctx context.Context, src string, fetch bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.repo(src); err != nil {
		return err
	}

	m.Ensured = append(m.Ensured, src)
	if fetch {
		m.Fetched = append(m.Fetched, src)
	}

	return nil
}

// FetchFrom returns the HEAD registered with AddLocal
func (m *Mirror) FetchFrom(ctx context.Context, src, localRepo string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.local[localRepo]
	if !ok || l[0] != src {
		return "", fmt.Errorf("no local repository %s for %s", localRepo, src)
	}

	return l[1], nil
}

// ResolveRef looks up refs, then known commits
func (m *Mirror) ResolveRef(ctx context.Context, src, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.repo(src)
	if err != nil {
		return "", err
	}

	if commit, ok := r.Refs[ref]; ok {
		return commit, nil
	}

	if _, ok := r.Trees[ref]; ok {
		return ref, nil
	}

	return "", fmt.Errorf("unknown revision %s in %s", ref, src)
}

// Describe returns the description registered with Commit
func (m *Mirror) Describe(ctx context.Context, src, rev string) (mirror.Description, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.repo(src)
	if err != nil {
		return mirror.Description{}, err
	}

	desc, ok := r.Descriptions[rev]
	if !ok {
		return mirror.Description{}, fmt.Errorf("unknown revision %s in %s", rev, src)
	}

	return desc, nil
}

// Checkout writes the tree of rev to dest
func (m *Mirror) Checkout(ctx context.Context, src, rev, dest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Checkouts = append(m.Checkouts, src+"@"+rev)

	if err := m.FailCheckout[src]; err != nil {
		return err
	}

	r, err := m.repo(src)
	if err != nil {
		return err
	}

	tree, ok := r.Trees[rev]
	if !ok {
		return fmt.Errorf("unknown revision %s in %s", rev, src)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	// A real checkout carries VCS metadata
	if err := os.MkdirAll(filepath.Join(dest, ".git"), 0o755); err != nil {
		return err
	}

	for name, content := range tree {
		path := filepath.Join(dest, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}

	return nil
}
