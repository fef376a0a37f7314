// Package swapdir publishes directory trees atomically.
//
// A swapped directory is a symbolic link (e.g. "rpms") pointing at one of two
// generation slots ("rpms.0" and "rpms.1"). New content is written into the
// inactive slot and published by renaming a fresh link over the visible one,
// so readers resolve either the previous generation or the new one. A
// process killed before Commit leaves the visible link untouched.
package swapdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/atomicfile"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/linktree"
)

var slotSuffixes = [2]string{".0", ".1"}

// Generations is the atomic publish contract used by the build orchestrator
type Generations interface {
	// Path returns the visible path of the current generation
	Path() string
	// Prepare returns an empty staging directory for the next generation
	Prepare() (string, error)
	// Reuse duplicates rel from the current generation into staging
	Reuse(rel string) error
	// Commit publishes the staging directory as the current generation
	Commit() error
}

// Dir manages a current/staging directory pair
type Dir struct {
	path    string
	dup     linktree.Duplicator
	staging string
}

// New creates a swapped directory at path. A nil duplicator defaults to hard links.
func New(path string, dup linktree.Duplicator) *Dir {
	if dup == nil {
		dup = linktree.HardLinker{FallbackCopy: true}
	}

	return &Dir{path: filepath.Clean(path), dup: dup}
}

// Path returns the visible path
func (d *Dir) Path() string {
	return d.path
}

// Current returns the slot directory the visible path resolves to, or an
// empty string if nothing was ever committed.
func (d *Dir) Current() (string, error) {
	info, err := os.Lstat(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}

		return "", err
	}

	if info.Mode()&os.ModeSymlink == 0 {
		return "", fmt.Errorf("%s is not a swapped directory (expected a symbolic link)", d.path)
	}

	target, err := os.Readlink(d.path)
	if err != nil {
		return "", err
	}

	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(d.path), target)
	}

	return filepath.Clean(target), nil
}

// Prepare cleans the inactive slot and returns it. Content left there by an
// interrupted run is discarded.
func (d *Dir) Prepare() (string, error) {
	current, err := d.Current()
	if err != nil {
		return "", err
	}

	staging := d.path + slotSuffixes[0]
	if current == staging {
		staging = d.path + slotSuffixes[1]
	}

	if err := os.RemoveAll(staging); err != nil {
		return "", fmt.Errorf("failed to clean staging directory: %w", err)
	}

	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	d.staging = staging

	return staging, nil
}

// Reuse duplicates rel from the current generation into the staging directory
func (d *Dir) Reuse(rel string) error {
	if d.staging == "" {
		return errors.New("staging directory not prepared")
	}

	current, err := d.Current()
	if err != nil {
		return err
	}

	if current == "" {
		return fmt.Errorf("no current generation to reuse %s from", rel)
	}

	return d.dup.Duplicate(filepath.Join(current, rel), filepath.Join(d.staging, rel))
}

// Commit atomically points the visible path at the staging directory
func (d *Dir) Commit() error {
	if d.staging == "" {
		return errors.New("staging directory not prepared")
	}

	parent := filepath.Dir(d.path)
	if err := atomicfile.SyncDir(d.staging); err != nil {
		return fmt.Errorf("failed to sync staging directory: %w", err)
	}

	tmpLink := d.path + ".tmp-link"
	if err := os.Remove(tmpLink); err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := os.Symlink(filepath.Base(d.staging), tmpLink); err != nil {
		return fmt.Errorf("failed to create generation link: %w", err)
	}

	if err := os.Rename(tmpLink, d.path); err != nil {
		_ = os.Remove(tmpLink)
		return fmt.Errorf("failed to publish generation: %w", err)
	}

	d.staging = ""

	return atomicfile.SyncDir(parent)
}
