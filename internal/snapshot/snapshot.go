// Package snapshot stages and promotes the resolved overlay. A snapshot is a
// directory holding snapshot.json and one source snapshot per component.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/atomicfile"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/fingerprint"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/overlay"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/workspace"
)

// FileName is the expanded overlay inside a snapshot directory
const FileName = "snapshot.json"

// Publisher manages snapshot.tmp/, snapshot/ and old-snapshot/
type Publisher struct {
	layout workspace.Layout
	log    logrus.FieldLogger
}

// NewPublisher creates a publisher for a working root
func NewPublisher(layout workspace.Layout, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Publisher{layout: layout, log: log}
}

// Prepare returns an empty staging directory, discarding leftovers of an
// interrupted run
func (p *Publisher) Prepare() (string, error) {
	tmp := p.layout.SnapshotTmp()
	if err := os.RemoveAll(tmp); err != nil {
		return "", fmt.Errorf("failed to clear %s: %w", tmp, err)
	}

	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	return tmp, nil
}

// Discard removes the staging directory
func (p *Publisher) Discard() error {
	return os.RemoveAll(p.layout.SnapshotTmp())
}

// Marshal serializes an expanded overlay with sorted keys, 4-space
// indentation and a trailing newline
func Marshal(expanded *overlay.Expanded) ([]byte, error) {
	normalized, err := fingerprint.Normalize(expanded)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Stage writes snapshot.json into the staging directory
func (p *Publisher) Stage(expanded *overlay.Expanded) error {
	data, err := Marshal(expanded)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	return atomicfile.WriteFile(filepath.Join(p.layout.SnapshotTmp(), FileName), data, 0o644)
}

// Promote publishes the staged snapshot if it differs from the current one
// and reports whether it did. touchPath, when set, is touched on change.
func (p *Publisher) Promote(touchPath string) (bool, error) {
	tmp := p.layout.SnapshotTmp()
	current := p.layout.Snapshot()
	old := p.layout.OldSnapshot()

	staged, err := os.ReadFile(filepath.Join(tmp, FileName))
	if err != nil {
		return false, fmt.Errorf("failed to read staged snapshot: %w", err)
	}

	published, err := os.ReadFile(filepath.Join(current, FileName))
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read current snapshot: %w", err)
	}

	if err == nil && bytes.Equal(staged, published) {
		p.log.Info("No changes")

		return false, p.Discard()
	}

	if err := p.rotate(current, old); err != nil {
		return false, err
	}

	if err := os.Rename(tmp, current); err != nil {
		return false, fmt.Errorf("failed to promote snapshot: %w", err)
	}

	if err := atomicfile.SyncDir(p.layout.Root); err != nil {
		return false, err
	}

	p.log.WithField("path", current).Info("New snapshot")

	if touchPath != "" {
		if err := touch(touchPath); err != nil {
			return true, fmt.Errorf("failed to touch %s: %w", touchPath, err)
		}
	}

	return true, nil
}

// rotate moves the published snapshot to old. Without a published snapshot
// an existing old is the last surviving generation, left there by an
// interrupted promotion, and is kept.
func (p *Publisher) rotate(current, old string) error {
	if _, err := os.Lstat(current); err != nil {
		if !os.IsNotExist(err) {
			return err
		}

		if _, err := os.Lstat(old); err == nil {
			p.log.WithField("path", old).Warn("No published snapshot, keeping the previous one")
		}

		return nil
	}

	if err := os.RemoveAll(old); err != nil {
		return err
	}

	if err := os.Rename(current, old); err != nil {
		return fmt.Errorf("failed to rotate snapshot: %w", err)
	}

	return nil
}

// Load reads the snapshot promoted into dir
func Load(dir string) (*overlay.Expanded, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, codes.ConfigErrorf("no snapshot in %s; run 'rpmdistro-gitoverlay resolve' first", dir)
		}

		return nil, err
	}

	var expanded overlay.Expanded

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&expanded); err != nil {
		return nil, codes.ConfigErrorf("%s: %v", FileName, err)
	}

	return &expanded, nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	now := time.Now()

	return os.Chtimes(path, now, now)
}
