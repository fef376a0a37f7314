// Package workspace describes the working directory of an overlay and the
// per-invocation run context handed to every stage.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// OverlayFiles are the accepted overlay file names, in lookup order
var OverlayFiles = []string{"overlay.yml", "overlay.yaml", "overlay.json", "overlay.jsonc"}

// Layout resolves the well-known paths below a working root
type Layout struct {
	Root string
}

// NewLayout returns the layout for an absolute working root
func NewLayout(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	return Layout{Root: abs}, nil
}

// Overlay returns the path of the overlay file, falling back to overlay.yml
// when none exists.
func (l Layout) Overlay() string {
	for _, name := range OverlayFiles {
		path := filepath.Join(l.Root, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return filepath.Join(l.Root, OverlayFiles[0])
}

func (l Layout) Src() string         { return filepath.Join(l.Root, "src") }
func (l Layout) Rpms() string        { return filepath.Join(l.Root, "rpms") }
func (l Layout) Snapshot() string    { return filepath.Join(l.Root, "snapshot") }
func (l Layout) SnapshotTmp() string { return filepath.Join(l.Root, "snapshot.tmp") }
func (l Layout) OldSnapshot() string { return filepath.Join(l.Root, "old-snapshot") }
func (l Layout) History() string     { return filepath.Join(l.Root, "history.db") }

// Run is the context of one invocation. It is built once by the command
// layer and passed to each stage explicitly.
type Run struct {
	Layout Layout
	Temp   TempDirs
	Log    logrus.FieldLogger
}

// Logger returns the run logger, or a discarding one
func (r Run) Logger() logrus.FieldLogger {
	if r.Log != nil {
		return r.Log
	}

	l := logrus.New()
	l.SetOutput(io.Discard)

	return l
}
