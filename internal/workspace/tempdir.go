package workspace

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// LegacyPreserveEnv keeps temporary directories when set to any value
const LegacyPreserveEnv = "PRESERVE_TEMP"

// TempDirs creates scoped temporary directories
type TempDirs struct {
	// Root is the parent for new directories; empty means os.TempDir()
	Root string
	// Preserve skips cleanup for post-mortem debugging
	Preserve bool
	Log      logrus.FieldLogger
}

// LegacyPreserve reports whether PRESERVE_TEMP is present in the environment
func LegacyPreserve() bool {
	_, ok := os.LookupEnv(LegacyPreserveEnv)

	return ok
}

// Make creates a directory and returns it with its cleanup function. The
// cleanup is safe to call on every path, including after errors.
func (t TempDirs) Make(prefix string) (string, func(), error) {
	if t.Root != "" {
		if err := os.MkdirAll(t.Root, 0o755); err != nil {
			return "", func() {}, fmt.Errorf("failed to create temp root: %w", err)
		}
	}

	dir, err := os.MkdirTemp(t.Root, prefix)
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cleanup := func() {
		if t.Preserve {
			if t.Log != nil {
				t.Log.WithField("path", dir).Info("Preserving temporary directory")
			}

			return
		}

		if err := os.RemoveAll(dir); err != nil && t.Log != nil {
			t.Log.WithError(err).WithField("path", dir).Warn("Failed to remove temporary directory")
		}
	}

	return dir, cleanup, nil
}
