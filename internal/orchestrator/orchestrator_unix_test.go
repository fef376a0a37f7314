//go:build unix

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_UnhashableOutputNotPublished(t *testing.T) {
	f := newFixture(t)
	f.promote(t, "fedora-23-x86_64", foo)
	ctx := context.Background()

	first, err := f.orch.Build(ctx)
	require.NoError(t, err)

	current, err := os.Readlink(f.layout.Rpms())
	require.NoError(t, err)

	// The batch build leaves a socket-like FIFO behind
	f.builder.After = func(repo string) error {
		return syscall.Mkfifo(filepath.Join(repo, "mock.sock"), 0o600)
	}
	f.promote(t, "fedora-23-x86_64", pkg{name: "foo", version: "1.0", release: "2.g2"})

	_, err = f.orch.Build(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock.sock")

	// The failure happened before commit
	link, err := os.Readlink(f.layout.Rpms())
	require.NoError(t, err)
	assert.Equal(t, current, link)
	assert.Equal(t, first.TreeDigest, f.digest(t))
}
