package mirror

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/toolexec"
)

type mockCommander struct {
	runFunc func() error
}

func (m *mockCommander) Run() error {
	return m.runFunc()
}

// scriptedRunner records invocations and answers from a table keyed by the
// git subcommand
func scriptedRunner(calls *[][]string, outputs map[string]string) *toolexec.Runner {
	return toolexec.NewRunnerWithExec(nil, func(ctx context.Context, inv toolexec.Invocation) toolexec.Commander {
		*calls = append(*calls, append([]string{inv.Name}, inv.Args...))
		return &mockCommander{runFunc: func() error {
			for key, out := range outputs {
				if strings.Contains(strings.Join(inv.Args, " "), key) {
					_, err := io.WriteString(inv.Stdout, out)
					return err
				}
			}
			return nil
		}}
	})
}

func TestRelativePath(t *testing.T) {
	tests := []struct {
		src      string
		expected string
		wantErr  bool
	}{
		{src: "https://github.com/ostreedev/ostree.git", expected: "github.com/ostreedev/ostree"},
		{src: "https://github.com/ostreedev/ostree", expected: "github.com/ostreedev/ostree"},
		{src: "git://pkgs.fedoraproject.org/rpms/glib2", expected: "pkgs.fedoraproject.org/rpms/glib2"},
		{src: "git@github.com:ostreedev/ostree.git", expected: "github.com/ostreedev/ostree"},
		{src: "file:///srv/git/foo.git", expected: "local/srv/git/foo"},
		{src: "/srv/git/foo", expected: "local/srv/git/foo"},
		{src: "", wantErr: true},
		{src: "foo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			rel, err := RelativePath(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.expected), rel)
		})
	}
}

func TestParseDescribe(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		expected Description
	}{
		{
			name:     "tagged",
			out:      "v2016.1-3-gabcdef0123",
			expected: Description{Tag: "v2016.1", Revision: "3.gabcdef0123", Commit: "full"},
		},
		{
			name:     "tag with dashes",
			out:      "glib-2.46.0-0-g0123456789",
			expected: Description{Tag: "glib-2.46.0", Revision: "0.g0123456789", Commit: "full"},
		},
		{
			name:     "untagged",
			out:      "abcdef0123",
			expected: Description{Revision: "abcdef0123", Commit: "full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseDescribe(tt.out, "full"))
		})
	}
}

func TestDescription_Descriptor(t *testing.T) {
	assert.Equal(t, "v1.0-3.gabc", Description{Tag: "v1.0", Revision: "3.gabc"}.Descriptor())
	assert.Equal(t, "abc", Description{Revision: "abc"}.Descriptor())
}

func TestGit_EnsureClonesOnce(t *testing.T) {
	root := t.TempDir()
	var calls [][]string
	g := NewGit(root, "", scriptedRunner(&calls, nil), nil)

	src := "https://github.com/ostreedev/ostree.git"
	dir, err := g.Dir(src)
	require.NoError(t, err)

	// The mocked clone does not create anything, so simulate its result
	require.NoError(t, os.MkdirAll(dir+".tmp", 0o755))

	err = g.Ensure(context.Background(), src, false)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"git", "clone", "-q", "--mirror", src, dir + ".tmp"}, calls[0])
	assert.DirExists(t, dir)

	// Existing mirror, no fetch requested
	err = g.Ensure(context.Background(), src, false)
	require.NoError(t, err)
	assert.Len(t, calls, 1)

	// Existing mirror, fetch requested
	err = g.Ensure(context.Background(), src, true)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"git", "-C", dir, "fetch", "--prune", "origin"}, calls[1])
}

func TestGit_DescribeWithMockedGit(t *testing.T) {
	root := t.TempDir()
	var calls [][]string
	g := NewGit(root, "/usr/bin/git", scriptedRunner(&calls, map[string]string{
		"rev-parse": "0123456789abcdef0123456789abcdef01234567\n",
		"describe":  "v1.2-4-g0123456789\n",
	}), nil)

	src := "https://example.com/foo.git"
	dir, err := g.Dir(src)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	desc, err := g.Describe(context.Background(), src, "master")
	require.NoError(t, err)
	assert.Equal(t, Description{
		Tag:      "v1.2",
		Revision: "4.g0123456789",
		Commit:   "0123456789abcdef0123456789abcdef01234567",
	}, desc)

	require.Len(t, calls, 2)
	assert.Equal(t, "/usr/bin/git", calls[0][0])
	assert.Contains(t, calls[1], "--abbrev=10")
}

func TestGit_MissingMirror(t *testing.T) {
	var calls [][]string
	g := NewGit(t.TempDir(), "", scriptedRunner(&calls, nil), nil)

	_, err := g.ResolveRef(context.Background(), "https://example.com/foo.git", "master")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mirror")
	assert.Empty(t, calls)
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()

	full := append([]string{"-C", dir, "-c", "user.name=Test", "-c", "user.email=test@example.com"}, args...)
	out, err := exec.Command("git", full...).CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)

	return strings.TrimSpace(string(out))
}

func TestGit_RealRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	// Create an upstream repository with one tagged commit and one after it
	upstream := filepath.Join(t.TempDir(), "upstream")
	require.NoError(t, os.MkdirAll(upstream, 0o755))
	gitCmd(t, upstream, "init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(upstream, "README"), []byte("one\n"), 0o644))
	gitCmd(t, upstream, "add", "README")
	gitCmd(t, upstream, "commit", "-q", "-m", "one")
	gitCmd(t, upstream, "tag", "v1.0")
	require.NoError(t, os.WriteFile(filepath.Join(upstream, "README"), []byte("two\n"), 0o644))
	gitCmd(t, upstream, "commit", "-q", "-a", "-m", "two")
	head := gitCmd(t, upstream, "rev-parse", "HEAD")

	ctx := context.Background()
	g := NewGit(filepath.Join(t.TempDir(), "src"), "", nil, nil)

	require.NoError(t, g.Ensure(ctx, upstream, false))

	rev, err := g.ResolveRef(ctx, upstream, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, head, rev)

	desc, err := g.Describe(ctx, upstream, rev)
	require.NoError(t, err)
	assert.Equal(t, "v1.0", desc.Tag)
	assert.Equal(t, "1.g"+head[:10], desc.Revision)
	assert.Equal(t, head, desc.Commit)

	dest := filepath.Join(t.TempDir(), "co")
	require.NoError(t, g.Checkout(ctx, upstream, rev, dest))
	content, err := os.ReadFile(filepath.Join(dest, "README"))
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(content))

	// Override from a local repository with an extra commit
	require.NoError(t, os.WriteFile(filepath.Join(upstream, "README"), []byte("three\n"), 0o644))
	gitCmd(t, upstream, "commit", "-q", "-a", "-m", "three")
	newHead := gitCmd(t, upstream, "rev-parse", "HEAD")

	fetched, err := g.FetchFrom(ctx, upstream, upstream)
	require.NoError(t, err)
	assert.Equal(t, newHead, fetched)
}
