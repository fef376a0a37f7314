package resolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/archive"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/fake"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/mirror"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/overlay"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/snapshot"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/srcsnap"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/workspace"
)

const (
	fooSrc = "https://example.com/foo"
	fooDg  = "https://example.com/rpms/foo"
)

const overlayYAML = `root:
  mock: fedora-23-x86_64
components:
  - src: https://example.com/foo
    distgit:
      src: https://example.com/rpms/foo
`

type fixture struct {
	layout workspace.Layout
	mirror *fake.Mirror
	seq    *Sequencer
}

func newFixture(t *testing.T, preserve bool) *fixture {
	t.Helper()

	layout, err := workspace.NewLayout(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(layout.Src(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(layout.Root, "overlay.yml"), []byte(overlayYAML), 0o644))

	m := fake.NewMirror()
	m.Repo(fooSrc).Commit("master", "f1", mirror.Description{Tag: "v1.0", Revision: "2.gf1"}, map[string]string{"foo.c": ""})
	m.Repo(fooDg).Commit("master", "d1", mirror.Description{Revision: "d1"}, map[string]string{
		"foo.spec": "Name: foo\nVersion: 0\nRelease: 0\n\n%prep\n%setup -q\n",
	})

	run := workspace.Run{
		Layout: layout,
		Temp:   workspace.TempDirs{Root: filepath.Join(layout.Root, "tmp"), Preserve: preserve},
	}

	return &fixture{
		layout: layout,
		mirror: m,
		seq: &Sequencer{
			Run:       run,
			Resolver:  overlay.NewMirrorResolver(m, nil),
			Snapshots: srcsnap.NewGenerator(m, run.Temp, archive.Gzip, nil),
		},
	}
}

func TestResolve_PromotesOnce(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.seq.Resolve(ctx, Options{})
	require.NoError(t, err)
	assert.True(t, res.Changed)

	const name = "foo-1.0-2.gf1.d1.srcsnap"
	assert.Equal(t, name, res.Snapshot.Components[0].Srcsnap)
	assert.DirExists(t, filepath.Join(f.layout.Snapshot(), name))

	promoted, err := snapshot.Load(f.layout.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, "f1", promoted.Components[0].Revision)
	assert.Equal(t, "d1", promoted.Components[0].Distgit.Revision)

	// Nothing moved upstream
	marker := filepath.Join(f.layout.Root, "changed")
	res, err = f.seq.Resolve(ctx, Options{TouchIfChanged: marker})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.NoFileExists(t, marker)
	assert.NoDirExists(t, f.layout.OldSnapshot())

	// A new upstream commit
	f.mirror.Repo(fooSrc).Commit("master", "f2", mirror.Description{Tag: "v1.0", Revision: "3.gf2"}, map[string]string{"foo.c": "x"})
	res, err = f.seq.Resolve(ctx, Options{TouchIfChanged: marker})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.FileExists(t, marker)
	assert.DirExists(t, filepath.Join(f.layout.Snapshot(), "foo-1.0-3.gf2.d1.srcsnap"))
	assert.DirExists(t, filepath.Join(f.layout.OldSnapshot(), name))
}

func TestResolve_CheckSrc(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		f := newFixture(t, false)
		require.NoError(t, os.RemoveAll(f.layout.Src()))

		_, err := f.seq.Resolve(context.Background(), Options{})
		var cfgErr *codes.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, err.Error(), "Missing src/ directory")
	})

	t.Run("symlink", func(t *testing.T) {
		f := newFixture(t, false)
		require.NoError(t, os.RemoveAll(f.layout.Src()))
		require.NoError(t, os.Symlink(t.TempDir(), f.layout.Src()))

		_, err := f.seq.Resolve(context.Background(), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "thin clone")
	})
}

func TestResolve_OverrideNotApplicable(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.seq.Resolve(context.Background(), Options{
		ResolveOptions: overlay.ResolveOptions{
			Override: overlay.Override{GitURL: "https://example.com/other"},
		},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, codes.ErrOverrideNotApplicable))
	assert.Equal(t, 77, codes.ExitCode(err))
	assert.NoDirExists(t, f.layout.SnapshotTmp())
	assert.NoDirExists(t, f.layout.Snapshot())
}

func TestResolve_FailureDiscardsStaging(t *testing.T) {
	tests := []struct {
		name     string
		preserve bool
	}{
		{name: "discarded", preserve: false},
		{name: "preserved", preserve: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.preserve)
			ctx := context.Background()

			_, err := f.seq.Resolve(ctx, Options{})
			require.NoError(t, err)

			f.mirror.Repo(fooSrc).Commit("master", "f2", mirror.Description{Revision: "f2"}, map[string]string{"foo.c": "x"})
			f.mirror.FailCheckout[fooDg] = errors.New("checkout failed")

			_, err = f.seq.Resolve(ctx, Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "component 'foo'")

			if tt.preserve {
				assert.DirExists(t, f.layout.SnapshotTmp())
			} else {
				assert.NoDirExists(t, f.layout.SnapshotTmp())
			}

			// The promoted snapshot is untouched
			promoted, err := snapshot.Load(f.layout.Snapshot())
			require.NoError(t, err)
			assert.Equal(t, "f1", promoted.Components[0].Revision)
		})
	}
}
