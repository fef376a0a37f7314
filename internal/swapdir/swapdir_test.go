package swapdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/linktree"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func listTree(t *testing.T, root string) map[string]string {
	t.Helper()

	files := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		files[rel] = string(content)
		return nil
	})
	require.NoError(t, err)

	return files
}

func TestDir_FirstCommit(t *testing.T) {
	rpms := filepath.Join(t.TempDir(), "rpms")
	d := New(rpms, nil)

	// Nothing committed yet
	current, err := d.Current()
	require.NoError(t, err)
	assert.Empty(t, current)

	staging, err := d.Prepare()
	require.NoError(t, err)
	assert.Equal(t, rpms+".0", staging)

	writeFile(t, filepath.Join(staging, "foo", "foo.rpm"), "gen1")

	err = d.Commit()
	require.NoError(t, err)

	current, err = d.Current()
	require.NoError(t, err)
	assert.Equal(t, staging, current)

	// Readers go through the visible path
	content, err := os.ReadFile(filepath.Join(rpms, "foo", "foo.rpm"))
	require.NoError(t, err)
	assert.Equal(t, "gen1", string(content))
}

func TestDir_AlternatesSlots(t *testing.T) {
	rpms := filepath.Join(t.TempDir(), "rpms")
	d := New(rpms, nil)

	staging, err := d.Prepare()
	require.NoError(t, err)
	writeFile(t, filepath.Join(staging, "a"), "gen1")
	require.NoError(t, d.Commit())

	staging, err = d.Prepare()
	require.NoError(t, err)
	assert.Equal(t, rpms+".1", staging)
	writeFile(t, filepath.Join(staging, "b"), "gen2")
	require.NoError(t, d.Commit())

	assert.Equal(t, map[string]string{"b": "gen2"}, listTree(t, rpms+"/"))

	// Third generation goes back to slot 0, which is cleaned first
	staging, err = d.Prepare()
	require.NoError(t, err)
	assert.Equal(t, rpms+".0", staging)
	assert.Empty(t, listTree(t, staging))
}

func TestDir_InterruptedBeforeCommit(t *testing.T) {
	rpms := filepath.Join(t.TempDir(), "rpms")
	d := New(rpms, nil)

	staging, err := d.Prepare()
	require.NoError(t, err)
	writeFile(t, filepath.Join(staging, "foo", "foo-1.rpm"), "gen1")
	writeFile(t, filepath.Join(staging, "buildstate.json"), "{}")
	require.NoError(t, d.Commit())

	before := listTree(t, rpms+"/")

	// Simulate a run that dies after populating staging
	staging, err = d.Prepare()
	require.NoError(t, err)
	writeFile(t, filepath.Join(staging, "foo", "foo-2.rpm"), "partial")

	// A new process sees the previous generation, complete
	restarted := New(rpms, nil)
	assert.Equal(t, before, listTree(t, rpms+"/"))

	current, err := restarted.Current()
	require.NoError(t, err)
	assert.Equal(t, rpms+".0", current)

	// And can prepare again, discarding the partial content
	staging, err = restarted.Prepare()
	require.NoError(t, err)
	assert.Empty(t, listTree(t, staging))
	assert.Equal(t, before, listTree(t, rpms+"/"))
}

func TestDir_Reuse(t *testing.T) {
	rpms := filepath.Join(t.TempDir(), "rpms")
	d := New(rpms, linktree.HardLinker{})

	staging, err := d.Prepare()
	require.NoError(t, err)
	writeFile(t, filepath.Join(staging, "foo-1.0-1", "foo.rpm"), "cached")
	require.NoError(t, d.Commit())

	staging, err = d.Prepare()
	require.NoError(t, err)

	err = d.Reuse("foo-1.0-1")
	require.NoError(t, err)

	oldInfo, err := os.Stat(filepath.Join(rpms, "foo-1.0-1", "foo.rpm"))
	require.NoError(t, err)
	newInfo, err := os.Stat(filepath.Join(staging, "foo-1.0-1", "foo.rpm"))
	require.NoError(t, err)
	assert.True(t, os.SameFile(oldInfo, newInfo), "reused output should share storage")

	// Missing subtree
	err = d.Reuse("bar-2.0-1")
	assert.Error(t, err)
}

func TestDir_ReuseWithoutPrepare(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "rpms"), nil)

	assert.Error(t, d.Reuse("foo"))
	assert.Error(t, d.Commit())
}

func TestDir_RejectsRealDirectory(t *testing.T) {
	rpms := filepath.Join(t.TempDir(), "rpms")
	require.NoError(t, os.MkdirAll(rpms, 0o755))
	writeFile(t, filepath.Join(rpms, "keep"), "data")

	d := New(rpms, nil)
	_, err := d.Prepare()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a swapped directory")

	// Untouched
	assert.FileExists(t, filepath.Join(rpms, "keep"))
}
