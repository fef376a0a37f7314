package specfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
)

const sampleSpec = `%global commit0 deadbeef
Name:           ostree
Version:        2016.1
Release:        2%{?dist}
Summary:        Tool for managing bootable, immutable filesystem trees
Source0:        https://example.com/%{name}-%{version}.tar.xz
Patch0:         0001-fix-build.patch
Patch1:         0002-fix-tests.patch

%description
Summary: not a tag to rewrite

%prep
%setup -q -n %{name}-%{version}
%patch0 -p1
%patch1 -p1

%build
make

%files
/usr/bin/ostree

%changelog
* Mon Jan 04 2016 Someone <someone@example.com> - 2016.1-2
- Rebuild
`

func TestApply_FullRewrite(t *testing.T) {
	spec := Parse(sampleSpec)

	err := Apply(spec, Edits{
		Source:   "ostree-v2016.3-4.gabcdef0123.tar.gz",
		Commit:   "abcdef0123456789",
		Version:  "2016.3",
		Release:  "4.gabcdef0123.7.g0123456789",
		SetupDir: "ostree-v2016.3-4.gabcdef0123",
		Patches:  PatchesDrop,
	})
	require.NoError(t, err)

	expected := Header + `
%global commit abcdef0123456789
%global commit0 deadbeef
Name:           ostree
Version:        2016.3
Release:        4.gabcdef0123.7.g0123456789%{?dist}
Summary:        Tool for managing bootable, immutable filesystem trees
Source0:        ostree-v2016.3-4.gabcdef0123.tar.gz

%description
Summary: not a tag to rewrite

%prep
%setup -q -n ostree-v2016.3-4.gabcdef0123

%build
make

%files
/usr/bin/ostree

`
	assert.Equal(t, expected, spec.String())
}

func TestApply_KeepPatchesAndSourceWithoutZero(t *testing.T) {
	spec := Parse("Name: foo\nVersion: 1\nRelease: 1\nSource: foo.tar.gz\nPatch0: a.patch\n\n%prep\n%autosetup\n")

	err := Apply(spec, Edits{Source: "foo-abc.tar.gz", SetupDir: "foo-abc"})
	require.NoError(t, err)

	text := spec.String()
	assert.Contains(t, text, "Source: foo-abc.tar.gz\n")
	assert.NotContains(t, text, "Source0")
	assert.Contains(t, text, "Patch0: a.patch\n")
	assert.Contains(t, text, "%autosetup -n foo-abc\n")
	assert.Contains(t, text, "Version: 1\n", "empty edits leave tags alone")
}

func TestApply_UnknownPatchPolicy(t *testing.T) {
	spec := Parse(sampleSpec)

	err := Apply(spec, Edits{Patches: "rebase"})
	require.Error(t, err)

	var cfgErr *codes.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "rebase")

	// Nothing was changed
	assert.Equal(t, sampleSpec, spec.String())
}

func TestSpec_SetTagMissing(t *testing.T) {
	spec := Parse("Name: foo\nSummary: bar\n")
	require.NoError(t, spec.SetTag("Source0", "foo.tar.gz"))
	assert.Equal(t, "Name: foo\nSource0: foo.tar.gz\nSummary: bar\n", spec.String())

	noName := Parse("Summary: bar\n")
	assert.Error(t, noName.SetTag("Version", "1"))
}

func TestSpec_GetTag(t *testing.T) {
	spec := Parse(sampleSpec)

	tests := []struct {
		tag      string
		expected string
		found    bool
	}{
		{tag: "Name", expected: "ostree", found: true},
		{tag: "version", expected: "2016.1", found: true},
		{tag: "Source0", expected: "https://example.com/%{name}-%{version}.tar.xz", found: true},
		{tag: "Source", found: false},
		{tag: "Epoch", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			value, ok := spec.GetTag(tt.tag)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestSpec_PrependHeaderOnce(t *testing.T) {
	spec := Parse("Name: foo\n")
	spec.PrependHeader()
	spec.PrependHeader()

	assert.Equal(t, Header+"\nName: foo\n", spec.String())
}

func TestParsePatchPolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected PatchPolicy
		wantErr  bool
	}{
		{input: "", expected: PatchesKeep},
		{input: "keep", expected: PatchesKeep},
		{input: "drop", expected: PatchesDrop},
		{input: "Drop", wantErr: true},
		{input: "squash", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			policy, err := ParsePatchPolicy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, codes.ExitFailure, codes.ExitCode(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, policy)
		})
	}
}

func TestFileRewriter_Rewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.spec")
	require.NoError(t, os.WriteFile(path, []byte("Name: foo\nVersion: 1\nRelease: 1\n\n%changelog\n- old\n"), 0o640))

	saved, err := FileRewriter{}.Rewrite(path, Edits{Version: "2", Release: "3"})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, saved, string(content))
	assert.Equal(t, Header+"\nName: foo\nVersion: 2\nRelease: 3%{?dist}\n\n", saved)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestFindSpec(t *testing.T) {
	t.Run("top level", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.spec"), []byte("Name: foo\n"), 0o644))

		path, err := FindSpec(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "foo.spec"), path)
	})

	t.Run("packaging directory template", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "packaging"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "packaging", "foo.spec.in"), []byte("Name: foo\n"), 0o644))

		path, err := FindSpec(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "packaging", "foo.spec.in"), path)
	})

	t.Run("multiple", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.spec"), nil, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.spec"), nil, 0o644))

		_, err := FindSpec(dir)
		var ambiguous *codes.AmbiguousArtifactError
		require.ErrorAs(t, err, &ambiguous)
		assert.Equal(t, []string{"a.spec", "b.spec"}, ambiguous.Found)
	})

	t.Run("none", func(t *testing.T) {
		_, err := FindSpec(t.TempDir())
		var ambiguous *codes.AmbiguousArtifactError
		require.ErrorAs(t, err, &ambiguous)
		assert.Empty(t, ambiguous.Found)
	})
}

func TestFindPackagingSpec(t *testing.T) {
	dir := t.TempDir()

	_, err := FindPackagingSpec(dir)
	var ambiguous *codes.AmbiguousArtifactError
	require.ErrorAs(t, err, &ambiguous)

	// Templates and nested specs are not dist-git specs
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.spec.in"), nil, 0o644))
	_, err = FindPackagingSpec(dir)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.spec"), nil, 0o644))
	path, err := FindPackagingSpec(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "foo.spec"), path)
}
