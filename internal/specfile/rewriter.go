package specfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/atomicfile"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
)

// PatchPolicy decides what happens to the patches a dist-git carries
type PatchPolicy string

const (
	PatchesKeep PatchPolicy = "keep"
	PatchesDrop PatchPolicy = "drop"
)

// ParsePatchPolicy validates a policy name. Empty means keep.
func ParsePatchPolicy(s string) (PatchPolicy, error) {
	switch PatchPolicy(s) {
	case "", PatchesKeep:
		return PatchesKeep, nil
	case PatchesDrop:
		return PatchesDrop, nil
	}

	return "", codes.ConfigErrorf("unknown patches action '%s'", s)
}

// Edits are the changes applied to a spec. Empty fields are left alone.
type Edits struct {
	// Source is the archive name written to Source0, or Source when the spec
	// has no Source0
	Source string
	// Commit is written as "%global commit"
	Commit   string
	Version  string
	Release  string // "%{?dist}" is appended
	SetupDir string
	Patches  PatchPolicy
}

// Rewriter applies edits to a spec file and returns the saved text
type Rewriter interface {
	Rewrite(specPath string, edits Edits) (string, error)
}

// FileRewriter edits spec files in place
type FileRewriter struct{}

// Rewrite edits the file at specPath. The changelog is always removed.
func (FileRewriter) Rewrite(specPath string, edits Edits) (string, error) {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return "", fmt.Errorf("failed to read spec: %w", err)
	}

	spec := Parse(string(data))
	if err := Apply(spec, edits); err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(specPath), err)
	}

	text := spec.String()

	info, err := os.Stat(specPath)
	if err != nil {
		return "", err
	}

	if err := atomicfile.WriteFile(specPath, []byte(text), info.Mode().Perm()); err != nil {
		return "", err
	}

	return text, nil
}

// Apply performs edits on a parsed spec
func Apply(spec *Spec, edits Edits) error {
	policy := edits.Patches
	if policy == "" {
		policy = PatchesKeep
	}

	if policy != PatchesKeep && policy != PatchesDrop {
		return codes.ConfigErrorf("unknown patches action '%s'", policy)
	}

	if edits.Source != "" {
		tag := "Source"
		if _, ok := spec.GetTag("Source0"); ok {
			tag = "Source0"
		}

		if err := spec.SetTag(tag, edits.Source); err != nil {
			return err
		}
	}

	if edits.Commit != "" {
		spec.SetGlobal("commit", edits.Commit)
	}

	if edits.Version != "" {
		if err := spec.SetTag("Version", edits.Version); err != nil {
			return err
		}
	}

	if edits.SetupDir != "" {
		spec.SetSetupDirname(edits.SetupDir)
	}

	if edits.Release != "" {
		if err := spec.SetTag("Release", edits.Release+"%{?dist}"); err != nil {
			return err
		}
	}

	spec.DeleteChangelog()

	if policy == PatchesDrop {
		spec.WipePatches()
	}

	spec.PrependHeader()

	return nil
}

// FindSpec locates the spec of an upstream checkout: a *.spec or *.spec.in
// at the top level, then in packaging/.
func FindSpec(dir string) (string, error) {
	for _, sub := range []string{"", "packaging"} {
		path, err := findIn(filepath.Join(dir, sub), ".spec", ".spec.in")
		if err != nil || path != "" {
			return path, err
		}
	}

	return "", &codes.AmbiguousArtifactError{Dir: dir, Pattern: "*.spec (or *.spec.in)"}
}

// FindPackagingSpec returns the single *.spec at the top of a dist-git
// checkout
func FindPackagingSpec(dir string) (string, error) {
	path, err := findIn(dir, ".spec")
	if err == nil && path == "" {
		err = &codes.AmbiguousArtifactError{Dir: dir, Pattern: "*.spec"}
	}

	return path, err
}

// findIn returns the single file in dir with one of the suffixes, or an
// empty path when there is none
func findIn(dir string, suffixes ...string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}

		return "", err
	}

	var found []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		for _, suffix := range suffixes {
			if strings.HasSuffix(entry.Name(), suffix) {
				found = append(found, entry.Name())
				break
			}
		}
	}

	sort.Strings(found)

	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return filepath.Join(dir, found[0]), nil
	default:
		return "", &codes.AmbiguousArtifactError{Dir: dir, Pattern: "*" + suffixes[0], Found: found}
	}
}
