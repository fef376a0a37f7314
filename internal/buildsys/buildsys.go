// Package buildsys drives the external packaging tools: rpmbuild for
// source packages, mockchain for batch builds and createrepo_c for
// repository metadata.
package buildsys

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
)

// SourcePackager turns a prepared packaging directory into a source package
type SourcePackager interface {
	BuildSourcePackage(ctx context.Context, dir, specName string) error
}

// BatchRequest describes one batch build
type BatchRequest struct {
	// Root is the build root configuration (mock config name)
	Root string
	// Inputs are the source packages to build, in order
	Inputs []string
	// Repo is the output repository; results land in Repo/<nvr>/
	Repo string
}

// BatchBuilder builds a set of source packages with recursive dependency
// ordering
type BatchBuilder interface {
	BuildBatch(ctx context.Context, req BatchRequest) error
}

// RepoIndexer (re)generates repository metadata
type RepoIndexer interface {
	GenerateRepoMetadata(ctx context.Context, repo string) error
}

// SourcePackageExt is the suffix of source packages
const SourcePackageExt = ".src.rpm"

// FindSourcePackage returns the single source package in dir
func FindSourcePackage(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var found []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), SourcePackageExt) {
			found = append(found, entry.Name())
		}
	}

	sort.Strings(found)

	if len(found) != 1 {
		return "", &codes.AmbiguousArtifactError{Dir: dir, Pattern: "*" + SourcePackageExt, Found: found}
	}

	return filepath.Join(dir, found[0]), nil
}
