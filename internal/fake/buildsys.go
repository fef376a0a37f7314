package fake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/buildsys"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/specfile"
)

var (
	_ buildsys.SourcePackager = (*Packager)(nil)
	_ buildsys.BatchBuilder   = (*Builder)(nil)
	_ buildsys.RepoIndexer    = (*Indexer)(nil)
)

// Packager writes a source package named after the spec's Name, Version
// and Release
type Packager struct {
	mu sync.Mutex

	// Fail maps spec Name values to the error their build returns
	Fail map[string]error
	// Extra makes the named package produce a second source package
	Extra map[string]bool
	// Built lists the NVRs produced, in order
	Built []string
}

// NewPackager creates a fake source packager
func NewPackager() *Packager {
	return &Packager{Fail: make(map[string]error), Extra: make(map[string]bool)}
}

// BuildSourcePackage reads dir/specName and writes <nvr>.src.rpm into dir
func (p *Packager) BuildSourcePackage(ctx context.Context, dir, specName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(dir, specName))
	if err != nil {
		return err
	}

	spec := specfile.Parse(string(data))
	name, _ := spec.GetTag("Name")
	version, _ := spec.GetTag("Version")
	release, _ := spec.GetTag("Release")
	release = strings.TrimSuffix(release, "%{?dist}")

	if err := p.Fail[name]; err != nil {
		return err
	}

	nvr := fmt.Sprintf("%s-%s-%s", name, version, release)
	if err := os.WriteFile(filepath.Join(dir, nvr+buildsys.SourcePackageExt), data, 0o644); err != nil {
		return err
	}

	if p.Extra[name] {
		if err := os.WriteFile(filepath.Join(dir, nvr+".extra"+buildsys.SourcePackageExt), nil, 0o644); err != nil {
			return err
		}
	}

	p.Built = append(p.Built, nvr)

	return nil
}

// Builder creates Repo/<nvr>/<nvr>.x86_64.rpm for every input
type Builder struct {
	mu sync.Mutex

	// Skip lists NVRs for which nothing is produced
	Skip map[string]bool
	// Err fails the whole batch
	Err error
	// After runs on the repository once the outputs are written
	After func(repo string) error

	Requests []buildsys.BatchRequest
}

// NewBuilder creates a fake batch builder
func NewBuilder() *Builder {
	return &Builder{Skip: make(map[string]bool)}
}

// Calls returns the number of batch builds performed
func (b *Builder) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.Requests)
}

// BuildBatch writes one binary package per input
func (b *Builder) BuildBatch(ctx context.Context, req buildsys.BatchRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Requests = append(b.Requests, req)
	if b.Err != nil {
		return b.Err
	}

	for _, input := range req.Inputs {
		nvr := strings.TrimSuffix(filepath.Base(input), buildsys.SourcePackageExt)
		if b.Skip[nvr] {
			continue
		}

		dir := filepath.Join(req.Repo, nvr)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(filepath.Join(dir, nvr+".x86_64.rpm"), []byte("built from "+filepath.Base(input)), 0o644); err != nil {
			return err
		}
	}

	if b.After != nil {
		return b.After(req.Repo)
	}

	return nil
}

// Indexer writes repodata/repomd.xml listing the package directories
type Indexer struct {
	mu sync.Mutex

	Err   error
	Repos []string
}

// GenerateRepoMetadata lists the top-level directories of repo
func (x *Indexer) GenerateRepoMetadata(ctx context.Context, repo string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.Repos = append(x.Repos, repo)
	if x.Err != nil {
		return x.Err
	}

	entries, err := os.ReadDir(repo)
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != "repodata" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	repodata := filepath.Join(repo, "repodata")
	if err := os.RemoveAll(repodata); err != nil {
		return err
	}

	if err := os.MkdirAll(repodata, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(repodata, "repomd.xml"), []byte(strings.Join(names, "\n")+"\n"), 0o644)
}
