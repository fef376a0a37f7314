// Package orchestrator runs an incremental build of a promoted snapshot.
//
// Each component is fingerprinted and looked up in the build cache of the
// published generation. Hits are hard-linked into the staging generation,
// misses get a fresh source package. Misses are then built in one batch, the
// repository metadata is regenerated and the staging generation is published
// atomically together with its cache.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/buildsys"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/cache"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/fingerprint"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/linktree"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/metrics"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/overlay"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/snapshot"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/specfile"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/srcsnap"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/swapdir"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/treehash"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/workspace"
)

// SrpmDir is the directory of a generation holding the source packages
const SrpmDir = "srpms"

// SourceSnapshotter regenerates a source snapshot missing from the promoted
// snapshot directory. Name reports what Generate would produce without
// checking anything out.
type SourceSnapshotter interface {
	Name(ctx context.Context, c overlay.Component) (string, error)
	Generate(ctx context.Context, c overlay.Component, destDir string) (string, error)
}

// Result describes a finished build run
type Result struct {
	Transitions []Transition
	// Built and Reused list component identities in snapshot order
	Built  []string
	Reused []string
	// Dropped lists identities the previous generation cached that are no
	// longer in the snapshot, sorted
	Dropped    []string
	TreeDigest treehash.Digest
}

// Orchestrator builds the promoted snapshot of a working root
type Orchestrator struct {
	Run         workspace.Run
	Generations swapdir.Generations
	Packager    buildsys.SourcePackager
	Builder     buildsys.BatchBuilder
	Indexer     buildsys.RepoIndexer
	// Snapshots is optional; without it a missing source snapshot is an error
	Snapshots SourceSnapshotter
	// Metrics is optional
	Metrics *metrics.Run
}

// run is the state of one Build call
type run struct {
	*Orchestrator
	log     logrus.FieldLogger
	sm      *machine
	current string
	staging string
	work    string
	cache   *cache.Cache
	inputs  []string
	built   []string
	result  *Result
}

// Build performs one incremental build. Any failure leaves the published
// generation untouched.
func (o *Orchestrator) Build(ctx context.Context) (*Result, error) {
	expanded, err := snapshot.Load(o.Run.Layout.Snapshot())
	if err != nil {
		return nil, err
	}

	if expanded.Root.Mock == "" {
		return nil, codes.MissingKey("root.mock")
	}

	r := &run{
		Orchestrator: o,
		log:          o.Run.Logger(),
		sm:           newMachine(),
		current:      o.Generations.Path(),
		result:       &Result{},
	}

	r.cache, err = cache.Load(filepath.Join(r.current, cache.FileName))
	if err != nil {
		return nil, err
	}

	r.staging, err = o.Generations.Prepare()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Join(r.staging, SrpmDir), 0o755); err != nil {
		return nil, err
	}

	work, cleanup, err := o.Run.Temp.Make("rdgo-build-")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	r.work = work

	for _, c := range expanded.Components {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.consult(ctx, c); err != nil {
			return nil, fmt.Errorf("component '%s': %w", c.Identity(), err)
		}
	}

	r.sm.to(StateAllConsulted, "")

	if err := r.buildBatch(ctx, expanded.Root.Mock); err != nil {
		return nil, err
	}

	if err := o.Indexer.GenerateRepoMetadata(ctx, r.staging); err != nil {
		return nil, fmt.Errorf("failed to generate repository metadata: %w", err)
	}

	if err := r.cache.Save(filepath.Join(r.staging, cache.FileName)); err != nil {
		return nil, err
	}

	// The digest only covers relative paths, so staging hashes the same as
	// the generation it becomes
	digest, err := treehash.Dir(r.staging)
	if err != nil {
		return nil, err
	}

	if err := o.Generations.Commit(); err != nil {
		return nil, err
	}

	r.sm.to(StatePublished, "")

	r.result.Dropped = r.dropped()
	if len(r.result.Dropped) > 0 {
		r.log.WithField("components", r.result.Dropped).Info("Dropped from the build cache")
	}

	r.sm.to(StateDone, "")

	r.result.TreeDigest = digest
	r.result.Transitions = r.sm.trail

	r.log.WithFields(logrus.Fields{
		"built":  len(r.result.Built),
		"reused": len(r.result.Reused),
		"digest": digest,
	}).Info("Success!")

	return r.result, nil
}

// consult decides between reuse and rebuild for one component
func (r *run) consult(ctx context.Context, c overlay.Component) error {
	id := c.Identity()
	log := r.log.WithField("component", id)

	r.sm.to(StateCacheConsult, id)

	if c.Srcsnap == "" {
		return codes.MissingKey("srcsnap")
	}

	fp, err := fingerprint.Of(c)
	if err != nil {
		return fmt.Errorf("failed to fingerprint: %w", err)
	}

	if entry, ok := r.cache.Lookup(id, fp); ok {
		reused, err := r.reuse(entry, log)
		if err != nil {
			return err
		}

		if reused {
			r.sm.to(StateReuseHit, id)
			r.cache.Record(id, fp, entry.Dirname)
			r.result.Reused = append(r.result.Reused, id)
			if r.Metrics != nil {
				r.Metrics.Reused()
			}
			r.sm.to(StateRecorded, id)

			return nil
		}
	}

	r.sm.to(StateBuildMiss, id)

	dirname := srcsnap.Dirname(c.Srcsnap)
	if err := r.sourcePackage(ctx, c, dirname, log); err != nil {
		return err
	}

	r.cache.Record(id, fp, dirname)
	r.result.Built = append(r.result.Built, id)
	r.built = append(r.built, dirname)
	if r.Metrics != nil {
		r.Metrics.Built()
	}
	r.sm.to(StateRecorded, id)

	return nil
}

// reuse carries a cached build into staging. It reports false when the
// previous outputs are gone and the component must be rebuilt.
func (r *run) reuse(entry cache.Entry, log logrus.FieldLogger) (bool, error) {
	log = log.WithField("dirname", entry.Dirname)

	if _, err := os.Stat(filepath.Join(r.current, entry.Dirname)); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Cached build output is missing, rebuilding")
			return false, nil
		}

		return false, err
	}

	if err := r.Generations.Reuse(entry.Dirname); err != nil {
		return false, fmt.Errorf("failed to reuse %s: %w", entry.Dirname, err)
	}

	srpm := filepath.Join(SrpmDir, entry.Dirname+buildsys.SourcePackageExt)
	if _, err := os.Lstat(filepath.Join(r.current, srpm)); err == nil {
		if err := r.Generations.Reuse(srpm); err != nil {
			return false, fmt.Errorf("failed to reuse %s: %w", srpm, err)
		}
	}

	log.Info("Reusing cached build")

	return true, nil
}

// sourcePackage builds the source package of a component from its snapshot
// and links it into the staging generation
func (r *run) sourcePackage(ctx context.Context, c overlay.Component, dirname string, log logrus.FieldLogger) error {
	dir, err := r.materialize(ctx, c)
	if err != nil {
		return err
	}

	spec, err := specfile.FindPackagingSpec(dir)
	if err != nil {
		return err
	}

	log.WithField("dirname", dirname).Info("Building source package")

	if err := r.Packager.BuildSourcePackage(ctx, dir, filepath.Base(spec)); err != nil {
		return err
	}

	srpm, err := buildsys.FindSourcePackage(dir)
	if err != nil {
		return err
	}

	target := filepath.Join(r.staging, SrpmDir, dirname+buildsys.SourcePackageExt)
	if err := (linktree.HardLinker{FallbackCopy: true}).Duplicate(srpm, target); err != nil {
		return fmt.Errorf("failed to stage source package: %w", err)
	}

	r.inputs = append(r.inputs, target)

	return nil
}

// materialize returns a private copy of the component's source snapshot,
// regenerating it when the snapshot directory no longer has it
func (r *run) materialize(ctx context.Context, c overlay.Component) (string, error) {
	dir := filepath.Join(r.work, c.Srcsnap)
	src := filepath.Join(r.Run.Layout.Snapshot(), c.Srcsnap)

	_, err := os.Stat(src)
	if err == nil {
		if err := (linktree.Copier{}).Duplicate(src, dir); err != nil {
			return "", fmt.Errorf("failed to copy source snapshot: %w", err)
		}

		return dir, nil
	}

	if !os.IsNotExist(err) {
		return "", err
	}

	if r.Snapshots == nil {
		return "", fmt.Errorf("source snapshot %s is missing", c.Srcsnap)
	}

	name, err := r.Snapshots.Name(ctx, c)
	if err != nil {
		return "", err
	}

	if name != c.Srcsnap {
		return "", fmt.Errorf("source snapshot %s is missing and would regenerate as %s; resolve again", c.Srcsnap, name)
	}

	if _, err := r.Snapshots.Generate(ctx, c, r.work); err != nil {
		return "", err
	}

	return dir, nil
}

// dropped lists the identities cached by the previous generation that are
// no longer part of the snapshot
func (r *run) dropped() []string {
	recorded := r.cache.Recorded()

	var dropped []string
	for _, id := range r.cache.Previous() {
		if !slices.Contains(recorded, id) {
			dropped = append(dropped, id)
		}
	}

	return dropped
}

// buildBatch runs the external build for the misses and checks its outputs
func (r *run) buildBatch(ctx context.Context, root string) error {
	if len(r.inputs) == 0 {
		r.sm.to(StateNothingChanged, "")
		r.log.Info("No components changed")

		return nil
	}

	r.sm.to(StateNeedsExternalBuild, "")

	if r.Metrics != nil {
		r.Metrics.ExternalBuilds.Inc()
	}

	req := buildsys.BatchRequest{Root: root, Inputs: r.inputs, Repo: r.staging}
	if err := r.Builder.BuildBatch(ctx, req); err != nil {
		return fmt.Errorf("batch build failed: %w", err)
	}

	for _, dirname := range r.built {
		dir := filepath.Join(r.staging, dirname)

		outputs, err := cache.CollectOutputs(dir)
		if err != nil {
			return err
		}

		if len(outputs) == 0 {
			return &codes.AmbiguousArtifactError{Dir: dir, Pattern: "*.rpm"}
		}
	}

	return nil
}
