// Package resolve turns the overlay into a promoted snapshot: it pins every
// component to a revision, generates the source snapshots and publishes the
// result when it changed.
package resolve

import (
	"context"
	"fmt"
	"os"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/overlay"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/snapshot"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/workspace"
)

// SourceSnapshotter writes the source snapshot of a component into destDir
// and returns its artifact name
type SourceSnapshotter interface {
	Generate(ctx context.Context, c overlay.Component, destDir string) (string, error)
}

// Options control a resolve run
type Options struct {
	overlay.ResolveOptions
	// TouchIfChanged is touched when a new snapshot is promoted
	TouchIfChanged string
}

// Result describes a finished resolve run
type Result struct {
	Changed  bool
	Snapshot *overlay.Expanded
}

// Sequencer runs the resolve stages in order
type Sequencer struct {
	Run       workspace.Run
	Resolver  overlay.Resolver
	Snapshots SourceSnapshotter
}

// CheckSrc verifies the mirror directory of a working root
func CheckSrc(layout workspace.Layout) error {
	info, err := os.Lstat(layout.Src())
	if err != nil {
		if os.IsNotExist(err) {
			return codes.ConfigErrorf("Missing src/ directory; run 'rpmdistro-gitoverlay init'?")
		}

		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return codes.ConfigErrorf("src/ directory is a symbolic link; is this a thin clone?")
	}

	if !info.IsDir() {
		return codes.ConfigErrorf("src/ is not a directory")
	}

	return nil
}

// Resolve produces and promotes a snapshot. A failure leaves the promoted
// snapshot untouched and discards the staging directory unless temporary
// directories are preserved.
func (s *Sequencer) Resolve(ctx context.Context, opts Options) (res Result, err error) {
	log := s.Run.Logger()
	layout := s.Run.Layout

	if err := CheckSrc(layout); err != nil {
		return res, err
	}

	ov, err := overlay.Load(layout.Overlay())
	if err != nil {
		return res, err
	}

	expanded, err := s.Resolver.Resolve(ctx, ov, opts.ResolveOptions)
	if err != nil {
		return res, err
	}

	pub := snapshot.NewPublisher(layout, log)

	tmp, err := pub.Prepare()
	if err != nil {
		return res, err
	}

	defer func() {
		if err == nil {
			return
		}

		if s.Run.Temp.Preserve {
			log.WithField("path", tmp).Info("Preserving snapshot staging directory")
			return
		}

		if derr := pub.Discard(); derr != nil {
			log.WithError(derr).Warn("Failed to discard snapshot staging directory")
		}
	}()

	for i, c := range expanded.Components {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		name, err := s.Snapshots.Generate(ctx, c, tmp)
		if err != nil {
			return res, fmt.Errorf("component '%s': %w", c.Identity(), err)
		}

		expanded.Components[i].Srcsnap = name
	}

	if err := pub.Stage(expanded); err != nil {
		return res, err
	}

	changed, err := pub.Promote(opts.TouchIfChanged)
	if err != nil {
		return res, err
	}

	return Result{Changed: changed, Snapshot: expanded}, nil
}
