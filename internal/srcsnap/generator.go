package srcsnap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/archive"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/linktree"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/mirror"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/overlay"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/specfile"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/workspace"
)

// Generator builds source snapshots from mirrored repositories
type Generator struct {
	Mirror      mirror.Mirror
	Rewriter    specfile.Rewriter
	Temp        workspace.TempDirs
	Compression archive.Compression
	Log         logrus.FieldLogger
}

// NewGenerator creates a generator rewriting specs on disk
func NewGenerator(m mirror.Mirror, temp workspace.TempDirs, c archive.Compression, log logrus.FieldLogger) *Generator {
	return &Generator{
		Mirror:      m,
		Rewriter:    specfile.FileRewriter{},
		Temp:        temp,
		Compression: c,
		Log:         log,
	}
}

// revisionInfo is what the naming and the spec edits need from a checkout
type revisionInfo struct {
	tag, rev, commit string
	distgitDesc      string
}

// Name computes the artifact name of a resolved component without checking
// anything out
func (g *Generator) Name(ctx context.Context, c overlay.Component) (string, error) {
	info, err := g.describe(ctx, c)
	if err != nil {
		return "", err
	}

	version, release := VersionRelease(c, info.tag, info.rev, info.distgitDesc)

	return ArtifactName(c.PkgName, version, release), nil
}

func (g *Generator) describe(ctx context.Context, c overlay.Component) (revisionInfo, error) {
	var info revisionInfo

	if c.Src != "" {
		desc, err := g.Mirror.Describe(ctx, c.Src, c.Revision)
		if err != nil {
			return info, fmt.Errorf("failed to describe %s: %w", c.Src, err)
		}

		info.tag, info.rev, info.commit = desc.Tag, desc.Revision, desc.Commit
	}

	if c.Distgit != nil {
		desc, err := g.Mirror.Describe(ctx, c.Distgit.Src, c.Distgit.Revision)
		if err != nil {
			return info, fmt.Errorf("failed to describe %s: %w", c.Distgit.Src, err)
		}

		info.distgitDesc = desc.Descriptor()
	}

	return info, nil
}

// Generate writes the snapshot of a resolved component into destDir and
// returns its artifact name
func (g *Generator) Generate(ctx context.Context, c overlay.Component, destDir string) (string, error) {
	log := g.logger().WithField("component", c.Identity())

	info, err := g.describe(ctx, c)
	if err != nil {
		return "", err
	}

	version, release := VersionRelease(c, info.tag, info.rev, info.distgitDesc)
	name := ArtifactName(c.PkgName, version, release)

	tmp, cleanup, err := g.Temp.Make("rdgo-srcsnap-")
	if err != nil {
		return "", err
	}
	defer cleanup()

	upstreamCo := filepath.Join(tmp, "upstream")
	if c.Src != "" {
		if err := g.Mirror.Checkout(ctx, c.Src, c.Revision, upstreamCo); err != nil {
			return "", fmt.Errorf("failed to check out %s: %w", c.Src, err)
		}
	}

	packaging := filepath.Join(tmp, "packaging")
	specPath, err := g.packagingSpec(ctx, c, upstreamCo, packaging)
	if err != nil {
		return "", err
	}

	edits := specfile.Edits{}
	if c.Distgit != nil {
		edits.Patches = specfile.PatchPolicy(c.Distgit.Patches)
	}

	if c.Src != "" {
		dirname := c.Name + "-" + Descriptor(info.tag, info.rev)
		tarname := dirname + g.Compression.Ext()

		if err := archive.Write(upstreamCo, dirname, filepath.Join(packaging, tarname), g.Compression); err != nil {
			return "", fmt.Errorf("failed to archive %s: %w", c.Src, err)
		}

		edits.Source = tarname
		edits.Commit = info.commit
		edits.Version = version
		edits.Release = release
		edits.SetupDir = dirname
	}

	if _, err := g.Rewriter.Rewrite(specPath, edits); err != nil {
		return "", err
	}

	// Snapshots carry no VCS metadata
	if err := os.RemoveAll(filepath.Join(packaging, ".git")); err != nil {
		return "", err
	}

	if err := move(packaging, filepath.Join(destDir, name)); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", name, err)
	}

	log.WithField("srcsnap", name).Info("Generated source snapshot")

	return name, nil
}

// packagingSpec fills the packaging directory and returns the spec to rewrite
func (g *Generator) packagingSpec(ctx context.Context, c overlay.Component, upstreamCo, packaging string) (string, error) {
	if c.Distgit != nil {
		if err := g.Mirror.Checkout(ctx, c.Distgit.Src, c.Distgit.Revision, packaging); err != nil {
			return "", fmt.Errorf("failed to check out %s: %w", c.Distgit.Src, err)
		}

		return specfile.FindPackagingSpec(packaging)
	}

	src, err := specfile.FindSpec(upstreamCo)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(packaging, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(packaging, strings.TrimSuffix(filepath.Base(src), ".in"))
	if err := (linktree.Copier{}).Duplicate(src, dst); err != nil {
		return "", fmt.Errorf("failed to copy spec: %w", err)
	}

	return dst, nil
}

func (g *Generator) logger() logrus.FieldLogger {
	if g.Log == nil {
		return logrus.StandardLogger()
	}

	return g.Log
}

// move renames src to dst, copying when they are on different filesystems
func move(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%s already exists", dst)
	}

	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := (linktree.Copier{}).Duplicate(src, dst); err != nil {
		return err
	}

	return os.RemoveAll(src)
}
