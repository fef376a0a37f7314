package buildsys

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/toolexec"
)

// Paths locates the tool executables
type Paths struct {
	Rpmbuild   string
	Mockchain  string
	Createrepo string
}

// DefaultPaths uses the tools from $PATH
func DefaultPaths() Paths {
	return Paths{
		Rpmbuild:   "rpmbuild",
		Mockchain:  "mockchain",
		Createrepo: "createrepo_c",
	}
}

// ShellCommand is a fully prepared tool invocation
type ShellCommand struct {
	Dir  string
	Path string
	Args []string
}

// Toolchain implements SourcePackager, BatchBuilder and RepoIndexer by
// running the real tools
type Toolchain struct {
	paths  Paths
	runner *toolexec.Runner
	log    logrus.FieldLogger
}

// NewToolchain creates a toolchain. Empty paths fall back to DefaultPaths.
func NewToolchain(paths Paths, runner *toolexec.Runner, log logrus.FieldLogger) *Toolchain {
	defaults := DefaultPaths()
	if paths.Rpmbuild == "" {
		paths.Rpmbuild = defaults.Rpmbuild
	}
	if paths.Mockchain == "" {
		paths.Mockchain = defaults.Mockchain
	}
	if paths.Createrepo == "" {
		paths.Createrepo = defaults.Createrepo
	}

	if runner == nil {
		runner = toolexec.NewRunner(log)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Toolchain{paths: paths, runner: runner, log: log}
}

// SourcePackageCommand builds the rpmbuild invocation. Every rpmbuild
// directory points at dir so the result lands next to the spec.
func (t *Toolchain) SourcePackageCommand(dir, specName string) ShellCommand {
	var args []string
	for _, macro := range []string{"_sourcedir", "_specdir", "_builddir", "_srcrpmdir", "_rpmdir"} {
		args = append(args, "--define", "%"+macro+" "+dir)
	}

	args = append(args, "-bs", specName)

	return ShellCommand{Dir: dir, Path: t.paths.Rpmbuild, Args: args}
}

// BatchCommand builds the mockchain invocation
func (t *Toolchain) BatchCommand(req BatchRequest) (ShellCommand, error) {
	if req.Root == "" {
		return ShellCommand{}, fmt.Errorf("no build root given")
	}

	if req.Repo == "" {
		return ShellCommand{}, fmt.Errorf("no output repository given")
	}

	args := []string{"--recurse", "-r", req.Root, "-l", req.Repo}
	args = append(args, req.Inputs...)

	return ShellCommand{Dir: req.Repo, Path: t.paths.Mockchain, Args: args}, nil
}

// RepoMetadataCommand builds the createrepo_c invocation
func (t *Toolchain) RepoMetadataCommand(repo string) ShellCommand {
	return ShellCommand{Dir: repo, Path: t.paths.Createrepo, Args: []string{"."}}
}

// BuildSourcePackage runs rpmbuild -bs in dir
func (t *Toolchain) BuildSourcePackage(ctx context.Context, dir, specName string) error {
	return t.execute(ctx, t.SourcePackageCommand(dir, specName))
}

// BuildBatch runs mockchain over the inputs
func (t *Toolchain) BuildBatch(ctx context.Context, req BatchRequest) error {
	cmd, err := t.BatchCommand(req)
	if err != nil {
		return err
	}

	t.log.WithField("inputs", len(req.Inputs)).Info("Performing mockchain")

	return t.execute(ctx, cmd)
}

// GenerateRepoMetadata runs createrepo_c in repo
func (t *Toolchain) GenerateRepoMetadata(ctx context.Context, repo string) error {
	return t.execute(ctx, t.RepoMetadataCommand(repo))
}

func (t *Toolchain) execute(ctx context.Context, cmd ShellCommand) error {
	return t.runner.Run(ctx, cmd.Dir, cmd.Path, cmd.Args...)
}
