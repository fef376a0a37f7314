package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/toolexec"
)

// overrideRef receives the HEAD of a local repository pulled by FetchFrom
const overrideRef = "refs/rdgo/override"

var describeRe = regexp.MustCompile(`^(.+)-([0-9]+)-g([0-9a-f]+)$`)

// Git is a Mirror backed by bare "git clone --mirror" repositories
type Git struct {
	root   string
	git    string
	runner *toolexec.Runner
	log    logrus.FieldLogger
}

// NewGit creates a mirror rooted at root. An empty gitPath means "git".
func NewGit(root, gitPath string, runner *toolexec.Runner, log logrus.FieldLogger) *Git {
	if gitPath == "" {
		gitPath = "git"
	}

	if runner == nil {
		runner = toolexec.NewRunner(log)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Git{root: root, git: gitPath, runner: runner, log: log}
}

// Dir returns the mirror directory for src
func (g *Git) Dir(src string) (string, error) {
	rel, err := RelativePath(src)
	if err != nil {
		return "", err
	}

	return filepath.Join(g.root, rel), nil
}

func (g *Git) existing(src string) (string, error) {
	dir, err := g.Dir(src)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no mirror of %s at %s", src, dir)
		}

		return "", err
	}

	return dir, nil
}

// Ensure clones src on first use and fetches it when fetch is set
func (g *Git) Ensure(ctx context.Context, src string, fetch bool) error {
	dir, err := g.Dir(src)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dir); err == nil {
		if !fetch {
			return nil
		}

		g.log.WithField("src", src).Info("Fetching")

		return g.runner.Run(ctx, "", g.git, "-C", dir, "fetch", "--prune", "origin")
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("failed to create mirror directory: %w", err)
	}

	// Clone next to the final location so a failed clone never looks complete
	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}

	g.log.WithField("src", src).Info("Cloning")
	if err := g.runner.Run(ctx, "", g.git, "clone", "-q", "--mirror", src, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}

	return os.Rename(tmp, dir)
}

// FetchFrom pulls HEAD of localRepo into the mirror of src
func (g *Git) FetchFrom(ctx context.Context, src, localRepo string) (string, error) {
	dir, err := g.existing(src)
	if err != nil {
		return "", err
	}

	g.log.WithFields(logrus.Fields{"src": src, "from": localRepo}).Info("Fetching override")
	if err := g.runner.Run(ctx, "", g.git, "-C", dir, "fetch", "-q", localRepo, "+HEAD:"+overrideRef); err != nil {
		return "", err
	}

	return g.ResolveRef(ctx, src, overrideRef)
}

// ResolveRef returns the full commit id of ref
func (g *Git) ResolveRef(ctx context.Context, src, ref string) (string, error) {
	dir, err := g.existing(src)
	if err != nil {
		return "", err
	}

	out, err := g.runner.Output(ctx, "", g.git, "-C", dir, "rev-parse", "--verify", "-q", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s in %s: %w", ref, src, err)
	}

	return strings.TrimSpace(out), nil
}

// Describe uses "git describe" relative to the nearest tag
func (g *Git) Describe(ctx context.Context, src, rev string) (Description, error) {
	dir, err := g.existing(src)
	if err != nil {
		return Description{}, err
	}

	commit, err := g.ResolveRef(ctx, src, rev)
	if err != nil {
		return Description{}, err
	}

	out, err := g.runner.Output(ctx, "", g.git, "-C", dir, "describe", "--long", "--tags", "--abbrev=10", "--always", commit)
	if err != nil {
		return Description{}, err
	}

	return ParseDescribe(strings.TrimSpace(out), commit), nil
}

// ParseDescribe interprets "git describe --long --always" output
func ParseDescribe(out, commit string) Description {
	m := describeRe.FindStringSubmatch(out)
	if m == nil {
		return Description{Revision: out, Commit: commit}
	}

	return Description{
		Tag:      m[1],
		Revision: m[2] + ".g" + m[3],
		Commit:   commit,
	}
}

// Checkout creates a working tree at dest sharing objects with the mirror
func (g *Git) Checkout(ctx context.Context, src, rev, dest string) error {
	dir, err := g.existing(src)
	if err != nil {
		return err
	}

	if err := g.runner.Run(ctx, "", g.git, "clone", "-q", "--shared", "--no-checkout", dir, dest); err != nil {
		return err
	}

	return g.runner.Run(ctx, "", g.git, "-C", dest, "checkout", "-q", rev)
}
