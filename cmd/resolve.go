package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/history"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/overlay"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/resolve"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/srcsnap"
)

func newResolveCmd() *cobra.Command {
	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the overlay into a snapshot",
		Long: `Pin every component of the overlay to a revision, generate its source
snapshot and promote the result to snapshot/ if anything changed.`,
		Args: cobra.NoArgs,
		RunE: runResolve,
	}

	flags := resolveCmd.Flags()
	flags.String("tempdir", "", "Directory for temporary files")
	flags.Bool("fetch-all", false, "Fetch all git repositories")
	flags.StringArrayP("fetch", "f", nil, "Fetch the git repositories of this component (repeatable)")
	flags.String("override-giturl", "", "Override the component with this git URL")
	flags.String("override-gitbranch", "", "Use this branch for the overridden component")
	flags.String("override-gitrepo-from", "", "Take the overridden revision from the HEAD of this local repository")
	flags.String("override-gitrepo-from-rev", "", "Take this revision from the local repository instead of HEAD")
	flags.String("touch-if-changed", "", "Touch this file if the snapshot changed")
	flags.BoolP("build", "b", false, "Build if the snapshot changed")

	return resolveCmd
}

func resolveOptions(flags *pflag.FlagSet) resolve.Options {
	fetchAll, _ := flags.GetBool("fetch-all")
	fetch, _ := flags.GetStringArray("fetch")
	gitURL, _ := flags.GetString("override-giturl")
	gitBranch, _ := flags.GetString("override-gitbranch")
	repoFrom, _ := flags.GetString("override-gitrepo-from")
	repoFromRev, _ := flags.GetString("override-gitrepo-from-rev")
	touch, _ := flags.GetString("touch-if-changed")

	return resolve.Options{
		ResolveOptions: overlay.ResolveOptions{
			FetchAll: fetchAll,
			Fetch:    fetch,
			Override: overlay.Override{
				GitURL:      gitURL,
				GitBranch:   gitBranch,
				RepoFrom:    repoFrom,
				RepoFromRev: repoFromRev,
			},
		},
		TouchIfChanged: touch,
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	rec := history.NewRecord(history.KindResolve, a.started)

	m := a.mirror()
	seq := &resolve.Sequencer{
		Run:       a.run,
		Resolver:  overlay.NewMirrorResolver(m, a.log),
		Snapshots: srcsnap.NewGenerator(m, a.run.Temp, a.cfg.Compression(), a.log),
	}

	res, err := seq.Resolve(cmd.Context(), resolveOptions(cmd.Flags()))
	if err != nil {
		if errors.Is(err, codes.ErrOverrideNotApplicable) {
			a.log.WithError(err).Info("Override does not apply to this overlay")
		}

		return err
	}

	rec.Changed = res.Changed
	if res.Changed {
		a.metrics.SnapshotChanged.Set(1)
	}
	a.record(rec)

	if build, _ := cmd.Flags().GetBool("build"); build && res.Changed {
		return a.build(cmd)
	}

	return nil
}
