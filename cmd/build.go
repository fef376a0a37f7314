package cmd

import (
	"github.com/spf13/cobra"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/history"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/orchestrator"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/srcsnap"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/swapdir"
)

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the current snapshot",
		Long: `Rebuild the components whose snapshot changed since the last build, reuse
the others and publish the result as a new generation of rpms/.`,
		Args: cobra.NoArgs,
		RunE: runBuild,
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	return a.build(cmd)
}

func (a *app) build(cmd *cobra.Command) error {
	rec := history.NewRecord(history.KindBuild, a.started)

	tools := a.toolchain()
	orch := &orchestrator.Orchestrator{
		Run:         a.run,
		Generations: swapdir.New(a.run.Layout.Rpms(), nil),
		Packager:    tools,
		Builder:     tools,
		Indexer:     tools,
		Snapshots:   srcsnap.NewGenerator(a.mirror(), a.run.Temp, a.cfg.Compression(), a.log),
		Metrics:     a.metrics,
	}

	res, err := orch.Build(cmd.Context())
	if err != nil {
		return err
	}

	rec.Changed = len(res.Built) > 0
	rec.Built = res.Built
	rec.Reused = res.Reused
	rec.TreeDigest = res.TreeDigest.String()
	a.record(rec)

	return nil
}
