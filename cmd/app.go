package cmd

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/buildsys"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/config"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/history"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/metrics"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/mirror"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/toolexec"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/workspace"
)

// execCommand overrides process creation for every tool, for tests
var execCommand toolexec.ExecFunc

// app is everything a subcommand needs, built once per invocation
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	run     workspace.Run
	runner  *toolexec.Runner
	metrics *metrics.Run
	started time.Time
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.NewLoader().LoadForCommand(cmd)
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg, cmd.ErrOrStderr())

	layout, err := workspace.NewLayout(cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	runner := toolexec.NewRunner(log)
	if execCommand != nil {
		runner = toolexec.NewRunnerWithExec(log, execCommand)
	}

	return &app{
		cfg: cfg,
		log: log,
		run: workspace.Run{
			Layout: layout,
			Temp:   workspace.TempDirs{Root: cfg.TempDir, Preserve: cfg.PreserveTemp, Log: log},
			Log:    log,
		},
		runner:  runner,
		metrics: metrics.New(),
		started: time.Now(),
	}, nil
}

// newLogger creates the process logger from the configuration
func newLogger(cfg *config.Config, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	return log
}

func (a *app) mirror() *mirror.Git {
	return mirror.NewGit(a.run.Layout.Src(), a.cfg.GitPath, a.runner, a.log)
}

func (a *app) toolchain() *buildsys.Toolchain {
	return buildsys.NewToolchain(buildsys.Paths{
		Rpmbuild:   a.cfg.RpmbuildPath,
		Mockchain:  a.cfg.MockchainPath,
		Createrepo: a.cfg.CreaterepoPath,
	}, a.runner, a.log)
}

// record stores a run in the history database and exports the metrics.
// Failures are logged; the run itself already succeeded.
func (a *app) record(rec history.Record) {
	rec.Finished = time.Now()
	a.metrics.Finished(string(rec.Kind), rec.Started, rec.Finished)

	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.log.WithError(err).Warn("Failed to write metrics")
	}

	store, err := history.Open(a.run.Layout.History())
	if err != nil {
		a.log.WithError(err).Warn("Failed to open run history")
		return
	}
	defer store.Close()

	if err := store.Put(rec); err != nil {
		a.log.WithError(err).Warn("Failed to record run")
	}
}
