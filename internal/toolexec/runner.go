// Package toolexec runs external tools and turns failures into
// codes.ToolInvocationError values carrying the exit status and stderr.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// Invocation describes one process to start
type Invocation struct {
	Dir    string
	Name   string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

// ExecFunc creates the process for an invocation
type ExecFunc func(ctx context.Context, inv Invocation) Commander

// Runner executes tool invocations
type Runner struct {
	execCommand ExecFunc
	log         logrus.FieldLogger
}

// NewRunner creates a runner backed by os/exec
func NewRunner(log logrus.FieldLogger) *Runner {
	return NewRunnerWithExec(log, func(ctx context.Context, inv Invocation) Commander {
		cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
		cmd.Dir = inv.Dir
		cmd.Stdout = inv.Stdout
		cmd.Stderr = inv.Stderr

		return cmd
	})
}

// NewRunnerWithExec creates a runner with a custom process factory
func NewRunnerWithExec(log logrus.FieldLogger, fn ExecFunc) *Runner {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	return &Runner{execCommand: fn, log: log}
}

// Output runs name in dir and returns its stdout
func (r *Runner) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	var stdout bytes.Buffer
	if err := r.run(ctx, dir, &stdout, name, args); err != nil {
		return "", err
	}

	return stdout.String(), nil
}

// Run runs name in dir, logging its stdout at debug level
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) error {
	var stdout bytes.Buffer
	err := r.run(ctx, dir, &stdout, name, args)

	if out := strings.TrimSpace(stdout.String()); out != "" {
		r.log.WithField("tool", filepath.Base(name)).Debug(out)
	}

	return err
}

func (r *Runner) run(ctx context.Context, dir string, stdout io.Writer, name string, args []string) error {
	var stderr bytes.Buffer

	r.log.WithFields(logrus.Fields{
		"tool": filepath.Base(name),
		"dir":  dir,
	}).Debugf("Running: %s %s", name, strings.Join(args, " "))

	c := r.execCommand(ctx, Invocation{
		Dir:    dir,
		Name:   name,
		Args:   args,
		Stdout: stdout,
		Stderr: &stderr,
	})

	err := c.Run()
	if err == nil {
		return nil
	}

	code := -1
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}

	return &codes.ToolInvocationError{
		Tool:     filepath.Base(name),
		Args:     args,
		ExitCode: code,
		Stderr:   strings.TrimSpace(stderr.String()),
		Err:      err,
	}
}
