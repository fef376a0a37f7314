package toolexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
)

// mockCommander implements Commander interface for testing
type mockCommander struct {
	runFunc func() error
}

func (m *mockCommander) Run() error {
	return m.runFunc()
}

type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitStatus) ExitCode() int { return int(e) }

func TestRunner_Output(t *testing.T) {
	var got Invocation
	r := NewRunnerWithExec(nil, func(ctx context.Context, inv Invocation) Commander {
		got = inv
		return &mockCommander{runFunc: func() error {
			_, err := io.WriteString(inv.Stdout, "v1.0-3-gabcdef0123\n")
			return err
		}}
	})

	out, err := r.Output(context.Background(), "/srv/mirror", "git", "describe", "--tags")
	require.NoError(t, err)
	assert.Equal(t, "v1.0-3-gabcdef0123\n", out)
	assert.Equal(t, "/srv/mirror", got.Dir)
	assert.Equal(t, "git", got.Name)
	assert.Equal(t, []string{"describe", "--tags"}, got.Args)
}

func TestRunner_ExitError(t *testing.T) {
	r := NewRunnerWithExec(nil, func(ctx context.Context, inv Invocation) Commander {
		return &mockCommander{runFunc: func() error {
			_, _ = io.WriteString(inv.Stderr, "error: bad revision\n")
			return exitStatus(128)
		}}
	})

	err := r.Run(context.Background(), "", "/usr/bin/git", "checkout", "nope")
	require.Error(t, err)

	var toolErr *codes.ToolInvocationError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "git", toolErr.Tool)
	assert.Equal(t, 128, toolErr.ExitCode)
	assert.Equal(t, "error: bad revision", toolErr.Stderr)
	assert.Equal(t, []string{"checkout", "nope"}, toolErr.Args)
	assert.Contains(t, err.Error(), "exited with code 128")
	assert.Equal(t, codes.ExitFailure, codes.ExitCode(err))
}

func TestRunner_StartError(t *testing.T) {
	notFound := errors.New("executable file not found in $PATH")
	r := NewRunnerWithExec(nil, func(ctx context.Context, inv Invocation) Commander {
		return &mockCommander{runFunc: func() error { return notFound }}
	})

	err := r.Run(context.Background(), "", "mockchain")
	require.Error(t, err)

	var toolErr *codes.ToolInvocationError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, -1, toolErr.ExitCode)
	assert.ErrorIs(t, err, notFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestNewRunner(t *testing.T) {
	r := NewRunner(nil)
	assert.NotNil(t, r)
	assert.NotNil(t, r.execCommand)
}

func TestNewRunner_RealProcess(t *testing.T) {
	r := NewRunner(nil)

	out, err := r.Output(context.Background(), t.TempDir(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	err = r.Run(context.Background(), "", "sh", "-c", "echo oops >&2; exit 3")
	var toolErr *codes.ToolInvocationError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Equal(t, "oops", toolErr.Stderr)
}
