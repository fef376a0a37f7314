package codes

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOverrideNotApplicable is returned when an override names a source that
// no component of the overlay uses.
var ErrOverrideNotApplicable = errors.New("override target not present in overlay")

// ConfigError reports a missing key or an invalid value in the overlay,
// the snapshot or the tool configuration.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Msg
}

// ConfigErrorf creates a ConfigError with a formatted message
func ConfigErrorf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// MissingKey creates a ConfigError for a required key that is absent
func MissingKey(key string) error {
	return &ConfigError{Msg: fmt.Sprintf("missing config key %s", key)}
}

// ToolInvocationError reports an external tool that could not be started
// or exited non-zero.
type ToolInvocationError struct {
	Tool     string
	Args     []string
	ExitCode int // -1 if the tool did not run to completion
	Stderr   string
	Err      error
}

func (e *ToolInvocationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Tool, strings.Join(e.Args, " "))
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, ": exited with code %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, " (stderr: %s)", e.Stderr)
	}

	return b.String()
}

func (e *ToolInvocationError) Unwrap() error {
	return e.Err
}

// AmbiguousArtifactError reports an external step that produced zero or
// several results where exactly one was expected.
type AmbiguousArtifactError struct {
	Dir     string
	Pattern string
	Found   []string
}

func (e *AmbiguousArtifactError) Error() string {
	if len(e.Found) == 0 {
		return fmt.Sprintf("no %s found in %s", e.Pattern, e.Dir)
	}

	return fmt.Sprintf("multiple %s found in %s: %s", e.Pattern, e.Dir, strings.Join(e.Found, ", "))
}
