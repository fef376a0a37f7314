package codes

import (
	"errors"
)

// Process exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1

	// ExitOverrideNotApplicable tells calling automation that the requested
	// override target is not part of the overlay. It is not a failure.
	ExitOverrideNotApplicable = 77
)

// ExitCodes maps process exit codes to their descriptions
var ExitCodes = map[int]string{
	ExitSuccess:               "Success",
	ExitFailure:               "General failure",
	ExitOverrideNotApplicable: "Override target not present in overlay",
}

// IsSuccess returns true if the exit code should not be treated as a failure
// by calling automation
func IsSuccess(code int) bool {
	return code == ExitSuccess || code == ExitOverrideNotApplicable
}

// GetErrorMessage returns the description for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ExitCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}

// ExitCode returns the process exit code for an error returned by a command
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, ErrOverrideNotApplicable) {
		return ExitOverrideNotApplicable
	}

	return ExitFailure
}
