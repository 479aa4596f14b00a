package commands

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitLeadsFailed = 1
	ExitAborted     = 2
)

// ExitError carries the exit code a command wants the process to end with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func aborted(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return &ExitError{Code: ExitAborted, Err: err}
}

func leadsFailed(n int) error {
	return &ExitError{Code: ExitLeadsFailed, Err: fmt.Errorf("%d lead(s) failed during the pass", n)}
}

// ExitCode maps a command error to a process exit code. Errors that do not
// carry a code exit with 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
