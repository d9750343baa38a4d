// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for jacbench commands
const (
	ExitSuccess                    = 0
	ExitExecutionFailed            = 1
	ExitInvalidRequest             = 2
	ExitMissingInput               = 3
	ExitProviderError              = 4
	ExitMissingInputNonInteractive = 70 // Missing inputs in non-interactive mode (EX_SOFTWARE from sysexits.h)
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

func newExitError(code int, msg string, cause error) *ExitError {
	return &ExitError{Code: code, Message: msg, Cause: cause}
}

// NewExecutionError creates an error for run or evaluation failures.
func NewExecutionError(msg string, cause error) *ExitError {
	return newExitError(ExitExecutionFailed, msg, cause)
}

// NewInvalidRequestError creates an error for malformed submissions or
// arguments the daemon rejected.
func NewInvalidRequestError(msg string, cause error) *ExitError {
	return newExitError(ExitInvalidRequest, msg, cause)
}

// NewMissingInputError creates an error for missing required inputs.
func NewMissingInputError(msg string, cause error) *ExitError {
	return newExitError(ExitMissingInput, msg, cause)
}

// NewProviderError creates an error for model provider failures.
func NewProviderError(msg string, cause error) *ExitError {
	return newExitError(ExitProviderError, msg, cause)
}

// NewMissingInputNonInteractiveError creates an error for required inputs
// that cannot be prompted for in non-interactive mode.
func NewMissingInputNonInteractiveError(msg string, cause error) *ExitError {
	return newExitError(ExitMissingInputNonInteractive, msg, cause)
}

// HandleExitError checks if an error is an ExitError and exits with the appropriate code
func HandleExitError(err error) {
	if err == nil {
		return
	}

	code := ExitExecutionFailed
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}

	if msg := err.Error(); msg != "" {
		fmt.Fprintln(os.Stderr, "Error:", msg)
	}
	printGuidance(err)

	os.Exit(code)
}

// printGuidance walks the error chain for an error that carries remedial
// guidance (such as the daemon-not-running error) and prints it.
func printGuidance(err error) {
	for err != nil {
		if guided, ok := err.(interface{ Guidance() string }); ok {
			if g := guided.Guidance(); g != "" {
				fmt.Fprintf(os.Stderr, "\n%s\n", g)
			}
			return
		}

		err = errors.Unwrap(err)
	}
}
