package execution

import (
	"strings"
	"time"

	"github.com/flowrun-ai/codeexec/engine/core"
	"github.com/flowrun-ai/codeexec/engine/provenance"
)

// Response is the uniform execution envelope. Success and failure share the
// same shape so callers can always read output.stdout.
type Response struct {
	Success bool   `json:"success"`
	Output  Output `json:"output"`
	Error   string `json:"error,omitempty"`
	Debug   *Debug `json:"debug,omitempty"`
}

// Output carries the execution result and captured stdout.
type Output struct {
	Result any    `json:"result"`
	Stdout string `json:"stdout"`
	// ExecutionTime is wall-clock dispatch-to-completion time in
	// milliseconds.
	ExecutionTime int64 `json:"executionTime"`
}

// Debug carries user-coordinate error provenance for failure responses.
type Debug struct {
	ErrorType   string `json:"errorType"`
	Line        int    `json:"line,omitempty"`
	Column      int    `json:"column,omitempty"`
	LineContent string `json:"lineContent,omitempty"`
	Stack       string `json:"stack,omitempty"`
}

func successResponse(result any, stdout string, elapsed time.Duration) *Response {
	return &Response{
		Success: true,
		Output: Output{
			Result:        result,
			Stdout:        trimStdout(stdout),
			ExecutionTime: elapsed.Milliseconds(),
		},
	}
}

func failureResponse(mapped *provenance.Mapped, stdout string, elapsed time.Duration) *Response {
	resp := &Response{
		Output: Output{
			Stdout:        trimStdout(stdout),
			ExecutionTime: elapsed.Milliseconds(),
		},
		Error: mapped.Message,
		Debug: &Debug{
			ErrorType:   string(mapped.Kind),
			Line:        mapped.Line,
			Column:      mapped.Column,
			LineContent: mapped.LineText,
			Stack:       mapped.Stack,
		},
	}
	return resp
}

// errorResponse renders a pipeline error that never reached a backend, such
// as validation or configuration failures.
func errorResponse(err error, elapsed time.Duration) *Response {
	return &Response{
		Output: Output{ExecutionTime: elapsed.Milliseconds()},
		Error:  err.Error(),
		Debug:  &Debug{ErrorType: string(core.CodeOf(err))},
	}
}

// trimStdout removes exactly one trailing newline. A print statement's own
// newline is formatting, not payload, but any further blank lines the user
// emitted are preserved.
func trimStdout(stdout string) string {
	return strings.TrimSuffix(stdout, "\n")
}
