package tools

import (
	"fmt"
	"hash/fnv"
)

// ExecutionError wraps an unexpected failure inside a tool handler.
// The wrapped cause is for the local log only; Message is the generic
// text that crosses the channel, carrying a stable diagnostic code so
// a remote report can be matched to local log lines without exposing
// internals.
type ExecutionError struct {
	Tool string
	Err  error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Message returns the generic user-facing text for this failure.
func (e *ExecutionError) Message() string {
	return fmt.Sprintf("The operation failed (code %s). Please try again.", DiagnosticCode(e.Tool))
}

// DiagnosticCode derives a stable fingerprint from a tool name. The
// same tool always yields the same code, and the code reveals nothing
// about the underlying error.
func DiagnosticCode(tool string) string {
	h := fnv.New32a()
	h.Write([]byte(tool))
	return fmt.Sprintf("E%04X", h.Sum32()&0xFFFF)
}
