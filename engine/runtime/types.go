package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/flowrun-ai/codeexec/engine/packager"
)

// Runtime is the capability interface every isolation backend implements.
// Selection happens in the packager; the dispatcher only routes.
type Runtime interface {
	Target() packager.Target
	// Run executes packaged code. Infrastructure failures (transport,
	// misconfiguration) come back as error; user-code failures including
	// timeout are reported inside RawOutcome.
	Run(ctx context.Context, pkg *packager.Packaged, opts RunOptions) (*RawOutcome, error)
}

// RunOptions carries per-invocation execution settings.
type RunOptions struct {
	Timeout time.Duration
	// OwnerID keys fairness admission so one tenant's burst cannot starve
	// another's.
	OwnerID string
}

// RawOutcome is a backend's uninterpreted result. Raw diagnostics keep
// backend-internal line numbers; the provenance mapper owns translating
// them.
type RawOutcome struct {
	Result   any
	Stdout   string
	Error    *RawError
	Duration time.Duration
}

// RawError is a backend-reported failure, verbatim.
type RawError struct {
	// Name is the backend-reported error class (TypeError, SyntaxError...)
	// when one is known.
	Name    string
	Message string
	Stack   string
	// Raw preserves the complete diagnostic text exactly as the backend
	// produced it.
	Raw string
	// Timeout marks wall-clock budget exhaustion; it never coexists with a
	// partial success.
	Timeout bool
	// Compile marks diagnostics produced before execution started.
	Compile bool
}

// processError wraps backend infrastructure failures with the operation
// that produced them.
type processError struct {
	op  string
	err error
}

func (e *processError) Error() string {
	return fmt.Sprintf("backend %s failed: %v", e.op, e.err)
}

func (e *processError) Unwrap() error {
	return e.err
}
