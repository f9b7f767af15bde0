package runtime

import (
	"context"
	"errors"

	"github.com/flowrun-ai/codeexec/engine/core"
	"github.com/flowrun-ai/codeexec/engine/packager"
	"github.com/flowrun-ai/codeexec/pkg/logger"
)

// Dispatcher routes packaged code to the backend the packager selected.
// It holds no backend-specific logic beyond the routing table.
type Dispatcher struct {
	runtimes map[packager.Target]Runtime
}

func NewDispatcher(runtimes ...Runtime) *Dispatcher {
	table := make(map[packager.Target]Runtime, len(runtimes))
	for _, rt := range runtimes {
		table[rt.Target()] = rt
	}
	return &Dispatcher{runtimes: table}
}

// Execute runs packaged code on its selected backend. Infrastructure
// failures come back as error; user-code failures live in the outcome.
func (d *Dispatcher) Execute(ctx context.Context, pkg *packager.Packaged, opts RunOptions) (*RawOutcome, error) {
	rt, ok := d.runtimes[pkg.Target]
	if !ok {
		return nil, core.NewErrorf(core.CodeConfiguration,
			"no %s backend is configured", pkg.Target)
	}
	log := logger.FromContext(ctx)
	log.Debug("dispatching execution",
		"backend", string(pkg.Target),
		"language", pkg.Language.String(),
		"timeout", opts.Timeout,
	)
	outcome, err := rt.Run(ctx, pkg, opts)
	switch {
	case err != nil:
		recordExecution(ctx, pkg, outcomeError, 0)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		var ce *core.Error
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, core.WrapError(core.CodeBackendUnavailable, "backend execution failed", err)
	case outcome.Error != nil && outcome.Error.Timeout:
		recordExecution(ctx, pkg, outcomeTimeout, outcome.Duration)
	case outcome.Error != nil:
		recordExecution(ctx, pkg, outcomeFailure, outcome.Duration)
	default:
		recordExecution(ctx, pkg, outcomeSuccess, outcome.Duration)
	}
	return outcome, nil
}
