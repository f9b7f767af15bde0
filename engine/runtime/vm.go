package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/flowrun-ai/codeexec/engine/packager"
	"github.com/flowrun-ai/codeexec/pkg/logger"
)

// VMScriptName is the filename the in-process VM compiles snippets under.
// Provenance mapping keys off it when parsing stack frames.
const VMScriptName = "snippet.js"

type interruptReason string

const (
	interruptTimeout  interruptReason = "timeout"
	interruptCanceled interruptReason = "canceled"
)

// VMRuntime executes JavaScript in a restricted local goja context: no
// module loading, no host access beyond the injected globals, hard
// interrupt on timeout. A fresh VM per request keeps tenants isolated.
type VMRuntime struct {
	pool      *admissionPool
	maxStdout int
	maxStack  int
}

func NewVMRuntime(config *Config) (*VMRuntime, error) {
	cfg := MergeWithDefaults(config)
	pool, err := newAdmissionPool(cfg.VMCapacity, cfg.OwnerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create VM admission pool: %w", err)
	}
	return &VMRuntime{
		pool:      pool,
		maxStdout: cfg.MaxStdoutBytes,
		maxStack:  cfg.MaxCallStackSize,
	}, nil
}

func (r *VMRuntime) Target() packager.Target {
	return packager.TargetVM
}

func (r *VMRuntime) Run(ctx context.Context, pkg *packager.Packaged, opts RunOptions) (*RawOutcome, error) {
	release, err := r.pool.acquire(ctx, opts.OwnerID)
	if err != nil {
		return nil, &processError{op: "admission", err: err}
	}
	defer release()

	vm := goja.New()
	vm.SetMaxCallStackSize(r.maxStack)
	stdout := newCappedBuffer(r.maxStdout)
	if err := installConsole(vm, stdout); err != nil {
		return nil, &processError{op: "console setup", err: err}
	}
	restrictGlobals(vm)
	for name, value := range pkg.Globals {
		if err := vm.Set(name, value); err != nil {
			return nil, &processError{op: "global injection", err: err}
		}
	}

	program, err := goja.Compile(VMScriptName, pkg.Code, false)
	if err != nil {
		return &RawOutcome{
			Stdout: stdout.String(),
			Error: &RawError{
				Name:    "SyntaxError",
				Message: err.Error(),
				Raw:     err.Error(),
				Compile: true,
			},
		}, nil
	}

	timer := time.AfterFunc(opts.Timeout, func() {
		vm.Interrupt(interruptTimeout)
	})
	defer timer.Stop()
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(interruptCanceled)
		case <-watchDone:
		}
	}()

	start := time.Now()
	value, runErr := vm.RunProgram(program)
	duration := time.Since(start)

	outcome := &RawOutcome{Stdout: stdout.String(), Duration: duration}
	if runErr != nil {
		return r.handleRunError(ctx, vm, runErr, outcome)
	}
	return r.settle(vm, value, outcome), nil
}

// settle resolves the wrapper's promise. The VM has no event loop, so a
// still-pending promise means user code awaited something that can never
// complete here.
func (r *VMRuntime) settle(vm *goja.Runtime, value goja.Value, outcome *RawOutcome) *RawOutcome {
	promise, ok := value.Export().(*goja.Promise)
	if !ok {
		outcome.Result = exportValue(value)
		return outcome
	}
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		outcome.Result = exportValue(promise.Result())
	case goja.PromiseStateRejected:
		outcome.Error = rawErrorFromValue(vm, promise.Result())
	default:
		outcome.Error = &RawError{
			Name:    "Error",
			Message: "execution awaited an operation that never completes in this environment",
			Raw:     "pending promise at end of execution",
		}
	}
	return outcome
}

func (r *VMRuntime) handleRunError(ctx context.Context, vm *goja.Runtime, runErr error, outcome *RawOutcome) (*RawOutcome, error) {
	switch e := runErr.(type) {
	case *goja.InterruptedError:
		if reason, ok := e.Value().(interruptReason); ok && reason == interruptCanceled {
			return nil, &processError{op: "execution", err: ctx.Err()}
		}
		logger.FromContext(ctx).Debug("VM execution interrupted by timeout")
		outcome.Error = &RawError{Message: "execution timed out", Raw: e.String(), Timeout: true}
		return outcome, nil
	case *goja.Exception:
		outcome.Error = rawErrorFromValue(vm, e.Value())
		if outcome.Error.Stack == "" {
			outcome.Error.Stack = e.String()
		}
		outcome.Error.Raw = e.String()
		return outcome, nil
	default:
		return nil, &processError{op: "execution", err: runErr}
	}
}

// rawErrorFromValue pulls name/message/stack off a thrown value, preferring
// the stack the wrapper stashed before rethrowing.
func rawErrorFromValue(vm *goja.Runtime, value goja.Value) *RawError {
	raw := &RawError{Name: "Error"}
	if value == nil {
		raw.Message = "unknown error"
		return raw
	}
	raw.Message = value.String()
	if obj := value.ToObject(vm); obj != nil {
		if v := obj.Get("name"); v != nil && !goja.IsUndefined(v) {
			raw.Name = v.String()
		}
		if v := obj.Get("message"); v != nil && !goja.IsUndefined(v) {
			raw.Message = v.String()
		}
		if v := obj.Get("stack"); v != nil && !goja.IsUndefined(v) {
			raw.Stack = v.String()
		}
	}
	if raw.Stack == "" {
		if v := vm.GlobalObject().Get(packager.VMErrorStackGlobal); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			raw.Stack = v.String()
		}
	}
	raw.Raw = raw.Stack
	return raw
}

func exportValue(value goja.Value) any {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil
	}
	return value.Export()
}

// restrictGlobals removes escape hatches the restricted VM must not offer.
func restrictGlobals(vm *goja.Runtime) {
	vm.Set("eval", goja.Undefined())
	vm.Set("Function", goja.Undefined())
}

// installConsole routes console output into the capped stdout buffer,
// mirroring what users see from the remote backend.
func installConsole(vm *goja.Runtime, stdout *cappedBuffer) error {
	console := vm.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, formatConsoleArg(arg))
		}
		stdout.WriteLine(strings.Join(parts, " "))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(name, logFn); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

func formatConsoleArg(value goja.Value) string {
	if value == nil || goja.IsUndefined(value) {
		return "undefined"
	}
	if goja.IsNull(value) {
		return "null"
	}
	exported := value.Export()
	switch exported.(type) {
	case map[string]any, []any:
		if data, err := json.Marshal(exported); err == nil {
			return string(data)
		}
	}
	return value.String()
}
