// Package execution wires the full pipeline together: validate, authorize,
// resolve references, analyze imports, package for a backend, dispatch, and
// translate whatever comes back into the uniform response envelope.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowrun-ai/codeexec/engine/core"
	"github.com/flowrun-ai/codeexec/engine/jsparse"
	"github.com/flowrun-ai/codeexec/engine/packager"
	"github.com/flowrun-ai/codeexec/engine/provenance"
	"github.com/flowrun-ai/codeexec/engine/resolver"
	"github.com/flowrun-ai/codeexec/engine/runtime"
	"github.com/flowrun-ai/codeexec/pkg/config"
	"github.com/flowrun-ai/codeexec/pkg/logger"
)

// Service is the top-level code execution orchestrator.
type Service struct {
	cfg        *config.Config
	dispatcher *runtime.Dispatcher
	auth       Authorizer
}

// Option configures a Service.
type Option func(*Service)

// WithAuthorizer replaces the permissive default authorizer.
func WithAuthorizer(auth Authorizer) Option {
	return func(s *Service) {
		if auth != nil {
			s.auth = auth
		}
	}
}

// WithDispatcher replaces the dispatcher built from configuration. Tests use
// this to substitute backends.
func WithDispatcher(d *runtime.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// NewService builds a Service with backends derived from cfg: the in-process
// VM always, the remote sandbox only when enabled.
func NewService(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Service{cfg: cfg, auth: AllowAll()}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		dispatcher, err := buildDispatcher(cfg)
		if err != nil {
			return nil, err
		}
		s.dispatcher = dispatcher
	}
	return s, nil
}

func buildDispatcher(cfg *config.Config) (*runtime.Dispatcher, error) {
	rtCfg := runtime.MergeWithDefaults(&runtime.Config{
		VMCapacity:           cfg.Runtime.VMCapacity,
		MaxStdoutBytes:       cfg.Runtime.MaxStdoutBytes,
		SandboxBaseURL:       cfg.Sandbox.BaseURL,
		SandboxAPIKey:        cfg.Sandbox.APIKey,
		SandboxSubmitTimeout: cfg.Sandbox.SubmitTimeout,
		SandboxPollInterval:  cfg.Sandbox.PollInterval,
		SandboxMaxPollDelay:  cfg.Sandbox.MaxPollDelay,
	})
	vm, err := runtime.NewVMRuntime(rtCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build vm runtime: %w", err)
	}
	runtimes := []runtime.Runtime{vm}
	if cfg.Sandbox.Enabled {
		sandbox, err := runtime.NewSandboxRuntime(rtCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build sandbox runtime: %w", err)
		}
		runtimes = append(runtimes, sandbox)
	}
	return runtime.NewDispatcher(runtimes...), nil
}

// Execute runs one request end to end. It always produces a response: every
// pipeline failure, including panics in transformation code, degrades to a
// structured failure envelope.
func (s *Service) Execute(ctx context.Context, req *Request) (resp *Response) {
	started := time.Now()
	execID := core.MustNewID()
	log := logger.FromContext(ctx).With("execution_id", execID.String())
	defer func() {
		if r := recover(); r != nil {
			log.Error("execution pipeline panicked", "panic", r)
			err := core.NewErrorf(core.CodeRuntime, "internal execution failure: %v", r)
			resp = errorResponse(err, time.Since(started))
		}
	}()

	norm, err := s.normalize(req)
	if err != nil {
		return errorResponse(err, time.Since(started))
	}
	if err := s.auth.Authorize(ctx, req); err != nil {
		return errorResponse(coerceAuthError(err), time.Since(started))
	}

	pkg, err := s.prepare(ctx, norm)
	if err != nil {
		return errorResponse(err, time.Since(started))
	}

	outcome, err := s.dispatcher.Execute(ctx, pkg, runtime.RunOptions{
		Timeout: norm.timeout,
		OwnerID: ownerKey(norm),
	})
	elapsed := time.Since(started)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = core.WrapError(core.CodeRuntime, "execution canceled", err)
		}
		return errorResponse(err, elapsed)
	}
	if outcome.Error != nil {
		mapped := provenance.MapError(outcome.Error, pkg)
		log.Debug("execution failed",
			"language", norm.language.String(),
			"backend", string(pkg.Target),
			"errorType", string(mapped.Kind),
			"line", mapped.Line,
		)
		return failureResponse(mapped, outcome.Stdout, elapsed)
	}
	return successResponse(outcome.Result, outcome.Stdout, elapsed)
}

// prepare runs the pre-dispatch half of the pipeline: reference resolution,
// import analysis and packaging.
func (s *Service) prepare(ctx context.Context, norm *normalized) (*packager.Packaged, error) {
	resolved, err := resolver.Resolve(&resolver.Request{
		Code:              norm.req.Code,
		Language:          norm.language,
		Params:            norm.req.Params,
		EnvVars:           norm.req.EnvVars,
		BlockOutputs:      norm.req.BlockData,
		BlockSchemas:      norm.req.BlockOutputSchemas,
		BlockNameMapping:  norm.nameMap,
		WorkflowVariables: norm.req.WorkflowVariables,
	})
	if err != nil {
		return nil, err
	}
	var analysis *jsparse.Analysis
	if norm.language == core.LanguageJavaScript {
		analysis = jsparse.ExtractImports(ctx, resolved.Code)
	}
	return packager.Build(&packager.Input{
		Resolved:       resolved,
		Analysis:       analysis,
		Language:       norm.language,
		Params:         norm.req.Params,
		EnvVars:        norm.req.EnvVars,
		IsCustomTool:   norm.req.IsCustomTool,
		SandboxEnabled: s.cfg.Sandbox.Enabled,
	})
}

func ownerKey(norm *normalized) string {
	if norm.req.OwnerID != "" {
		return norm.req.OwnerID
	}
	return norm.req.WorkflowID
}

func coerceAuthError(err error) error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	return core.WrapError(core.CodeValidation, "request not authorized", err)
}
