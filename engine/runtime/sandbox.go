package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"github.com/flowrun-ai/codeexec/engine/core"
	"github.com/flowrun-ai/codeexec/engine/packager"
	"github.com/flowrun-ai/codeexec/pkg/logger"
)

// pollGrace is added on top of the execution timeout before the poll loop
// gives up, covering sandbox scheduling overhead without letting "backend
// never completes" hang the request.
const pollGrace = 5 * time.Second

var errJobRunning = errors.New("sandbox job still running")

// SandboxRuntime talks to the remote ephemeral sandbox over its job API:
// submit, poll until terminal, best-effort cancel. The sandbox's primary
// result channel is captured stdout; the sentinel-tagged result line is
// decoded here, everything else passes through verbatim for the
// provenance mapper.
type SandboxRuntime struct {
	client       *resty.Client
	pollInterval time.Duration
	maxPollDelay time.Duration
	maxStdout    int
}

type submitRequest struct {
	Language  string `json:"language"`
	Code      string `json:"code"`
	TimeoutMs int64  `json:"timeout_ms"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type jobStatus struct {
	Status    string `json:"status"`
	Stdout    string `json:"stdout"`
	Error     string `json:"error"`
	ErrorName string `json:"error_name"`
}

func NewSandboxRuntime(config *Config) (*SandboxRuntime, error) {
	cfg := MergeWithDefaults(config)
	if cfg.SandboxBaseURL == "" {
		return nil, core.NewError(core.CodeConfiguration, "sandbox base URL is not configured")
	}
	client := resty.New().
		SetBaseURL(cfg.SandboxBaseURL).
		SetTimeout(cfg.SandboxSubmitTimeout).
		SetHeader("Content-Type", "application/json")
	if cfg.SandboxAPIKey != "" {
		client.SetAuthToken(cfg.SandboxAPIKey)
	}
	return &SandboxRuntime{
		client:       client,
		pollInterval: cfg.SandboxPollInterval,
		maxPollDelay: cfg.SandboxMaxPollDelay,
		maxStdout:    cfg.MaxStdoutBytes,
	}, nil
}

func (r *SandboxRuntime) Target() packager.Target {
	return packager.TargetSandbox
}

func (r *SandboxRuntime) Run(ctx context.Context, pkg *packager.Packaged, opts RunOptions) (*RawOutcome, error) {
	start := time.Now()
	jobID, err := r.submit(ctx, pkg, opts)
	if err != nil {
		return nil, err
	}
	status, err := r.await(ctx, jobID, opts.Timeout)
	duration := time.Since(start)
	if err != nil {
		r.cancelAsync(jobID)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return &RawOutcome{
				Duration: duration,
				Error:    &RawError{Message: "execution timed out", Raw: "sandbox job did not complete in time", Timeout: true},
			}, nil
		}
		return nil, err
	}
	return r.outcome(status, duration), nil
}

func (r *SandboxRuntime) submit(ctx context.Context, pkg *packager.Packaged, opts RunOptions) (string, error) {
	var out submitResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(&submitRequest{
			Language:  pkg.Language.String(),
			Code:      pkg.Code,
			TimeoutMs: opts.Timeout.Milliseconds(),
		}).
		SetResult(&out).
		Post("/v1/executions")
	if err != nil {
		return "", core.WrapError(core.CodeBackendUnavailable, "failed to submit sandbox job", err)
	}
	if resp.IsError() {
		return "", core.NewErrorf(core.CodeBackendUnavailable,
			"sandbox rejected submission: %s", resp.Status())
	}
	if out.ID == "" {
		return "", core.NewError(core.CodeBackendUnavailable, "sandbox returned no job id")
	}
	return out.ID, nil
}

// await polls the job until it reaches a terminal state, enforcing an
// overall deadline independent of the sandbox's internal timeout.
func (r *SandboxRuntime) await(ctx context.Context, jobID string, timeout time.Duration) (*jobStatus, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout+pollGrace)
	defer cancel()
	backoff := retry.WithCappedDuration(r.maxPollDelay, retry.NewExponential(r.pollInterval))
	var status jobStatus
	err := retry.Do(pollCtx, backoff, func(ctx context.Context) error {
		resp, err := r.client.R().
			SetContext(ctx).
			SetResult(&status).
			Get(fmt.Sprintf("/v1/executions/%s", jobID))
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.IsError() {
			return retry.RetryableError(fmt.Errorf("sandbox status check failed: %s", resp.Status()))
		}
		switch status.Status {
		case "completed", "failed":
			return nil
		default:
			return retry.RetryableError(errJobRunning)
		}
	})
	if err != nil {
		if pollCtx.Err() != nil {
			return nil, pollCtx.Err()
		}
		return nil, core.WrapError(core.CodeBackendUnavailable, "sandbox polling failed", err)
	}
	return &status, nil
}

// cancelAsync fires a best-effort job cancellation without blocking request
// teardown on its acknowledgement.
func (r *SandboxRuntime) cancelAsync(jobID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := r.client.R().SetContext(ctx).Delete(fmt.Sprintf("/v1/executions/%s", jobID)); err != nil {
			logger.FromContext(ctx).Debug("sandbox job cancellation failed", "job_id", jobID, "error", err)
		}
	}()
}

func (r *SandboxRuntime) outcome(status *jobStatus, duration time.Duration) *RawOutcome {
	stdout := status.Stdout
	if len(stdout) > r.maxStdout {
		stdout = stdout[:r.maxStdout] + truncationMarker
	}
	result, stdout := extractSentinel(stdout)
	outcome := &RawOutcome{Result: result, Stdout: stdout, Duration: duration}
	if status.Status == "failed" {
		outcome.Result = nil
		outcome.Error = &RawError{
			Name:    status.ErrorName,
			Message: status.Error,
			Raw:     status.Error,
		}
	}
	return outcome
}

// extractSentinel pulls the sentinel-tagged result line out of captured
// stdout. The remaining lines are user-visible output.
func extractSentinel(stdout string) (any, string) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if !strings.HasPrefix(lines[i], packager.ResultSentinel) {
			continue
		}
		payload := strings.TrimPrefix(lines[i], packager.ResultSentinel)
		var result any
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			result = payload
		}
		lines = append(lines[:i], lines[i+1:]...)
		return result, strings.Join(lines, "\n")
	}
	return nil, stdout
}
