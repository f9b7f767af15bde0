package execution

import (
	"time"

	"github.com/flowrun-ai/codeexec/engine/core"
)

// Request is one code execution request as callers submit it. Language and
// timeout arrive in caller-friendly shapes and are normalized before the
// pipeline sees them.
type Request struct {
	Code     string        `json:"code"`
	Language string        `json:"language"`
	Timeout  time.Duration `json:"timeout,omitempty"`

	Params  core.Input  `json:"params,omitempty"`
	EnvVars core.EnvMap `json:"envVars,omitempty"`

	// BlockData holds upstream block outputs keyed by block ID.
	BlockData map[string]core.Output `json:"blockData,omitempty"`
	// BlockNameMapping maps normalized display names to block IDs.
	BlockNameMapping map[string]string `json:"blockNameMapping,omitempty"`
	// BlockOutputSchemas holds declared output shapes for blocks that have
	// not produced data yet, keyed by block ID.
	BlockOutputSchemas map[string]core.Output `json:"blockOutputSchemas,omitempty"`

	WorkflowVariables map[string]core.WorkflowVariable `json:"workflowVariables,omitempty"`
	WorkflowID        string                           `json:"workflowId,omitempty"`

	// IsCustomTool marks trusted platform-authored JavaScript, which always
	// runs in the in-process VM and has its params re-exposed as locals.
	IsCustomTool bool `json:"isCustomTool,omitempty"`

	// OwnerID keys fairness admission. Empty means unattributed.
	OwnerID string `json:"-"`
}

// normalized is the validated form of a Request the pipeline operates on.
type normalized struct {
	req      *Request
	language core.Language
	timeout  time.Duration
	nameMap  map[string]string
}

// normalize validates a request and fills defaults. Validation failures are
// structured errors the formatter renders directly.
func (s *Service) normalize(req *Request) (*normalized, error) {
	if req == nil {
		return nil, core.NewError(core.CodeValidation, "request is required")
	}
	if req.Code == "" {
		return nil, core.NewError(core.CodeValidation, "code is required")
	}
	language, ok := core.ParseLanguage(req.Language)
	if !ok {
		return nil, core.NewErrorf(core.CodeValidation,
			"unsupported language %q (supported: javascript, python)", req.Language).
			WithDetail("language", req.Language)
	}
	timeout := req.Timeout
	if timeout < 0 {
		return nil, core.NewError(core.CodeValidation, "timeout must not be negative")
	}
	if timeout == 0 {
		timeout = s.cfg.Runtime.DefaultTimeout
	}
	if timeout > s.cfg.Runtime.MaxTimeout {
		timeout = s.cfg.Runtime.MaxTimeout
	}
	// Name mapping keys are display names; normalize them once so lookups
	// during resolution stay case and whitespace insensitive.
	nameMap := make(map[string]string, len(req.BlockNameMapping))
	for name, id := range req.BlockNameMapping {
		nameMap[core.NormalizeName(name)] = id
	}
	return &normalized{req: req, language: language, timeout: timeout, nameMap: nameMap}, nil
}
