// Package packager turns resolved user code into a self-contained
// executable unit for one of the two isolation backends, tracking exactly
// how many lines it inserted before the user body. That count is the single
// source of truth for error line mapping and is only ever computed by
// counting emitted lines, never estimated.
package packager

import (
	"sort"
	"strings"

	"github.com/flowrun-ai/codeexec/engine/core"
	"github.com/flowrun-ai/codeexec/engine/jsparse"
	"github.com/flowrun-ai/codeexec/engine/resolver"
)

// ResultSentinel prefixes the stringified result on the remote sandbox's
// stdout channel.
const ResultSentinel = "__SIM_RESULT__="

// Target names an isolation backend.
type Target string

const (
	// TargetVM is the in-process restricted VM: no module loading, no I/O.
	TargetVM Target = "vm"
	// TargetSandbox is the remote ephemeral sandbox used for snippets that
	// need external modules or non-JS languages.
	TargetSandbox Target = "sandbox"
)

// Packaged is the final source handed to a backend.
type Packaged struct {
	Code     string
	Language core.Language
	Target   Target
	// PrologueLineCount is the number of newline-terminated lines emitted
	// before the first line of user code.
	PrologueLineCount int
	// UserCode is the resolved, pre-wrap user body. Error provenance reads
	// offending line text from here, never from Code.
	UserCode string
	// UserLineCount bounds line clamping for syntax errors reported past
	// the end of user code.
	UserLineCount int
	// Globals carries the context values the in-process VM injects as
	// globals instead of emitting prologue declarations. Nil for the
	// sandbox target, whose file is fully self-contained.
	Globals map[string]any
}

// Input carries everything packaging needs.
type Input struct {
	Resolved       *resolver.Resolved
	Analysis       *jsparse.Analysis // nil for Python
	Language       core.Language
	Params         core.Input
	EnvVars        core.EnvMap
	IsCustomTool   bool
	SandboxEnabled bool
}

// SelectTarget is the pure backend-selection policy.
//
//   - Python always requires the remote sandbox.
//   - JavaScript requires it only when external-module usage is present.
//   - Trusted custom-tool JavaScript always runs in the in-process VM.
func SelectTarget(language core.Language, usesModules, isCustomTool, sandboxEnabled bool) (Target, error) {
	if language == core.LanguagePython {
		if !sandboxEnabled {
			return "", core.NewError(core.CodeConfiguration,
				"Python execution requires the remote sandbox, which is not configured")
		}
		return TargetSandbox, nil
	}
	if isCustomTool {
		return TargetVM, nil
	}
	if usesModules {
		if !sandboxEnabled {
			return "", core.NewError(core.CodeConfiguration,
				"code with external imports requires the remote sandbox, which is not configured")
		}
		return TargetSandbox, nil
	}
	return TargetVM, nil
}

// Build selects a backend and wraps the resolved body for it.
func Build(in *Input) (*Packaged, error) {
	usesModules := in.Analysis != nil && in.Analysis.UsesModules()
	target, err := SelectTarget(in.Language, usesModules, in.IsCustomTool, in.SandboxEnabled)
	if err != nil {
		return nil, err
	}
	body := in.Resolved.Code
	if in.Language == core.LanguageJavaScript && in.Analysis != nil && target == TargetSandbox {
		// The sandbox file hoists the extracted imports; the body keeps its
		// blank placeholder lines so user line numbers survive.
		body = in.Analysis.Code
	}
	pkg := &Packaged{
		Language:      in.Language,
		Target:        target,
		UserCode:      body,
		UserLineCount: lineCount(body),
	}
	switch {
	case in.Language == core.LanguagePython:
		buildPython(pkg, in)
	case target == TargetVM:
		buildVMJavaScript(pkg, in)
	default:
		buildSandboxJavaScript(pkg, in)
	}
	return pkg, nil
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// sortedParamNames returns the param keys that are safe to re-expose as
// identifiers, in stable order.
func sortedParamNames(params core.Input) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		if isIdentifier(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
