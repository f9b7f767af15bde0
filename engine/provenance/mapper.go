// Package provenance recovers the user-visible source location of an error
// from a transformed, wrapped execution artifact. Backends report line
// numbers in packaged-file coordinates; this package subtracts the
// packager's recorded prologue offset and re-reads the offending line from
// the original, pre-wrap user code.
package provenance

import (
	"fmt"
	"strings"

	"github.com/flowrun-ai/codeexec/engine/core"
	"github.com/flowrun-ai/codeexec/engine/packager"
	"github.com/flowrun-ai/codeexec/engine/runtime"
)

// Location is the fully derived position of an error, in both raw
// (packaged-file) and adjusted (user-visible) coordinates.
type Location struct {
	RawLine    int
	RawColumn  int
	Line       int
	Column     int
	SourceLine string
}

// Mapped is the classified, user-facing rendition of a backend failure.
type Mapped struct {
	Kind    core.ErrorCode
	Name    string // backend-reported error class, e.g. "TypeError"
	Label   string // human rendering, e.g. "Type Error"
	Message string
	Line    int // 0 when no location could be recovered
	Column  int
	// LineText is the trimmed text of the offending user line.
	LineText string
	Stack    string
}

// MapError translates a raw backend failure into user coordinates. It
// never fails: when no line can be confidently recovered the result simply
// carries no location.
func MapError(raw *runtime.RawError, pkg *packager.Packaged) *Mapped {
	if raw == nil {
		return &Mapped{Kind: core.CodeRuntime, Label: "Runtime Error", Message: "unknown execution error"}
	}
	if raw.Timeout {
		msg := raw.Message
		if msg == "" {
			msg = "execution timed out"
		}
		return &Mapped{Kind: core.CodeTimeout, Label: "Timeout", Message: msg}
	}

	name := errorName(raw)
	mapped := &Mapped{
		Name:    name,
		Label:   labelFor(name),
		Kind:    kindFor(name, raw),
		Message: cleanMessage(raw, pkg),
		Stack:   raw.Stack,
	}

	loc, ok := locate(raw, pkg)
	if !ok {
		return mapped
	}
	mapped.Line = loc.Line
	mapped.Column = loc.Column
	mapped.LineText = loc.SourceLine
	if loc.SourceLine != "" {
		mapped.Message = fmt.Sprintf("Line %d: `%s`: %s", loc.Line, loc.SourceLine, mapped.Message)
	}
	return mapped
}

// locate extracts the packaged-file position from the raw diagnostic and
// converts it to user coordinates. Positions that land inside the prologue
// are discarded; syntax errors reported past the end of user code clamp to
// the last user line, since an unterminated block only fails to parse once
// the wrapper's closing tokens are reached.
func locate(raw *runtime.RawError, pkg *packager.Packaged) (*Location, bool) {
	rawLine, rawCol, ok := extractPosition(raw, pkg)
	if !ok {
		return nil, false
	}
	line := rawLine - pkg.PrologueLineCount
	if line < 1 {
		return nil, false
	}
	col := rawCol
	if line > pkg.UserLineCount {
		if !isSyntaxError(raw) {
			return nil, false
		}
		line = pkg.UserLineCount
		col = 0
	}
	if line < 1 {
		return nil, false
	}
	return &Location{
		RawLine:    rawLine,
		RawColumn:  rawCol,
		Line:       line,
		Column:     col,
		SourceLine: userLine(pkg.UserCode, line),
	}, true
}

func userLine(code string, line int) string {
	lines := strings.Split(code, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}

func isSyntaxError(raw *runtime.RawError) bool {
	if raw.Compile {
		return true
	}
	name := errorName(raw)
	return name == "SyntaxError" || name == "IndentationError"
}

func kindFor(name string, raw *runtime.RawError) core.ErrorCode {
	if raw.Compile || name == "SyntaxError" || name == "IndentationError" {
		return core.CodeCompile
	}
	return core.CodeRuntime
}
