package provenance

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/flowrun-ai/codeexec/engine/core"
	"github.com/flowrun-ai/codeexec/engine/packager"
	"github.com/flowrun-ai/codeexec/engine/runtime"
)

var (
	// In-process VM diagnostics reference the compiled script by name, in
	// two shapes: stack frames ("at snippet.js:6:3") and compile errors
	// ("SyntaxError: snippet.js: Line 6:3 Unexpected token").
	vmPositionRe = regexp.MustCompile(regexp.QuoteMeta(runtime.VMScriptName) + `:(\d+):(\d+)`)
	vmCompileRe  = regexp.MustCompile(regexp.QuoteMeta(runtime.VMScriptName) + `: Line (\d+):(\d+)`)

	// Remote JS diagnostics: stack-frame style (any .js path), compiler
	// style "(line:col)", and pointer lines "> 12 | const x = ...".
	jsFrameRe    = regexp.MustCompile(`\.[cm]?js:(\d+):(\d+)`)
	jsCompilerRe = regexp.MustCompile(`\((\d+):(\d+)\)`)
	jsPointerRe  = regexp.MustCompile(`(?m)^\s*>\s*(\d+)\s*\|`)

	// Remote Python diagnostics: Jupyter-style cell references and classic
	// traceback file references.
	pyCellRe = regexp.MustCompile(`Cell In\[\d+\],\s*line\s+(\d+)`)
	pyFileRe = regexp.MustCompile(`File "[^"]*",\s*line\s+(\d+)`)
	pyLineRe = regexp.MustCompile(`(?i)\bline\s+(\d+)`)

	// Error-name extraction from free-text diagnostics.
	namedErrorRe = regexp.MustCompile(`\b([A-Za-z]+(?:Error|Exception))\b`)

	// Message-cleaning patterns: backend-internal path fragments and
	// redundant location fragments in either VM diagnostic shape.
	filePathRe       = regexp.MustCompile(`(?:file://)?/[^\s:()"]+/([^\s:()/"]+\.(?:[cm]?js|py|ts))`)
	vmSuffixRe       = regexp.MustCompile(`\s+at\s+\S*` + regexp.QuoteMeta(runtime.VMScriptName) + `:\d+:\d+(?:\(\d+\))?`)
	vmCompileLocRe   = regexp.MustCompile(`(?:SyntaxError: )?` + regexp.QuoteMeta(runtime.VMScriptName) + `: Line \d+:\d+\s*`)
	locationSuffixRe = regexp.MustCompile(`\s*\(\d+:\d+\)\s*$`)
)

// extractPosition pulls the packaged-file line/column out of the raw
// diagnostic, trying the backend- and language-specific shapes in order of
// reliability.
func extractPosition(raw *runtime.RawError, pkg *packager.Packaged) (int, int, bool) {
	text := raw.Stack
	if text == "" {
		text = raw.Raw
	}
	if text == "" {
		text = raw.Message
	}
	if pkg.Target == packager.TargetVM {
		for _, re := range []*regexp.Regexp{vmPositionRe, vmCompileRe} {
			if m := re.FindStringSubmatch(text); m != nil {
				return atoi(m[1]), atoi(m[2]), true
			}
			// Compile diagnostics sometimes carry only the message text.
			if m := re.FindStringSubmatch(raw.Message); m != nil {
				return atoi(m[1]), atoi(m[2]), true
			}
		}
		return 0, 0, false
	}
	if pkg.Language == core.LanguagePython {
		for _, re := range []*regexp.Regexp{pyCellRe, pyFileRe, pyLineRe} {
			if m := re.FindStringSubmatch(text); m != nil {
				return atoi(m[1]), 0, true
			}
		}
		return 0, 0, false
	}
	for _, re := range []*regexp.Regexp{jsFrameRe, jsCompilerRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			return atoi(m[1]), atoi(m[2]), true
		}
	}
	if m := jsPointerRe.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), 0, true
	}
	return 0, 0, false
}

// errorName returns the backend-reported error class, falling back to
// scanning the diagnostic text.
func errorName(raw *runtime.RawError) string {
	if raw.Name != "" && raw.Name != "Error" {
		return raw.Name
	}
	for _, text := range []string{raw.Message, raw.Raw, raw.Stack} {
		if m := namedErrorRe.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	if raw.Name != "" {
		return raw.Name
	}
	return "Error"
}

// cleanMessage strips backend-internal file paths and redundant location
// suffixes from the diagnostic, keeping only what helps the user.
func cleanMessage(raw *runtime.RawError, pkg *packager.Packaged) string {
	msg := raw.Message
	if msg == "" {
		msg = firstLine(raw.Raw)
	}
	msg = filePathRe.ReplaceAllString(msg, "$1")
	msg = vmSuffixRe.ReplaceAllString(msg, "")
	msg = vmCompileLocRe.ReplaceAllString(msg, "")
	msg = locationSuffixRe.ReplaceAllString(msg, "")
	if pkg.Language == core.LanguagePython {
		msg = pythonMessage(msg, raw)
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "execution failed"
	}
	return msg
}

// pythonMessage prefers the traceback's final "NameError: ..." line over a
// multi-line dump.
func pythonMessage(msg string, raw *runtime.RawError) string {
	source := msg
	if strings.Count(source, "\n") == 0 && raw.Raw != "" {
		source = raw.Raw
	}
	lines := strings.Split(strings.TrimRight(source, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if namedErrorRe.MatchString(line) && strings.Contains(line, ":") {
			return line
		}
	}
	return msg
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
