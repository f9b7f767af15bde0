package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrun-ai/codeexec/engine/core"
	"github.com/flowrun-ai/codeexec/engine/packager"
	"github.com/flowrun-ai/codeexec/engine/runtime"
)

func vmPackage(userCode string, prologue int) *packager.Packaged {
	return &packager.Packaged{
		Language:          core.LanguageJavaScript,
		Target:            packager.TargetVM,
		UserCode:          userCode,
		UserLineCount:     lineCountOf(userCode),
		PrologueLineCount: prologue,
	}
}

func lineCountOf(s string) int {
	n := 1
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}

func TestMapError(t *testing.T) {
	t.Run("Should subtract the prologue offset from reported lines", func(t *testing.T) {
		pkg := vmPackage("const a = 1;\nconst b = 2;\nboom();\nconst c = 3;\nreturn c;", 4)
		raw := &runtime.RawError{
			Name:    "ReferenceError",
			Message: "boom is not defined",
			Stack:   "ReferenceError: boom is not defined\n\tat snippet.js:7:1(3)",
		}
		mapped := MapError(raw, pkg)
		assert.Equal(t, 3, mapped.Line)
		assert.Equal(t, "boom();", mapped.LineText)
		assert.Equal(t, core.CodeRuntime, mapped.Kind)
		assert.Equal(t, "Reference Error", mapped.Label)
		assert.Contains(t, mapped.Message, "Line 3: `boom();`:")
	})
	t.Run("Should discard positions inside the prologue", func(t *testing.T) {
		pkg := vmPackage("return 1;", 4)
		raw := &runtime.RawError{
			Name:  "TypeError",
			Stack: "TypeError: x\n\tat snippet.js:2:5(1)",
		}
		mapped := MapError(raw, pkg)
		assert.Zero(t, mapped.Line)
		assert.Empty(t, mapped.LineText)
	})
	t.Run("Should clamp syntax errors past the user code to the last line", func(t *testing.T) {
		// Message shape taken from a real goja.Compile failure on a snippet
		// with an unterminated block: the error points at the wrapper's
		// closing tokens, past the end of user code.
		pkg := vmPackage("const a = 1;\nif (a) {\nconsole.log(a);", 2)
		raw := &runtime.RawError{
			Name:    "SyntaxError",
			Message: "SyntaxError: snippet.js: Line 6:3 Unexpected token catch (and 3 more errors)",
			Raw:     "SyntaxError: snippet.js: Line 6:3 Unexpected token catch (and 3 more errors)",
			Compile: true,
		}
		mapped := MapError(raw, pkg)
		assert.Equal(t, 3, mapped.Line)
		assert.Equal(t, 0, mapped.Column)
		assert.Equal(t, core.CodeCompile, mapped.Kind)
		assert.Equal(t, "console.log(a);", mapped.LineText)
		assert.NotContains(t, mapped.Message, "snippet.js")
		assert.NotContains(t, mapped.Message, "Line 6")
		assert.Contains(t, mapped.Message, "Unexpected token catch")
	})
	t.Run("Should map compile errors inside the user code to their line", func(t *testing.T) {
		pkg := vmPackage("const a = 1;\nconst const = 2;\nreturn a;", 2)
		raw := &runtime.RawError{
			Name:    "SyntaxError",
			Message: "SyntaxError: snippet.js: Line 4:7 Unexpected token const",
			Compile: true,
		}
		mapped := MapError(raw, pkg)
		assert.Equal(t, 2, mapped.Line)
		assert.Equal(t, 7, mapped.Column)
		assert.Equal(t, "const const = 2;", mapped.LineText)
	})
	t.Run("Should discard runtime errors reported past the user code", func(t *testing.T) {
		pkg := vmPackage("return 1;", 2)
		raw := &runtime.RawError{
			Name:  "TypeError",
			Stack: "TypeError: x\n\tat snippet.js:9:1(2)",
		}
		mapped := MapError(raw, pkg)
		assert.Zero(t, mapped.Line)
	})
	t.Run("Should degrade gracefully when no position is present", func(t *testing.T) {
		pkg := vmPackage("return 1;", 2)
		raw := &runtime.RawError{Name: "TypeError", Message: "cannot read x"}
		mapped := MapError(raw, pkg)
		assert.Zero(t, mapped.Line)
		assert.Equal(t, "cannot read x", mapped.Message)
		assert.Equal(t, "Type Error", mapped.Label)
	})
	t.Run("Should map timeouts without location", func(t *testing.T) {
		pkg := vmPackage("while(true){}", 2)
		mapped := MapError(&runtime.RawError{Timeout: true, Message: "execution timed out"}, pkg)
		assert.Equal(t, core.CodeTimeout, mapped.Kind)
		assert.Equal(t, "Timeout", mapped.Label)
		assert.Zero(t, mapped.Line)
	})
	t.Run("Should survive a nil raw error", func(t *testing.T) {
		mapped := MapError(nil, vmPackage("return 1;", 2))
		assert.Equal(t, core.CodeRuntime, mapped.Kind)
		assert.NotEmpty(t, mapped.Message)
	})
}

func TestMapErrorPython(t *testing.T) {
	pyPackage := func(userCode string, prologue int) *packager.Packaged {
		return &packager.Packaged{
			Language:          core.LanguagePython,
			Target:            packager.TargetSandbox,
			UserCode:          userCode,
			UserLineCount:     lineCountOf(userCode),
			PrologueLineCount: prologue,
		}
	}
	t.Run("Should extract the line from a traceback and keep the final message", func(t *testing.T) {
		pkg := pyPackage("x = 1\ny = missing\nprint(y)", 9)
		raw := &runtime.RawError{
			Raw: "Traceback (most recent call last):\n" +
				`  File "/tmp/job/main.py", line 11, in <module>` + "\n" +
				"    y = missing\nNameError: name 'missing' is not defined",
		}
		mapped := MapError(raw, pkg)
		assert.Equal(t, 2, mapped.Line)
		assert.Equal(t, "y = missing", mapped.LineText)
		assert.Equal(t, "NameError", mapped.Name)
		assert.Contains(t, mapped.Message, "name 'missing' is not defined")
	})
	t.Run("Should classify indentation errors as compile failures", func(t *testing.T) {
		pkg := pyPackage("def f():\nreturn 1", 9)
		raw := &runtime.RawError{
			Name: "IndentationError",
			Raw:  `  File "main.py", line 11` + "\nIndentationError: expected an indented block",
		}
		mapped := MapError(raw, pkg)
		assert.Equal(t, core.CodeCompile, mapped.Kind)
		assert.Equal(t, 2, mapped.Line)
	})
}

func TestErrorName(t *testing.T) {
	t.Run("Should prefer the backend reported class", func(t *testing.T) {
		assert.Equal(t, "TypeError", errorName(&runtime.RawError{Name: "TypeError"}))
	})
	t.Run("Should scan diagnostics when the class is generic", func(t *testing.T) {
		raw := &runtime.RawError{Name: "Error", Message: "RangeError: out of range"}
		assert.Equal(t, "RangeError", errorName(raw))
	})
	t.Run("Should default to Error with nothing to go on", func(t *testing.T) {
		assert.Equal(t, "Error", errorName(&runtime.RawError{Message: "boom"}))
	})
}

func TestLabelFor(t *testing.T) {
	t.Run("Should use the known label table", func(t *testing.T) {
		assert.Equal(t, "Division By Zero", labelFor("ZeroDivisionError"))
		assert.Equal(t, "Syntax Error", labelFor("SyntaxError"))
	})
	t.Run("Should split unknown camel case names", func(t *testing.T) {
		assert.Equal(t, "Connection Refused Error", labelFor("ConnectionRefusedError"))
	})
	t.Run("Should fall back for an empty name", func(t *testing.T) {
		assert.Equal(t, "Runtime Error", labelFor(""))
	})
}

func TestLocate(t *testing.T) {
	t.Run("Should keep the raw coordinates alongside adjusted ones", func(t *testing.T) {
		pkg := vmPackage("line one;\nline two;", 3)
		raw := &runtime.RawError{Name: "TypeError", Stack: "at snippet.js:5:7(1)"}
		loc, ok := locate(raw, pkg)
		require.True(t, ok)
		assert.Equal(t, 5, loc.RawLine)
		assert.Equal(t, 7, loc.RawColumn)
		assert.Equal(t, 2, loc.Line)
		assert.Equal(t, 7, loc.Column)
		assert.Equal(t, "line two;", loc.SourceLine)
	})
}
