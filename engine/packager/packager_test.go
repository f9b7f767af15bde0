package packager

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrun-ai/codeexec/engine/core"
	"github.com/flowrun-ai/codeexec/engine/jsparse"
	"github.com/flowrun-ai/codeexec/engine/resolver"
)

func jsInput(code string, sandboxEnabled bool) *Input {
	return &Input{
		Resolved:       &resolver.Resolved{Code: code},
		Analysis:       jsparse.ExtractImports(context.Background(), code),
		Language:       core.LanguageJavaScript,
		SandboxEnabled: sandboxEnabled,
	}
}

func TestSelectTarget(t *testing.T) {
	t.Run("Should run plain JavaScript in the VM", func(t *testing.T) {
		target, err := SelectTarget(core.LanguageJavaScript, false, false, true)
		require.NoError(t, err)
		assert.Equal(t, TargetVM, target)
	})
	t.Run("Should send JavaScript with modules to the sandbox", func(t *testing.T) {
		target, err := SelectTarget(core.LanguageJavaScript, true, false, true)
		require.NoError(t, err)
		assert.Equal(t, TargetSandbox, target)
	})
	t.Run("Should keep custom tool JavaScript in the VM even with modules flagged", func(t *testing.T) {
		target, err := SelectTarget(core.LanguageJavaScript, true, true, true)
		require.NoError(t, err)
		assert.Equal(t, TargetVM, target)
	})
	t.Run("Should always send Python to the sandbox", func(t *testing.T) {
		target, err := SelectTarget(core.LanguagePython, false, false, true)
		require.NoError(t, err)
		assert.Equal(t, TargetSandbox, target)
	})
	t.Run("Should fail Python fast when the sandbox is disabled", func(t *testing.T) {
		_, err := SelectTarget(core.LanguagePython, false, false, false)
		require.Error(t, err)
		assert.True(t, core.IsCode(err, core.CodeConfiguration))
	})
	t.Run("Should fail module JavaScript when the sandbox is disabled", func(t *testing.T) {
		_, err := SelectTarget(core.LanguageJavaScript, true, false, false)
		require.Error(t, err)
		assert.True(t, core.IsCode(err, core.CodeConfiguration))
	})
}

func TestBuildVMJavaScript(t *testing.T) {
	t.Run("Should emit exactly two prologue lines for plain code", func(t *testing.T) {
		pkg, err := Build(jsInput("console.log(1 + 1);\nreturn 2;", false))
		require.NoError(t, err)
		assert.Equal(t, TargetVM, pkg.Target)
		assert.Equal(t, 2, pkg.PrologueLineCount)
		assert.Equal(t, 2, pkg.UserLineCount)
		lines := strings.Split(pkg.Code, "\n")
		assert.Equal(t, "console.log(1 + 1);", lines[pkg.PrologueLineCount])
	})
	t.Run("Should inject params and bindings as globals", func(t *testing.T) {
		in := jsInput("return __cr_env_key;", false)
		in.Params = core.Input{"a": 1}
		in.Resolved.Bindings = []resolver.Binding{{Name: "__cr_env_key", Value: "v"}}
		pkg, err := Build(in)
		require.NoError(t, err)
		assert.Contains(t, pkg.Globals, "params")
		assert.Contains(t, pkg.Globals, "environmentVariables")
		assert.Equal(t, "v", pkg.Globals["__cr_env_key"])
		assert.NotContains(t, pkg.Code, "__cr_env_key =")
	})
	t.Run("Should add one prologue line per custom tool param", func(t *testing.T) {
		in := jsInput("return limit + offset;", false)
		in.IsCustomTool = true
		in.Params = core.Input{"limit": 10, "offset": 20}
		pkg, err := Build(in)
		require.NoError(t, err)
		assert.Equal(t, 4, pkg.PrologueLineCount)
		assert.Contains(t, pkg.Code, "const limit = params.limit;")
		assert.Contains(t, pkg.Code, "const offset = params.offset;")
	})
	t.Run("Should skip param names that are not identifiers", func(t *testing.T) {
		in := jsInput("return 1;", false)
		in.IsCustomTool = true
		in.Params = core.Input{"valid": 1, "not-valid": 2, "9lead": 3}
		pkg, err := Build(in)
		require.NoError(t, err)
		assert.Equal(t, 3, pkg.PrologueLineCount)
		assert.NotContains(t, pkg.Code, "not-valid")
	})
}

func TestBuildSandboxJavaScript(t *testing.T) {
	t.Run("Should hoist imports above the harness and count every prologue line", func(t *testing.T) {
		code := "import fs from 'fs';\nreturn fs.readFileSync('f').length;"
		pkg, err := Build(jsInput(code, true))
		require.NoError(t, err)
		assert.Equal(t, TargetSandbox, pkg.Target)
		lines := strings.Split(pkg.Code, "\n")
		assert.Equal(t, "import fs from 'fs';", lines[0])
		// import + params + environmentVariables + two harness lines.
		assert.Equal(t, 5, pkg.PrologueLineCount)
		// User body keeps its blanked import line, so line numbers hold.
		assert.Equal(t, "", lines[pkg.PrologueLineCount])
		assert.Equal(t, "return fs.readFileSync('f').length;", lines[pkg.PrologueLineCount+1])
	})
	t.Run("Should declare bindings as parsed JSON literals", func(t *testing.T) {
		in := jsInput("import x from 'x';\nreturn __cr_ref_a;", true)
		in.Resolved.Bindings = []resolver.Binding{{Name: "__cr_ref_a", Value: map[string]any{"k": "v"}}}
		pkg, err := Build(in)
		require.NoError(t, err)
		assert.Contains(t, pkg.Code, `const __cr_ref_a = JSON.parse(`)
		assert.Equal(t, 6, pkg.PrologueLineCount)
		assert.Nil(t, pkg.Globals)
	})
	t.Run("Should emit the sentinel in the epilogue only", func(t *testing.T) {
		pkg, err := Build(jsInput("import y from 'y';\nreturn 1;", true))
		require.NoError(t, err)
		prologue := strings.Join(strings.Split(pkg.Code, "\n")[:pkg.PrologueLineCount], "\n")
		assert.NotContains(t, prologue, ResultSentinel)
		assert.Contains(t, pkg.Code, ResultSentinel)
	})
}

// unpack strips the prologue and epilogue using only the recorded counts.
func unpack(pkg *Packaged) string {
	lines := strings.Split(pkg.Code, "\n")
	return strings.Join(lines[pkg.PrologueLineCount:pkg.PrologueLineCount+pkg.UserLineCount], "\n")
}

func TestRoundTrip(t *testing.T) {
	t.Run("Should recover the body from a VM package line for line", func(t *testing.T) {
		code := "const a = 1;\nconst b = 2;\nreturn a + b;"
		pkg, err := Build(jsInput(code, false))
		require.NoError(t, err)
		assert.Equal(t, code, unpack(pkg))
	})
	t.Run("Should recover the blanked body from a sandbox package", func(t *testing.T) {
		code := "import fs from 'fs';\nconst n = 1;\nreturn n;"
		pkg, err := Build(jsInput(code, true))
		require.NoError(t, err)
		assert.Equal(t, "\nconst n = 1;\nreturn n;", unpack(pkg))
	})
	t.Run("Should recover a Python body ending in a statement", func(t *testing.T) {
		code := "x = 1\nprint(x)"
		pkg, err := Build(&Input{
			Resolved:       &resolver.Resolved{Code: code},
			Language:       core.LanguagePython,
			SandboxEnabled: true,
		})
		require.NoError(t, err)
		assert.Equal(t, code, unpack(pkg))
	})
}

func TestBuildPython(t *testing.T) {
	pyInput := func(code string) *Input {
		return &Input{
			Resolved:       &resolver.Resolved{Code: code},
			Language:       core.LanguagePython,
			SandboxEnabled: true,
		}
	}
	t.Run("Should count the fixed prologue plus bindings plus result init", func(t *testing.T) {
		in := pyInput("x = 1\nprint(x)")
		in.Resolved.Bindings = []resolver.Binding{{Name: "__cr_var_a", Value: 1}}
		pkg, err := Build(in)
		require.NoError(t, err)
		assert.Equal(t, TargetSandbox, pkg.Target)
		assert.Equal(t, 10, pkg.PrologueLineCount)
		lines := strings.Split(pkg.Code, "\n")
		assert.Equal(t, "x = 1", lines[pkg.PrologueLineCount])
	})
	t.Run("Should rewrite a trailing bare expression into the result variable", func(t *testing.T) {
		pkg, err := Build(pyInput("x = 2\nx * 3"))
		require.NoError(t, err)
		assert.Contains(t, pkg.Code, "__cr_result__ = x * 3")
	})
	t.Run("Should leave a trailing statement alone", func(t *testing.T) {
		pkg, err := Build(pyInput("x = 2\nprint(x)"))
		require.NoError(t, err)
		assert.NotContains(t, pkg.Code, "__cr_result__ = print")
	})
	t.Run("Should leave an indented final line alone", func(t *testing.T) {
		code := "for i in range(3):\n    print(i)"
		pkg, err := Build(pyInput(code))
		require.NoError(t, err)
		assert.Contains(t, pkg.Code, code)
	})
	t.Run("Should leave the closing line of a bracketed expression alone", func(t *testing.T) {
		code := "x = (1 +\n2)"
		pkg, err := Build(pyInput(code))
		require.NoError(t, err)
		assert.Contains(t, pkg.Code, code)
		assert.NotContains(t, pkg.Code, "__cr_result__ = 2)")
	})
	t.Run("Should leave a body with unbalanced brackets alone", func(t *testing.T) {
		code := "x = [1,\n2"
		pkg, err := Build(pyInput(code))
		require.NoError(t, err)
		assert.Contains(t, pkg.Code, code)
		assert.NotContains(t, pkg.Code, "__cr_result__ = 2")
	})
	t.Run("Should skip the rewrite when triple quoted strings are present", func(t *testing.T) {
		code := "s = \"\"\"\n1 + 1\n\"\"\"\n1 + 1"
		pkg, err := Build(pyInput(code))
		require.NoError(t, err)
		assert.Contains(t, pkg.Code, code)
		assert.NotContains(t, pkg.Code, "__cr_result__ = 1 + 1")
	})
	t.Run("Should ignore brackets inside strings and comments", func(t *testing.T) {
		pkg, err := Build(pyInput("s = '('  # (\nlen(s)"))
		require.NoError(t, err)
		assert.Contains(t, pkg.Code, "__cr_result__ = len(s)")
	})
	t.Run("Should emit the sentinel print as the epilogue", func(t *testing.T) {
		pkg, err := Build(pyInput("1 + 1"))
		require.NoError(t, err)
		lines := strings.Split(pkg.Code, "\n")
		assert.Contains(t, lines[len(lines)-1], ResultSentinel)
	})
}
