package packager

import (
	"fmt"
	"strings"
)

// VM wrapper shape:
//
//	(async () => {
//	try {
//	<param declarations for custom tools>
//	<user body>
//	} catch ...
//	})()
//
// Bindings, params, and environmentVariables reach the VM as injected
// globals, so the only prologue lines are the wrapper itself plus any
// custom-tool param declarations.
func buildVMJavaScript(pkg *Packaged, in *Input) {
	pre := []string{
		"(async () => {",
		"try {",
	}
	if in.IsCustomTool {
		for _, name := range sortedParamNames(in.Params) {
			pre = append(pre, fmt.Sprintf("const %s = params.%s;", name, name))
		}
	}
	post := []string{
		"} catch (error) { globalThis." + VMErrorStackGlobal + " = error && error.stack; throw error; }",
		"})()",
	}
	pkg.PrologueLineCount = len(pre)
	pkg.Code = strings.Join(pre, "\n") + "\n" + pkg.UserCode + "\n" + strings.Join(post, "\n")
	pkg.Globals = map[string]any{
		"params":               map[string]any(in.Params),
		"environmentVariables": envToAny(in.EnvVars),
	}
	for _, binding := range in.Resolved.Bindings {
		pkg.Globals[binding.Name] = binding.Value
	}
}

func envToAny(env map[string]string) map[string]any {
	out := make(map[string]any, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// VMErrorStackGlobal stashes the raw stack before the rethrow leaves the
// wrapper, so the VM backend can read it even when the engine rewraps the
// exception.
const VMErrorStackGlobal = "__cr_error_stack"

// Sandbox file shape: hoisted imports, one declaration per context item,
// then an async harness around the body. Everything before the body is
// counted; the epilogue after the body is not.
func buildSandboxJavaScript(pkg *Packaged, in *Input) {
	var pre []string
	if in.Analysis != nil && in.Analysis.Imports != "" {
		pre = append(pre, strings.Split(in.Analysis.Imports, "\n")...)
	}
	pre = append(pre,
		"const params = JSON.parse("+jsStringLiteral(mustJSON(map[string]any(in.Params)))+");",
		"const environmentVariables = JSON.parse("+jsStringLiteral(mustJSON(in.EnvVars))+");",
	)
	for _, binding := range in.Resolved.Bindings {
		pre = append(pre, fmt.Sprintf("const %s = JSON.parse(%s);",
			binding.Name, jsStringLiteral(mustJSON(binding.Value))))
	}
	pre = append(pre,
		"(async () => {",
		"try {",
	)
	post := []string{
		"} catch (error) {",
		"console.log(error && error.stack ? error.stack : String(error));",
		"throw error;",
		"}",
		"})().then((result) => {",
		`console.log("` + ResultSentinel + `" + JSON.stringify(result === undefined ? null : result));`,
		"}).catch(() => { process.exit(1); });",
	}
	pkg.PrologueLineCount = len(pre)
	pkg.Code = strings.Join(pre, "\n") + "\n" + pkg.UserCode + "\n" + strings.Join(post, "\n")
}
