package packager

import (
	"fmt"
	"regexp"
	"strings"
)

// pythonResultVar receives the snippet's final bare expression, when one
// exists, so the epilogue can emit it behind the sentinel.
const pythonResultVar = "__cr_result__"

var (
	pythonAssignRe = regexp.MustCompile(
		`^[A-Za-z_][A-Za-z0-9_.\[\]'"]*\s*(=[^=]|\+=|-=|\*=|/=|//=|%=|\*\*=|&=|\|=|\^=|>>=|<<=)`)
	pythonStmtKeywordRe = regexp.MustCompile(
		`^(import|from|def|class|if|elif|else|for|while|try|except|finally|with|return|pass|break|continue|raise|assert|del|global|nonlocal|print)\b`)
)

// Python user code stays at top level and unindented, so prologue lines are
// the only thing shifting its line numbers. Exceptions reach stdout through
// a process-level excepthook before re-raising; the final bare expression,
// when the body ends in one, is rewritten in place to feed the sentinel
// line emitted by the epilogue.
func buildPython(pkg *Packaged, in *Input) {
	pre := []string{
		"import json as __cr_json",
		"import sys as __cr_sys, traceback as __cr_traceback",
		"def __cr_excepthook(tp, val, tb):",
		"    __cr_traceback.print_exception(tp, val, tb, file=__cr_sys.stdout)",
		"    __cr_sys.__excepthook__(tp, val, tb)",
		"__cr_sys.excepthook = __cr_excepthook",
		"params = __cr_json.loads(" + pyStringLiteral(mustJSON(map[string]any(in.Params))) + ")",
		"environment_variables = __cr_json.loads(" + pyStringLiteral(mustJSON(in.EnvVars)) + ")",
	}
	for _, binding := range in.Resolved.Bindings {
		pre = append(pre, fmt.Sprintf("%s = __cr_json.loads(%s)",
			binding.Name, pyStringLiteral(mustJSON(binding.Value))))
	}
	pre = append(pre, pythonResultVar+" = None")

	body := rewriteFinalExpression(pkg.UserCode)
	post := []string{
		`print("` + ResultSentinel + `" + __cr_json.dumps(` + pythonResultVar + `, default=str))`,
	}
	pkg.PrologueLineCount = len(pre)
	pkg.Code = strings.Join(pre, "\n") + "\n" + body + "\n" + strings.Join(post, "\n")
}

// rewriteFinalExpression assigns the body's last top-level bare expression
// to the result variable. The check is deliberately conservative: anything
// that looks like a statement, an assignment, a continuation (backslash or
// an open bracket carried over from a prior line), or an indented line is
// left untouched and the result stays None.
func rewriteFinalExpression(body string) string {
	// Triple-quoted strings make line-based bracket tracking unreliable.
	if strings.Contains(body, `"""`) || strings.Contains(body, "'''") {
		return body
	}
	lines := strings.Split(body, "\n")
	startDepth := make([]int, len(lines))
	depth := 0
	for i, line := range lines {
		startDepth[i] = depth
		depth = bracketDepth(line, depth)
	}
	if depth != 0 {
		return body
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if startDepth[i] != 0 {
			// Closing line of a multi-line bracketed expression; splitting
			// it off would corrupt valid code.
			return body
		}
		if line != trimmed {
			// Indented: part of a block, not a top-level expression.
			return body
		}
		if strings.HasSuffix(trimmed, ":") || strings.HasSuffix(trimmed, "\\") {
			return body
		}
		if pythonStmtKeywordRe.MatchString(trimmed) || pythonAssignRe.MatchString(trimmed) {
			return body
		}
		lines[i] = pythonResultVar + " = " + trimmed
		return strings.Join(lines, "\n")
	}
	return body
}

// bracketDepth advances the ()[]{} nesting depth across one line, skipping
// single-quoted and double-quoted string contents and trailing comments.
func bracketDepth(line string, depth int) int {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '#':
			return depth
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
	}
	return depth
}
