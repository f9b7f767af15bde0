package packager

import (
	"encoding/json"
	"strings"
)

// mustJSON serializes a context value compactly. Values arrive from decoded
// request JSON, so marshaling cannot realistically fail; when it does the
// binding degrades to null rather than aborting packaging.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

// jsStringLiteral quotes s as a single-line JavaScript string literal.
func jsStringLiteral(s string) string {
	return quoteLiteral(s)
}

// pyStringLiteral quotes s as a single-line Python string literal. JSON
// string escaping is a strict subset of Python's, so one quoting routine
// serves both languages.
func pyStringLiteral(s string) string {
	return quoteLiteral(s)
}

// quoteLiteral emits a double-quoted literal with every newline and control
// character escaped, guaranteeing the result occupies exactly one source
// line regardless of the embedded payload.
func quoteLiteral(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	lit := string(data)
	// json.Marshal never emits raw newlines, but make the single-line
	// invariant explicit against exotic inputs.
	lit = strings.ReplaceAll(lit, "\n", `\n`)
	return lit
}
