package resolver

import (
	"strconv"
	"strings"

	"github.com/flowrun-ai/codeexec/engine/core"
)

// CoerceVariable converts a workflow variable's raw value according to its
// declared type. The coercion table is explicit; no implicit language-level
// conversion happens anywhere downstream.
//
//	number  -> numeric parse (original string kept when the parse fails)
//	boolean -> case-insensitive "true"
//	json    -> best-effort parse (original string kept on failure)
//	string  -> verbatim ("string" is a retained alias of "plain")
//	plain   -> verbatim
func CoerceVariable(v core.WorkflowVariable) any {
	switch v.Type {
	case core.VariableTypeNumber:
		return coerceNumber(v.Value)
	case core.VariableTypeBoolean:
		return coerceBoolean(v.Value)
	case core.VariableTypeJSON:
		return coerceJSON(v.Value)
	case core.VariableTypeString, core.VariableTypePlain:
		return v.Value
	default:
		return v.Value
	}
}

func coerceNumber(v any) any {
	switch n := v.(type) {
	case float64, float32, int, int32, int64:
		return n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
		return n
	default:
		return v
	}
}

func coerceBoolean(v any) any {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	default:
		return v
	}
}

func coerceJSON(v any) any {
	if s, ok := v.(string); ok {
		return core.ParseJSONString(s)
	}
	return v
}
