package core

import "encoding/json"

// ValueKind tags the dynamic shape of a duck-typed payload value (request
// params, block outputs, coerced variables). Coercion decisions are always
// made on the tag, never on implicit language conversion.
type ValueKind string

const (
	KindNull   ValueKind = "null"
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindObject ValueKind = "object"
	KindArray  ValueKind = "array"
)

// KindOf classifies an arbitrary decoded-JSON value.
func KindOf(v any) ValueKind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case bool:
		return KindBool
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return KindNumber
	case []any:
		return KindArray
	default:
		return KindObject
	}
}

// ParseJSONString attempts to decode a string that looks like serialized
// JSON ({...} or [...]) back into a structured value. The original string is
// returned untouched when it does not parse.
func ParseJSONString(s string) any {
	if !LooksLikeJSON(s) {
		return s
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return s
	}
	return parsed
}

// LooksLikeJSON reports whether s starts with an object or array opener
// after leading whitespace.
func LooksLikeJSON(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}
