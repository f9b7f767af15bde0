package core

import "strings"

// -----------------------------------------------------------------------------
// Language
// -----------------------------------------------------------------------------

// Language identifies the language a user snippet is written in.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
)

func (l Language) String() string {
	return string(l)
}

func (l Language) IsValid() bool {
	return l == LanguageJavaScript || l == LanguagePython
}

// ParseLanguage normalizes common aliases ("js", "typescript", "py") into a
// canonical Language. Returns false when the input names no known language.
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "javascript", "js", "typescript", "ts":
		return LanguageJavaScript, true
	case "python", "py", "python3":
		return LanguagePython, true
	default:
		return "", false
	}
}

// NullLiteral returns the language's null literal, used when an unresolved
// block reference must be substituted with "no value".
func (l Language) NullLiteral() string {
	if l == LanguagePython {
		return "None"
	}
	return "undefined"
}

// -----------------------------------------------------------------------------
// Maps
// -----------------------------------------------------------------------------

// Input carries caller-supplied parameters for one execution.
type Input map[string]any

// Output carries structured data produced by an upstream block.
type Output map[string]any

// EnvMap carries environment variables exposed to user code.
type EnvMap map[string]string

// -----------------------------------------------------------------------------
// Workflow variables
// -----------------------------------------------------------------------------

// VariableType is the declared type of a workflow variable. It drives value
// coercion during reference resolution.
type VariableType string

const (
	VariableTypeString  VariableType = "string"
	VariableTypePlain   VariableType = "plain"
	VariableTypeNumber  VariableType = "number"
	VariableTypeBoolean VariableType = "boolean"
	VariableTypeJSON    VariableType = "json"
)

// WorkflowVariable is one named, typed value scoped to a workflow.
type WorkflowVariable struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Type  VariableType `json:"type"`
	Value any          `json:"value"`
}

// NormalizeName lowercases an identifier and strips spaces so that display
// names ("My Variable") match their reference form ("myvariable").
func NormalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ""))
}
