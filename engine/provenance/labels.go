package provenance

import "strings"

// errorLabels maps backend-reported error names to the human rendering the
// response carries. Anything unlisted is split on camel-case boundaries.
var errorLabels = map[string]string{
	"SyntaxError":         "Syntax Error",
	"TypeError":           "Type Error",
	"ReferenceError":      "Reference Error",
	"RangeError":          "Range Error",
	"EvalError":           "Evaluation Error",
	"NameError":           "Name Error",
	"ValueError":          "Value Error",
	"KeyError":            "Key Error",
	"IndexError":          "Index Error",
	"AttributeError":      "Attribute Error",
	"IndentationError":    "Indentation Error",
	"ZeroDivisionError":   "Division By Zero",
	"ImportError":         "Import Error",
	"ModuleNotFoundError": "Module Not Found",
	"Error":               "Runtime Error",
	"Exception":           "Runtime Error",
}

func labelFor(name string) string {
	if label, ok := errorLabels[name]; ok {
		return label
	}
	if name == "" {
		return "Runtime Error"
	}
	return splitCamelCase(name)
}

func splitCamelCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(name[i-1])
			if prev < 'A' || prev > 'Z' {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
