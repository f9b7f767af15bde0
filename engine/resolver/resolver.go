package resolver

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/flowrun-ai/codeexec/engine/core"
)

// BindingPrefix is the reserved identifier prefix for generated bindings.
// User code that starts identifiers with it is outside the supported
// contract, which is what keeps generated names collision-free.
const BindingPrefix = "__cr_"

var (
	// <variable.name> - workflow variable references.
	variableRe = regexp.MustCompile(`<variable\.([^<>]+)>`)
	// {{name}} - environment/parameter references.
	envRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.-]*)\s*\}\}`)
	// <block.path.to.field> - upstream block output references.
	blockRe = regexp.MustCompile(`<([a-zA-Z_][a-zA-Z0-9_ ]*)\.([a-zA-Z0-9_.\[\]]+)>`)

	nonIdentRe = regexp.MustCompile(`[^a-zA-Z0-9_]`)
)

// Binding pairs a generated collision-free identifier with the concrete
// value the packager must declare for it.
type Binding struct {
	Name  string
	Value any
}

// Resolved is the output of reference resolution: transformed source plus
// the ordered side-table of bindings to declare ahead of it.
type Resolved struct {
	Code     string
	Bindings []Binding

	names map[string]int  // placeholder text -> index into Bindings
	taken map[string]bool // generated names already handed out
}

// Request carries everything one resolution pass needs.
type Request struct {
	Code              string
	Language          core.Language
	Params            core.Input
	EnvVars           core.EnvMap
	BlockOutputs      map[string]core.Output
	BlockSchemas      map[string]core.Output
	BlockNameMapping  map[string]string
	WorkflowVariables map[string]core.WorkflowVariable
}

// Resolve substitutes the three placeholder grammars in fixed order:
// workflow variables, then environment/parameter references, then block
// tags. Later passes never re-match earlier substitutions because generated
// names carry no grammar markers. Replacement is index-based and runs from
// the highest source offset down so pending match offsets stay valid.
func Resolve(req *Request) (*Resolved, error) {
	res := &Resolved{Code: req.Code, names: make(map[string]int), taken: make(map[string]bool)}
	if err := res.resolveVariables(req); err != nil {
		return nil, err
	}
	res.resolveEnvParams(req)
	res.resolveBlockRefs(req)
	return res, nil
}

// bindingFor returns the generated name for a placeholder, allocating the
// binding on first sight and reusing it for every repeated occurrence.
// Sanitization is lossy, so distinct placeholders can land on the same base
// name; a numeric suffix keeps every allocated name unique.
func (r *Resolved) bindingFor(kind, placeholder string, value func() any) string {
	if idx, ok := r.names[placeholder]; ok {
		return r.Bindings[idx].Name
	}
	base := BindingPrefix + kind + "_" + sanitizeIdent(placeholder)
	name := base
	for n := 2; r.taken[name]; n++ {
		name = base + "_" + strconv.Itoa(n)
	}
	r.taken[name] = true
	r.names[placeholder] = len(r.Bindings)
	r.Bindings = append(r.Bindings, Binding{Name: name, Value: value()})
	return name
}

func sanitizeIdent(s string) string {
	return nonIdentRe.ReplaceAllString(s, "_")
}

// replaceSpans applies substitutions in reverse offset order. Each span is
// [start, end) in the current code; spans must be non-overlapping and
// sorted ascending before the reverse walk.
type span struct {
	start, end int
	text       string
}

func applySpans(code string, spans []span) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		code = code[:s.start] + s.text + code[s.end:]
	}
	return code
}

func (r *Resolved) resolveVariables(req *Request) error {
	matches := variableRe.FindAllStringSubmatchIndex(r.Code, -1)
	if len(matches) == 0 {
		return nil
	}
	byName := make(map[string]core.WorkflowVariable, len(req.WorkflowVariables))
	for _, v := range req.WorkflowVariables {
		byName[core.NormalizeName(v.Name)] = v
	}
	spans := make([]span, 0, len(matches))
	for _, m := range matches {
		placeholder := r.Code[m[0]:m[1]]
		rawName := r.Code[m[2]:m[3]]
		variable, ok := byName[core.NormalizeName(rawName)]
		if !ok {
			available := make([]string, 0, len(byName))
			for name := range byName {
				available = append(available, name)
			}
			sort.Strings(available)
			return core.NewErrorf(core.CodeValidation,
				"unknown workflow variable %q (available: %s)", rawName, strings.Join(available, ", ")).
				WithDetail("variable", rawName).
				WithDetail("available", available)
		}
		name := r.bindingFor("var", placeholder, func() any {
			return CoerceVariable(variable)
		})
		spans = append(spans, span{start: m[0], end: m[1], text: name})
	}
	r.Code = applySpans(r.Code, spans)
	return nil
}

func (r *Resolved) resolveEnvParams(req *Request) {
	matches := envRe.FindAllStringSubmatchIndex(r.Code, -1)
	if len(matches) == 0 {
		return
	}
	spans := make([]span, 0, len(matches))
	for _, m := range matches {
		placeholder := r.Code[m[0]:m[1]]
		key := r.Code[m[2]:m[3]]
		value, ok := lookupEnvParam(req, key)
		if !ok {
			// Unmatched names keep their literal text; the syntax has other
			// meanings downstream and partial resolution is legal here.
			continue
		}
		name := r.bindingFor("env", placeholder, func() any { return value })
		spans = append(spans, span{start: m[0], end: m[1], text: name})
	}
	r.Code = applySpans(r.Code, spans)
}

func lookupEnvParam(req *Request, key string) (any, bool) {
	if v, ok := req.Params[key]; ok {
		return v, true
	}
	if v, ok := req.EnvVars[key]; ok {
		return v, true
	}
	return nil, false
}

func (r *Resolved) resolveBlockRefs(req *Request) {
	matches := blockRe.FindAllStringSubmatchIndex(r.Code, -1)
	if len(matches) == 0 {
		return
	}
	lookup := newBlockLookup(req)
	spans := make([]span, 0, len(matches))
	for _, m := range matches {
		placeholder := r.Code[m[0]:m[1]]
		blockName := r.Code[m[2]:m[3]]
		path := r.Code[m[4]:m[5]]
		blockID, ok := req.BlockNameMapping[core.NormalizeName(blockName)]
		if !ok {
			// Not a known block: the text is plain source (for example a
			// comparison expression), leave it alone.
			continue
		}
		value, found := lookup.resolve(blockID, path)
		if !found {
			// Missing upstream output is a legitimate runtime state, not a
			// template error: substitute the language's null literal.
			spans = append(spans, span{start: m[0], end: m[1], text: req.Language.NullLiteral()})
			continue
		}
		name := r.bindingFor("ref", placeholder, func() any { return value })
		spans = append(spans, span{start: m[0], end: m[1], text: name})
	}
	r.Code = applySpans(r.Code, spans)
}
