// Package jsparse separates top-level import declarations from JavaScript
// snippet bodies and detects external-module usage. Extraction keeps the
// remainder's original line numbers intact by replacing each removed import
// with an equal number of blank lines.
package jsparse

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// Analysis is the result of scanning one snippet.
type Analysis struct {
	// Imports holds the extracted import declarations, one per line, in
	// source order.
	Imports string
	// Code is the body with every extracted import replaced by blank lines
	// so downstream line-offset arithmetic stays valid.
	Code string
	// ImportLineCount is the number of source lines the removed imports
	// occupied.
	ImportLineCount int
	// HasImports reports whether any static import declaration was found.
	HasImports bool
	// UsesRequire reports require(...) or dynamic import(...) usage, which
	// declaration extraction cannot capture.
	UsesRequire bool
}

// UsesModules reports whether the snippet needs external module loading in
// any form.
func (a *Analysis) UsesModules() bool {
	return a.HasImports || a.UsesRequire
}

// scanner holds the lazily-compiled pattern set shared across requests.
type scanner struct {
	requireRe *regexp.Regexp
}

var (
	sharedScanner *scanner
	scannerOnce   sync.Once
)

func getScanner() *scanner {
	scannerOnce.Do(func() {
		sharedScanner = &scanner{
			requireRe: regexp.MustCompile(`\brequire\s*\(`),
		}
	})
	return sharedScanner
}

// ExtractImports tokenizes the snippet, removes top-level import
// declarations, and flags module usage. Extraction is lexer-based rather
// than parser-based: snippets legally contain top-level return statements
// that a strict module parse rejects, and a broken snippet must still flow
// through so the backend can report the real syntax error with proper
// provenance. A lex error simply ends the scan; whatever was found before it
// still counts.
func ExtractImports(_ context.Context, code string) *Analysis {
	sc := getScanner()
	analysis := &Analysis{Code: code, UsesRequire: sc.requireRe.MatchString(code)}
	spans, dynamicImport := importSpans(code)
	if dynamicImport {
		analysis.UsesRequire = true
	}
	if len(spans) == 0 {
		return analysis
	}
	analysis.HasImports = true
	var extracted []string
	body := code
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		text := body[s.start:s.end]
		extracted = append([]string{text}, extracted...)
		newlines := strings.Count(text, "\n")
		analysis.ImportLineCount += newlines + 1
		body = body[:s.start] + strings.Repeat("\n", newlines) + body[s.end:]
	}
	analysis.Imports = strings.Join(extracted, "\n")
	analysis.Code = body
	return analysis
}

type importSpan struct {
	start, end int
}

// importSpans walks the token stream and records the byte span of every
// top-level import declaration, including `import x = require(...)` forms.
// Dynamic import(...) expressions are reported separately and left in the
// body.
func importSpans(code string) ([]importSpan, bool) {
	lexer := js.NewLexer(parse.NewInputString(code))
	var (
		spans         []importSpan
		depth         int
		pos           int
		dynamicImport bool

		inImport      bool
		importStart   int
		stmtComplete  bool
		pendingImport bool
	)
	endImport := func(end int) {
		spans = append(spans, importSpan{start: importStart, end: end})
		inImport = false
		stmtComplete = false
	}
	for {
		tt, data := lexer.Next()
		if tt == js.ErrorToken {
			break
		}
		tokStart := pos
		pos += len(data)

		switch tt {
		case js.WhitespaceToken, js.CommentToken:
			continue
		case js.LineTerminatorToken, js.CommentLineTerminatorToken:
			// ASI boundary: an import whose module clause is complete ends
			// at the line break.
			if inImport && stmtComplete && depth == 0 {
				endImport(tokStart)
			}
			continue
		}

		if pendingImport {
			pendingImport = false
			switch tt {
			case js.OpenParenToken:
				// import(...) expression, module usage but not a declaration.
				dynamicImport = true
			case js.DotToken:
				// import.meta, not a declaration.
			default:
				if depth == 0 {
					inImport = true
				}
			}
		}

		switch tt {
		case js.ImportToken:
			if !inImport {
				importStart = tokStart
				pendingImport = true
			}
		case js.OpenBraceToken, js.OpenParenToken, js.OpenBracketToken:
			depth++
		case js.CloseBraceToken, js.CloseBracketToken:
			if depth > 0 {
				depth--
			}
		case js.CloseParenToken:
			if depth > 0 {
				depth--
			}
			// Closing a require(...) call completes an
			// `import x = require("y")` form.
			if inImport && depth == 0 {
				stmtComplete = true
			}
		case js.StringToken:
			if inImport && depth == 0 {
				stmtComplete = true
			}
		case js.SemicolonToken:
			if inImport && depth == 0 {
				endImport(pos)
			}
		}
	}
	if inImport {
		endImport(pos)
	}
	return spans, dynamicImport
}
