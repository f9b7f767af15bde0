package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLanguage(t *testing.T) {
	t.Run("Should accept canonical names and aliases", func(t *testing.T) {
		cases := map[string]Language{
			"javascript": LanguageJavaScript,
			"JS":         LanguageJavaScript,
			"typescript": LanguageJavaScript,
			"python":     LanguagePython,
			" py ":       LanguagePython,
			"python3":    LanguagePython,
		}
		for input, want := range cases {
			got, ok := ParseLanguage(input)
			require.True(t, ok, "input %q", input)
			assert.Equal(t, want, got)
		}
	})
	t.Run("Should reject unknown languages", func(t *testing.T) {
		_, ok := ParseLanguage("ruby")
		assert.False(t, ok)
	})
}

func TestNullLiteral(t *testing.T) {
	t.Run("Should use each language's null literal", func(t *testing.T) {
		assert.Equal(t, "undefined", LanguageJavaScript.NullLiteral())
		assert.Equal(t, "None", LanguagePython.NullLiteral())
	})
}

func TestNormalizeName(t *testing.T) {
	t.Run("Should lowercase and strip spaces", func(t *testing.T) {
		assert.Equal(t, "myvariable", NormalizeName("My Variable"))
		assert.Equal(t, "agent1", NormalizeName("Agent 1"))
	})
}

func TestParseJSONString(t *testing.T) {
	t.Run("Should decode objects and arrays", func(t *testing.T) {
		assert.Equal(t, map[string]any{"a": float64(1)}, ParseJSONString(`{"a":1}`))
		assert.Equal(t, []any{float64(1), float64(2)}, ParseJSONString(`[1, 2]`))
	})
	t.Run("Should keep plain strings verbatim", func(t *testing.T) {
		assert.Equal(t, "hello", ParseJSONString("hello"))
		assert.Equal(t, "42", ParseJSONString("42"))
	})
	t.Run("Should keep malformed JSON verbatim", func(t *testing.T) {
		assert.Equal(t, "{broken", ParseJSONString("{broken"))
	})
}

func TestError(t *testing.T) {
	t.Run("Should carry its code through wrapping", func(t *testing.T) {
		inner := errors.New("dial tcp: refused")
		err := WrapError(CodeBackendUnavailable, "sandbox unreachable", inner)
		assert.Equal(t, CodeBackendUnavailable, CodeOf(err))
		assert.ErrorIs(t, err, inner)
	})
	t.Run("Should default unknown errors to the runtime code", func(t *testing.T) {
		assert.Equal(t, CodeRuntime, CodeOf(errors.New("plain")))
	})
	t.Run("Should accumulate details", func(t *testing.T) {
		err := NewError(CodeValidation, "bad").WithDetail("field", "code")
		assert.Equal(t, "code", err.Details["field"])
	})
}

func TestNewID(t *testing.T) {
	t.Run("Should generate unique sortable ids", func(t *testing.T) {
		a := MustNewID()
		b := MustNewID()
		assert.NotEqual(t, a, b)
		assert.False(t, a.IsZero())
	})
}
