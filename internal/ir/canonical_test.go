package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", IRNull{}, "null"},
		{"nil", nil, "null"},
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"max int64", IRInt(9223372036854775807), "9223372036854775807"},
		{"min int64", IRInt(-9223372036854775808), "-9223372036854775808"},
		{"bool true", IRBool(true), "true"},
		{"bool false", IRBool(false), "false"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"array with null", IRArray{IRInt(1), IRNull{}}, "[1,null]"},
		{"simple object", IRObject{"a": IRInt(1)}, `{"a":1}`},
		{"plain map", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := IRObject{
		"Outer": IRObject{
			"Title": IRString("Hello"),
			"Id":    IRInt(2),
		},
		"Inner": IRNull{},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"Inner":null,"Outer":{"Id":2,"Title":"Hello"}}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair (0xD800 0xDC00) and sorts before
	// U+E000 in UTF-16, the reverse of UTF-8 byte order.
	obj := IRObject{
		"\uE000":     IRInt(1),
		"\U00010000": IRInt(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRString("<a>&</a>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a>&</a>"`, string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(IRString("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// An escaped backslash followed by the text u2028 stays as written.
	result, err = MarshalCanonical(IRString(`x\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" followed by a combining acute accent normalizes to U+00E9.
	result, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalControlCharacters(t *testing.T) {
	result, err := MarshalCanonical(IRString("tab\tnew\nquote\""))
	require.NoError(t, err)
	assert.Equal(t, `"tab\tnew\nquote\""`, string(result))
}

func TestMarshalCanonicalRejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(3.14)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = MarshalCanonical(map[string]any{"x": 1.5})
	require.Error(t, err)
}

func TestMarshalCanonicalUnsupportedType(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestMarshalCanonicalRejectsCycles(t *testing.T) {
	self := IRObject{"Id": IRInt(1)}
	self["Manager"] = self
	_, err := MarshalCanonical(IRArray{self})
	require.ErrorIs(t, err, ErrCyclicValue)

	a := IRObject{"Id": IRInt(1)}
	b := IRObject{"Id": IRInt(2), "Manager": a}
	a["Manager"] = b
	_, err = MarshalCanonical(a)
	require.ErrorIs(t, err, ErrCyclicValue)
}

func TestMarshalCanonicalSharedObjectIsNotACycle(t *testing.T) {
	blog := IRObject{"Id": IRInt(1)}
	rows := IRArray{
		IRObject{"Id": IRInt(1), "Blog": blog},
		IRObject{"Id": IRInt(2), "Blog": blog},
	}
	data, err := MarshalCanonical(rows)
	require.NoError(t, err)
	assert.Equal(t, `[{"Blog":{"Id":1},"Id":1},{"Blog":{"Id":1},"Id":2}]`, string(data))
}

func TestMarshalJSONUsesCanonicalForm(t *testing.T) {
	rows := IRArray{
		IRObject{"b": IRInt(1), "a": IRBool(true)},
	}
	data, err := rows.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `[{"a":true,"b":1}]`, string(data))
}
