package treefile

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/orizon-lang/exprtree/internal/ast"
)

const scenario = `
version: 1.0.0
name: scenario
expr:
  call: abs
  arg:
    op: "*"
    left: {var: var}
    right:
      call: sqrt
      arg:
        op: "-"
        left: {num: 32}
        right: {num: 16}
`

func TestDecodeScenario(t *testing.T) {
	docs, err := DecodeString(scenario)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	require.Equal(t, "1.0.0", doc.Version)
	require.Equal(t, "scenario", doc.Name)
	require.Equal(t, "abs((var * sqrt((32 - 16))))", doc.Expr.String())
	require.Equal(t, 0.0, doc.Expr.Evaluate())
}

func TestDecodeStream(t *testing.T) {
	docs, err := DecodeString(`
expr: {num: 1.5}
---
version: "1.0"
expr:
  op: "/"
  left: {num: 1}
  right: {var: x}
`)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	require.Equal(t, CurrentVersion, docs[0].Version)
	require.Equal(t, "", docs[0].Name)
	require.Equal(t, "1.5", docs[0].Expr.String())

	require.Equal(t, "1.0.0", docs[1].Version)
	require.Equal(t, "(1 / x)", docs[1].Expr.String())

	docs, err = DecodeString("")
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestDecodeQuotedNullIsAName(t *testing.T) {
	docs, err := DecodeString("expr: {var: \"null\"}\n")
	require.NoError(t, err)
	require.Equal(t, "null", docs[0].Expr.String())
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   string
	}{
		{
			name:  "not a mapping",
			input: "- 1\n",
			err:   "1:1: expected a mapping",
		},
		{
			name:  "missing expr",
			input: "name: x\n",
			err:   "1:1: document has no expr",
		},
		{
			name:  "unknown key",
			input: "expr:\n  num: 1\n  foo: 2\n",
			err:   `3:3: unknown key "foo"`,
		},
		{
			name:  "two kinds",
			input: "expr: {num: 1, var: x}\n",
			err:   "1:7: expression needs exactly one of num, var, op, call; got 2",
		},
		{
			name:  "no kind",
			input: "expr: {}\n",
			err:   "1:7: expression needs exactly one of num, var, op, call; got 0",
		},
		{
			name:  "stray child key",
			input: "expr: {num: 1, arg: {num: 2}}\n",
			err:   `1:7: key "arg" is not valid for num`,
		},
		{
			name:  "number is not numeric",
			input: "expr: {num: seven}\n",
			err:   "1:13: num must be a number",
		},
		{
			name:  "empty variable",
			input: "expr: {var: \"\"}\n",
			err:   "1:13: variable name must not be empty",
		},
		{
			name:  "null variable",
			input: "expr: {var: null}\n",
			err:   "1:13: variable name must not be empty",
		},
		{
			name:  "tilde variable",
			input: "expr: {var: ~}\n",
			err:   "1:13: variable name must not be empty",
		},
		{
			name:  "null operator",
			input: "expr: {op: ~, left: {num: 1}, right: {num: 2}}\n",
			err:   `1:12: unsupported operator ""`,
		},
		{
			name:  "unsupported operator",
			input: "expr:\n  op: \"%\"\n  left: {num: 1}\n  right: {num: 2}\n",
			err:   `2:7: unsupported operator "%"`,
		},
		{
			name:  "missing operand",
			input: "expr:\n  op: \"+\"\n  left: {num: 1}\n",
			err:   "2:3: missing right",
		},
		{
			name:  "unsupported function",
			input: "expr: {call: sin, arg: {num: 1}}\n",
			err:   `1:14: unsupported function "sin"`,
		},
		{
			name:  "unsupported version",
			input: "version: 2.0.0\nexpr: {num: 1}\n",
			err:   "1:10: unsupported version 2.0.0, want ^1.0",
		},
		{
			name:  "invalid version",
			input: "version: latest\nexpr: {num: 1}\n",
			err:   `1:10: invalid version "latest"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeString(tt.input)
			require.Error(t, err)
			require.Equal(t, tt.err, err.Error())

			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr))
		})
	}
}

func TestDecodeErrorCarriesFilename(t *testing.T) {
	_, err := Decode(strings.NewReader("expr: {call: sin, arg: {num: 1}}\n"), "testdata/bad.yaml")
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "bad.yaml:1:14: "), err.Error())

	_, err = Decode(strings.NewReader("expr: [\n"), "broken.yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading broken.yaml")
}

func TestEncode(t *testing.T) {
	docs, err := DecodeString(scenario)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, docs))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "version: 1.0.0\nname: scenario\nexpr:\n  call: abs\n"), out)
	require.Contains(t, out, `op: "*"`)
	require.Contains(t, out, "num: 32\n")

	decoded, err := Decode(&buf, "")
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.True(t, ast.Equal(docs[0].Expr, decoded[0].Expr))
}

func TestEncodeSpecialValues(t *testing.T) {
	values := []float64{math.Inf(1), math.Inf(-1), math.NaN(), math.Copysign(0, -1), 0.25, 1e21}
	var docs []Document
	for _, v := range values {
		docs = append(docs, Document{Expr: ast.NewNumber(v)})
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, docs))
	out := buf.String()
	for _, want := range []string{"num: .inf", "num: -.inf", "num: .nan", "num: -0.0", "num: 0.25", "num: 1e+21"} {
		require.Contains(t, out, want)
	}

	decoded, err := Decode(&buf, "")
	require.NoError(t, err)
	require.Len(t, decoded, len(values))
	for i, doc := range decoded {
		require.Equal(t, CurrentVersion, doc.Version)
		require.True(t, ast.Equal(docs[i].Expr, doc.Expr), "value %d: %s", i, doc.Expr)
	}
}

func TestEncodeRequiresExpression(t *testing.T) {
	err := Encode(&bytes.Buffer{}, []Document{{Name: "empty"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "document 0 has no expression")
}
