package ast

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/stretchr/testify/require"
)

// buildScenario builds abs(var * sqrt(32 - 16)).
func buildScenario() Expression {
	minus := NewBinaryOperation(NewNumber(32), OpMinus, NewNumber(16))
	sqrt := NewFunctionCall("sqrt", minus)
	mul := NewBinaryOperation(NewVariable("var"), OpMul, sqrt)
	return NewFunctionCall("abs", mul)
}

// requireAssertionPanic fails the test unless f panics with an assertion
// failure error.
func requireAssertionPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected construction to panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.HasAssertionFailure(err), "panic %v is not an assertion failure", err)
	}()
	f()
}

func TestLeafEvaluation(t *testing.T) {
	require.Equal(t, 2.5, NewNumber(2.5).Evaluate())
	require.Equal(t, -7.0, NewNumber(-7).Evaluate())
	require.Equal(t, 0.0, NewVariable("x").Evaluate())
	require.Equal(t, "x", NewVariable("x").Name())
}

func TestBinaryOperationEvaluation(t *testing.T) {
	tests := []struct {
		name     string
		left     float64
		op       Operator
		right    float64
		expected float64
	}{
		{"addition", 3, OpPlus, 4, 7},
		{"subtraction", 10, OpMinus, 4, 6},
		{"multiplication", 5, OpMul, 6, 30},
		{"division", 9, OpDiv, 2, 4.5},
		{"division by zero", 1, OpDiv, 0, math.Inf(1)},
		{"negative division by zero", -1, OpDiv, 0, math.Inf(-1)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			e := NewBinaryOperation(NewNumber(test.left), test.op, NewNumber(test.right))
			require.Equal(t, test.expected, e.Evaluate())
			require.Equal(t, test.op, e.Operator())
		})
	}

	t.Run("zero by zero", func(t *testing.T) {
		e := NewBinaryOperation(NewNumber(0), OpDiv, NewNumber(0))
		require.True(t, math.IsNaN(e.Evaluate()))
	})
}

func TestFunctionCallEvaluation(t *testing.T) {
	require.Equal(t, 4.0, NewFunctionCall("sqrt", NewNumber(16)).Evaluate())
	require.Equal(t, 3.0, NewFunctionCall("abs", NewNumber(-3)).Evaluate())
	require.True(t, math.IsNaN(NewFunctionCall("sqrt", NewNumber(-1)).Evaluate()))

	call := NewFunctionCall("abs", NewVariable("y"))
	require.Equal(t, "abs", call.Name())
	require.Equal(t, FuncAbs, call.Function())
}

func TestScenarioEvaluation(t *testing.T) {
	e := buildScenario()
	require.Equal(t, 0.0, e.Evaluate())
	require.Equal(t, "abs((var * sqrt((32 - 16))))", e.String())
}

func TestConstructionFailsFast(t *testing.T) {
	t.Run("nil left operand", func(t *testing.T) {
		requireAssertionPanic(t, func() { NewBinaryOperation(nil, OpPlus, NewNumber(1)) })
	})
	t.Run("nil right operand", func(t *testing.T) {
		requireAssertionPanic(t, func() { NewBinaryOperation(NewNumber(1), OpPlus, nil) })
	})
	t.Run("typed nil operand", func(t *testing.T) {
		var n *Number
		requireAssertionPanic(t, func() { NewBinaryOperation(n, OpPlus, NewNumber(1)) })
	})
	t.Run("unsupported operator", func(t *testing.T) {
		requireAssertionPanic(t, func() { NewBinaryOperation(NewNumber(1), Operator('%'), NewNumber(2)) })
	})
	t.Run("unsupported function", func(t *testing.T) {
		requireAssertionPanic(t, func() { NewFunctionCall("log", NewNumber(1)) })
	})
	t.Run("nil argument", func(t *testing.T) {
		requireAssertionPanic(t, func() { NewFunctionCall("sqrt", nil) })
	})
	t.Run("invalid function value", func(t *testing.T) {
		requireAssertionPanic(t, func() { NewCall(Function(0), NewNumber(1)) })
	})
	t.Run("empty variable name", func(t *testing.T) {
		requireAssertionPanic(t, func() { NewVariable("") })
	})
	t.Run("child attached twice", func(t *testing.T) {
		shared := NewNumber(1)
		NewBinaryOperation(shared, OpPlus, NewNumber(2))
		requireAssertionPanic(t, func() { NewFunctionCall("abs", shared) })
	})
	t.Run("same child on both sides", func(t *testing.T) {
		n := NewNumber(1)
		requireAssertionPanic(t, func() { NewBinaryOperation(n, OpPlus, n) })
		require.Equal(t, "abs(1)", NewFunctionCall("abs", n).String())
	})
	t.Run("rejected operation leaves operands attachable", func(t *testing.T) {
		owned := NewNumber(2)
		NewFunctionCall("abs", owned)

		fresh := NewVariable("x")
		requireAssertionPanic(t, func() { NewBinaryOperation(fresh, OpPlus, owned) })
		requireAssertionPanic(t, func() { NewBinaryOperation(owned, OpPlus, fresh) })
		require.Equal(t, "sqrt(x)", NewFunctionCall("sqrt", fresh).String())
	})
}

func TestIsNil(t *testing.T) {
	require.True(t, IsNil(nil))
	require.True(t, IsNil((*Number)(nil)))
	require.True(t, IsNil((*Variable)(nil)))
	require.True(t, IsNil((*BinaryOperation)(nil)))
	require.True(t, IsNil((*FunctionCall)(nil)))
	require.False(t, IsNil(NewNumber(0)))
}

func TestOperatorAndFunctionLookup(t *testing.T) {
	for _, sym := range []string{"+", "-", "*", "/"} {
		op, ok := ParseOperator(sym)
		require.True(t, ok, sym)
		require.Equal(t, sym, op.String())
	}
	for _, sym := range []string{"", "%", "**", "x"} {
		_, ok := ParseOperator(sym)
		require.False(t, ok, sym)
	}

	fn, ok := LookupFunction("sqrt")
	require.True(t, ok)
	require.Equal(t, FuncSqrt, fn)
	_, ok = LookupFunction("log")
	require.False(t, ok)
	require.Equal(t, "Function(9)", Function(9).String())
}

func TestRedactableFormatting(t *testing.T) {
	e := buildScenario()

	s := redact.Sprint(e)
	require.Equal(t, redact.RedactableString("abs((‹var› * sqrt((32 - 16))))"), s)
	require.Equal(t, redact.RedactableString("abs((‹×› * sqrt((32 - 16))))"), s.Redact())
}

func TestNumberFormatting(t *testing.T) {
	tests := []struct {
		value    float64
		expected string
	}{
		{32, "32"},
		{0.5, "0.5"},
		{-3, "-3"},
		{1e21, "1e+21"},
		{math.Inf(1), "+Inf"},
		{math.NaN(), "NaN"},
	}
	for _, test := range tests {
		require.Equal(t, test.expected, NewNumber(test.value).String())
	}
}

func TestInspectionHelpers(t *testing.T) {
	e := buildScenario()

	require.Equal(t, 7, NodeCount(e))
	require.Equal(t, 5, Depth(e))
	require.True(t, ContainsVariable(e))
	require.False(t, ContainsVariable(NewFunctionCall("sqrt", NewNumber(4))))

	var kinds []string
	Inspect(e, func(node Expression) bool {
		switch node.(type) {
		case *Number:
			kinds = append(kinds, "num")
		case *Variable:
			kinds = append(kinds, "var")
		case *BinaryOperation:
			kinds = append(kinds, "binop")
		case *FunctionCall:
			kinds = append(kinds, "call")
		}
		return true
	})
	require.Equal(t, []string{"call", "binop", "var", "call", "binop", "num", "num"}, kinds)

	visited := 0
	Inspect(e, func(Expression) bool {
		visited++
		return false
	})
	require.Equal(t, 1, visited)
}

func TestEqual(t *testing.T) {
	require.True(t, Equal(buildScenario(), buildScenario()))
	require.True(t, Equal(NewNumber(math.NaN()), NewNumber(math.NaN())))
	require.False(t, Equal(NewNumber(0), NewNumber(math.Copysign(0, -1))))
	require.False(t, Equal(NewVariable("a"), NewVariable("b")))
	require.False(t, Equal(NewNumber(1), NewVariable("a")))
	require.False(t, Equal(
		NewBinaryOperation(NewNumber(1), OpPlus, NewNumber(2)),
		NewBinaryOperation(NewNumber(1), OpMinus, NewNumber(2)),
	))
	require.False(t, Equal(
		NewFunctionCall("sqrt", NewNumber(4)),
		NewFunctionCall("abs", NewNumber(4)),
	))
}
