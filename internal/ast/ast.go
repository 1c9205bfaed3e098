// Package ast defines the arithmetic expression tree and the transformations
// that rewrite it.
//
// Trees are built bottom up through the New* constructors and are immutable
// afterwards. Every node exclusively owns its children: attaching a node that
// already has a parent is rejected at construction time, as are nil children,
// unknown operators, unknown functions and empty variable names. Those checks
// panic with an assertion failure because a tree that fails them is a
// programming error, not an input error.
package ast

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Expression is implemented by exactly four node kinds: *Number, *Variable,
// *BinaryOperation and *FunctionCall. The set is closed; code outside this
// package cannot add a kind.
type Expression interface {
	// Evaluate computes the value of the expression. Variables evaluate to 0.
	Evaluate() float64
	// Transform dispatches to the Transformer method matching the node kind
	// and returns the tree it produces. The receiver is never modified.
	Transform(t Transformer) Expression
	// String renders the expression without redaction markers.
	String() string

	redact.SafeFormatter

	// expressionNode seals the interface and exposes ownership bookkeeping.
	expressionNode() *ownership
}

// ownership records whether a node has been attached to a parent.
type ownership struct {
	owned bool
}

// ===== Operators =====

// Operator is the operator of a BinaryOperation. Its value is the operator's
// ASCII symbol.
type Operator byte

const (
	OpPlus  Operator = '+'
	OpMinus Operator = '-'
	OpMul   Operator = '*'
	OpDiv   Operator = '/'
)

// ParseOperator maps an operator symbol to its Operator.
func ParseOperator(s string) (Operator, bool) {
	if len(s) != 1 {
		return 0, false
	}
	op := Operator(s[0])
	return op, op.IsValid()
}

// IsValid reports whether op is one of the four supported operators.
func (op Operator) IsValid() bool {
	switch op {
	case OpPlus, OpMinus, OpMul, OpDiv:
		return true
	default:
		return false
	}
}

func (op Operator) String() string {
	if op.IsValid() {
		return string(rune(op))
	}
	return fmt.Sprintf("Operator(%d)", byte(op))
}

// SafeValue implements redact.SafeValue.
func (op Operator) SafeValue() {}

// Apply computes l op r with IEEE-754 semantics. Division by zero yields an
// infinity or NaN.
func (op Operator) Apply(l, r float64) float64 {
	switch op {
	case OpPlus:
		return l + r
	case OpMinus:
		return l - r
	case OpMul:
		return l * r
	case OpDiv:
		return l / r
	default:
		panic(errors.AssertionFailedf("unsupported operator %s", op))
	}
}

// ===== Functions =====

// Function identifies a function a FunctionCall may apply.
type Function int

const (
	FuncSqrt Function = iota + 1
	FuncAbs
)

// LookupFunction maps a function name to its Function.
func LookupFunction(name string) (Function, bool) {
	switch name {
	case "sqrt":
		return FuncSqrt, true
	case "abs":
		return FuncAbs, true
	default:
		return 0, false
	}
}

// IsValid reports whether f is a supported function.
func (f Function) IsValid() bool {
	return f == FuncSqrt || f == FuncAbs
}

func (f Function) String() string {
	switch f {
	case FuncSqrt:
		return "sqrt"
	case FuncAbs:
		return "abs"
	default:
		return fmt.Sprintf("Function(%d)", int(f))
	}
}

// SafeValue implements redact.SafeValue.
func (f Function) SafeValue() {}

// Apply computes f(x). sqrt of a negative number yields NaN.
func (f Function) Apply(x float64) float64 {
	switch f {
	case FuncSqrt:
		return math.Sqrt(x)
	case FuncAbs:
		return math.Abs(x)
	default:
		panic(errors.AssertionFailedf("unsupported function %s", f))
	}
}

// ===== Leaves =====

// Number is a numeric literal.
type Number struct {
	own   ownership
	value float64
}

// NewNumber returns a literal holding value.
func NewNumber(value float64) *Number {
	return &Number{value: value}
}

func (n *Number) Value() float64                     { return n.value }
func (n *Number) Evaluate() float64                  { return n.value }
func (n *Number) Transform(t Transformer) Expression { return t.TransformNumber(n) }
func (n *Number) String() string                     { return redact.StringWithoutMarkers(n) }
func (n *Number) expressionNode() *ownership         { return &n.own }

// SafeFormat implements redact.SafeFormatter.
func (n *Number) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeString(redact.SafeString(strconv.FormatFloat(n.value, 'g', -1, 64)))
}

// Variable is a named placeholder. No binding environment exists, so every
// variable evaluates to 0.
type Variable struct {
	own  ownership
	name string
}

// NewVariable returns a variable called name. It panics if name is empty.
func NewVariable(name string) *Variable {
	if name == "" {
		panic(errors.AssertionFailedf("variable name must not be empty"))
	}
	return &Variable{name: name}
}

func (v *Variable) Name() string                       { return v.name }
func (v *Variable) Evaluate() float64                  { return 0 }
func (v *Variable) Transform(t Transformer) Expression { return t.TransformVariable(v) }
func (v *Variable) String() string                     { return redact.StringWithoutMarkers(v) }
func (v *Variable) expressionNode() *ownership         { return &v.own }

// SafeFormat implements redact.SafeFormatter. Variable names are user data
// and stay redactable.
func (v *Variable) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(v.name)
}

// ===== Composites =====

// BinaryOperation applies an Operator to two owned operands.
type BinaryOperation struct {
	own   ownership
	left  Expression
	op    Operator
	right Expression
}

// NewBinaryOperation returns left op right. It panics if either operand is
// nil or already attached to another node, or if op is not supported.
func NewBinaryOperation(left Expression, op Operator, right Expression) *BinaryOperation {
	if IsNil(left) || IsNil(right) {
		panic(errors.AssertionFailedf("binary operation %s: operands must not be nil", op))
	}
	if !op.IsValid() {
		panic(errors.AssertionFailedf("unsupported operator %s", op))
	}
	if left == right {
		panic(errors.AssertionFailedf("binary operation %s: operand %v used twice", op, left))
	}
	checkUnowned(left, "binary operation")
	checkUnowned(right, "binary operation")
	return &BinaryOperation{
		left:  claim(left),
		op:    op,
		right: claim(right),
	}
}

func (b *BinaryOperation) Left() Expression   { return b.left }
func (b *BinaryOperation) Right() Expression  { return b.right }
func (b *BinaryOperation) Operator() Operator { return b.op }

func (b *BinaryOperation) Evaluate() float64 {
	return b.op.Apply(b.left.Evaluate(), b.right.Evaluate())
}

func (b *BinaryOperation) Transform(t Transformer) Expression {
	return t.TransformBinaryOperation(b)
}

func (b *BinaryOperation) String() string             { return redact.StringWithoutMarkers(b) }
func (b *BinaryOperation) expressionNode() *ownership { return &b.own }

// SafeFormat implements redact.SafeFormatter.
func (b *BinaryOperation) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("(%v %v %v)", b.left, b.op, b.right)
}

// FunctionCall applies a Function to one owned argument.
type FunctionCall struct {
	own ownership
	fn  Function
	arg Expression
}

// NewFunctionCall returns name(arg). It panics unless name is "sqrt" or
// "abs", or if arg is nil or already attached to another node.
func NewFunctionCall(name string, arg Expression) *FunctionCall {
	fn, ok := LookupFunction(name)
	if !ok {
		panic(errors.AssertionFailedf("unsupported function %q", redact.Safe(name)))
	}
	return NewCall(fn, arg)
}

// NewCall is NewFunctionCall for an already resolved Function.
func NewCall(fn Function, arg Expression) *FunctionCall {
	if !fn.IsValid() {
		panic(errors.AssertionFailedf("unsupported function %s", fn))
	}
	if IsNil(arg) {
		panic(errors.AssertionFailedf("function call %s: argument must not be nil", fn))
	}
	checkUnowned(arg, "function call")
	return &FunctionCall{fn: fn, arg: claim(arg)}
}

func (f *FunctionCall) Name() string               { return f.fn.String() }
func (f *FunctionCall) Function() Function         { return f.fn }
func (f *FunctionCall) Arg() Expression            { return f.arg }
func (f *FunctionCall) Evaluate() float64          { return f.fn.Apply(f.arg.Evaluate()) }
func (f *FunctionCall) String() string             { return redact.StringWithoutMarkers(f) }
func (f *FunctionCall) expressionNode() *ownership { return &f.own }

func (f *FunctionCall) Transform(t Transformer) Expression {
	return t.TransformFunctionCall(f)
}

// SafeFormat implements redact.SafeFormatter.
func (f *FunctionCall) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%v(%v)", f.fn, f.arg)
}

// checkUnowned panics if child already has a parent. Constructors check
// every operand before claiming any, so a rejected call leaves all of them
// attachable.
func checkUnowned(child Expression, parent string) {
	if child.expressionNode().owned {
		panic(errors.AssertionFailedf("%s: operand %v already belongs to another expression",
			redact.Safe(parent), child))
	}
}

func claim(child Expression) Expression {
	child.expressionNode().owned = true
	return child
}

// IsNil reports whether e is nil or a typed nil pointer to a node.
func IsNil(e Expression) bool {
	switch n := e.(type) {
	case nil:
		return true
	case *Number:
		return n == nil
	case *Variable:
		return n == nil
	case *BinaryOperation:
		return n == nil
	case *FunctionCall:
		return n == nil
	default:
		return false
	}
}
