// Package ast - transformation protocol and tree inspection helpers.
// Behaviour specific to a tree shape lives in Transformer implementations
// instead of in the node types, so new rewrites need no change to the nodes.
package ast

import (
	"math"

	"github.com/cockroachdb/errors"
)

// Transformer maps each node kind to a producer of a new tree. Every method
// receives the node being transformed and returns a freshly built Expression
// owned by the caller. Composite methods recurse by calling Transform on the
// children with the same Transformer.
//
// Implementations must handle all four kinds; there is no fallback.
type Transformer interface {
	TransformNumber(node *Number) Expression
	TransformVariable(node *Variable) Expression
	TransformBinaryOperation(node *BinaryOperation) Expression
	TransformFunctionCall(node *FunctionCall) Expression
}

// Inspect traverses e in pre-order, calling f for every node. Children of a
// node are skipped when f returns false for it.
func Inspect(e Expression, f func(Expression) bool) {
	if !f(e) {
		return
	}

	switch n := e.(type) {
	case *Number, *Variable:
	case *BinaryOperation:
		Inspect(n.left, f)
		Inspect(n.right, f)
	case *FunctionCall:
		Inspect(n.arg, f)
	default:
		panic(unexpectedKind(e))
	}
}

// NodeCount returns the number of nodes in e.
func NodeCount(e Expression) int {
	count := 0
	Inspect(e, func(Expression) bool {
		count++
		return true
	})
	return count
}

// Depth returns the number of nodes on the longest root-to-leaf path of e.
func Depth(e Expression) int {
	switch n := e.(type) {
	case *Number, *Variable:
		return 1
	case *BinaryOperation:
		return 1 + max(Depth(n.left), Depth(n.right))
	case *FunctionCall:
		return 1 + Depth(n.arg)
	default:
		panic(unexpectedKind(e))
	}
}

// ContainsVariable reports whether any node of e is a Variable.
func ContainsVariable(e Expression) bool {
	found := false
	Inspect(e, func(node Expression) bool {
		if _, ok := node.(*Variable); ok {
			found = true
		}
		return !found
	})
	return found
}

// Equal reports whether a and b have the same shape and the same scalar
// fields. Numbers compare by bit pattern, so NaN equals NaN and 0 differs
// from -0.
func Equal(a, b Expression) bool {
	switch x := a.(type) {
	case *Number:
		y, ok := b.(*Number)
		return ok && math.Float64bits(x.value) == math.Float64bits(y.value)
	case *Variable:
		y, ok := b.(*Variable)
		return ok && x.name == y.name
	case *BinaryOperation:
		y, ok := b.(*BinaryOperation)
		return ok && x.op == y.op && Equal(x.left, y.left) && Equal(x.right, y.right)
	case *FunctionCall:
		y, ok := b.(*FunctionCall)
		return ok && x.fn == y.fn && Equal(x.arg, y.arg)
	default:
		panic(unexpectedKind(a))
	}
}

// SharesNodes reports whether any node of a is also a node of b.
func SharesNodes(a, b Expression) bool {
	seen := make(map[Expression]struct{})
	Inspect(a, func(node Expression) bool {
		seen[node] = struct{}{}
		return true
	})
	shared := false
	Inspect(b, func(node Expression) bool {
		if _, ok := seen[node]; ok {
			shared = true
		}
		return !shared
	})
	return shared
}

func unexpectedKind(e Expression) error {
	return errors.AssertionFailedf("unexpected expression kind %T", e)
}
