// Package ast - the shipped transformations: structural copy and constant
// folding. Both leave their input untouched and build an independent tree.
package ast

// CopyTransformer produces a tree with the same shape and values as its
// input but no nodes in common with it.
type CopyTransformer struct{}

var _ Transformer = (*CopyTransformer)(nil)

func (c *CopyTransformer) TransformNumber(node *Number) Expression {
	return NewNumber(node.value)
}

func (c *CopyTransformer) TransformVariable(node *Variable) Expression {
	return NewVariable(node.name)
}

func (c *CopyTransformer) TransformBinaryOperation(node *BinaryOperation) Expression {
	return NewBinaryOperation(node.left.Transform(c), node.op, node.right.Transform(c))
}

func (c *CopyTransformer) TransformFunctionCall(node *FunctionCall) Expression {
	return NewCall(node.fn, node.arg.Transform(c))
}

// ConstantFoldTransformer collapses every subtree made only of numbers,
// operators and function calls into a single Number. Children are folded
// before their parent is inspected, so one pass reaches the fixed point. A
// Variable blocks folding of every node above it.
//
// The zero value is ready to use. A transformer that records Stats must not
// be shared between goroutines.
type ConstantFoldTransformer struct {
	// Stats, when non-nil, accumulates visit and fold counts.
	Stats *OptimizationStats
}

var _ Transformer = (*ConstantFoldTransformer)(nil)

func (cf *ConstantFoldTransformer) TransformNumber(node *Number) Expression {
	cf.visited()
	return NewNumber(node.value)
}

func (cf *ConstantFoldTransformer) TransformVariable(node *Variable) Expression {
	cf.visited()
	return NewVariable(node.name)
}

// TransformBinaryOperation folds both operands first and collapses the node
// when both results are literals.
func (cf *ConstantFoldTransformer) TransformBinaryOperation(node *BinaryOperation) Expression {
	cf.visited()
	left := node.left.Transform(cf)
	right := node.right.Transform(cf)

	l, leftIsNum := left.(*Number)
	r, rightIsNum := right.(*Number)
	if leftIsNum && rightIsNum {
		cf.folded()
		return NewNumber(node.op.Apply(l.value, r.value))
	}
	return NewBinaryOperation(left, node.op, right)
}

// TransformFunctionCall folds the argument first and collapses the call when
// the result is a literal.
func (cf *ConstantFoldTransformer) TransformFunctionCall(node *FunctionCall) Expression {
	cf.visited()
	arg := node.arg.Transform(cf)

	if x, ok := arg.(*Number); ok {
		cf.folded()
		return NewNumber(node.fn.Apply(x.value))
	}
	return NewCall(node.fn, arg)
}

func (cf *ConstantFoldTransformer) visited() {
	if cf.Stats != nil {
		cf.Stats.NodesVisited++
	}
}

func (cf *ConstantFoldTransformer) folded() {
	if cf.Stats != nil {
		cf.Stats.NodesTransformed++
		cf.Stats.ConstantsFolded++
	}
}

// Copy returns an independent deep copy of e.
func Copy(e Expression) Expression {
	return e.Transform(&CopyTransformer{})
}

// Fold returns e with all constant subtrees collapsed.
func Fold(e Expression) Expression {
	return e.Transform(&ConstantFoldTransformer{})
}
