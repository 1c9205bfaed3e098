// Package ast - optimization passes over expression trees.
// Passes are composed into a pipeline that tracks statistics and iterates
// until no further constants fold.
package ast

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// OptimizationPass represents a single rewrite of an expression tree.
type OptimizationPass interface {
	// Name returns a human-readable name for this pass
	Name() string

	// Apply returns the rewritten tree and the statistics of this run. The
	// input tree is left untouched.
	Apply(e Expression) (Expression, *OptimizationStats)

	// ShouldApply determines if this pass runs at the given level
	ShouldApply(level OptimizationLevel) bool
}

// OptimizationLevel represents the level of optimization to apply
type OptimizationLevel int

const (
	OptimizationNone    OptimizationLevel = iota // Copy only
	OptimizationBasic                            // A single folding iteration
	OptimizationDefault                          // Fold until nothing changes
)

func (ol OptimizationLevel) String() string {
	switch ol {
	case OptimizationNone:
		return "none"
	case OptimizationBasic:
		return "basic"
	case OptimizationDefault:
		return "default"
	default:
		return "unknown"
	}
}

// ParseOptimizationLevel maps a level name to its OptimizationLevel.
func ParseOptimizationLevel(s string) (OptimizationLevel, error) {
	switch strings.ToLower(s) {
	case "none":
		return OptimizationNone, nil
	case "basic":
		return OptimizationBasic, nil
	case "", "default":
		return OptimizationDefault, nil
	default:
		return OptimizationNone, errors.Newf("unknown optimization level %q", s)
	}
}

// OptimizationStats tracks statistics from optimization passes
type OptimizationStats struct {
	PassName         string        // Name of the optimization pass
	NodesVisited     int           // Total number of nodes visited
	NodesTransformed int           // Number of nodes replaced by a different kind
	ConstantsFolded  int           // Number of subtrees collapsed into a literal
	Iterations       int           // Pipeline iterations (global stats only)
	ExecutionTime    time.Duration // Wall time spent in the pass
}

// String returns a human-readable representation of optimization statistics
func (os *OptimizationStats) String() string {
	return fmt.Sprintf("Pass: %s, Visited: %d, Transformed: %d, Constants: %d, Iterations: %d, Time: %s",
		os.PassName, os.NodesVisited, os.NodesTransformed, os.ConstantsFolded, os.Iterations, os.ExecutionTime)
}

func (os *OptimizationStats) add(other *OptimizationStats) {
	os.NodesVisited += other.NodesVisited
	os.NodesTransformed += other.NodesTransformed
	os.ConstantsFolded += other.ConstantsFolded
	os.ExecutionTime += other.ExecutionTime
}

// OptimizationPipeline manages a sequence of optimization passes.
type OptimizationPipeline struct {
	passes        []OptimizationPass
	level         OptimizationLevel
	maxIterations int
}

// DefaultMaxIterations bounds how often a pipeline re-runs its passes.
const DefaultMaxIterations = 5

// NewOptimizationPipeline creates an empty pipeline at the default level.
func NewOptimizationPipeline() *OptimizationPipeline {
	return &OptimizationPipeline{
		level:         OptimizationDefault,
		maxIterations: DefaultMaxIterations,
	}
}

// CreateStandardOptimizationPipeline returns a pipeline with the copy and
// constant folding passes at the given level.
func CreateStandardOptimizationPipeline(level OptimizationLevel) *OptimizationPipeline {
	op := NewOptimizationPipeline()
	op.SetOptimizationLevel(level)
	op.AddPass(NewCopyPass())
	op.AddPass(NewConstantFoldingPass())
	return op
}

// AddPass adds an optimization pass to the pipeline
func (op *OptimizationPipeline) AddPass(pass OptimizationPass) {
	op.passes = append(op.passes, pass)
}

// SetOptimizationLevel sets the target optimization level for the pipeline
func (op *OptimizationPipeline) SetOptimizationLevel(level OptimizationLevel) {
	op.level = level
}

// SetMaxIterations bounds the number of iterations at the default level.
// Values below one are ignored.
func (op *OptimizationPipeline) SetMaxIterations(n int) {
	if n > 0 {
		op.maxIterations = n
	}
}

// Optimize applies the pipeline to root and returns a new tree together
// with statistics aggregated over all passes. The result never shares nodes
// with root, even when no pass applies.
func (op *OptimizationPipeline) Optimize(root Expression) (Expression, *OptimizationStats, error) {
	if IsNil(root) {
		return nil, nil, errors.New("cannot optimize nil expression")
	}

	global := &OptimizationStats{PassName: "Global"}

	iterations := 1
	if op.level >= OptimizationDefault {
		iterations = op.maxIterations
	}

	current := root
	applied := false
	for global.Iterations < iterations {
		folded := 0
		for _, pass := range op.passes {
			if !pass.ShouldApply(op.level) {
				continue
			}
			next, stats := pass.Apply(current)
			current = next
			applied = true
			global.add(stats)
			folded += stats.ConstantsFolded
		}
		global.Iterations++

		if folded == 0 {
			break
		}
	}

	if !applied {
		current = Copy(root)
	}
	return current, global, nil
}

// ===== Constant Folding Pass =====

// ConstantFoldingPass runs a ConstantFoldTransformer over the tree.
type ConstantFoldingPass struct{}

// NewConstantFoldingPass creates a new constant folding optimization pass
func NewConstantFoldingPass() *ConstantFoldingPass {
	return &ConstantFoldingPass{}
}

func (cfp *ConstantFoldingPass) Name() string { return "ConstantFolding" }

// ShouldApply determines if constant folding should be applied at the given optimization level
func (cfp *ConstantFoldingPass) ShouldApply(level OptimizationLevel) bool {
	return level >= OptimizationBasic
}

// Apply performs constant folding on the tree.
func (cfp *ConstantFoldingPass) Apply(e Expression) (Expression, *OptimizationStats) {
	stats := &OptimizationStats{PassName: cfp.Name()}
	start := time.Now()
	result := e.Transform(&ConstantFoldTransformer{Stats: stats})
	stats.ExecutionTime = time.Since(start)
	return result, stats
}

// ===== Copy Pass =====

// CopyPass runs a CopyTransformer over the tree. It only applies when no
// optimization is requested, so callers still receive an independent tree.
type CopyPass struct{}

// NewCopyPass creates a new copy pass
func NewCopyPass() *CopyPass {
	return &CopyPass{}
}

func (cp *CopyPass) Name() string { return "Copy" }

func (cp *CopyPass) ShouldApply(level OptimizationLevel) bool {
	return level == OptimizationNone
}

func (cp *CopyPass) Apply(e Expression) (Expression, *OptimizationStats) {
	stats := &OptimizationStats{PassName: cp.Name()}
	start := time.Now()
	result := Copy(e)
	stats.NodesVisited = NodeCount(result)
	stats.ExecutionTime = time.Since(start)
	return result, stats
}
