// Package batch evaluates and transforms many independent expression trees
// concurrently.
package batch

import (
	"context"
	"runtime"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/exprtree/internal/ast"
)

// MaxConcurrency caps the number of goroutines a batch may use.
const MaxConcurrency = 1024

// Options controls a batch run.
type Options struct {
	// Concurrency is the number of trees processed at once. Zero or a
	// negative value means GOMAXPROCS.
	Concurrency int
}

// Limit returns the effective concurrency limit.
func (o Options) Limit() int {
	limit := o.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	if limit > MaxConcurrency {
		limit = MaxConcurrency
	}
	return limit
}

// Evaluate returns the value of every expression, in input order.
func Evaluate(ctx context.Context, exprs []ast.Expression, opts Options) ([]float64, error) {
	if err := checkInputs(exprs); err != nil {
		return nil, err
	}

	results := make([]float64, len(exprs))
	err := run(ctx, len(exprs), opts, func(i int) error {
		results[i] = exprs[i].Evaluate()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Transform applies a transformer to every expression and returns the new
// trees in input order. newTransformer is called once per tree so that
// stateful transformers are never shared between goroutines.
func Transform(
	ctx context.Context, exprs []ast.Expression, newTransformer func() ast.Transformer, opts Options,
) ([]ast.Expression, error) {
	if newTransformer == nil {
		return nil, errors.AssertionFailedf("nil transformer factory")
	}
	if err := checkInputs(exprs); err != nil {
		return nil, err
	}

	results := make([]ast.Expression, len(exprs))
	err := run(ctx, len(exprs), opts, func(i int) error {
		t := newTransformer()
		if t == nil {
			return errors.Newf("transformer factory returned nil for expression %d", i)
		}
		results[i] = exprs[i].Transform(t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Optimize runs a fresh pipeline at level over every expression. The returned
// stats are in input order.
func Optimize(
	ctx context.Context, exprs []ast.Expression, level ast.OptimizationLevel, maxIterations int, opts Options,
) ([]ast.Expression, []*ast.OptimizationStats, error) {
	if err := checkInputs(exprs); err != nil {
		return nil, nil, err
	}

	results := make([]ast.Expression, len(exprs))
	stats := make([]*ast.OptimizationStats, len(exprs))
	err := run(ctx, len(exprs), opts, func(i int) error {
		pipeline := ast.CreateStandardOptimizationPipeline(level)
		if maxIterations > 0 {
			pipeline.SetMaxIterations(maxIterations)
		}
		optimized, s, err := pipeline.Optimize(exprs[i])
		if err != nil {
			return errors.Wrapf(err, "expression %d", i)
		}
		results[i], stats[i] = optimized, s
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return results, stats, nil
}

// checkInputs rejects nil and typed-nil trees up front. A nil node would
// otherwise be dereferenced on a worker goroutine, where the panic cannot be
// recovered by the caller.
func checkInputs(exprs []ast.Expression) error {
	for i, e := range exprs {
		if ast.IsNil(e) {
			return errors.Newf("expression %d is nil", i)
		}
	}
	return nil
}

// run calls fn for every index in [0, n) with at most opts.Limit() calls in
// flight. It stops scheduling work once ctx is done or fn fails.
func run(ctx context.Context, n int, opts Options, fn func(i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Limit())

	for i := 0; i < n; i++ {
		if err := gctx.Err(); err != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// Work skipped because the parent was cancelled must not look like success.
	return ctx.Err()
}
