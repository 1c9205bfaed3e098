package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/orizon-lang/exprtree/internal/ast"
	"github.com/orizon-lang/exprtree/internal/batch"
	"github.com/orizon-lang/exprtree/internal/cli"
	"github.com/orizon-lang/exprtree/internal/treefile"
	"github.com/orizon-lang/exprtree/internal/watch"
)

func newEvalCmd(opts *optsT) *cobra.Command {
	return &cobra.Command{
		Use:   "eval FILE",
		Short: "Print the value of every tree in FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(args[0])
			if err != nil {
				return err
			}
			values, err := batch.Evaluate(cmd.Context(), expressions(docs), opts.batchOptions())
			if err != nil {
				return err
			}
			for i, v := range values {
				fmt.Fprintf(opts.out, "%s = %s\n", label(docs[i]), formatValue(v))
			}
			return nil
		},
	}
}

func newCopyCmd(opts *optsT) *cobra.Command {
	return &cobra.Command{
		Use:   "copy FILE",
		Short: "Deep-copy every tree in FILE and write the copies as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(args[0])
			if err != nil {
				return err
			}
			copies, err := batch.Transform(cmd.Context(), expressions(docs), func() ast.Transformer {
				return &ast.CopyTransformer{}
			}, opts.batchOptions())
			if err != nil {
				return err
			}
			for i := range docs {
				docs[i].Expr = copies[i]
			}
			return treefile.Encode(opts.out, docs)
		},
	}
}

func newFoldCmd(opts *optsT) *cobra.Command {
	var watchFile, dump bool
	cmd := &cobra.Command{
		Use:   "fold FILE",
		Short: "Constant-fold every tree in FILE and write the results as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !watchFile {
				return opts.fold(cmd.Context(), path, dump)
			}

			fw, err := watch.NewFileWatcher(path)
			if err != nil {
				return err
			}
			if err := opts.fold(cmd.Context(), path, dump); err != nil {
				opts.logger.Error("%v", err)
			}
			opts.logger.Info("watching %s", fw.Path())
			return fw.Run(cmd.Context(), func(ev watch.Event) {
				opts.logger.Debug("%s: %s", ev.Op, ev.Path)
				if err := opts.fold(cmd.Context(), path, dump); err != nil {
					opts.logger.Error("%v", err)
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&watchFile, "watch", "w", false, "Fold again whenever FILE changes")
	cmd.Flags().BoolVar(&dump, "dump", false, "Print the node structure instead of YAML")
	return cmd
}

func newDemoCmd(opts *optsT) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Build, copy and fold the sample trees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts)
		},
	}
}

func newConfigCmd(opts *optsT) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init FILE",
		Short: "Write the effective configuration to FILE",
		Long: `Write the effective configuration, the --config file merged with any
flags given on the command line, to FILE as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !force {
				if _, err := os.Stat(path); err == nil {
					return errors.Newf("%s already exists; use --force to overwrite", path)
				}
			}
			if err := opts.config.SaveConfig(path); err != nil {
				return err
			}
			opts.logger.Info("wrote %s", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(initCmd)
	return configCmd
}

func newVersionCmd(opts *optsT) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.PrintVersion(opts.out, "exprtree", jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version in JSON format")
	return cmd
}

func (opts *optsT) batchOptions() batch.Options {
	return batch.Options{Concurrency: opts.config.Concurrency}
}

func (opts *optsT) fold(ctx context.Context, path string, dump bool) error {
	docs, err := readDocuments(path)
	if err != nil {
		return err
	}
	results, stats, err := batch.Optimize(
		ctx, expressions(docs), opts.config.Level(), opts.config.MaxIterations, opts.batchOptions(),
	)
	if err != nil {
		return err
	}
	for i := range docs {
		opts.logger.Info("%s: %s", label(docs[i]), stats[i])
		docs[i].Expr = results[i]
	}

	if dump {
		for _, doc := range docs {
			if _, err := pretty.Fprintf(opts.out, "%s: %# v\n", label(doc), doc.Expr); err != nil {
				return err
			}
		}
		return nil
	}
	return treefile.Encode(opts.out, docs)
}

// runDemo walks through the sample trees: abs(var * sqrt(32 - 16)), which
// folds to abs(var * 4), and (10 - 4) / 2, which folds to a single number.
func runDemo(opts *optsT) error {
	samples := []ast.Expression{
		ast.NewFunctionCall("abs", ast.NewBinaryOperation(
			ast.NewVariable("var"),
			ast.OpMul,
			ast.NewFunctionCall("sqrt", ast.NewBinaryOperation(ast.NewNumber(32), ast.OpMinus, ast.NewNumber(16))),
		)),
		ast.NewBinaryOperation(
			ast.NewBinaryOperation(ast.NewNumber(10), ast.OpMinus, ast.NewNumber(4)),
			ast.OpDiv,
			ast.NewNumber(2),
		),
	}

	for i, e := range samples {
		if i > 0 {
			fmt.Fprintln(opts.out)
		}
		copied := ast.Copy(e)
		stats := &ast.OptimizationStats{PassName: "ConstantFolding"}
		folded := e.Transform(&ast.ConstantFoldTransformer{Stats: stats})

		fmt.Fprintf(opts.out, "original: %s\n", e)
		fmt.Fprintf(opts.out, "redacted: %s\n", redact.Sprint(e).Redact().StripMarkers())
		fmt.Fprintf(opts.out, "value:    %s\n", formatValue(e.Evaluate()))
		fmt.Fprintf(opts.out, "copy:     %s\n", copied)
		fmt.Fprintf(opts.out, "folded:   %s\n", folded)
		fmt.Fprintf(opts.out, "value:    %s\n", formatValue(folded.Evaluate()))
		opts.logger.Info("%s", stats)
	}
	return nil
}

func readDocuments(path string) ([]treefile.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening tree file")
	}
	defer f.Close()

	docs, err := treefile.Decode(f, path)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.Newf("%s contains no documents", path)
	}
	return docs, nil
}

func expressions(docs []treefile.Document) []ast.Expression {
	exprs := make([]ast.Expression, len(docs))
	for i, doc := range docs {
		exprs[i] = doc.Expr
	}
	return exprs
}

func label(doc treefile.Document) string {
	if doc.Name != "" {
		return doc.Name
	}
	return doc.Expr.String()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
