// exprtree evaluates, copies and constant-folds arithmetic expression trees
// stored as YAML documents.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orizon-lang/exprtree/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		cli.ExitWithError("%v", err)
	}
}

type optsT struct {
	configPath  string
	verbose     bool
	debug       bool
	level       string
	concurrency int

	config *cli.Config
	logger *cli.Logger
	out    io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &optsT{out: stdout}

	rootCmd := &cobra.Command{
		Use:           "exprtree",
		Short:         "Evaluate and transform arithmetic expression trees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "JSON configuration file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress and optimization statistics")
	flags.BoolVar(&opts.debug, "debug", false, "Log debug output")
	flags.StringVar(&opts.level, "level", "", "Optimization level: none, basic or default")
	flags.IntVar(&opts.concurrency, "concurrency", 0, "Trees processed at once (0 means GOMAXPROCS)")

	rootCmd.AddCommand(
		newEvalCmd(opts),
		newCopyCmd(opts),
		newFoldCmd(opts),
		newDemoCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(opts),
	)
	return rootCmd
}

// init loads the configuration file and applies flag overrides.
func (opts *optsT) init(cmd *cobra.Command, stderr io.Writer) error {
	config, err := cli.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		config.Verbose = opts.verbose
	}
	if flags.Changed("debug") {
		config.Debug = opts.debug
	}
	if flags.Changed("level") {
		config.OptimizationLevel = opts.level
	}
	if flags.Changed("concurrency") {
		config.Concurrency = opts.concurrency
	}
	if err := config.Validate(); err != nil {
		return err
	}

	opts.config = config
	opts.logger = cli.NewLogger(config.Verbose, config.Debug)
	opts.logger.Out = stderr
	opts.logger.Debug("config: %+v", *config)
	return nil
}
