package cmd

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/violet-project/violet-analyzer/violet"
	"github.com/violet-project/violet-analyzer/violet/difftrace"
	"github.com/violet-project/violet-analyzer/violet/parser"
	"github.com/violet-project/violet-analyzer/violet/symtab"
	"github.com/violet-project/violet-analyzer/violet/trace"
)

// app carries the state shared by the root command and its subcommands.
type app struct {
	configPath string
	flags      Config // values bound to the command line flags

	cfg       Config // effective settings after setup
	log       *logrus.Logger
	logCloser io.Closer
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "violet-analyzer",
		Short: "Diff the per-state function traces of a Violet S2E log",
		Long: "Parses the TestCaseGenerator and LatencyTracker output of a Violet S2E run\n" +
			"and prints a unified diff of the function traces of every pair of states.",
		PersistentPreRunE: a.setup,
		RunE:              a.wrap(a.runAnalyze),
	}

	defaults := DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.flags.Input, "input", "i", "", "S2E log to analyze (.txt, .zst or binary .dat)")
	pf.StringVarP(&a.flags.Output, "output", "o", "", "Write the report to this file instead of stdout")
	pf.BoolVar(&a.flags.Overwrite, "overwrite", false, "Reserved; the output file is always truncated")
	pf.StringVar(&a.flags.LogLevel, "log", defaults.LogLevel, "Log level (trace, debug, info, warn, error, fatal, panic)")
	pf.StringVar(&a.flags.LogFile, "log-file", "", "Also append log output to this file")
	pf.StringVar(&a.configPath, "config", "", "YAML config file; flags override its values")
	pf.IntVarP(&a.flags.Context, "context", "C", defaults.Context, "Unchanged trace lines around each change")
	pf.StringVar(&a.flags.Mode, "mode", defaults.Mode, "Diff rendering: items (full calls) or keys (function, caller)")
	pf.StringVar(&a.flags.Symbols, "symbols", "", "objdump -t output of the traced binary, used to name addresses")
	pf.StringVar(&a.flags.OutDir, "outdir", "", "Dump each state's trace into this directory")
	pf.Float64Var(&a.flags.LatencyThreshold, "latency-threshold", 0, "Skip pairs whose execution times differ relatively by less than this (0 compares all)")

	rootCmd.AddCommand(newSummaryCmd(a), newDiffCmd(a))
	return rootCmd
}

// Execute runs the CLI root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup resolves the effective configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := DefaultConfig()
	if a.configPath != "" {
		loaded, err := LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyFlags(&cfg, &a.flags, cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := checkInput(cfg.Input); err != nil {
		return err
	}

	log, closer, err := newLogger(cfg.LogLevel, cfg.LogFile, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg, a.log, a.logCloser = cfg, log, closer
	if cfg.Overwrite {
		log.Debug("--overwrite has no effect; output files are always truncated")
	}
	return nil
}

func (a *app) wrap(run func(cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		defer func() { _ = a.logCloser.Close() }()
		return run(cmd)
	}
}

func (a *app) loadTable() (*trace.CostTable, error) {
	p := parser.New(a.log)
	table, err := p.ParseFile(a.cfg.Input)
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		a.log.Warn("No TestCaseGenerator or LatencyTracker records found in input")
	}
	return table, nil
}

// itemFormatter returns the symbol-annotating formatter when a symbol file
// is configured, nil otherwise.
func (a *app) itemFormatter() (difftrace.ItemFormatter, error) {
	if a.cfg.Symbols == "" {
		return nil, nil
	}
	table, err := symtab.ParseFile(a.cfg.Symbols, a.log)
	if err != nil {
		return nil, err
	}
	resolver, err := symtab.NewResolver(table, symtab.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	a.log.WithField("symbols", table.Len()).Info("Loaded symbol table")
	return resolver.FormatItem, nil
}

func (a *app) differ(format difftrace.ItemFormatter) violet.TraceDiffer {
	if a.cfg.Mode == ModeKeys {
		k := difftrace.NewKeyDiffer()
		k.Context = a.cfg.Context
		return k
	}
	d := difftrace.NewDiffer()
	d.Context = a.cfg.Context
	d.Format = format
	return d
}

// openOutput opens the report sink and returns a function that closes it,
// keeping the first error seen.
func (a *app) openOutput(cmd *cobra.Command) (io.Writer, func(*error), error) {
	out, err := violet.OpenOutput(a.cfg.Output, cmd.OutOrStdout())
	if err != nil {
		return nil, nil, err
	}
	done := func(errp *error) {
		if cerr := out.Close(); cerr != nil && *errp == nil {
			*errp = cerr
		}
	}
	return out, done, nil
}

func (a *app) runAnalyze(cmd *cobra.Command) (err error) {
	cmd.SilenceUsage = true

	table, err := a.loadTable()
	if err != nil {
		return err
	}
	format, err := a.itemFormatter()
	if err != nil {
		return err
	}
	if a.cfg.OutDir != "" {
		paths, err := violet.DumpTraces(table, a.cfg.OutDir, format)
		if err != nil {
			return err
		}
		a.log.WithFields(logrus.Fields{"dir": a.cfg.OutDir, "files": len(paths)}).Info("Dumped state traces")
	}

	out, done, err := a.openOutput(cmd)
	if err != nil {
		return err
	}
	defer done(&err)

	analyzer := violet.NewAnalyzer(a.differ(format), violet.Options{LatencyThreshold: a.cfg.LatencyThreshold}, a.log)
	_, err = analyzer.Analyze(table, out)
	return err
}
