// Package cmd implements the stratc command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/stratlang/stratc/compiler"
	"github.com/stratlang/stratc/diag"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Execute runs the stratc CLI with the given version string.
func Execute(version string) {
	cmd := &cli.Command{
		Name:                   "stratc",
		Usage:                  "Compile trading strategies to JavaScript",
		Version:                version,
		UseShortOptionHandling: true,
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "Compile a .strat file to JavaScript",
				ArgsUsage: "<file.strat>",
				Flags: append(compileFlags(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file name (default: <file>.js)",
					},
				),
				Action: buildAction,
			},
			{
				Name:      "emit",
				Usage:     "Compile a .strat file and print the JavaScript to stdout",
				ArgsUsage: "<file.strat>",
				Flags:     compileFlags(),
				Action:    emitAction,
			},
			{
				Name:      "check",
				Usage:     "Parse a .strat file and report diagnostics without generating code",
				ArgsUsage: "<file.strat>",
				Action:    checkAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func compileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "dialect",
			Usage: "Output dialect: es2022 or commonjs",
		},
		&cli.StringFlag{
			Name:    "opt",
			Aliases: []string{"O"},
			Usage:   "Optimization level: none, basic, or aggressive",
		},
		&cli.BoolFlag{
			Name:  "source-map",
			Usage: "Emit a .map file alongside the code",
		},
		&cli.BoolFlag{
			Name:  "checks",
			Usage: "Add runtime type checks on order quantities and prices",
		},
		&cli.BoolFlag{
			Name:  "cache",
			Usage: "Use the content-addressed object cache",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Override the object cache directory",
		},
	}
}

// resolveOptions layers CLI flags over the project config next to source.
func resolveOptions(cmd *cli.Command, source string) (compiler.Options, error) {
	cfg, err := loadProjectConfig(source)
	if err != nil {
		return compiler.Options{}, err
	}
	opts, err := cfg.options()
	if err != nil {
		return compiler.Options{}, err
	}
	if cmd.IsSet("dialect") {
		d := compiler.Dialect(cmd.String("dialect"))
		if d != compiler.DialectES2022 && d != compiler.DialectCommonJS {
			return opts, fmt.Errorf("unknown dialect %q", cmd.String("dialect"))
		}
		opts.Dialect = d
	}
	if cmd.IsSet("opt") {
		lvl, err := compiler.ParseOptLevel(cmd.String("opt"))
		if err != nil {
			return opts, err
		}
		opts.Optimize = lvl
	}
	if cmd.IsSet("source-map") {
		opts.SourceMap = cmd.Bool("source-map")
	}
	if cmd.IsSet("checks") {
		opts.RuntimeChecks = cmd.Bool("checks")
	}
	if cmd.IsSet("cache") {
		opts.Cache = cmd.Bool("cache")
	}
	if cmd.IsSet("cache-dir") {
		opts.CacheDir = cmd.String("cache-dir")
	}
	return opts, nil
}

func buildAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: stratc build [-o output] <file.strat>")
	}
	source := cmd.Args().First()
	opts, err := resolveOptions(cmd, source)
	if err != nil {
		return err
	}
	res, err := compile(source, opts)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "" {
		output = strings.TrimSuffix(source, ".strat") + ".js"
	}
	if err := os.WriteFile(output, []byte(res.Code), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	if res.SourceMap != nil {
		if err := os.WriteFile(output+".map", res.SourceMap, 0644); err != nil {
			return fmt.Errorf("writing %s.map: %w", output, err)
		}
	}
	return nil
}

func emitAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: stratc emit <file.strat>")
	}
	source := cmd.Args().First()
	opts, err := resolveOptions(cmd, source)
	if err != nil {
		return err
	}
	res, err := compile(source, opts)
	if err != nil {
		return err
	}
	fmt.Print(res.Code)
	return nil
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: stratc check <file.strat>")
	}
	source := cmd.Args().First()
	data, err := os.ReadFile(source)
	if err != nil {
		return err
	}
	comp := compiler.New(compiler.Options{})
	_, bag := comp.ParseWithDiagnostics(string(data), source)
	reportDiagnostics(bag)
	if bag.HasErrors() {
		os.Exit(1)
	}
	return nil
}

// compile reads and compiles source, printing diagnostics to stderr. It
// returns an error when the diagnostics contain errors so the process exits
// nonzero without producing output files.
func compile(source string, opts compiler.Options) (*compiler.Result, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}
	comp := compiler.New(opts)
	res, err := comp.Compile(string(data), source)
	if err != nil {
		return nil, err
	}
	reportDiagnostics(res.Diagnostics)
	if res.Diagnostics.HasErrors() {
		return nil, fmt.Errorf("%s: compilation failed", source)
	}
	return res, nil
}

// reportDiagnostics prints the bag to stderr, coloring errors and warnings
// when stderr is an interactive terminal and NO_COLOR is unset.
func reportDiagnostics(bag *diag.Bag) {
	if bag.Len() == 0 {
		return
	}
	color := term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == ""
	if !color {
		fmt.Fprint(os.Stderr, bag.Report())
		return
	}
	for _, d := range bag.All() {
		code := "\033[31m" // red for errors
		if d.Severity == diag.Warning {
			code = "\033[33m" // yellow for warnings
		}
		fmt.Fprintf(os.Stderr, "%s%s\033[0m\n", code, d.String())
	}
}
