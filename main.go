package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/sambeau/sage/config"
	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/evaluator"
	"github.com/sambeau/sage/pkg/sage/object"
	"github.com/sambeau/sage/pkg/sage/reader"
	"github.com/sambeau/sage/pkg/sage/repl"
	"github.com/sambeau/sage/pkg/sage/sage"
	"github.com/sambeau/sage/pkg/sage/vfs"
	"github.com/sambeau/sage/server"
)

// Version is set at build time via -ldflags
var Version = sage.Version

// errReported means the failure has already been printed.
var errReported = stderrors.New("script failed")

var (
	errorColor = color.New(color.FgRed, color.Bold)
	hintColor  = color.New(color.FgYellow)
	dimColor   = color.New(color.Faint)
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	cancel()
	if err != nil {
		if !stderrors.Is(err, errReported) {
			errorColor.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	if len(args) > 0 && args[0] == "serve" {
		return runServe(ctx, args[1:], stdout, stderr, getenv)
	}

	flags := flag.NewFlagSet("sage", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { printUsage(stderr) }

	var (
		evalCode    = flags.String("e", "", "Evaluate code string")
		render      = flags.Bool("render", false, "Print only the rendered output")
		check       = flags.Bool("check", false, "Check syntax without executing")
		watch       = flags.Bool("watch", false, "Re-run the file when scripts change")
		configPath  = flags.String("config", "", "Path to config file")
		noRemote    = flags.Bool("no-remote", false, "Refuse to load remote modules")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}
	if *showVersion {
		fmt.Fprintf(stdout, "sage version %s\n", Version)
		return nil
	}
	if *check {
		if flags.NArg() == 0 {
			return fmt.Errorf("--check requires at least one file")
		}
		return checkFiles(flags.Args(), stderr)
	}

	cfg, err := loadConfig(*configPath, getenv)
	if err != nil {
		return err
	}
	evaluator.SetRemoteLoading(cfg.Scripts.RemoteAllowed() && !*noRemote)

	var file string
	if *evalCode == "" && flags.NArg() > 0 {
		file = flags.Arg(0)
		cfg.Scripts.Root = filepath.Dir(file)
	}
	if *watch && file == "" {
		return fmt.Errorf("--watch requires a file")
	}

	fs, closer, err := server.OpenFS(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	opts := server.ScriptOptions(cfg, fs)

	c := &cli{stdout: stdout, stderr: stderr, render: *render, fs: fs}
	switch {
	case *evalCode != "":
		opts.Filename = "<eval>"
		return c.execute(ctx, opts, *evalCode)
	case *watch:
		return c.watchFile(ctx, opts, file)
	case file != "":
		return c.executeFile(ctx, opts, file)
	default:
		repl.Start(ctx, stdout, opts, Version)
		return nil
	}
}

// runServe starts the HTTP host.
func runServe(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("sage serve", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		configPath = flags.String("config", "", "Path to config file")
		devMode    = flags.Bool("dev", false, "Development mode")
		port       = flags.Int("port", 0, "Override listen port")
		root       = flags.String("root", "", "Override scripts root")
		noRemote   = flags.Bool("no-remote", false, "Refuse to load remote modules")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, getenv)
	if err != nil {
		return err
	}
	if *devMode {
		cfg.Server.Dev = true
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *root != "" {
		cfg.Scripts.Root = *root
	}
	for _, w := range config.Warnings(cfg) {
		hintColor.Fprintf(stderr, "warning: %s\n", w)
	}
	evaluator.SetRemoteLoading(cfg.Scripts.RemoteAllowed() && !*noRemote)

	srv, err := server.New(cfg, stdout, stderr)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

// loadConfig reads the config file, falling back to the defaults when no
// path was given and none is found.
func loadConfig(path string, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(path, getenv)
	if stderrors.Is(err, config.ErrNoConfig) {
		return config.Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

type cli struct {
	stdout io.Writer
	stderr io.Writer
	render bool
	fs     vfs.FileSystem
}

func (c *cli) executeFile(ctx context.Context, opts sage.Options, file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	opts.Filename = file
	return c.execute(ctx, opts, string(content))
}

// execute runs source. Printed output goes straight to stdout and the
// final value follows unless it is nil; with --render only the page
// output is written.
func (c *cli) execute(ctx context.Context, opts sage.Options, source string) error {
	if c.render {
		out, err := sage.Render(ctx, source, opts)
		if err != nil {
			c.printError(err, opts.Filename, source)
			return errReported
		}
		fmt.Fprint(c.stdout, out)
		return nil
	}

	opts.Logger = sage.WriterLogger(c.stdout)
	value, err := sage.Evaluate(ctx, source, opts)
	if err != nil {
		c.printError(err, opts.Filename, source)
		return errReported
	}
	if value != object.NIL {
		fmt.Fprintln(c.stdout, value.Inspect())
	}
	return nil
}

// watchFile runs file, then runs it again whenever a script below its
// directory changes, until ctx is cancelled.
func (c *cli) watchFile(ctx context.Context, opts sage.Options, file string) error {
	c.executeFile(ctx, opts, file)

	dir, err := filepath.Abs(filepath.Dir(file))
	if err != nil {
		return err
	}
	w, err := vfs.NewWatcher([]string{dir}, []string{server.ScriptExt}, func(string) {
		dimColor.Fprintf(c.stdout, "--- %s\n", file)
		c.executeFile(ctx, opts, file)
	}, io.Discard, c.stderr)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// checkFiles parses each file without evaluating it.
func checkFiles(files []string, stderr io.Writer) error {
	failed := false
	for _, name := range files {
		content, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if _, err := reader.Parse(string(content)); err != nil {
			c := &cli{stderr: stderr}
			c.printError(err, name, string(content))
			failed = true
		}
	}
	if failed {
		return errReported
	}
	return nil
}

// printError prints err with the offending source line and a pointer to
// the column. Errors raised in a loaded file show that file's source.
func (c *cli) printError(err error, filename, source string) {
	var se *serrors.SageError
	if !stderrors.As(err, &se) {
		errorColor.Fprintf(c.stderr, "Error: %v\n", err)
		return
	}
	if se.File == "" {
		se = se.WithFile(filename)
	}
	if se.File != filename {
		source = ""
		if c.fs != nil {
			if data, readErr := c.fs.ReadFile(se.File); readErr == nil {
				source = string(data)
			}
		}
	}

	msg := *se
	msg.Hints = nil
	errorColor.Fprintln(c.stderr, msg.PrettyString())
	for _, hint := range se.Hints {
		hintColor.Fprintf(c.stderr, "  hint: %s\n", hint)
	}
	printSourceContext(c.stderr, source, se.Line, se.Column)
}

// printSourceContext prints the source line and error pointer
func printSourceContext(w io.Writer, source string, line, col int) {
	lines := strings.Split(source, "\n")
	if source == "" || line <= 0 || line > len(lines) {
		return
	}
	text := lines[line-1]
	trimmed := strings.TrimLeft(text, " \t")
	indent := len([]rune(text)) - len([]rune(trimmed))

	fmt.Fprintf(w, "    %s\n", trimmed)
	if col > 0 {
		fmt.Fprintf(w, "    %s^\n", strings.Repeat(" ", max(col-1-indent, 0)))
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `sage - an embedded Lisp for templates

Usage:
  sage [options] [file]
  sage -e "code"
  sage --check <file>...
  sage serve [options]

Options:
  -e CODE          Evaluate code and print its value
  --render         Print only the rendered output, as a page would
  --check          Check syntax without executing
  --watch          Re-run the file whenever a script changes
  --config PATH    Path to config file (default: auto-detect)
  --no-remote      Refuse to load modules over the network
  --version        Show version
  --help           Show this help

Serve options:
  --config PATH    Path to config file
  --dev            Development mode (error pages, reload on change)
  --port PORT      Override listen port
  --root DIR       Override scripts root
  --no-remote      Refuse to load modules over the network

Config Resolution:
  1. --config flag
  2. SAGE_CONFIG environment variable
  3. ./sage.yaml
  4. ~/.config/sage/sage.yaml

Examples:
  sage                       Start the REPL
  sage page.l                Run a script
  sage -e "(+ 1 2)"          Evaluate inline code (outputs: 3)
  sage --render page.l       Render a page to stdout
  sage serve --dev           Serve the current directory on localhost:8080

`)
}
