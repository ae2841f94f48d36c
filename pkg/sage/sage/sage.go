// Package sage is the embedding API for the Sage language: evaluate or
// render a script with a host registry, a virtual file system and a
// module loader.
package sage

import (
	"context"
	stderrors "errors"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/evaluator"
	"github.com/sambeau/sage/pkg/sage/object"
	"github.com/sambeau/sage/pkg/sage/reader"
	"github.com/sambeau/sage/pkg/sage/vfs"
)

// Version is the language release.
const Version = "0.4.0"

// Options configures an evaluation. The zero value evaluates with no
// host operations, no file system and output sent to stdout.
type Options struct {
	Logger   Logger
	Host     evaluator.HostRegistry
	FS       vfs.FileSystem
	Root     string // directory `load` resolves bare names against
	Fetcher  evaluator.Fetcher
	Index    evaluator.IndexResolver
	GistAPI  string
	Cache    *evaluator.ModuleCache // defaults to the process-wide cache
	Globals  map[string]any         // bound in the root frame before evaluation
	MaxDepth int
	Filename string // reported in error messages
}

// Interpreter evaluates scripts with a fixed set of options.
type Interpreter struct {
	opts Options
}

// New returns an interpreter for opts.
func New(opts Options) *Interpreter {
	return &Interpreter{opts: opts}
}

// Result is everything one evaluation produced.
type Result struct {
	Value    object.Object
	Output   string
	PageVars map[string]string
}

// Evaluate runs source and returns the value of its last form, or the
// value given to `return`.
func Evaluate(ctx context.Context, source string, opts Options) (object.Object, error) {
	return New(opts).Evaluate(ctx, source)
}

// Render runs source and returns the text written by print, println and
// block filters.
func Render(ctx context.Context, source string, opts Options) (string, error) {
	return New(opts).Render(ctx, source)
}

func (in *Interpreter) Evaluate(ctx context.Context, source string) (object.Object, error) {
	res, err := in.run(ctx, source, in.opts.Logger)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

func (in *Interpreter) Render(ctx context.Context, source string) (string, error) {
	res, err := in.RenderPage(ctx, source)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// RenderPage is Render that also reports the value and the page
// variables declared by the script.
func (in *Interpreter) RenderPage(ctx context.Context, source string) (*Result, error) {
	buf := NewBufferedLogger()
	res, err := in.run(ctx, source, buf)
	if err != nil {
		return nil, err
	}
	res.Output = buf.String()
	return res, nil
}

func (in *Interpreter) run(ctx context.Context, source string, out Logger) (*Result, error) {
	prog, err := reader.Parse(source)
	if err != nil {
		return nil, in.withFile(err)
	}

	ev := in.newEvaluator(ctx, out)
	env := evaluator.NewRootEnvironment()
	bindGlobals(env, in.opts.Globals)

	vars := make(map[string]string, len(prog.PageVars))
	for _, pv := range prog.PageVars {
		env.SetName(pv.Name, object.NewString(pv.Value))
		vars[pv.Name] = pv.Value
	}

	value, err := ev.Run(prog.Forms, env)
	if err != nil {
		return nil, in.withFile(err)
	}
	return &Result{Value: value, PageVars: vars}, nil
}

func (in *Interpreter) newEvaluator(ctx context.Context, out Logger) *evaluator.Evaluator {
	ev := evaluator.New(ctx)
	if out != nil {
		ev.Out = out
	}
	ev.Host = in.opts.Host
	if in.opts.MaxDepth > 0 {
		ev.MaxDepth = in.opts.MaxDepth
	}
	ev.Loader = &evaluator.Loader{
		FS:      in.opts.FS,
		Root:    in.opts.Root,
		Fetcher: in.opts.Fetcher,
		Index:   in.opts.Index,
		GistAPI: in.opts.GistAPI,
		Cache:   in.opts.Cache,
	}
	return ev
}

func (in *Interpreter) withFile(err error) error {
	var se *serrors.SageError
	if in.opts.Filename != "" && stderrors.As(err, &se) && se.File == "" {
		return se.WithFile(in.opts.Filename)
	}
	return err
}

func bindGlobals(env *evaluator.Environment, globals map[string]any) {
	for _, name := range object.SortedKeys(globals) {
		env.SetName(name, evaluator.FromGo(globals[name]))
	}
}

// Session keeps one environment across evaluations, so definitions made
// by one call are visible to the next.
type Session struct {
	in  *Interpreter
	ev  *evaluator.Evaluator
	env *evaluator.Environment
}

// NewSession starts a session. ctx bounds every evaluation made through it.
func (in *Interpreter) NewSession(ctx context.Context) *Session {
	env := evaluator.NewRootEnvironment()
	bindGlobals(env, in.opts.Globals)
	return &Session{in: in, ev: in.newEvaluator(ctx, in.opts.Logger), env: env}
}

// NewSession is shorthand for New(opts).NewSession(ctx).
func NewSession(ctx context.Context, opts Options) *Session {
	return New(opts).NewSession(ctx)
}

// Eval evaluates source in the session's environment.
func (s *Session) Eval(source string) (object.Object, error) {
	prog, err := reader.Parse(source)
	if err != nil {
		return nil, s.in.withFile(err)
	}
	for _, pv := range prog.PageVars {
		s.env.SetName(pv.Name, object.NewString(pv.Value))
	}
	value, err := s.ev.Run(prog.Forms, s.env)
	if err != nil {
		return nil, s.in.withFile(err)
	}
	return value, nil
}

// Symbols lists the names bound in the session, for completion.
func (s *Session) Symbols() []string {
	return s.env.AllSymbols()
}

// Bindings returns the names the session has defined, excluding builtins.
func (s *Session) Bindings() map[string]object.Object {
	return s.env.UserBindings()
}

// Reset discards every definition made in the session.
func (s *Session) Reset() {
	s.env = evaluator.NewRootEnvironment()
	bindGlobals(s.env, s.in.opts.Globals)
}

// SetLogger redirects the session's output.
func (s *Session) SetLogger(l Logger) {
	s.ev.Out = l
}
