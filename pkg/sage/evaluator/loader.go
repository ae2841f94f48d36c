package evaluator

import (
	"context"
	stderrors "errors"
	"path"
	"strings"

	"github.com/tevino/abool/v2"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/object"
	"github.com/sambeau/sage/pkg/sage/reader"
	"github.com/sambeau/sage/pkg/sage/vfs"
)

// ScriptExt is appended to bare symbol locators.
const ScriptExt = ".l"

var remoteLoading = abool.NewBool(true)

// SetRemoteLoading turns loading from gists, indexes and URLs on or off
// for the whole process.
func SetRemoteLoading(enabled bool) {
	remoteLoading.SetTo(enabled)
}

// RemoteLoadingEnabled reports the current process-wide setting.
func RemoteLoadingEnabled() bool {
	return remoteLoading.IsSet()
}

// Loader resolves `load` targets to source text and evaluates it into the
// root frame of the loading environment.
type Loader struct {
	FS      vfs.FileSystem
	Root    string // directory bare names and relative paths resolve against
	Fetcher Fetcher
	Index   IndexResolver
	GistAPI string
	Cache   *ModuleCache
}

type locatorKind int

const (
	localLocator locatorKind = iota
	gistLocator
	indexLocator
	urlLocator
)

type locator struct {
	kind locatorKind
	key  string // cache and cycle-detection identity
	id   string // gist id or index key
	file string // optional file within a gist or index entry
}

func (l *Loader) parseLocator(target object.Object) (locator, error) {
	root := l.Root
	if root == "" {
		root = "/"
	}

	var s string
	switch t := target.(type) {
	case *object.Symbol:
		return locator{kind: localLocator, key: vfs.Clean(path.Join(root, t.Name+ScriptExt))}, nil
	case *object.String:
		s = strings.TrimSpace(t.Value)
	default:
		return locator{}, typeError("load", "a symbol or string", target)
	}

	invalid := func() error { return serrors.New("LOAD-0006", map[string]any{"Locator": s}) }
	switch {
	case s == "":
		return locator{}, invalid()
	case strings.HasPrefix(s, "gist:"):
		id, file, _ := strings.Cut(strings.TrimPrefix(s, "gist:"), "/")
		if id == "" {
			return locator{}, invalid()
		}
		return locator{kind: gistLocator, key: s, id: id, file: file}, nil
	case strings.HasPrefix(s, "index:"):
		key, file, _ := strings.Cut(strings.TrimPrefix(s, "index:"), "/")
		if key == "" {
			return locator{}, invalid()
		}
		return locator{kind: indexLocator, key: s, id: key, file: file}, nil
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return locator{kind: urlLocator, key: s}, nil
	case strings.Contains(s, "://"):
		return locator{}, invalid()
	case strings.HasPrefix(s, "/"):
		return locator{kind: localLocator, key: vfs.Clean(s)}, nil
	}
	return locator{kind: localLocator, key: vfs.Clean(path.Join(root, s))}, nil
}

// Load evaluates the source named by target into env's root frame. Files
// of a multi-file source are evaluated in order, so later definitions
// replace earlier ones.
func (l *Loader) Load(ev *Evaluator, target object.Object, env *Environment) error {
	loc, err := l.parseLocator(target)
	if err != nil {
		return err
	}

	for _, active := range ev.loads {
		if active == loc.key {
			chain := append(append([]string(nil), ev.loads...), loc.key)
			return serrors.New("LOAD-0004", map[string]any{"Chain": strings.Join(chain, " -> ")})
		}
	}

	var files []SourceFile
	var entry *ModuleEntry
	if loc.kind == localLocator {
		files, err = l.readLocal(loc.key)
	} else {
		entry, err = l.fetchRemote(ev, loc)
		if entry != nil {
			files = entry.Files
		}
	}
	if err != nil {
		return err
	}

	ev.loads = append(ev.loads, loc.key)
	defer func() { ev.loads = ev.loads[:len(ev.loads)-1] }()

	root := env.Root()
	before := root.snapshot()
	for _, f := range files {
		name := f.Name
		if loc.kind == localLocator {
			name = loc.key
		}
		if err := ev.evalSource(name, f.Text, root); err != nil {
			return err
		}
	}
	if entry != nil {
		entry.setSymbols(root.changedSince(before))
	}
	return nil
}

func (l *Loader) readLocal(p string) ([]SourceFile, error) {
	if l.FS == nil {
		return nil, serrors.New("LOAD-0003", map[string]any{"Locator": p, "Error": "no file system configured"})
	}
	data, err := l.FS.ReadFile(p)
	if err != nil {
		return nil, serrors.Wrap("LOAD-0003", err, map[string]any{"Locator": p})
	}
	return []SourceFile{{Name: path.Base(p), Text: string(data)}}, nil
}

func (l *Loader) fetchRemote(ev *Evaluator, loc locator) (*ModuleEntry, error) {
	if !RemoteLoadingEnabled() {
		return nil, serrors.New("LOAD-0001", map[string]any{"Locator": loc.key})
	}
	fetcher := l.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(0)
	}
	cache := l.Cache
	if cache == nil {
		cache = DefaultModuleCache
	}

	ctx := ev.ctx
	entry, err := cache.Get(ctx, loc.key, func(ctx context.Context) ([]SourceFile, error) {
		switch loc.kind {
		case gistLocator:
			return fetchGist(ctx, fetcher, l.GistAPI, loc.key, loc.id, loc.file)
		case indexLocator:
			return fetchIndex(ctx, fetcher, l.Index, loc.key, loc.id, loc.file)
		}
		return fetchURL(ctx, fetcher, loc.key)
	})
	if err != nil {
		var se *serrors.SageError
		if stderrors.As(err, &se) {
			return nil, se
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, serrors.Wrap("STATE-0001", ctxErr, nil)
		}
		return nil, serrors.Wrap("LOAD-0002", err, map[string]any{"Locator": loc.key})
	}
	return entry, nil
}

// evalSource reads and evaluates one file into env. A `return` inside the
// file ends that file only.
func (ev *Evaluator) evalSource(name, text string, env *Environment) error {
	prog, err := reader.Parse(text)
	if err != nil {
		return attachFile(err, name)
	}
	for _, pv := range prog.PageVars {
		env.SetName(pv.Name, object.NewString(pv.Value))
	}
	if _, err := ev.evalBody(prog.Forms, env); err != nil {
		return attachFile(err, name)
	}
	return nil
}

func attachFile(err error, name string) error {
	var se *serrors.SageError
	if stderrors.As(err, &se) && se.File == "" {
		return se.WithFile(name)
	}
	return err
}
