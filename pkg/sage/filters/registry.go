// Package filters is the standard host registry: text, date, markdown,
// serialization, database and HTTP operations callable from scripts as
// /name.
package filters

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sambeau/sage/pkg/sage/evaluator"
	"github.com/sambeau/sage/pkg/sage/vfs"
)

// Registry maps operation names to host operations. It is safe for
// concurrent use, so one registry can serve every request of a server.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]*evaluator.HostOperation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*evaluator.HostOperation)}
}

// Register adds or replaces a script method.
func (r *Registry) Register(name string, m evaluator.ScriptMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = &evaluator.HostOperation{Name: name, Method: m}
}

// RegisterBlock adds or replaces a block filter.
func (r *Registry) RegisterBlock(name string, b evaluator.BlockFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = &evaluator.HostOperation{Name: name, Block: b}
}

func (r *Registry) Resolve(name string) (*evaluator.HostOperation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config supplies the collaborators the standard operations need. Zero
// values disable the operations that depend on them.
type Config struct {
	Locale      string        // default locale for dates and numbers, e.g. "en_GB"
	FS          vfs.FileSystem // read by /pdf-text
	Database    *Database      // used by /db-select, /db-scalar and /db-exec
	HTTPClient  *http.Client   // used by /http-get
	HTTPTimeout time.Duration
}

// Standard returns a registry holding every standard operation.
func Standard(cfg Config) *Registry {
	r := NewRegistry()
	registerText(r, cfg)
	registerDates(r, cfg)
	registerMarkup(r, cfg)
	registerSerializers(r)
	if cfg.Database != nil {
		registerDatabase(r, cfg.Database)
	}
	registerHTTP(r, cfg)
	return r
}
