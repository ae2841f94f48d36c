package server

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/sambeau/sage/pkg/sage/sage"
	"github.com/sambeau/sage/pkg/sage/vfs"
)

// ScriptExt is the extension of page scripts.
const ScriptExt = ".l"

// pageCache holds page sources read from the script file system. The dev
// watcher evicts entries as files change; without a watcher pages are
// read once.
type pageCache struct {
	mu      sync.RWMutex
	fs      vfs.FileSystem
	sources map[string]string
}

func newPageCache(fs vfs.FileSystem) *pageCache {
	return &pageCache{fs: fs, sources: make(map[string]string)}
}

func (c *pageCache) get(name string) (string, error) {
	c.mu.RLock()
	src, ok := c.sources[name]
	c.mu.RUnlock()
	if ok {
		return src, nil
	}

	data, err := c.fs.ReadFile(name)
	if err != nil {
		return "", err
	}
	src = string(data)

	c.mu.Lock()
	c.sources[name] = src
	c.mu.Unlock()
	return src, nil
}

func (c *pageCache) evict(name string) {
	c.mu.Lock()
	delete(c.sources, name)
	c.mu.Unlock()
}

func (c *pageCache) clear() {
	c.mu.Lock()
	c.sources = make(map[string]string)
	c.mu.Unlock()
}

func (c *pageCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sources)
}

// pageHandler renders the script matching the request path: /a/b runs
// a/b.l and a directory runs its index.l.
type pageHandler struct {
	server *Server
}

// scriptPath maps a URL path to a script path, or "" when the request
// names a script directly.
func (h *pageHandler) scriptPath(urlPath string) string {
	p := path.Clean("/" + urlPath)
	if strings.HasSuffix(p, ScriptExt) {
		return ""
	}
	if strings.HasSuffix(urlPath, "/") || p == "/" || vfs.IsDir(h.server.fs, p) {
		return path.Join(p, "index"+ScriptExt)
	}
	return p + ScriptExt
}

func (h *pageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	page := h.scriptPath(r.URL.Path)
	if page == "" {
		http.NotFound(w, r)
		return
	}
	noteScript(r, page)
	source, err := h.server.pages.get(page)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	opts := h.server.opts
	opts.Filename = page
	opts.Globals = requestGlobals(r)

	res, err := sage.New(opts).RenderPage(r.Context(), source)
	if err != nil {
		h.server.renderError(w, err, page, source)
		return
	}

	contentType := res.PageVars["content-type"]
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)

	status := http.StatusOK
	if s, ok := res.PageVars["status"]; ok {
		if n, err := strconv.Atoi(s); err == nil && n >= 100 && n <= 999 {
			status = n
		}
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		w.Write([]byte(res.Output))
	}
}

// requestGlobals binds request data for the page: request-method,
// request-path, query (first value of each parameter) and, for form
// posts, form.
func requestGlobals(r *http.Request) map[string]any {
	query := make(map[string]any)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	globals := map[string]any{
		"request-method": r.Method,
		"request-path":   r.URL.Path,
		"query":          query,
	}
	if r.Method == http.MethodPost {
		form := make(map[string]any)
		if err := r.ParseForm(); err == nil {
			for k, v := range r.PostForm {
				if len(v) > 0 {
					form[k] = v[0]
				}
			}
		}
		globals["form"] = form
	}
	return globals
}
