package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
)

// DefaultGistAPI is the base URL for gist lookups.
const DefaultGistAPI = "https://api.github.com/gists/"

// Fetcher retrieves remote documents. Every network access made by the
// loader goes through it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches over HTTP(S).
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPFetcher returns a fetcher with the given timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: "sage-loader",
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// SourceFile is one fetched script.
type SourceFile struct {
	Name string
	Text string
}

type gistResponse struct {
	Files map[string]struct {
		Filename  string `json:"filename"`
		Content   string `json:"content"`
		RawURL    string `json:"raw_url"`
		Truncated bool   `json:"truncated"`
	} `json:"files"`
}

// fetchGist loads one named file of a gist, or every script in it. With
// no file name, the ".l" files are taken in name order; a gist without
// any ".l" file contributes all of its files.
func fetchGist(ctx context.Context, f Fetcher, api, locator, id, file string) ([]SourceFile, error) {
	if api == "" {
		api = DefaultGistAPI
	}
	body, err := f.Fetch(ctx, strings.TrimSuffix(api, "/")+"/"+id)
	if err != nil {
		return nil, serrors.Wrap("LOAD-0002", err, map[string]any{"Locator": locator})
	}
	var gist gistResponse
	if err := json.Unmarshal(body, &gist); err != nil {
		return nil, serrors.New("LOAD-0008", map[string]any{
			"Locator": locator, "Message": "invalid gist response: " + err.Error(),
		})
	}

	var names []string
	if file != "" {
		if _, ok := gist.Files[file]; !ok {
			return nil, serrors.New("LOAD-0007", map[string]any{"File": file, "Locator": locator})
		}
		names = []string{file}
	} else {
		for name := range gist.Files {
			if strings.HasSuffix(name, ".l") {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			for name := range gist.Files {
				names = append(names, name)
			}
		}
		sort.Strings(names)
	}

	files := make([]SourceFile, 0, len(names))
	for _, name := range names {
		entry := gist.Files[name]
		text := entry.Content
		if entry.Truncated && entry.RawURL != "" {
			raw, err := f.Fetch(ctx, entry.RawURL)
			if err != nil {
				return nil, serrors.Wrap("LOAD-0002", err, map[string]any{"Locator": locator})
			}
			text = string(raw)
		}
		files = append(files, SourceFile{Name: name, Text: text})
	}
	return files, nil
}

// IndexResolver maps an index key to the URLs of its source files.
type IndexResolver interface {
	Resolve(ctx context.Context, key string) ([]string, error)
}

// ManifestIndex resolves keys against a JSON manifest of the form
//
//	[{"name": "dates", "url": "https://...", "description": "..."},
//	 {"name": "calc", "urls": ["https://.../a.l", "https://.../b.l"]}]
type ManifestIndex struct {
	URL     string
	Fetcher Fetcher
}

type manifestEntry struct {
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	URLs        []string `json:"urls"`
	Description string   `json:"description"`
}

func (m *ManifestIndex) Resolve(ctx context.Context, key string) ([]string, error) {
	if m.URL == "" {
		return nil, serrors.New("LOAD-0005", map[string]any{"Key": key})
	}
	fetcher := m.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(0)
	}
	body, err := fetcher.Fetch(ctx, m.URL)
	if err != nil {
		return nil, serrors.Wrap("LOAD-0002", err, map[string]any{"Locator": m.URL})
	}
	var entries []manifestEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, serrors.New("LOAD-0008", map[string]any{
			"Locator": m.URL, "Message": "invalid index manifest: " + err.Error(),
		})
	}
	for _, e := range entries {
		if e.Name != key {
			continue
		}
		urls := append([]string(nil), e.URLs...)
		if e.URL != "" {
			urls = append([]string{e.URL}, urls...)
		}
		return urls, nil
	}
	return nil, serrors.New("LOAD-0005", map[string]any{"Key": key})
}

// fetchIndex loads the files an index key points at, in manifest order.
func fetchIndex(ctx context.Context, f Fetcher, idx IndexResolver, locator, key, file string) ([]SourceFile, error) {
	if idx == nil {
		return nil, serrors.New("LOAD-0005", map[string]any{"Key": key})
	}
	urls, err := idx.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, serrors.New("LOAD-0005", map[string]any{"Key": key})
	}
	if file != "" {
		var picked []string
		for _, u := range urls {
			if path.Base(u) == file {
				picked = append(picked, u)
			}
		}
		if len(picked) == 0 {
			return nil, serrors.New("LOAD-0007", map[string]any{"File": file, "Locator": locator})
		}
		urls = picked
	}

	files := make([]SourceFile, 0, len(urls))
	for _, u := range urls {
		body, err := f.Fetch(ctx, u)
		if err != nil {
			return nil, serrors.Wrap("LOAD-0002", err, map[string]any{"Locator": locator})
		}
		files = append(files, SourceFile{Name: path.Base(u), Text: string(body)})
	}
	return files, nil
}

func fetchURL(ctx context.Context, f Fetcher, url string) ([]SourceFile, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, serrors.Wrap("LOAD-0002", err, map[string]any{"Locator": url})
	}
	return []SourceFile{{Name: path.Base(url), Text: string(body)}}, nil
}
