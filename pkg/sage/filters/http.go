package filters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxResponseSize bounds the body /http-get will read.
const MaxResponseSize = 10 * 1024 * 1024

type response struct {
	value any
	err   error
}

// pending is the Future /http-get hands back. The request runs in its own
// goroutine; the evaluator blocks in Await.
type pending struct {
	done chan response
}

func (p *pending) Await(ctx context.Context) (any, error) {
	select {
	case r := <-p.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func registerHTTP(r *Registry, cfg Config) {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	r.Register("http-get", func(ctx context.Context, args []any) (any, error) {
		if err := wantArgs("http-get", args, 1, 1); err != nil {
			return nil, err
		}
		url, err := stringArg("http-get", args, 0)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "sage")

		p := &pending{done: make(chan response, 1)}
		go func() {
			body, err := fetchBody(client, req)
			p.done <- response{value: body, err: err}
		}()
		return p, nil
	})
}

func fetchBody(client *http.Client, req *http.Request) (any, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: http %d", req.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, err
	}
	return string(body), nil
}
