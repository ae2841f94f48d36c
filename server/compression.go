package server

import (
	"compress/gzip"
	"net/http"

	"github.com/klauspost/compress/gzhttp"

	"github.com/sambeau/sage/config"
)

// newCompressionHandler wraps h with gzip compression of rendered pages.
// It returns h unchanged when compression is off.
func newCompressionHandler(h http.Handler, cfg config.CompressionConfig) http.Handler {
	if !cfg.Enabled || cfg.Level == "none" {
		return h
	}

	level := gzip.DefaultCompression
	switch cfg.Level {
	case "fastest":
		level = gzip.BestSpeed
	case "best":
		level = gzip.BestCompression
	}

	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(cfg.MinSize),
		gzhttp.CompressionLevel(level),
		gzhttp.ContentTypes([]string{"text/html", "text/plain", "text/css", "text/xml", "application/json", "application/xml", "application/javascript", "image/svg+xml"}),
	)
	if err != nil {
		return h
	}
	return wrapper(h)
}
