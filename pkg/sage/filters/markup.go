package filters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"golang.org/x/net/html"
)

// MaxPDFSize bounds the files /pdf-text will open.
const MaxPDFSize = 50 * 1024 * 1024

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

func registerMarkup(r *Registry, cfg Config) {
	r.Register("markdown", func(_ context.Context, args []any) (any, error) {
		if err := wantArgs("markdown", args, 1, 1); err != nil {
			return nil, err
		}
		src, err := stringArg("markdown", args, 0)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := markdown.Convert([]byte(src), &buf); err != nil {
			return nil, fmt.Errorf("/markdown: %w", err)
		}
		return buf.String(), nil
	})

	r.Register("html-text", func(_ context.Context, args []any) (any, error) {
		if err := wantArgs("html-text", args, 1, 1); err != nil {
			return nil, err
		}
		src, err := stringArg("html-text", args, 0)
		if err != nil {
			return nil, err
		}
		return htmlText(src), nil
	})

	r.Register("pdf-text", func(_ context.Context, args []any) (any, error) {
		if err := wantArgs("pdf-text", args, 1, 1); err != nil {
			return nil, err
		}
		name, err := stringArg("pdf-text", args, 0)
		if err != nil {
			return nil, err
		}
		if cfg.FS == nil {
			return nil, errors.New("/pdf-text: no file system configured")
		}
		data, err := cfg.FS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		return pdfText(data)
	})
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"tr": true, "td": true, "th": true, "table": true, "section": true,
	"article": true, "header": true, "footer": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// htmlText extracts the readable text of an HTML fragment. Script and
// style content is dropped and whitespace is collapsed.
func htmlText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var sb strings.Builder
	hidden := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					hidden++
				} else if tt == html.EndTagToken && hidden > 0 {
					hidden--
				}
				continue
			}
			if blockTags[tag] {
				sb.WriteByte(' ')
			}
		case html.TextToken:
			if hidden == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func pdfText(data []byte) (out string, err error) {
	// the pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("/pdf-text: malformed PDF: %v", r)
		}
	}()
	if len(data) > MaxPDFSize {
		return "", fmt.Errorf("/pdf-text: file too large: %d bytes (max %d)", len(data), MaxPDFSize)
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("/pdf-text: cannot open PDF: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("/pdf-text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("/pdf-text: %w", err)
	}
	return strings.Join(strings.Fields(buf.String()), " "), nil
}
