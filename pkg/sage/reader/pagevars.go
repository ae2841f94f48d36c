package reader

import (
	"strings"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
)

// PageVar is one `key value` line from a page variables block.
type PageVar struct {
	Name  string
	Value string
}

// ExtractPageVars looks for a page variables block at the start of src and
// returns its entries together with the body text. Two block styles are
// accepted:
//
//	<!--
//	title Hello
//	-->
//
//	;<!--
//	; title Hello
//	;-->
//
// The block is replaced by blank lines in the returned body so that
// positions reported for the remaining forms still match src.
func ExtractPageVars(src string) ([]PageVar, string, error) {
	lines := strings.SplitAfter(src, "\n")

	first := 0
	for first < len(lines) && strings.TrimSpace(lines[first]) == "" {
		first++
	}
	if first == len(lines) {
		return nil, src, nil
	}

	opener := strings.TrimSpace(lines[first])
	switch {
	case strings.HasPrefix(opener, "<!--"):
		return extractHTMLBlock(src, lines, first)
	case commentText(opener) == "<!--":
		return extractCommentBlock(lines, first)
	}
	return nil, src, nil
}

// extractHTMLBlock handles `<!-- ... -->`, which may open and close on the
// same line.
func extractHTMLBlock(src string, lines []string, first int) ([]PageVar, string, error) {
	start := 0
	for i := 0; i < first; i++ {
		start += len(lines[i])
	}
	start += strings.Index(lines[first], "<!--")

	rest := src[start+len("<!--"):]
	end := strings.Index(rest, "-->")
	if end < 0 {
		line := first + 1
		return nil, "", serrors.NewWithPosition("PARSE-0006", line, 1, map[string]any{"Close": "-->"})
	}

	vars := parseVarLines(strings.Split(rest[:end], "\n"), false)
	blockEnd := start + len("<!--") + end + len("-->")
	body := blankOut(src[:blockEnd]) + src[blockEnd:]
	return vars, body, nil
}

// extractCommentBlock handles the `;<!--` ... `;-->` form where every line
// of the block is a comment.
func extractCommentBlock(lines []string, first int) ([]PageVar, string, error) {
	for i := first + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if commentText(trimmed) == "-->" {
			vars := parseVarLines(lines[first+1:i], true)
			var body strings.Builder
			for j := 0; j <= i; j++ {
				body.WriteString(blankOut(lines[j]))
			}
			for _, l := range lines[i+1:] {
				body.WriteString(l)
			}
			return vars, body.String(), nil
		}
		if !strings.HasPrefix(trimmed, ";") && trimmed != "" {
			break
		}
	}
	return nil, "", serrors.NewWithPosition("PARSE-0006", first+1, 1, map[string]any{"Close": ";-->"})
}

// commentText strips leading semicolons and spaces from a comment line.
// It returns "" for lines that are not comments.
func commentText(line string) string {
	if !strings.HasPrefix(line, ";") {
		return ""
	}
	return strings.TrimSpace(strings.TrimLeft(line, ";"))
}

func parseVarLines(lines []string, commented bool) []PageVar {
	var vars []PageVar
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if commented {
			line = commentText(line)
		}
		if line == "" {
			continue
		}
		name, value := line, ""
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			name, value = line[:i], line[i+1:]
		}
		name = strings.TrimSuffix(name, ":")
		if name == "" {
			continue
		}
		vars = append(vars, PageVar{Name: name, Value: strings.TrimSpace(value)})
	}
	return vars
}

// blankOut keeps only the newlines of s.
func blankOut(s string) string {
	return strings.Repeat("\n", strings.Count(s, "\n"))
}
