package content

import (
	"regexp"
	"strings"
)

// Block is one rendered chunk of a post body.
type Block struct {
	Kind string // "h2", "h3" or "p"
	Text string
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

// Blocks splits long-form content on blank lines. "## " and "### " prefixes
// mark headings; everything else is a paragraph.
func Blocks(content string) []Block {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var out []Block
	for _, raw := range blankLines.Split(content, -1) {
		text := strings.TrimSpace(raw)
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, "### "):
			out = append(out, Block{Kind: "h3", Text: strings.TrimSpace(text[4:])})
		case strings.HasPrefix(text, "## "):
			out = append(out, Block{Kind: "h2", Text: strings.TrimSpace(text[3:])})
		default:
			out = append(out, Block{Kind: "p", Text: text})
		}
	}
	return out
}
