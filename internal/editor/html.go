package editor

import (
	"fmt"
	stdhtml "html"
	"strings"

	"golang.org/x/net/html"
)

// ToHTML renders the plain-text projection the way the editor widget
// displays it: blank-line-separated paragraphs become <p> elements and
// single newlines become <br>.
func ToHTML(plain string) string {
	var b strings.Builder
	for _, para := range strings.Split(plain, "\n\n") {
		lines := strings.Split(para, "\n")
		for i, line := range lines {
			lines[i] = stdhtml.EscapeString(line)
		}
		fmt.Fprintf(&b, "<p>%s</p>", strings.Join(lines, "<br>"))
	}
	return b.String()
}

// FromHTML parses editor HTML back into the plain-text projection: <p> and
// <div> boundaries become paragraph breaks, <br> becomes a newline, tags are
// otherwise dropped.
func FromHTML(markup string) (string, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse editor markup: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "br" {
				b.WriteString("\n")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "div") {
			b.WriteString("\n\n")
		}
	}
	walk(root)

	out := strings.TrimSpace(b.String())
	// Collapse runs of blank lines left by nested block elements.
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return out, nil
}
