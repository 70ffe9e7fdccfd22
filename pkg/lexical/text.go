// Package lexical flattens journal notes saved by the rich text editor into
// plain prose for previews, prompts and embeddings.
package lexical

import (
	"encoding/json"
	"strconv"
	"strings"
)

type document struct {
	Root node `json:"root"`
}

type node struct {
	Type     string `json:"type"`
	Children []node `json:"children,omitempty"`
	Text     string `json:"text,omitempty"`
	ListType string `json:"listType,omitempty"` // check, bullet, number
	Start    int    `json:"start,omitempty"`
	Checked  bool   `json:"checked,omitempty"`
}

// PlainText returns the text of an editor document. Content that is not an
// editor document is returned unchanged.
func PlainText(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, `{"root":`) {
		return content
	}

	var doc document
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return content
	}

	var b strings.Builder
	for _, block := range doc.Root.Children {
		writeBlock(&b, block, 0)
	}
	return strings.TrimSpace(b.String())
}

func writeBlock(b *strings.Builder, n node, depth int) {
	switch n.Type {
	case "list":
		writeList(b, n, depth)
	case "horizontalrule":
		b.WriteString("\n")
	case "table":
		for _, row := range n.Children {
			cells := make([]string, 0, len(row.Children))
			for _, cell := range row.Children {
				var c strings.Builder
				writeInline(&c, cell)
				cells = append(cells, strings.TrimSpace(c.String()))
			}
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString("\n")
		}
	default:
		writeInline(b, n)
		b.WriteString("\n")
	}
}

// writeInline concatenates text leaves. Nested blocks inside quotes or
// headings carry no markers.
func writeInline(b *strings.Builder, n node) {
	if n.Type == "text" {
		b.WriteString(n.Text)
		return
	}
	if n.Type == "linebreak" {
		b.WriteString("\n")
		return
	}
	for _, child := range n.Children {
		writeInline(b, child)
	}
}

func writeList(b *strings.Builder, n node, depth int) {
	index := 1
	if n.Start > 0 {
		index = n.Start
	}
	for _, item := range n.Children {
		if item.Type != "listitem" {
			continue
		}
		b.WriteString(strings.Repeat("  ", depth))
		switch n.ListType {
		case "number":
			b.WriteString(strconv.Itoa(index) + ". ")
			index++
		case "check":
			if item.Checked {
				b.WriteString("[x] ")
			} else {
				b.WriteString("[ ] ")
			}
		default:
			b.WriteString("- ")
		}

		var nested []node
		for _, child := range item.Children {
			if child.Type == "list" {
				nested = append(nested, child)
				continue
			}
			writeInline(b, child)
		}
		b.WriteString("\n")
		for _, list := range nested {
			writeList(b, list, depth+1)
		}
	}
}
