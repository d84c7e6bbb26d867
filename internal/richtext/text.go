package richtext

import (
	"strings"
)

const horizontalRule = "─────────────────────────────────────\n\n"

// ToText renders the document as plain text.
func ToText(doc *Document) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	writeTextNodes(&b, doc.Root.Children, 1)
	return strings.TrimSpace(b.String())
}

func writeTextNodes(b *strings.Builder, nodes []Node, depth int) {
	for _, n := range nodes {
		b.WriteString(nodeText(n, depth))
	}
}

func childrenText(n Node, depth int) string {
	if depth > maxDepth {
		return ""
	}
	var b strings.Builder
	writeTextNodes(&b, n.Children, depth+1)
	return b.String()
}

func nodeText(n Node, depth int) string {
	switch n.Type {
	case "text":
		return n.Text
	case "paragraph":
		return childrenText(n, depth) + "\n"
	case "heading":
		return headingPrefix(n.Tag) + childrenText(n, depth) + "\n\n"
	case "list":
		return childrenText(n, depth) + "\n"
	case "listitem":
		return "• " + strings.TrimRight(childrenText(n, depth), "\n") + "\n"
	case "quote":
		return "> " + strings.TrimRight(childrenText(n, depth), "\n") + "\n\n"
	case "horizontalrule":
		return horizontalRule
	case "link", "autolink":
		href := n.Href()
		if href == "" {
			href = "#"
		}
		return childrenText(n, depth) + " (" + href + ")"
	case "linebreak":
		return "\n"
	}
	return childrenText(n, depth)
}

func headingPrefix(tag string) string {
	switch strings.ToLower(tag) {
	case "h1", "":
		return "# "
	case "h2":
		return "## "
	case "h3":
		return "### "
	}
	return ""
}
