package richtext

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxDepth bounds recursion on hostile documents.
const maxDepth = 64

// ToHTML renders the document as an HTML fragment.
func ToHTML(doc *Document) (string, error) {
	if doc == nil {
		return "", ErrNoContent
	}
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, child := range doc.Root.Children {
		if err := appendNode(container, child, 1); err != nil {
			return "", err
		}
	}
	var buf bytes.Buffer
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return buf.String(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a, Attr: attrs}
}

func appendNode(parent *html.Node, n Node, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("document nesting exceeds %d levels", maxDepth)
	}

	var el *html.Node
	switch n.Type {
	case "text":
		parent.AppendChild(formattedText(n))
		return nil
	case "linebreak":
		parent.AppendChild(element(atom.Br))
		return nil
	case "horizontalrule":
		parent.AppendChild(element(atom.Hr))
		return nil
	case "tab":
		parent.AppendChild(&html.Node{Type: html.TextNode, Data: "\t"})
		return nil
	case "paragraph":
		el = element(atom.P)
	case "heading":
		a, err := headingAtom(n.Tag)
		if err != nil {
			return err
		}
		el = element(a)
	case "list":
		if n.ListType == "number" {
			el = element(atom.Ol)
		} else {
			el = element(atom.Ul)
		}
	case "listitem":
		el = element(atom.Li)
	case "quote":
		el = element(atom.Blockquote)
	case "link", "autolink":
		attrs := []html.Attribute{{Key: "href", Val: n.Href()}}
		if n.Fields != nil && n.Fields.NewTab {
			attrs = append(attrs,
				html.Attribute{Key: "target", Val: "_blank"},
				html.Attribute{Key: "rel", Val: "noopener noreferrer"})
		}
		el = element(atom.A, attrs...)
	default:
		// unknown block: keep its children in place
		for _, child := range n.Children {
			if err := appendNode(parent, child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, child := range n.Children {
		if err := appendNode(el, child, depth+1); err != nil {
			return err
		}
	}
	parent.AppendChild(el)
	return nil
}

func headingAtom(tag string) (atom.Atom, error) {
	switch strings.ToLower(tag) {
	case "h1":
		return atom.H1, nil
	case "h2":
		return atom.H2, nil
	case "h3":
		return atom.H3, nil
	case "h4":
		return atom.H4, nil
	case "h5":
		return atom.H5, nil
	case "h6":
		return atom.H6, nil
	}
	return 0, fmt.Errorf("unsupported heading tag %q", tag)
}

// formattedText wraps a text node in its inline format elements, innermost first.
func formattedText(n Node) *html.Node {
	node := &html.Node{Type: html.TextNode, Data: n.Text}
	wrappers := []struct {
		bit int
		a   atom.Atom
	}{
		{FormatCode, atom.Code},
		{FormatSuperscript, atom.Sup},
		{FormatSubscript, atom.Sub},
		{FormatStrikethrough, atom.S},
		{FormatUnderline, atom.U},
		{FormatItalic, atom.Em},
		{FormatBold, atom.Strong},
	}
	for _, w := range wrappers {
		if n.Format.Has(w.bit) {
			wrap := element(w.a)
			wrap.AppendChild(node)
			node = wrap
		}
	}
	return node
}
