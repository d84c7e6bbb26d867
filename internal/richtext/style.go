package richtext

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Inline styles applied to email content. Most clients strip <style> blocks.
var emailStyles = map[atom.Atom]string{
	atom.P:          "margin: 8px 0; color: #333; line-height: 1.6; font-size: 16px;",
	atom.H1:         "font-size: 28px; font-weight: bold; margin: 16px 0 8px 0; color: #b01c14;",
	atom.H2:         "font-size: 24px; font-weight: bold; margin: 14px 0 6px 0; color: #b01c14;",
	atom.H3:         "font-size: 20px; font-weight: bold; margin: 12px 0 6px 0; color: #333;",
	atom.H4:         "font-size: 18px; font-weight: bold; margin: 10px 0 4px 0; color: #333;",
	atom.H5:         "font-size: 16px; font-weight: bold; margin: 8px 0 4px 0; color: #333;",
	atom.H6:         "font-size: 14px; font-weight: bold; margin: 8px 0 4px 0; color: #333;",
	atom.Ul:         "margin: 8px 0; padding-left: 20px;",
	atom.Ol:         "margin: 8px 0; padding-left: 20px;",
	atom.Li:         "margin: 2px 0; color: #333; line-height: 1.6;",
	atom.Blockquote: "margin: 8px 0; padding: 12px; border-left: 4px solid #b01c14; background-color: #f8f9fa; font-style: italic; color: #555;",
	atom.Hr:         "margin: 12px 0; border: none; border-top: 2px solid #e9ecef;",
	atom.A:          "color: #b01c14; text-decoration: underline;",
	atom.Code:       "background-color: #f1f1f1; padding: 2px 4px; border-radius: 3px; font-family: monospace;",
}

// PlaceholderParagraph renders a styled paragraph holding msg.
func PlaceholderParagraph(msg string) string {
	var buf bytes.Buffer
	p := element(atom.P, html.Attribute{Key: "style", Val: emailStyles[atom.P]})
	p.AppendChild(&html.Node{Type: html.TextNode, Data: msg})
	_ = html.Render(&buf, p)
	return buf.String()
}

// ApplyEmailStyles adds inline styles to the elements of an HTML fragment. Elements that
// already carry a style attribute keep it.
func ApplyEmailStyles(fragment string) (string, error) {
	nodes, err := parseFragment(fragment)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		styleTree(n)
	}
	return renderNodes(nodes)
}

func styleTree(n *html.Node) {
	if n.Type == html.ElementNode {
		if style, ok := emailStyles[n.DataAtom]; ok && !hasAttr(n, "style") {
			n.Attr = append([]html.Attribute{{Key: "style", Val: style}}, n.Attr...)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		styleTree(c)
	}
}

func parseFragment(fragment string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil, fmt.Errorf("parse html fragment: %w", err)
	}
	return nodes, nil
}

func renderNodes(nodes []*html.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return buf.String(), nil
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}
