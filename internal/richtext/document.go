// Package richtext converts the editor's structured documents into email-safe HTML and plain text.
package richtext

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bawabamail/internal/domain"
)

// ErrNoContent is returned when a body has nothing to render.
var ErrNoContent = errors.New("no content")

// Text format bits used by the editor on text nodes.
const (
	FormatBold = 1 << iota
	FormatItalic
	FormatStrikethrough
	FormatUnderline
	FormatCode
	FormatSubscript
	FormatSuperscript
)

// Document is the editor's JSON document.
type Document struct {
	Root Node `json:"root"`
}

// Node is one element of the document tree.
type Node struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	Tag      string      `json:"tag,omitempty"`
	ListType string      `json:"listType,omitempty"`
	URL      string      `json:"url,omitempty"`
	Fields   *LinkFields `json:"fields,omitempty"`
	Format   TextFormat  `json:"format,omitempty"`
	Children []Node      `json:"children,omitempty"`
}

// LinkFields holds link attributes stored by the link feature.
type LinkFields struct {
	URL    string `json:"url,omitempty"`
	NewTab bool   `json:"newTab,omitempty"`
}

// Href returns the link target, preferring fields.url over url.
func (n Node) Href() string {
	if n.Fields != nil && n.Fields.URL != "" {
		return n.Fields.URL
	}
	return n.URL
}

// TextFormat is the bitmask of inline formats. Element nodes store alignment strings in the
// same field; those decode as zero.
type TextFormat int

func (f *TextFormat) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = TextFormat(n)
		return nil
	}
	*f = 0
	return nil
}

// Has reports whether bit is set.
func (f TextFormat) Has(bit int) bool {
	return int(f)&bit != 0
}

// Parse decodes a document. The JSON must carry a root object.
func Parse(data []byte) (*Document, error) {
	var probe struct {
		Root *Node `json:"root"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if probe.Root == nil {
		return nil, fmt.Errorf("parse document: missing root")
	}
	return &Document{Root: *probe.Root}, nil
}

// FromContent resolves a campaign body for locale and normalizes it into a document.
// Plain text becomes one paragraph per non-blank line.
func FromContent(content domain.Content, locale string) (*Document, error) {
	resolved := content.Resolve(locale)
	if resolved.IsEmpty() {
		return nil, ErrNoContent
	}
	switch resolved.Kind {
	case domain.ContentKindPlain:
		return fromPlain(resolved.Plain), nil
	case domain.ContentKindDocument:
		doc, err := Parse(resolved.Document)
		if err != nil {
			return nil, err
		}
		if len(doc.Root.Children) == 0 {
			return nil, ErrNoContent
		}
		return doc, nil
	}
	return nil, ErrNoContent
}

func fromPlain(s string) *Document {
	doc := &Document{Root: Node{Type: "root"}}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		doc.Root.Children = append(doc.Root.Children, Node{
			Type:     "paragraph",
			Children: []Node{{Type: "text", Text: line}},
		})
	}
	return doc
}
