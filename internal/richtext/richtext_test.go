package richtext

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bawabamail/internal/domain"
)

const sampleDocument = `{
  "root": {
    "type": "root",
    "format": "",
    "children": [
      {"type": "heading", "tag": "h1", "children": [{"type": "text", "text": "Breaking news"}]},
      {"type": "paragraph", "format": "right", "children": [
        {"type": "text", "text": "Hello "},
        {"type": "text", "text": "world", "format": 1},
        {"type": "linebreak"},
        {"type": "link", "fields": {"url": "https://bawaba.africa/a", "newTab": true}, "children": [{"type": "text", "text": "read more"}]}
      ]},
      {"type": "list", "listType": "bullet", "children": [
        {"type": "listitem", "children": [{"type": "text", "text": "one"}]},
        {"type": "listitem", "children": [{"type": "text", "text": "two"}]}
      ]},
      {"type": "quote", "children": [{"type": "text", "text": "a quote"}]},
      {"type": "horizontalrule"},
      {"type": "heading", "tag": "h4", "children": [{"type": "text", "text": "small"}]},
      {"type": "upload", "children": [{"type": "text", "text": "kept"}]}
    ]
  }
}`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := Parse([]byte(s))
	require.NoError(t, err)
	return doc
}

func TestParse(t *testing.T) {
	doc := mustParse(t, sampleDocument)
	require.Len(t, doc.Root.Children, 7)
	assert.Equal(t, "heading", doc.Root.Children[0].Type)
	assert.True(t, doc.Root.Children[1].Children[1].Format.Has(FormatBold))
	assert.Equal(t, TextFormat(0), doc.Root.Children[1].Format, "alignment strings decode as zero")

	_, err := Parse([]byte(`{"children":[]}`))
	require.Error(t, err)
	_, err = Parse([]byte(`not json`))
	require.Error(t, err)
}

func TestToHTML(t *testing.T) {
	out, err := ToHTML(mustParse(t, sampleDocument))
	require.NoError(t, err)

	assert.Contains(t, out, "<h1>Breaking news</h1>")
	assert.Contains(t, out, "<p>Hello <strong>world</strong><br/>")
	assert.Contains(t, out, `<a href="https://bawaba.africa/a" target="_blank" rel="noopener noreferrer">read more</a>`)
	assert.Contains(t, out, "<ul><li>one</li><li>two</li></ul>")
	assert.Contains(t, out, "<blockquote>a quote</blockquote>")
	assert.Contains(t, out, "<hr/>")
	assert.Contains(t, out, "<h4>small</h4>")
	assert.Contains(t, out, "kept")
}

func TestToHTML_EscapesText(t *testing.T) {
	doc := mustParse(t, `{"root":{"children":[{"type":"paragraph","children":[{"type":"text","text":"<script>alert(1)</script>"}]}]}}`)
	out, err := ToHTML(doc)
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestToHTML_Errors(t *testing.T) {
	_, err := ToHTML(mustParse(t, `{"root":{"children":[{"type":"heading","tag":"h9"}]}}`))
	require.Error(t, err)

	deep := Node{Type: "text", Text: "x"}
	for i := 0; i < maxDepth+5; i++ {
		deep = Node{Type: "paragraph", Children: []Node{deep}}
	}
	_, err = ToHTML(&Document{Root: Node{Children: []Node{deep}}})
	require.Error(t, err)

	_, err = ToHTML(nil)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestToHTML_OrderedListAndFormats(t *testing.T) {
	doc := mustParse(t, `{"root":{"children":[
		{"type":"list","listType":"number","children":[{"type":"listitem","children":[{"type":"text","text":"x","format":3}]}]},
		{"type":"paragraph","children":[{"type":"text","text":"c","format":16}]}
	]}}`)
	out, err := ToHTML(doc)
	require.NoError(t, err)
	assert.Contains(t, out, "<ol><li><strong><em>x</em></strong></li></ol>")
	assert.Contains(t, out, "<code>c</code>")
}

func TestApplyEmailStyles(t *testing.T) {
	out, err := ApplyEmailStyles(`<h1>T</h1><p>a <a href="https://x.test">l</a></p><blockquote>q</blockquote><p style="color: red">keep</p><hr/>`)
	require.NoError(t, err)

	assert.Contains(t, out, `<h1 style="font-size: 28px; font-weight: bold; margin: 16px 0 8px 0; color: #b01c14;">T</h1>`)
	assert.Contains(t, out, `<a style="color: #b01c14; text-decoration: underline;" href="https://x.test">l</a>`)
	assert.Contains(t, out, `border-left: 4px solid #b01c14`)
	assert.Contains(t, out, `<p style="color: red">keep</p>`)
	assert.Contains(t, out, `<hr style="margin: 12px 0; border: none; border-top: 2px solid #e9ecef;"/>`)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		contains    []string
		notContains []string
	}{
		{
			name:        "script removed",
			input:       `<p>hi</p><script>alert('x')</script>`,
			contains:    []string{"<p>hi</p>"},
			notContains: []string{"<script", "alert"},
		},
		{
			name:        "event handlers removed",
			input:       `<p onclick="steal()">x</p><img src="https://x.test/a.png" onerror="boom()">`,
			contains:    []string{"<p>x</p>", `src="https://x.test/a.png"`},
			notContains: []string{"onclick", "onerror"},
		},
		{
			name:        "javascript and vbscript urls removed",
			input:       `<a href="javascript:alert(1)">a</a><a href="vbscript:msgbox">b</a>`,
			notContains: []string{"javascript:", "vbscript:"},
		},
		{
			name:        "unknown tags stripped with text kept",
			input:       `<section><iframe src="https://evil.test"></iframe><p>body</p></section><form>f</form>`,
			contains:    []string{"<p>body</p>", "f"},
			notContains: []string{"<section", "<iframe", "<form"},
		},
		{
			name:        "unknown attributes stripped",
			input:       `<p data-x="1" class="lead" dir="rtl">x</p>`,
			contains:    []string{`class="lead"`},
			notContains: []string{"data-x", "dir="},
		},
		{
			name:     "anchor gains target and rel",
			input:    `<a href="https://bawaba.africa">site</a>`,
			contains: []string{`href="https://bawaba.africa"`, `target="_blank"`, `rel="noopener noreferrer"`},
		},
		{
			name:        "explicit target and rel kept",
			input:       `<a href="/news" target="_self" rel="nofollow">n</a>`,
			contains:    []string{`target="_self"`, `rel="nofollow"`},
			notContains: []string{"_blank", "noopener"},
		},
		{
			name:     "mailto and tel allowed",
			input:    `<a href="mailto:info@bawaba.africa">m</a><a href="tel:+252628881171">t</a>`,
			contains: []string{`href="mailto:info@bawaba.africa"`, `href="tel:+252628881171"`},
		},
		{
			name:        "inline styles kept, dangerous styles dropped",
			input:       `<p style="color: #333; background-color: expression(alert(1))">s</p>`,
			contains:    []string{"color: #333"},
			notContains: []string{"expression"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Sanitize(tt.input)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out, s)
			}
		})
	}

	assert.Equal(t, "", Sanitize("   "))
}

func TestToText(t *testing.T) {
	out := ToText(mustParse(t, sampleDocument))

	assert.True(t, strings.HasPrefix(out, "# Breaking news\n\n"))
	assert.Contains(t, out, "Hello world\nread more (https://bawaba.africa/a)\n")
	assert.Contains(t, out, "• one\n• two\n")
	assert.Contains(t, out, "> a quote\n\n")
	assert.Contains(t, out, "─────")
	assert.Contains(t, out, "\nsmall\n", "h4 and below have no prefix")
	assert.Contains(t, out, "kept")
}

func TestToText_LinkFallbacks(t *testing.T) {
	doc := mustParse(t, `{"root":{"children":[{"type":"paragraph","children":[
		{"type":"link","url":"https://u.test","children":[{"type":"text","text":"a"}]},
		{"type":"text","text":" "},
		{"type":"link","children":[{"type":"text","text":"b"}]}
	]}]}}`)
	assert.Equal(t, "a (https://u.test) b (#)", ToText(doc))
	assert.Equal(t, "", ToText(nil))
}

func TestFromContent(t *testing.T) {
	doc, err := FromContent(domain.PlainContent("line one\n\n line two "), "ar")
	require.NoError(t, err)
	require.Len(t, doc.Root.Children, 2)
	assert.Equal(t, "line one\nline two", ToText(doc))

	var localized domain.Content
	require.NoError(t, json.Unmarshal([]byte(`{"ar":`+sampleDocument+`,"en":"english body"}`), &localized))
	doc, err = FromContent(localized, "en")
	require.NoError(t, err)
	assert.Equal(t, "english body", ToText(doc))
	doc, err = FromContent(localized, "ar")
	require.NoError(t, err)
	assert.Len(t, doc.Root.Children, 7)

	_, err = FromContent(domain.Content{}, "ar")
	require.ErrorIs(t, err, ErrNoContent)
	_, err = FromContent(domain.DocumentContent(json.RawMessage(`{"root":{"children":[]}}`)), "ar")
	require.ErrorIs(t, err, ErrNoContent)
	_, err = FromContent(domain.DocumentContent(json.RawMessage(`{"nope":1}`)), "ar")
	require.Error(t, err)
}

func TestPlaceholderParagraph(t *testing.T) {
	assert.Equal(t,
		`<p style="margin: 8px 0; color: #333; line-height: 1.6; font-size: 16px;">No content available</p>`,
		PlaceholderParagraph("No content available"))
}
