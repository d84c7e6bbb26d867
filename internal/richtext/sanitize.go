package richtext

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	allowedTags = []string{
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "strong", "em", "u", "i", "b",
		"ul", "ol", "li", "a", "img",
		"table", "thead", "tbody", "tr", "td", "th",
		"div", "span", "blockquote", "hr", "code",
	}
	allowedStyleProperties = []string{
		"margin", "padding", "padding-left", "color", "background-color",
		"line-height", "font-size", "font-weight", "font-style", "font-family",
		"border", "border-top", "border-left", "border-radius",
		"text-decoration", "text-align",
	}
	unsafeStyleValue = regexp.MustCompile(`(?i)(expression|url|javascript|vbscript|behavior)\s*[(:]`)
	targetValue      = regexp.MustCompile(`^(_blank|_self|_parent|_top)$`)
)

var emailPolicy = newEmailPolicy()

func newEmailPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowAttrs("alt", "title", "width", "height", "class", "id").Globally()
	p.AllowStyles(allowedStyleProperties...).MatchingHandler(func(v string) bool {
		return !unsafeStyleValue.MatchString(v)
	}).Globally()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(targetValue).OnElements("a")
	p.AllowAttrs("rel").Matching(regexp.MustCompile(`^[a-z ]+$`)).OnElements("a")
	p.AllowAttrs("src").OnElements("img")
	p.AllowURLSchemes("http", "https", "mailto", "tel")
	p.AllowRelativeURLs(true)
	p.RequireParseableURLs(true)
	return p
}

// Sanitize strips everything outside the email allowlist: scripts, event handlers,
// javascript: and vbscript: URLs, unknown tags and attributes. Anchors without an explicit
// target open in a new tab and anchors without rel get noopener noreferrer.
func Sanitize(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	clean := emailPolicy.Sanitize(fragment)
	nodes, err := parseFragment(clean)
	if err != nil {
		return strings.TrimSpace(clean)
	}
	for _, n := range nodes {
		forceLinkTargets(n)
	}
	out, err := renderNodes(nodes)
	if err != nil {
		return strings.TrimSpace(clean)
	}
	return strings.TrimSpace(out)
}

func forceLinkTargets(n *html.Node) {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		if !hasAttr(n, "target") {
			n.Attr = append(n.Attr, html.Attribute{Key: "target", Val: "_blank"})
		}
		if !hasAttr(n, "rel") {
			n.Attr = append(n.Attr, html.Attribute{Key: "rel", Val: "noopener noreferrer"})
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		forceLinkTargets(c)
	}
}
