package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultLocale is the site's primary language.
const DefaultLocale = "ar"

// ErrInvalidContent is returned when a campaign body cannot be decoded.
var ErrInvalidContent = errors.New("invalid campaign content")

// LocalizedText maps a locale code to text.
type LocalizedText map[string]string

// Resolve returns the text for locale, falling back to DefaultLocale and then to the
// first non-empty value in locale order.
func (t LocalizedText) Resolve(locale string) string {
	if v := strings.TrimSpace(t[locale]); v != "" {
		return v
	}
	if v := strings.TrimSpace(t[DefaultLocale]); v != "" {
		return v
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(t[k]); v != "" {
			return v
		}
	}
	return ""
}

// IsEmpty reports whether every locale is blank.
func (t LocalizedText) IsEmpty() bool {
	return t.Resolve(DefaultLocale) == ""
}

// UnmarshalJSON accepts either a plain string (stored under DefaultLocale) or a locale map.
func (t *LocalizedText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = LocalizedText{DefaultLocale: s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("localized text must be a string or an object of strings: %w", err)
	}
	*t = m
	return nil
}

// ContentKind discriminates the shapes a campaign body may take.
type ContentKind string

const (
	ContentKindEmpty     ContentKind = ""
	ContentKindPlain     ContentKind = "plain"
	ContentKindDocument  ContentKind = "document"
	ContentKindLocalized ContentKind = "localized"
)

// Content is a campaign body: a plain string, a structured rich document, or a map of
// locale to either of those.
type Content struct {
	Kind      ContentKind
	Plain     string
	Document  json.RawMessage
	Localized map[string]Content
}

// PlainContent returns a plain-text body.
func PlainContent(s string) Content {
	return Content{Kind: ContentKindPlain, Plain: s}
}

// DocumentContent returns a structured document body from its JSON encoding.
func DocumentContent(raw json.RawMessage) Content {
	return Content{Kind: ContentKindDocument, Document: raw}
}

// IsEmpty reports whether the body carries nothing renderable.
func (c Content) IsEmpty() bool {
	switch c.Kind {
	case ContentKindPlain:
		return strings.TrimSpace(c.Plain) == ""
	case ContentKindDocument:
		return len(c.Document) == 0
	case ContentKindLocalized:
		for _, v := range c.Localized {
			if !v.IsEmpty() {
				return false
			}
		}
	}
	return true
}

// Resolve returns the plain or document body for locale. Localized bodies fall back to
// DefaultLocale and then to the first non-empty locale.
func (c Content) Resolve(locale string) Content {
	if c.Kind != ContentKindLocalized {
		return c
	}
	if v, ok := c.Localized[locale]; ok && !v.IsEmpty() {
		return v
	}
	if v, ok := c.Localized[DefaultLocale]; ok && !v.IsEmpty() {
		return v
	}
	keys := make([]string, 0, len(c.Localized))
	for k := range c.Localized {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := c.Localized[k]; !v.IsEmpty() {
			return v
		}
	}
	return Content{}
}

// MarshalJSON encodes the body in the same shape it was decoded from.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ContentKindPlain:
		return json.Marshal(c.Plain)
	case ContentKindDocument:
		if len(c.Document) > 0 {
			return c.Document, nil
		}
	case ContentKindLocalized:
		return json.Marshal(c.Localized)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a string as plain content, an object with a "root" key as a
// document and any other object as a locale map.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		*c = PlainContent(s)
		return nil
	case '{':
	default:
		return fmt.Errorf("%w: body must be a string or an object", ErrInvalidContent)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if _, ok := probe["root"]; ok {
		*c = DocumentContent(append(json.RawMessage(nil), data...))
		return nil
	}

	localized := make(map[string]Content, len(probe))
	for locale, raw := range probe {
		var v Content
		if err := v.UnmarshalJSON(raw); err != nil {
			return err
		}
		if v.Kind == ContentKindLocalized {
			return fmt.Errorf("%w: locale %q must hold a string or a document", ErrInvalidContent, locale)
		}
		localized[locale] = v
	}
	*c = Content{Kind: ContentKindLocalized, Localized: localized}
	return nil
}
