// Package dom holds the small amount of document-tree handling the views need:
// parsing, simple selectors, dataset access, attribute/text mutation and keyed
// reconciliation over golang.org/x/net/html nodes.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document guards a parsed page. All reads and writes of the tree go
// through it so that independently mounted views never race.
type Document struct {
	mu   sync.Mutex
	root *html.Node
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node) *Document {
	return &Document{root: root}
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return NewDocument(root), nil
}

// ParseString is Parse for in-memory markup.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Blank returns a minimal page with an empty context container, used when
// the server-rendered page is unavailable.
func Blank() *Document {
	doc, _ := ParseString(`<!DOCTYPE html><html><head></head><body><div id="contextContainer"></div></body></html>`)
	return doc
}

// Mutate runs fn with exclusive access to the tree.
func (d *Document) Mutate(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// Read runs fn with exclusive access to the tree; fn must not modify it.
func (d *Document) Read(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// Render serialises the whole document.
func (d *Document) Render() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Render(d.root)
}

// RenderByID serialises the element with the given id.
func (d *Document) RenderByID(id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := ByID(d.root, id)
	if n == nil {
		return "", false
	}
	return Render(n), true
}

// Render serialises n and its subtree.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML serialises the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}
	return buf.String()
}

// Equal reports whether two subtrees serialise identically.
func Equal(a, b *html.Node) bool {
	return Render(a) == Render(b)
}

// Body returns the <body> element, or nil.
func Body(root *html.Node) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			found = n
			return false
		}
		return true
	})
	return found
}

// walk visits nodes depth first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
