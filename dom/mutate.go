package dom

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// KeyAttr marks children that Reconcile can match across renders.
const KeyAttr = "data-key"

// Attr returns the value of an attribute on n, or "". n may be nil.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether n has the attribute.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets an attribute, reporting whether the tree changed.
func SetAttr(n *html.Node, key, val string) bool {
	for i, a := range n.Attr {
		if a.Key == key {
			if a.Val == val {
				return false
			}
			n.Attr[i].Val = val
			return true
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	return true
}

// RemoveAttr deletes an attribute, reporting whether it existed.
func RemoveAttr(n *html.Node, key string) bool {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

// SetDisabled toggles the disabled attribute.
func SetDisabled(n *html.Node, disabled bool) bool {
	if disabled {
		return SetAttr(n, "disabled", "disabled")
	}
	return RemoveAttr(n, "disabled")
}

// Disabled reports whether n carries the disabled attribute.
func Disabled(n *html.Node) bool { return HasAttr(n, "disabled") }

// TextContent concatenates all text below n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// SetText replaces the children of n with a single text node. Inputs get
// their value attribute set instead. Unchanged text is left alone.
func SetText(n *html.Node, text string) bool {
	if n.Type == html.ElementNode && n.DataAtom == atom.Input {
		return SetAttr(n, "value", text)
	}
	if n.FirstChild != nil && n.FirstChild == n.LastChild && n.FirstChild.Type == html.TextNode && n.FirstChild.Data == text {
		return false
	}
	ReplaceChildren(n, Text(text))
	return true
}

// ReplaceChildren drops every child of n and appends the given nodes.
func ReplaceChildren(n *html.Node, children ...*html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, c := range children {
		if c == nil {
			continue
		}
		detach(c)
		n.AppendChild(c)
	}
}

// Dataset returns the data-* attributes of n keyed the way browsers expose
// them: data-order-id becomes orderId.
func Dataset(n *html.Node) map[string]string {
	ds := map[string]string{}
	if n == nil {
		return ds
	}
	for _, a := range n.Attr {
		if strings.HasPrefix(a.Key, "data-") {
			ds[datasetKey(a.Key[len("data-"):])] = a.Val
		}
	}
	return ds
}

// DataAttr converts a dataset key (orderId) to its attribute name (data-order-id).
func DataAttr(key string) string {
	var b strings.Builder
	b.WriteString("data-")
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func datasetKey(name string) string {
	var b strings.Builder
	upper := false
	for _, r := range name {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// A builds an attribute.
func A(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// El builds an element node.
func El(tag string, attrs []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
	for _, c := range children {
		if c != nil {
			n.AppendChild(c)
		}
	}
	return n
}

// Text builds a text node; rendering escapes it.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Key returns the reconciliation key of n.
func Key(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return Attr(n, KeyAttr)
}

// ChildByKey returns the direct child of parent carrying key.
func ChildByKey(parent *html.Node, key string) *html.Node {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if Key(c) == key {
			return c
		}
	}
	return nil
}

// Reconcile makes desired the exact child list of parent. A desired node
// that is already a child of parent is kept as is. A keyed desired node whose
// key matches an existing child that serialises identically is replaced by
// that existing child, so unchanged fragments keep their identity. Every
// other existing child is dropped. Reconcile reports whether the tree changed;
// when it did not, parent is not touched at all.
func Reconcile(parent *html.Node, desired []*html.Node) bool {
	existing := map[string]*html.Node{}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if k := Key(c); k != "" {
			if _, dup := existing[k]; !dup {
				existing[k] = c
			}
		}
	}

	used := map[*html.Node]bool{}
	out := make([]*html.Node, 0, len(desired))
	for _, d := range desired {
		if d == nil {
			continue
		}
		if d.Parent == parent && !used[d] {
			used[d] = true
			out = append(out, d)
			continue
		}
		if k := Key(d); k != "" {
			if cur, ok := existing[k]; ok && !used[cur] && Equal(cur, d) {
				used[cur] = true
				out = append(out, cur)
				continue
			}
		}
		out = append(out, d)
	}

	i := 0
	same := true
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if i >= len(out) || out[i] != c {
			same = false
			break
		}
		i++
	}
	if same && i == len(out) {
		return false
	}

	ReplaceChildren(parent, out...)
	return true
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
