package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// ByID returns the first element whose id attribute equals id.
func ByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && Attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Query returns the first match of a simple selector under root, or nil.
func Query(root *html.Node, selector string) *html.Node {
	if m := QueryAll(root, selector); len(m) > 0 {
		return m[0]
	}
	return nil
}

// QueryAll returns all nodes matching a simple selector. Supported:
//   - tag, .class, #id, tag.class, tag#id
//   - [attr], [attr=val], tag[attr="val"]
//   - descendant combinator (space separated)
func QueryAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 || root == nil {
		return nil
	}

	matches := matchSimple(root, parts[0], false)
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		seen := map[*html.Node]bool{}
		for _, parent := range matches {
			for _, n := range matchSimple(parent, parts[i], true) {
				if !seen[n] {
					seen[n] = true
					next = append(next, n)
				}
			}
		}
		matches = next
	}
	return matches
}

func matchSimple(root *html.Node, sel string, descendantsOnly bool) []*html.Node {
	s := parseSimpleSelector(sel)
	var results []*html.Node
	walk(root, func(n *html.Node) bool {
		if descendantsOnly && n == root {
			return true
		}
		if matchesSelector(n, s) {
			results = append(results, n)
		}
		return true
	})
	return results
}

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
	hasVal  bool
}

func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eq := strings.IndexByte(attrPart, '='); eq >= 0 {
			s.attrKey = attrPart[:eq]
			s.attrVal = strings.Trim(attrPart[eq+1:], `"'`)
			s.hasVal = true
		} else {
			s.attrKey = attrPart
		}
	}
	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}
	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}
	s.tag = strings.ToLower(sel)
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}
	if s.class != "" && !HasClass(n, s.class) {
		return false
	}
	if s.attrKey != "" {
		if !HasAttr(n, s.attrKey) {
			return false
		}
		if s.hasVal && Attr(n, s.attrKey) != s.attrVal {
			return false
		}
	}
	return true
}

// HasClass reports whether n carries class c.
func HasClass(n *html.Node, c string) bool {
	for _, f := range strings.Fields(Attr(n, "class")) {
		if f == c {
			return true
		}
	}
	return false
}
