package dom

import "golang.org/x/net/html"

// Element is a handle on an element of a Document looked up by id on every
// access, so it survives the element being replaced.
type Element struct {
	doc *Document
	id  string
}

// ElementByID returns a handle; the element need not exist yet.
func (d *Document) ElementByID(id string) *Element {
	return &Element{doc: d, id: id}
}

// Dataset returns the element's data-* attributes, or an empty map when the
// element is missing.
func (e *Element) Dataset() map[string]string {
	var ds map[string]string
	e.doc.Read(func(root *html.Node) {
		ds = Dataset(ByID(root, e.id))
	})
	return ds
}

// SetDataset writes dataset keys (orderId, session, ...) as data-* attributes.
// An empty value removes the attribute. It reports whether anything changed.
func (e *Element) SetDataset(attrs map[string]string) bool {
	changed := false
	e.doc.Mutate(func(root *html.Node) {
		n := ByID(root, e.id)
		if n == nil {
			return
		}
		for k, v := range attrs {
			name := DataAttr(k)
			if v == "" {
				changed = RemoveAttr(n, name) || changed
				continue
			}
			changed = SetAttr(n, name, v) || changed
		}
	})
	return changed
}
