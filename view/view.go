// Package view keeps server-rendered page fragments in step with the state
// store. Views only read snapshots; the one thing they may ask of the store
// is a refresh.
package view

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/net/html"

	"smartmenu/dom"
	"smartmenu/state"
	"smartmenu/wire"
)

type LogFunc func(format string, args ...any)

// Feed is the read side of the store.
type Feed interface {
	Events() *state.Events
	Snapshot() *state.Snapshot
}

// Refresher forces a synchronous re-fetch of the state.
type Refresher interface {
	Refresh(ctx context.Context) (*state.Snapshot, error)
}

// View is a mounted fragment.
type View interface {
	Name() string
	RootID() string
	Mount()
	Unmount()
	Render(snap *state.Snapshot) bool
}

// mount holds the subscriptions of a mounted view.
type mount struct {
	unsubs []func()
}

func (m *mount) add(fn func()) { m.unsubs = append(m.unsubs, fn) }

func (m *mount) release() {
	for _, fn := range m.unsubs {
		fn()
	}
	m.unsubs = nil
}

func defaultLog(fn LogFunc) LogFunc {
	if fn == nil {
		return log.Printf
	}
	return fn
}

// guard runs fn and turns a panic into a log line, so one broken view cannot
// take down its siblings on the same topic.
func guard(logFn LogFunc, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logFn("view: %s render failed: %v", name, r)
		}
	}()
	fn()
}

// money formats an amount with its currency symbol.
func money(symbol string, a wire.Amount) string {
	return fmt.Sprintf("%s%.2f", symbol, a.Float())
}

func plain(a wire.Amount) string {
	return fmt.Sprintf("%.2f", a.Float())
}

func symbolOf(t *wire.Totals) string {
	if t == nil {
		return ""
	}
	return t.Currency.Symbol
}

var submittedStatuses = map[string]bool{
	state.StatusOrdered:       true,
	state.StatusPreparing:     true,
	state.StatusReady:         true,
	state.StatusDelivered:     true,
	state.StatusBillRequested: true,
	state.StatusPaid:          true,
}

func lineStatus(l wire.OrderLine) string { return strings.ToLower(l.Status) }

// node builders, kept terse since views build a lot of markup

func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, dom.A(kv[i], kv[i+1]))
	}
	return out
}

func div(class string, children ...*html.Node) *html.Node {
	return dom.El("div", attrs("class", class), children...)
}

func span(class string, children ...*html.Node) *html.Node {
	if class == "" {
		return dom.El("span", nil, children...)
	}
	return dom.El("span", attrs("class", class), children...)
}

func bold(children ...*html.Node) *html.Node { return dom.El("b", nil, children...) }

func icon(class string) *html.Node { return dom.El("i", attrs("class", class)) }

func text(s string) *html.Node { return dom.Text(s) }

func keyed(key string, n *html.Node) *html.Node {
	n.Attr = append(n.Attr, dom.A(dom.KeyAttr, key))
	return n
}

// setDisabled toggles disabled on the first match, preferring the view's own
// subtree over the rest of the page.
func setDisabled(scope, root *html.Node, id string, disabled bool) bool {
	n := dom.ByID(scope, id)
	if n == nil {
		n = dom.ByID(root, id)
	}
	if n == nil {
		return false
	}
	return dom.SetDisabled(n, disabled)
}

func setTextByID(root *html.Node, id, s string) bool {
	if n := dom.ByID(root, id); n != nil {
		return dom.SetText(n, s)
	}
	return false
}
