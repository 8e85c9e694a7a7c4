package view

import (
	"strconv"

	"golang.org/x/net/html"

	"smartmenu/dom"
	"smartmenu/state"
)

// Action is one header call-to-action.
type Action string

const (
	ActionStartOrder  Action = "start-order"
	ActionLoading     Action = "loading"
	ActionViewOrder   Action = "view-order"
	ActionRequestBill Action = "request-bill"
	ActionPay         Action = "pay"
)

// Affordances picks the header actions for a snapshot:
//
//	no order               -> Start Order
//	order, not hydrated    -> Loading (disabled)
//	order, hydrated        -> View Order
//	  + request bill flag  -> Request Bill
//	  + billrequested      -> Pay
func Affordances(snap *state.Snapshot) []Action {
	if !snap.HasOrder() {
		return []Action{ActionStartOrder}
	}
	if !snap.Hydrated() {
		return []Action{ActionLoading}
	}
	out := []Action{ActionViewOrder}
	if snap.RequestBillVisible() {
		out = append(out, ActionRequestBill)
	}
	if snap.Order.Status == state.StatusBillRequested {
		out = append(out, ActionPay)
	}
	return out
}

// OrderSummary renders the header actions into its container. A .menu-name
// label already in the container is kept in place.
type OrderSummary struct {
	doc    *dom.Document
	rootID string
	feed   Feed
	logFn  LogFunc
	m      mount
}

type OrderSummaryConfig struct {
	Doc     *dom.Document
	RootID  string
	Feed    Feed
	LogFunc LogFunc
}

func NewOrderSummary(c OrderSummaryConfig) *OrderSummary {
	id := c.RootID
	if id == "" {
		id = "openOrderContainer"
	}
	return &OrderSummary{doc: c.Doc, rootID: id, feed: c.Feed, logFn: defaultLog(c.LogFunc)}
}

func (v *OrderSummary) Name() string   { return "order-summary" }
func (v *OrderSummary) RootID() string { return v.rootID }

// Mount renders the current snapshot and follows the changed and order topics.
// Order events carry only the order, so the full snapshot is read from the feed.
func (v *OrderSummary) Mount() {
	ev := v.feed.Events()
	v.m.add(ev.Changed.Subscribe(func(s *state.Snapshot) { v.Render(s) }))
	v.m.add(ev.Order.Subscribe(func(state.Order) { v.Render(v.feed.Snapshot()) }))
	v.Render(v.feed.Snapshot())
}

func (v *OrderSummary) Unmount() { v.m.release() }

// Render reconciles the container with snap and reports whether the tree changed.
func (v *OrderSummary) Render(snap *state.Snapshot) (changed bool) {
	guard(v.logFn, v.Name(), func() {
		v.doc.Mutate(func(root *html.Node) {
			c := dom.ByID(root, v.rootID)
			if c == nil {
				return
			}
			group := dom.ChildByKey(c, "actions")
			if group == nil {
				group = keyed("actions", div("order-button-group"))
			}
			var buttons []*html.Node
			for _, a := range Affordances(snap) {
				buttons = append(buttons, actionButton(a, snap))
			}
			changed = dom.Reconcile(group, buttons)

			var desired []*html.Node
			if label := dom.Query(c, ".menu-name"); label != nil && label.Parent == c {
				desired = append(desired, label)
			}
			desired = append(desired, group)
			changed = dom.Reconcile(c, desired) || changed
		})
	})
	return changed
}

func actionButton(a Action, snap *state.Snapshot) *html.Node {
	switch a {
	case ActionStartOrder:
		return keyed(string(a), dom.El("button", attrs(
			"type", "button",
			"class", "btn-touch-primary btn-touch-sm",
			"data-bs-toggle", "modal",
			"data-bs-restaurant", snap.Restaurant.ID,
			"data-bs-menu", snap.MenuID,
			"data-bs-target", "#openOrderModal",
		), icon("bi bi-plus-circle"), text(" Start Order")))

	case ActionLoading:
		return keyed(string(a), dom.El("button", attrs(
			"type", "button",
			"class", "btn-touch-secondary btn-touch-sm me-2",
			"disabled", "disabled",
		), dom.El("span", attrs(
			"class", "spinner-border spinner-border-sm",
			"role", "status",
			"aria-hidden", "true",
		)), text(" Loading…")))

	case ActionViewOrder:
		count := snap.Order.TotalCount
		badge := dom.El("span", attrs(
			"class", "position-absolute top-0 start-100 translate-middle badge rounded-pill bg-danger",
		), text(strconv.Itoa(count)))
		if count <= 0 {
			dom.SetAttr(badge, "style", "display:none")
		}
		return keyed(string(a), dom.El("button", attrs(
			"type", "button",
			"class", "btn-touch-secondary btn-touch-sm me-2 position-relative",
			"data-bs-toggle", "modal",
			"data-bs-target", "#viewOrderModal",
		), icon("bi bi-receipt"), text(" View Order"), badge))

	case ActionRequestBill:
		return keyed(string(a), dom.El("button", attrs(
			"type", "button",
			"id", "request-bill",
			"class", "btn-touch-primary btn-touch-sm me-2",
			"data-bs-toggle", "modal",
			"data-bs-target", "#requestBillModal",
		), text("Request Bill")))

	case ActionPay:
		return keyed(string(a), dom.El("button", attrs(
			"type", "button",
			"id", "pay-order",
			"class", "btn-touch-dark btn-touch-sm",
			"data-bs-toggle", "modal",
			"data-bs-target", "#payOrderModal",
		), text("Pay")))
	}
	return nil
}
