package view

import (
	"regexp"
	"strconv"

	"golang.org/x/net/html"

	"smartmenu/dom"
	"smartmenu/state"
	"smartmenu/wire"
)

// Cart keeps the bottom cart sheet in step: item count, total and, once the
// order items have been hydrated, the item list with its actions.
type Cart struct {
	doc    *dom.Document
	rootID string
	feed   Feed
	logFn  LogFunc
	m      mount
}

type CartConfig struct {
	Doc     *dom.Document
	RootID  string
	Feed    Feed
	LogFunc LogFunc
}

func NewCart(c CartConfig) *Cart {
	id := c.RootID
	if id == "" {
		id = "cartItemsContainer"
	}
	return &Cart{doc: c.Doc, rootID: id, feed: c.Feed, logFn: defaultLog(c.LogFunc)}
}

func (v *Cart) Name() string   { return "cart" }
func (v *Cart) RootID() string { return v.rootID }

func (v *Cart) Mount() {
	v.m.add(v.feed.Events().Changed.Subscribe(func(s *state.Snapshot) { v.Render(s) }))
	v.Render(v.feed.Snapshot())
}

func (v *Cart) Unmount() { v.m.release() }

func (v *Cart) Render(snap *state.Snapshot) (changed bool) {
	guard(v.logFn, v.Name(), func() {
		v.doc.Mutate(func(root *html.Node) {
			changed = v.apply(root, snap)
		})
	})
	return changed
}

var sizeSuffix = regexp.MustCompile(`\s*\(.*\)`)

func (v *Cart) apply(root *html.Node, snap *state.Snapshot) bool {
	changed := setTextByID(root, "cartItemCount", strconv.Itoa(snap.Order.TotalCount))
	sym := symbolOf(snap.Totals)
	if snap.Totals != nil {
		changed = setTextByID(root, "cartTotalAmount", money(sym, snap.Totals.Gross)) || changed
	}

	container := dom.ByID(root, v.rootID)
	// server-rendered rows stay until items arrive from JSON
	if container == nil || !snap.ItemsHydrated() {
		return changed
	}

	var opened, submitted []wire.OrderLine
	count := 0
	for _, it := range snap.Order.Items {
		switch lineStatus(it) {
		case state.StatusRemoved:
			continue
		case state.StatusOpened:
			opened = append(opened, it)
		case state.StatusOrdered, state.StatusPreparing, state.StatusReady, state.StatusDelivered:
			submitted = append(submitted, it)
		}
		count++
	}

	var out []*html.Node
	if len(opened) > 0 {
		out = append(out, keyed("selected", div("cart-sheet__section-label", text("Selected"))))
		for _, it := range opened {
			id := it.ID.String()
			out = append(out, keyed("item-"+id, dom.El("div", attrs("class", "cart-sheet__item", "data-testid", "cart-item-"+id),
				dom.El("button", attrs(
					"type", "button",
					"class", "cart-sheet__remove removeItemFromOrderButton",
					"data-bs-ordritem_id", id,
					"aria-label", "Remove item",
					"data-testid", "remove-cart-item-"+id,
				), icon("bi bi-x-circle")),
				itemName(it),
				div("cart-sheet__item-price", text(money(sym, it.Price))),
			)))
		}
	}
	if len(submitted) > 0 {
		out = append(out, keyed("submitted", div("cart-sheet__section-label cart-sheet__section-label--muted", text("Submitted"))))
		for _, it := range submitted {
			out = append(out, keyed("item-"+it.ID.String(), div("cart-sheet__item cart-sheet__item--submitted",
				div("cart-sheet__status-icon", icon("bi bi-check-circle-fill text-success")),
				itemName(it),
				div("cart-sheet__item-price text-muted", text(money(sym, it.Price))),
			)))
		}
	}

	switch {
	case count > 0:
		var gross wire.Amount
		if snap.Totals != nil {
			gross = snap.Totals.Gross
		}
		out = append(out, keyed("totals", dom.El("div", attrs("class", "cart-sheet__totals", "data-testid", "cart-totals"),
			div("cart-sheet__total-row", span("", text("Total")),
				dom.El("span", attrs("class", "cart-sheet__total-value", "id", "cartTotalValue"), text(money(sym, gross)))))))
		out = append(out, keyed("actions", cartActions(snap, len(opened) > 0)))
	case snap.HasOrder():
		out = append(out, keyed("empty", div("text-center text-muted py-4",
			icon("bi bi-cart3 fs-1 mb-2 d-block"),
			dom.El("p", nil, text("Your cart is empty")),
			dom.El("p", attrs("class", "small"), text("Tap + on any item to add it")),
		)))
	}
	return dom.Reconcile(container, out) || changed
}

func itemName(it wire.OrderLine) *html.Node {
	n := div("cart-sheet__item-name", text(it.Name))
	if it.SizeName != "" {
		n.AppendChild(text(" "))
		n.AppendChild(dom.El("span", attrs("class", "text-muted", "style", "font-size:0.8em;"),
			text("("+sizeSuffix.ReplaceAllString(it.SizeName, "")+")")))
	}
	return n
}

// cartActions holds submit, request-bill and pay. Request Bill shows when the
// bill may be requested and payment is not yet open.
func cartActions(snap *state.Snapshot, hasOpened bool) *html.Node {
	actions := dom.El("div", attrs("class", "cart-sheet__actions", "data-testid", "cart-actions"))
	if hasOpened {
		actions.AppendChild(dom.El("button", attrs(
			"type", "button",
			"class", "btn-touch-primary w-100 submitOrderButton",
			"id", "cartSubmitOrder",
			"data-testid", "cart-submit-order-btn",
		), icon("bi bi-send"), text(" Submit order")))
	}
	payVisible := snap.PayVisible()
	billVisible := snap.RequestBillVisible() && !payVisible
	actions.AppendChild(dom.El("button", attrs(
		"type", "button",
		"class", "btn-touch-primary w-100 mt-2",
		"id", "cartRequestBill",
		"data-bs-toggle", "modal",
		"data-bs-target", "#requestBillModal",
		"style", display(billVisible),
	), icon("bi bi-receipt"), text(" Request Bill")))
	actions.AppendChild(dom.El("button", attrs(
		"type", "button",
		"class", "btn-touch-dark w-100 mt-2",
		"id", "cartPayOrder",
		"style", display(payVisible),
	), icon("bi bi-currency-euro"), text(" Pay")))
	return actions
}

func display(visible bool) string {
	if visible {
		return "display:block;"
	}
	return "display:none;"
}
