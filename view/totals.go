package view

import (
	"context"
	"encoding/json"
	"strconv"

	"golang.org/x/net/html"

	"smartmenu/dom"
	"smartmenu/state"
	"smartmenu/wire"
)

// Mode is the modal a Totals view is mounted on, taken from the root id.
type Mode int

const (
	ModeOther Mode = iota
	ModeViewOrder
	ModeRequestBill
	ModePay
)

const (
	ViewOrderModalID   = "viewOrderModal"
	RequestBillModalID = "requestBillModal"
	PayOrderModalID    = "payOrderModal"
)

func ModeFor(rootID string) Mode {
	switch rootID {
	case ViewOrderModalID:
		return ModeViewOrder
	case RequestBillModalID:
		return ModeRequestBill
	case PayOrderModalID:
		return ModePay
	}
	return ModeOther
}

// Totals keeps one order/bill/pay modal in step with the store. Until totals
// are known it leaves the server-rendered modal content alone.
type Totals struct {
	doc       *dom.Document
	rootID    string
	mode      Mode
	feed      Feed
	refresher Refresher
	logFn     LogFunc
	m         mount
}

type TotalsConfig struct {
	Doc       *dom.Document
	RootID    string
	Feed      Feed
	Refresher Refresher
	LogFunc   LogFunc
}

func NewTotals(c TotalsConfig) *Totals {
	return &Totals{
		doc:       c.Doc,
		rootID:    c.RootID,
		mode:      ModeFor(c.RootID),
		feed:      c.Feed,
		refresher: c.Refresher,
		logFn:     defaultLog(c.LogFunc),
	}
}

func (v *Totals) Name() string   { return "totals:" + v.rootID }
func (v *Totals) RootID() string { return v.rootID }
func (v *Totals) Mode() Mode     { return v.mode }

func (v *Totals) Mount() {
	v.m.add(v.feed.Events().Changed.Subscribe(func(s *state.Snapshot) { v.Render(s) }))
	v.Render(v.feed.Snapshot())
}

func (v *Totals) Unmount() { v.m.release() }

// Render applies snap to the modal and reports whether the tree changed.
func (v *Totals) Render(snap *state.Snapshot) (changed bool) {
	guard(v.logFn, v.Name(), func() {
		v.doc.Mutate(func(root *html.Node) {
			changed = v.apply(root, snap)
		})
	})
	return changed
}

// ModalShow runs before the modal opens. The pay modal gets its fallback
// layout straight away; implausible totals escalate to a store refresh.
func (v *Totals) ModalShow(ctx context.Context) error {
	snap := v.feed.Snapshot()
	if v.mode == ModePay {
		guard(v.logFn, v.Name(), func() {
			v.doc.Mutate(func(root *html.Node) {
				if modal := dom.ByID(root, v.rootID); modal != nil {
					ensurePayContent(modal, snap.Totals)
				}
			})
		})
	}
	if snap.Totals != nil && snap.Totals.Gross > 0 {
		v.Render(snap)
		return nil
	}
	if v.refresher == nil {
		return nil
	}
	fresh, err := v.refresher.Refresh(ctx)
	if err != nil {
		v.logFn("view: %s refresh failed: %v", v.Name(), err)
		return err
	}
	v.Render(fresh)
	return nil
}

func (v *Totals) apply(root *html.Node, snap *state.Snapshot) bool {
	modal := dom.ByID(root, v.rootID)
	if modal == nil {
		return false
	}
	totals := snap.Totals
	changed := false

	switch v.mode {
	case ModeViewOrder:
		changed = renderOrderItems(modal, snap) || changed
	case ModeRequestBill:
		changed = renderRequestBill(modal, totals) || changed
	case ModePay:
		changed = ensurePayContent(modal, totals) || changed
	}

	changed = setDisabled(modal, root, "confirm-order", snap.Order.OpenedCount <= 0) || changed
	changed = setDisabled(modal, root, "request-bill-confirm", !snap.RequestBillVisible()) || changed

	if totals == nil {
		return changed
	}

	sym := totals.Currency.Symbol
	for id, s := range map[string]string{
		"orderCoverCharge": plain(totals.Covercharge),
		"orderNett":        plain(totals.Nett),
		"orderService":     plain(totals.Service),
		"orderTax":         plain(totals.Tax),
		"orderGross":       plain(totals.Gross),
		"orderGrandTotal":  money(sym, totals.Gross),
	} {
		changed = setTextByID(root, id, s) || changed
	}

	payable := totals.Gross > 0 && snap.HasOrder()
	changed = setDisabled(modal, root, "pay-order", !payable) || changed
	changed = setDisabled(modal, root, "pay-order-confirm", !payable) || changed
	return changed
}

// renderOrderItems fills the order modal body with Selected and Submitted
// rows and a total. Without totals the server markup is left untouched.
func renderOrderItems(modal *html.Node, snap *state.Snapshot) bool {
	body := dom.Query(modal, `[data-testid="order-modal-body"]`)
	if body == nil || snap.Totals == nil {
		return false
	}
	sym := snap.Totals.Currency.Symbol

	var opened, submitted []wire.OrderLine
	for _, it := range snap.Order.Items {
		switch st := lineStatus(it); {
		case st == state.StatusOpened:
			opened = append(opened, it)
		case submittedStatuses[st]:
			submitted = append(submitted, it)
		}
	}

	col := func(n string, children ...*html.Node) *html.Node { return div("col-"+n, children...) }
	rows := []*html.Node{
		keyed("header", div("row", col("8"), col("2"), col("2", span("float-end", bold(text("Price")))))),
	}

	if len(opened) > 0 {
		rows = append(rows, keyed("selected", div("row", col("2", dom.El("p", nil, text("Selected"))), col("10", dom.El("hr", nil)))))
		for _, it := range opened {
			id := it.ID.String()
			remove := dom.El("button", attrs(
				"type", "button",
				"class", "removeItemFromOrderButton btn-touch-danger btn-touch-icon btn-touch-sm",
				"data-bs-ordritem_id", id,
				"aria-label", "Remove item",
			), icon("bi bi-trash"))
			rows = append(rows, keyed("item-"+id, dom.El("div", attrs(
				"id", "ordritem_"+id,
				"class", "row",
				"data-testid", "order-item-"+id,
			),
				col("8", div("d-flex w-100 overflow-hidden", dom.El("p", attrs("class", "text-truncate"), remove, text(" "+it.Name)))),
				col("2"),
				col("2", span("float-end", text(money(sym, it.Price)))),
			)))
		}
	}

	if len(submitted) > 0 {
		rows = append(rows, keyed("submitted", div("row", col("2", dom.El("p", nil, text("Submitted"))), col("10", dom.El("hr", nil)))))
		for _, it := range submitted {
			id := it.ID.String()
			marker := dom.El("button", attrs(
				"type", "button",
				"class", "btn-touch-dark btn-touch-icon btn-touch-sm",
				"disabled", "disabled",
			), icon("bi bi-arrow-right-circle-fill"))
			rows = append(rows, keyed("item-"+id, dom.El("div", attrs("id", "ordritem_"+id, "class", "row"),
				col("8", div("d-flex w-100 overflow-hidden", dom.El("p", attrs("class", "text-muted text-truncate"), marker, text(" "+it.Name)))),
				col("2"),
				col("2", span("text-muted float-end", text(money(sym, it.Price)))),
			)))
		}
	}

	rows = append(rows, keyed("total", div("row",
		col("8"),
		col("2", bold(text("Total:"))),
		col("2", dom.El("span", attrs("class", "float-end", "data-testid", "order-total-amount"), bold(text(money(sym, snap.Totals.Gross))))),
	)))
	return dom.Reconcile(body, rows)
}

func billLine(key, class string, label, amount *html.Node) *html.Node {
	cls := "bill-line"
	if class != "" {
		cls += " " + class
	}
	return keyed(key, div(cls, span("", label), span("bill-amount", amount)))
}

// renderRequestBill writes the bill breakdown. Cover charge, service and tax
// lines only appear when positive.
func renderRequestBill(modal *html.Node, totals *wire.Totals) bool {
	body := dom.Query(modal, ".modal-body")
	if body == nil || totals == nil {
		return false
	}
	sym := totals.Currency.Symbol
	lines := []*html.Node{billLine("header", "bill-line-header", bold(text("Item")), bold(text("Price")))}
	if totals.Covercharge > 0 {
		lines = append(lines, billLine("covercharge", "", text("Cover charge"), text(money(sym, totals.Covercharge))))
	}
	lines = append(lines, billLine("nett", "", text("Nett"), text(money(sym, totals.Nett))))
	if totals.Service > 0 {
		lines = append(lines, billLine("service", "", text("Service"), text(money(sym, totals.Service))))
	}
	if totals.Tax > 0 {
		lines = append(lines, billLine("tax", "", text("Tax"), text(money(sym, totals.Tax))))
	}
	lines = append(lines,
		keyed("rule", dom.El("hr", nil)),
		billLine("total", "bill-line-total",
			span("", bold(text("Total")), text(" "), dom.El("i", nil, text("(excluding tip)"))),
			bold(text(money(sym, totals.Gross)))),
	)
	return dom.Reconcile(body, lines)
}

// ensurePayContent builds a minimal pay layout when the page came without
// one (no #orderGross anchor). It never runs before totals are known.
func ensurePayContent(modal *html.Node, totals *wire.Totals) bool {
	if totals == nil {
		return false
	}
	body := dom.Query(modal, ".modal-body")
	if body == nil || dom.ByID(modal, "orderGross") != nil {
		return false
	}
	sym := totals.Currency.Symbol
	if sym == "" {
		sym = dom.Attr(modal, "data-currency-symbol")
	}
	gross := plain(totals.Gross)

	amount := func(id string, a wire.Amount) *html.Node {
		return dom.El("span", attrs("id", id), text(money(sym, a)))
	}
	out := []*html.Node{
		keyed("currency", dom.El("span", attrs("id", "restaurantCurrency", "style", "display:none"), text(sym))),
		billLine("header", "bill-line-header", bold(text("Item")), bold(text("Price"))),
		billLine("nett", "", text("Nett"), amount("orderNett", totals.Nett)),
	}
	if totals.Service > 0 {
		out = append(out, billLine("service", "", text("Service"), amount("orderService", totals.Service)))
	}
	if totals.Tax > 0 {
		out = append(out, billLine("tax", "", text("Tax"), amount("orderTax", totals.Tax)))
	}
	out = append(out,
		keyed("rule", dom.El("hr", nil)),
		billLine("gross", "bill-line-total",
			span("", bold(text("Total")), text(" "), dom.El("i", nil, text("(excluding tip)"))),
			bold(text(sym), dom.El("span", attrs("id", "orderGross"), text(gross)))),
	)

	tips := div("d-flex flex-wrap align-items-center justify-content-end gap-2 mt-3 mb-3")
	for _, pct := range tipPresets(dom.Attr(modal, "data-tip-presets")) {
		tips.AppendChild(dom.El("button", attrs("type", "button", "class", "btn-touch-secondary btn-touch-sm tip-preset-btn"),
			span("tipPreset", text(pct+"%"))))
	}
	tips.AppendChild(dom.El("input", attrs(
		"id", "tipNumberField",
		"type", "number",
		"min", "0.00",
		"class", "form-control form-control-sm text-end",
		"style", "width:80px",
		"value", "0.00",
	)))
	out = append(out,
		keyed("tip", div("bill-tip-row", tips)),
		keyed("rule-2", dom.El("hr", nil)),
		billLine("grand", "bill-line-total",
			span("", bold(text("Total")), text(" "), dom.El("i", nil, text("(including tip)"))),
			bold(dom.El("span", attrs("id", "orderGrandTotal"), text(sym+gross)))),
	)
	return dom.Reconcile(body, out)
}

// tipPresets parses a JSON array of percentages; anything else gives none.
func tipPresets(raw string) []string {
	if raw == "" {
		return nil
	}
	var nums []float64
	if err := json.Unmarshal([]byte(raw), &nums); err != nil {
		return nil
	}
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = strconv.FormatFloat(n, 'f', -1, 64)
	}
	return out
}
