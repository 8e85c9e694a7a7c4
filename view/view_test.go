package view

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"smartmenu/dom"
	"smartmenu/state"
	"smartmenu/wire"
)

const page = `<!DOCTYPE html><html><body data-smartmenu-id="t1">
<div id="contextContainer" data-order-id="5"></div>
<div id="openOrderContainer"><span class="menu-name">Dinner</span><a class="legacy">old</a></div>
<div id="viewOrderModal"><div class="modal-body" data-testid="order-modal-body"><div class="row"><span data-testid="order-total-amount">$7.00</span></div></div>
<button id="confirm-order" disabled="disabled">Confirm</button></div>
<div id="requestBillModal"><div class="modal-body"><p>server bill</p></div><button id="request-bill-confirm" disabled="disabled">Request</button></div>
<div id="payOrderModal" data-tip-presets="[5,10,12.5]"><div class="modal-body"><span id="orderGross">7.00</span><span id="orderGrandTotal">$7.00</span></div>
<button id="pay-order-confirm" disabled="disabled">Pay</button></div>
<div id="cartItemCount">0</div><div id="cartTotalAmount">$0.00</div><div id="cartItemsContainer"><p>server cart</p></div>
</body></html>`

func quiet(string, ...any) {}

func newDoc(t *testing.T, markup string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func apply(t *testing.T, s *state.Store, body string) {
	t.Helper()
	p, err := wire.Decode([]byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := s.Apply(state.SourcePush, p); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func textOf(doc *dom.Document, id string) string {
	var s string
	doc.Read(func(root *html.Node) {
		if n := dom.ByID(root, id); n != nil {
			s = dom.TextContent(n)
		}
	})
	return s
}

func disabled(doc *dom.Document, id string) bool {
	var d bool
	doc.Read(func(root *html.Node) {
		if n := dom.ByID(root, id); n != nil {
			d = dom.Disabled(n)
		}
	})
	return d
}

func render(doc *dom.Document, id string) string {
	s, _ := doc.RenderByID(id)
	return s
}

func TestAffordances_DecisionTable(t *testing.T) {
	for _, hasOrder := range []bool{false, true} {
		for _, hydrated := range []bool{false, true} {
			for _, billVisible := range []bool{false, true} {
				for _, status := range []string{"", state.StatusBillRequested, state.StatusOrdered} {
					snap := &state.Snapshot{}
					if hasOrder {
						snap.Order.ID = "5"
					}
					snap.Order.Status = status
					if hydrated {
						snap.Flags = &state.Flags{DisplayRequestBill: wire.Bool(billVisible)}
					}

					var want []Action
					switch {
					case !hasOrder:
						want = []Action{ActionStartOrder}
					case !hydrated:
						want = []Action{ActionLoading}
					default:
						want = []Action{ActionViewOrder}
						if billVisible {
							want = append(want, ActionRequestBill)
						}
						if status == state.StatusBillRequested {
							want = append(want, ActionPay)
						}
					}

					name := fmt.Sprintf("order=%v hydrated=%v bill=%v status=%q", hasOrder, hydrated, billVisible, status)
					got := Affordances(snap)
					if !reflect.DeepEqual(got, want) {
						t.Errorf("%s: got %v, want %v", name, got, want)
					}
					primary := 0
					for _, a := range got {
						if a == ActionStartOrder || a == ActionLoading || a == ActionViewOrder {
							primary++
						}
					}
					if primary != 1 {
						t.Errorf("%s: %d primary actions", name, primary)
					}
				}
			}
		}
	}
}

func TestOrderSummary_RendersAndPreservesLabel(t *testing.T) {
	doc := newDoc(t, page)
	store := state.New(state.Config{LogFunc: quiet, Context: state.NewMapDataset(map[string]string{"orderId": "5"})})
	store.ApplyDatasetState()

	v := NewOrderSummary(OrderSummaryConfig{Doc: doc, Feed: store, LogFunc: quiet})
	v.Mount()
	defer v.Unmount()

	var label *html.Node
	doc.Read(func(root *html.Node) { label = dom.Query(root, ".menu-name") })

	out := render(doc, "openOrderContainer")
	if !strings.Contains(out, "Loading…") || !strings.Contains(out, `disabled="disabled"`) {
		t.Fatalf("expected loading button: %s", out)
	}
	if strings.Contains(out, "legacy") {
		t.Fatalf("stale content kept: %s", out)
	}

	apply(t, store, `{"order": {"id": 5, "status": "billrequested", "totalCount": 3}, "flags": {"displayRequestBill": true}, "totals": {"gross": 9}}`)
	out = render(doc, "openOrderContainer")
	for _, want := range []string{"View Order", ">3</span>", `id="request-bill"`, `id="pay-order"`, "Dinner"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
	doc.Read(func(root *html.Node) {
		if dom.Query(root, ".menu-name") != label {
			t.Error("menu-name label node replaced")
		}
	})
}

func TestOrderSummary_KeepsNodeIdentity(t *testing.T) {
	doc := newDoc(t, page)
	store := state.New(state.Config{LogFunc: quiet})
	apply(t, store, `{"order": {"id": 5, "status": "ordered", "totalCount": 1}, "flags": {"displayRequestBill": false}}`)

	v := NewOrderSummary(OrderSummaryConfig{Doc: doc, Feed: store, LogFunc: quiet})
	v.Render(store.Snapshot())

	var viewBtn *html.Node
	doc.Read(func(root *html.Node) { viewBtn = dom.Query(root, `[data-key=view-order]`) })
	if viewBtn == nil {
		t.Fatal("view-order button missing")
	}

	if v.Render(store.Snapshot()) {
		t.Fatal("identical snapshot changed the tree")
	}

	apply(t, store, `{"flags": {"displayRequestBill": true}}`)
	if !v.Render(store.Snapshot()) {
		t.Fatal("flag change did not change the tree")
	}
	doc.Read(func(root *html.Node) {
		if dom.Query(root, `[data-key=view-order]`) != viewBtn {
			t.Error("unchanged view-order button was recreated")
		}
		if dom.Query(root, "#request-bill") == nil {
			t.Error("request bill button missing")
		}
	})
}

func TestOrderSummary_BadgeHiddenAtZero(t *testing.T) {
	doc := newDoc(t, page)
	store := state.New(state.Config{LogFunc: quiet})
	apply(t, store, `{"order": {"id": 5, "status": "opened"}, "flags": {}}`)
	v := NewOrderSummary(OrderSummaryConfig{Doc: doc, Feed: store, LogFunc: quiet})
	v.Render(store.Snapshot())
	if out := render(doc, "openOrderContainer"); !strings.Contains(out, `style="display:none"`) {
		t.Fatalf("badge should be hidden: %s", out)
	}
}

func TestOpenedOrder_RendersHeaderAndSelectedRows(t *testing.T) {
	doc := newDoc(t, page)
	store := state.New(state.Config{LogFunc: quiet})
	summary := NewOrderSummary(OrderSummaryConfig{Doc: doc, Feed: store, LogFunc: quiet})
	modal := NewTotals(TotalsConfig{Doc: doc, RootID: ViewOrderModalID, Feed: store, LogFunc: quiet})
	summary.Mount()
	modal.Mount()

	apply(t, store, `{"order": {"id": 5, "status": "opened", "items": [{"id": 1, "name": "Soup", "status": "opened", "price": 10}], "openedCount": 1, "totalCount": 1},
		"totals": {"nett": 10, "service": 0, "tax": 0, "gross": 10, "currency": {"symbol": "$"}}, "flags": {"displayRequestBill": false}}`)

	header := render(doc, "openOrderContainer")
	if !strings.Contains(header, "View Order") || !strings.Contains(header, ">1</span>") {
		t.Fatalf("header: %s", header)
	}

	var rows, totalAmount, itemPrice string
	doc.Read(func(root *html.Node) {
		body := dom.Query(root, `[data-testid="order-modal-body"]`)
		rows = dom.InnerHTML(body)
		totalAmount = dom.TextContent(dom.Query(body, `[data-testid="order-total-amount"]`))
		itemPrice = dom.TextContent(dom.Query(dom.ByID(root, "ordritem_1"), ".float-end"))
	})
	if !strings.Contains(rows, "Selected") || strings.Contains(rows, "Submitted") {
		t.Fatalf("rows: %s", rows)
	}
	if itemPrice != "$10.00" || totalAmount != "$10.00" {
		t.Fatalf("item %q total %q", itemPrice, totalAmount)
	}
	if disabled(doc, "confirm-order") {
		t.Fatal("confirm-order should be enabled")
	}
}

func TestTotals_EarlyReturnWithoutTotals(t *testing.T) {
	doc := newDoc(t, page)
	store := state.New(state.Config{LogFunc: quiet})
	apply(t, store, `{"order": {"id": 5, "status": "opened", "items": [{"id": 1, "status": "opened", "price": 10}]}}`)

	before := doc.Render()
	for _, id := range []string{ViewOrderModalID, RequestBillModalID, PayOrderModalID} {
		v := NewTotals(TotalsConfig{Doc: doc, RootID: id, Feed: store, LogFunc: quiet})
		if v.Render(store.Snapshot()) {
			t.Errorf("%s: reported a mutation without totals", id)
		}
	}
	if doc.Render() != before {
		t.Fatal("document changed without totals")
	}
}

func TestViewOrderModal_GatesRunBeforeTotals(t *testing.T) {
	markup := strings.Replace(page, `<button id="confirm-order" disabled="disabled">`, `<button id="confirm-order">`, 1)
	doc := newDoc(t, markup)
	store := state.New(state.Config{LogFunc: quiet, Context: state.NewMapDataset(map[string]string{"orderId": "5"})})
	snap := store.ApplyDatasetState()
	if snap.Totals != nil {
		t.Fatal("bootstrap snapshot should have no totals")
	}

	var bodyBefore string
	doc.Read(func(root *html.Node) {
		bodyBefore = dom.InnerHTML(dom.Query(root, `[data-testid="order-modal-body"]`))
	})
	v := NewTotals(TotalsConfig{Doc: doc, RootID: ViewOrderModalID, Feed: store, LogFunc: quiet})
	if !v.Render(snap) {
		t.Fatal("gate change not reported")
	}
	if !disabled(doc, "confirm-order") {
		t.Fatal("confirm-order should be gated off with no opened items")
	}
	var bodyAfter string
	doc.Read(func(root *html.Node) {
		bodyAfter = dom.InnerHTML(dom.Query(root, `[data-testid="order-modal-body"]`))
	})
	if bodyAfter != bodyBefore {
		t.Fatalf("server markup replaced:\n%s\n%s", bodyBefore, bodyAfter)
	}
}

func TestPayModal_KeepsServerTotalsBeforeHydration(t *testing.T) {
	doc := newDoc(t, page)
	store := state.New(state.Config{LogFunc: quiet})
	v := NewTotals(TotalsConfig{Doc: doc, RootID: PayOrderModalID, Feed: store, LogFunc: quiet})
	v.Mount()
	before := render(doc, PayOrderModalID)

	apply(t, store, `{"order": {"id": 5, "status": "billrequested"}}`)
	if after := render(doc, PayOrderModalID); after != before {
		t.Fatalf("pay modal changed:\n%s\n%s", before, after)
	}
	if textOf(doc, "orderGross") != "7.00" {
		t.Fatal("server gross overwritten")
	}
}

func TestTotals_Gates(t *testing.T) {
	doc := newDoc(t, page)
	store := state.New(state.Config{LogFunc: quiet})
	for _, id := range []string{ViewOrderModalID, RequestBillModalID, PayOrderModalID} {
		NewTotals(TotalsConfig{Doc: doc, RootID: id, Feed: store, LogFunc: quiet}).Mount()
	}

	apply(t, store, `{"order": {"id": 5, "openedCount": 2}, "flags": {"displayRequestBill": true}, "totals": {"gross": 12.5, "currency": {"symbol": "€"}}}`)
	if disabled(doc, "confirm-order") || disabled(doc, "request-bill-confirm") || disabled(doc, "pay-order-confirm") {
		t.Fatal("all gates should be open")
	}
	if textOf(doc, "orderGross") != "12.50" || textOf(doc, "orderGrandTotal") != "€12.50" {
		t.Fatalf("anchors: %q %q", textOf(doc, "orderGross"), textOf(doc, "orderGrandTotal"))
	}

	apply(t, store, `{"order": {"id": null}, "flags": {"displayRequestBill": false}, "totals": {"gross": 12.5}}`)
	if !disabled(doc, "confirm-order") || !disabled(doc, "request-bill-confirm") || !disabled(doc, "pay-order-confirm") {
		t.Fatal("all gates should be closed")
	}
}

func TestRequestBill_Lines(t *testing.T) {
	doc := newDoc(t, page)
	store := state.New(state.Config{LogFunc: quiet})
	v := NewTotals(TotalsConfig{Doc: doc, RootID: RequestBillModalID, Feed: store, LogFunc: quiet})
	v.Mount()
	apply(t, store, `{"totals": {"nett": 20, "service": 2, "tax": 0, "covercharge": 1.5, "gross": 23.5, "currency": {"symbol": "$"}}}`)

	out := render(doc, RequestBillModalID)
	for _, want := range []string{"Cover charge", "$1.50", "Nett", "$20.00", "Service", "$2.00", "$23.50", "(excluding tip)"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(out, "Tax") || strings.Contains(out, "server bill") {
		t.Errorf("unexpected content: %s", out)
	}
}

func TestPayModal_FallbackLayout(t *testing.T) {
	markup := `<html><body><div id="payOrderModal" data-tip-presets="[5,10,12.5]"><div class="modal-body"></div></div></body></html>`
	doc := newDoc(t, markup)
	store := state.New(state.Config{LogFunc: quiet})
	v := NewTotals(TotalsConfig{Doc: doc, RootID: PayOrderModalID, Feed: store, LogFunc: quiet})
	v.Mount()
	if strings.Contains(render(doc, PayOrderModalID), "orderGross") {
		t.Fatal("fallback must wait for totals")
	}

	apply(t, store, `{"totals": {"nett": 8, "tax": 2, "gross": 10, "currency": {"symbol": "$"}}}`)
	out := render(doc, PayOrderModalID)
	for _, want := range []string{`id="orderGross"`, `id="tipNumberField"`, "12.5%", "(including tip)"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
	if textOf(doc, "orderGross") != "10.00" || textOf(doc, "orderGrandTotal") != "$10.00" || textOf(doc, "orderTax") != "2.00" {
		t.Fatalf("anchors: gross=%q grand=%q tax=%q", textOf(doc, "orderGross"), textOf(doc, "orderGrandTotal"), textOf(doc, "orderTax"))
	}
}

type fakeRefresher struct {
	store *state.Store
	body  string
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context) (*state.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, err := wire.Decode([]byte(f.body))
	if err != nil {
		return nil, err
	}
	if err := f.store.Apply(state.SourceRefresh, p); err != nil {
		return nil, err
	}
	return f.store.Snapshot(), nil
}

func TestModalShow_RefreshesImplausibleTotals(t *testing.T) {
	doc := newDoc(t, page)
	store := state.New(state.Config{LogFunc: quiet})
	ref := &fakeRefresher{store: store, body: `{"order": {"id": 5}, "totals": {"gross": 14, "currency": {"symbol": "$"}}}`}
	v := NewTotals(TotalsConfig{Doc: doc, RootID: PayOrderModalID, Feed: store, Refresher: ref, LogFunc: quiet})

	apply(t, store, `{"order": {"id": 5}, "totals": {"gross": 0}}`)
	if err := v.ModalShow(context.Background()); err != nil {
		t.Fatalf("modal show: %v", err)
	}
	if ref.calls != 1 {
		t.Fatalf("refresh calls: %d", ref.calls)
	}
	if textOf(doc, "orderGross") != "14.00" || disabled(doc, "pay-order-confirm") {
		t.Fatalf("refreshed totals not rendered: %s", render(doc, PayOrderModalID))
	}

	if err := v.ModalShow(context.Background()); err != nil || ref.calls != 1 {
		t.Fatalf("plausible totals should not refresh: err=%v calls=%d", err, ref.calls)
	}

	ref.err = errors.New("offline")
	apply(t, store, `{"totals": {"gross": -1}}`)
	if err := v.ModalShow(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
}

func TestRenderPanicIsContained(t *testing.T) {
	doc := newDoc(t, page)
	var logged []string
	v := NewOrderSummary(OrderSummaryConfig{Doc: doc, Feed: state.New(state.Config{LogFunc: quiet}), LogFunc: func(f string, a ...any) {
		logged = append(logged, fmt.Sprintf(f, a...))
	}})
	v.Render(nil)
	if len(logged) != 1 || !strings.Contains(logged[0], "order-summary") {
		t.Fatalf("logged: %v", logged)
	}
}

func TestCart(t *testing.T) {
	doc := newDoc(t, page)
	store := state.New(state.Config{LogFunc: quiet, Context: state.NewMapDataset(map[string]string{"orderId": "5"})})
	store.ApplyDatasetState()
	v := NewCart(CartConfig{Doc: doc, Feed: store, LogFunc: quiet})
	v.Mount()
	if !strings.Contains(render(doc, "cartItemsContainer"), "server cart") {
		t.Fatal("server rows must survive until items are hydrated")
	}

	apply(t, store, `{"order": {"id": 5, "totalCount": 3, "items": [
		{"id": 1, "name": "Soup", "status": "opened", "price": 4, "size_name": "Large (500ml)"},
		{"id": 2, "name": "Tea", "status": "ordered", "price": 2},
		{"id": 3, "name": "Gone", "status": "removed", "price": 9}]},
		"totals": {"gross": 6, "currency": {"symbol": "$"}}, "flags": {"displayRequestBill": true, "payVisible": false}}`)

	if textOf(doc, "cartItemCount") != "3" || textOf(doc, "cartTotalAmount") != "$6.00" {
		t.Fatalf("count %q total %q", textOf(doc, "cartItemCount"), textOf(doc, "cartTotalAmount"))
	}
	out := render(doc, "cartItemsContainer")
	for _, want := range []string{"Selected", "Submitted", "Soup", "(Large)", "Tea", "cartSubmitOrder", `id="cartRequestBill" data-bs-toggle="modal" data-bs-target="#requestBillModal" style="display:block;"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
	if strings.Contains(out, "Gone") || strings.Contains(out, "server cart") {
		t.Errorf("unexpected content: %s", out)
	}

	apply(t, store, `{"order": {"id": 5, "items": []}}`)
	if out := render(doc, "cartItemsContainer"); !strings.Contains(out, "Your cart is empty") {
		t.Fatalf("empty cart: %s", out)
	}
}
