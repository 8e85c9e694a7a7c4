package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const page = `<!DOCTYPE html><html><body data-smartmenu-id="table-7">
<div id="contextContainer" data-session="s1" data-order-id="42" data-order-status="Opened"></div>
<div id="openOrderContainer"><span class="menu-name">Lunch</span><button class="old">x</button></div>
<div id="viewOrderModal"><div class="modal-body" data-testid="order-modal-body"><p>server</p></div>
<button id="confirm-order" disabled="disabled">Confirm</button></div>
</body></html>`

func mustParse(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestSelectors(t *testing.T) {
	doc := mustParse(t)
	doc.Read(func(root *html.Node) {
		if n := ByID(root, "contextContainer"); n == nil || Attr(n, "data-session") != "s1" {
			t.Fatalf("ByID contextContainer: %v", n)
		}
		if n := Query(root, `[data-testid="order-modal-body"]`); n == nil || !HasClass(n, "modal-body") {
			t.Fatalf("attribute selector missed")
		}
		if n := Query(root, "#viewOrderModal .modal-body"); n == nil {
			t.Fatalf("descendant selector missed")
		}
		if n := Query(root, "#openOrderContainer .modal-body"); n != nil {
			t.Fatalf("descendant selector matched outside scope")
		}
		if got := len(QueryAll(root, "button")); got != 2 {
			t.Fatalf("buttons: got %d, want 2", got)
		}
		if n := Query(root, "body[data-smartmenu-id]"); n == nil || Attr(n, "data-smartmenu-id") != "table-7" {
			t.Fatalf("body slug not found")
		}
	})
}

func TestDataset(t *testing.T) {
	doc := mustParse(t)
	doc.Read(func(root *html.Node) {
		ds := Dataset(ByID(root, "contextContainer"))
		if ds["orderId"] != "42" || ds["orderStatus"] != "Opened" || ds["session"] != "s1" {
			t.Fatalf("dataset: %v", ds)
		}
	})
	for key, want := range map[string]string{
		"orderId":              "data-order-id",
		"alcoholVerifyAgeText": "data-alcohol-verify-age-text",
		"session":              "data-session",
	} {
		if got := DataAttr(key); got != want {
			t.Errorf("DataAttr(%q) = %q, want %q", key, got, want)
		}
		if got := datasetKey(strings.TrimPrefix(want, "data-")); got != key {
			t.Errorf("datasetKey(%q) = %q, want %q", want, got, key)
		}
	}
}

func TestSetTextAndDisabled(t *testing.T) {
	n := El("span", nil, Text("1.00"))
	if SetText(n, "1.00") {
		t.Fatal("SetText reported a change for identical text")
	}
	if !SetText(n, "<b>2</b>") || TextContent(n) != "<b>2</b>" {
		t.Fatalf("SetText: got %q", TextContent(n))
	}
	if !strings.Contains(Render(n), "&lt;b&gt;") {
		t.Fatalf("text not escaped: %s", Render(n))
	}

	in := El("input", []html.Attribute{A("id", "tip")})
	SetText(in, "3.50")
	if Attr(in, "value") != "3.50" || in.FirstChild != nil {
		t.Fatalf("input value: %s", Render(in))
	}

	b := El("button", nil)
	if SetDisabled(b, false) {
		t.Fatal("enabling an enabled button changed it")
	}
	if !SetDisabled(b, true) || !Disabled(b) {
		t.Fatal("disable failed")
	}
	if SetDisabled(b, true) {
		t.Fatal("disabling twice changed it")
	}
}

func TestReconcile_KeepsEqualKeyedNodes(t *testing.T) {
	parent := El("div", nil)
	first := El("button", []html.Attribute{A(KeyAttr, "view"), A("class", "a")}, Text("View Order"))
	second := El("button", []html.Attribute{A(KeyAttr, "bill")}, Text("Request Bill"))
	if !Reconcile(parent, []*html.Node{first, second}) {
		t.Fatal("initial reconcile reported no change")
	}

	again := []*html.Node{
		El("button", []html.Attribute{A(KeyAttr, "view"), A("class", "a")}, Text("View Order")),
		El("button", []html.Attribute{A(KeyAttr, "bill")}, Text("Request Bill")),
	}
	before := Render(parent)
	if Reconcile(parent, again) {
		t.Fatal("identical render reported a change")
	}
	if parent.FirstChild != first || first.NextSibling != second {
		t.Fatal("node identity not preserved")
	}
	if Render(parent) != before {
		t.Fatal("tree changed on identical render")
	}

	changed := []*html.Node{
		El("button", []html.Attribute{A(KeyAttr, "view"), A("class", "a")}, Text("View Order")),
		El("button", []html.Attribute{A(KeyAttr, "pay")}, Text("Pay")),
	}
	if !Reconcile(parent, changed) {
		t.Fatal("changed render reported no change")
	}
	if parent.FirstChild != first {
		t.Fatal("unchanged keyed node was replaced")
	}
	if Key(first.NextSibling) != "pay" || second.Parent != nil {
		t.Fatalf("got %s", Render(parent))
	}
}

func TestReconcile_KeepsExistingChild(t *testing.T) {
	doc := mustParse(t)
	doc.Mutate(func(root *html.Node) {
		c := ByID(root, "openOrderContainer")
		label := Query(c, ".menu-name")
		group := El("div", []html.Attribute{A(KeyAttr, "actions")}, Text("x"))
		if !Reconcile(c, []*html.Node{label, group}) {
			t.Fatal("expected change")
		}
		if c.FirstChild != label || Query(c, ".old") != nil {
			t.Fatalf("got %s", InnerHTML(c))
		}
	})
}

func TestRenderByID(t *testing.T) {
	doc := mustParse(t)
	out, ok := doc.RenderByID("confirm-order")
	if !ok || !strings.Contains(out, `disabled="disabled"`) {
		t.Fatalf("RenderByID: %q %v", out, ok)
	}
	if _, ok := doc.RenderByID("missing"); ok {
		t.Fatal("missing id found")
	}
	if Blank().Render() == "" {
		t.Fatal("blank document renders empty")
	}
}
