package www

import (
	"fmt"
	"html/template"
	"log"
	"net/http"

	"smartmenu/journal"
	"smartmenu/wire"
)

var templateFuncs = template.FuncMap{
	"money": func(t *wire.Totals) string {
		if t == nil {
			return "-"
		}
		return fmt.Sprintf("%s%.2f", t.Currency.Symbol, float64(t.Gross))
	},
}

func (h *Handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Store().Snapshot()

	var entries []*journal.Entry
	if cache := h.engine.Cache(); cache != nil {
		entries, _ = cache.Entries(h.engine.Slug(), 20)
	}

	data := map[string]any{
		"Page":           "dashboard",
		"Slug":           h.engine.Slug(),
		"Snapshot":       snap,
		"NeedsHydration": snap.NeedsHydration(),
		"PushActive":     h.engine.PushActive(),
		"PushBackend":    h.engine.AppConfig().Push.Backend,
		"Entries":        entries,
		"SSEClients":     h.eventHub.ClientCount(),
		"Authenticated":  h.isAuthenticated(r),
		"Username":       h.getUsername(r),
	}
	h.render(w, "dashboard.html", data)
}

func (h *Handlers) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("www: render %s: %v", name, err)
	}
}
