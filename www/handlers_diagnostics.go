package www

import (
	"net/http"

	"smartmenu/journal"
)

func (h *Handlers) apiDiagnostics(w http.ResponseWriter, r *http.Request) {
	var failures, applied int
	var recent []*journal.Entry
	if cache := h.engine.Cache(); cache != nil {
		recent, _ = cache.Entries(h.engine.Slug(), 50)
		for _, e := range recent {
			switch e.Kind {
			case journal.KindFailure:
				failures++
			case journal.KindApplied:
				applied++
			}
		}
	}

	cfg := h.engine.AppConfig()
	h.jsonOK(w, map[string]any{
		"slug":           h.engine.Slug(),
		"stateURL":       h.engine.HydrationClient().StateURL(h.engine.Slug()),
		"needsHydration": h.engine.Store().NeedsHydration(),
		"pushBackend":    cfg.Push.Backend,
		"pushActive":     h.engine.PushActive(),
		"versionGate":    cfg.Smartmenu.VersionGate,
		"journalDriver":  cfg.Database.Driver,
		"recentApplied":  applied,
		"recentFailures": failures,
		"views":          len(h.engine.Views()),
		"sseClients":     h.eventHub.ClientCount(),
		"authenticated":  h.isAuthenticated(r),
	})
}
