package www

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"smartmenu/engine"
	"smartmenu/push"
	"smartmenu/state"
)

const maxPushBody = 1 << 20

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Store().Snapshot()
	h.jsonOK(w, map[string]any{
		"status":     "ok",
		"slug":       h.engine.Slug(),
		"hydrated":   snap.Hydrated(),
		"push":       h.engine.PushActive(),
		"journal":    h.engine.Cache() != nil,
		"sseClients": h.eventHub.ClientCount(),
	})
}

func (h *Handlers) apiGetState(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Store().Snapshot())
}

func (h *Handlers) apiRenderView(w http.ResponseWriter, r *http.Request) {
	markup, err := h.engine.RenderView(chi.URLParam(r, "name"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, markup)
}

func (h *Handlers) apiListJournal(w http.ResponseWriter, r *http.Request) {
	cache := h.engine.Cache()
	if cache == nil {
		h.jsonError(w, "journal disabled", http.StatusServiceUnavailable)
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	slug := r.URL.Query().Get("slug")
	entries, err := cache.Entries(slug, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, entries)
}

func (h *Handlers) apiGetSnapshot(w http.ResponseWriter, r *http.Request) {
	cache := h.engine.Cache()
	if cache == nil {
		h.jsonError(w, "journal disabled", http.StatusServiceUnavailable)
		return
	}
	snap, err := cache.Get(chi.URLParam(r, "slug"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if snap == nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, snap)
}

// apiPushState injects a push message, wrapped or bare.
func (h *Handlers) apiPushState(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil {
		h.jsonError(w, "read body", http.StatusBadRequest)
		return
	}
	if err := h.engine.InjectPush(r.Context(), raw); err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, push.ErrNotState):
			code = http.StatusUnprocessableEntity
		case errors.Is(err, state.ErrStaleVersion):
			code = http.StatusConflict
		default:
			var syn *json.SyntaxError
			if errors.As(err, &syn) {
				code = http.StatusBadRequest
			}
		}
		h.jsonError(w, err.Error(), code)
		return
	}
	h.jsonOK(w, map[string]string{"status": "accepted", "by": h.getUsername(r)})
}

func (h *Handlers) apiRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Store().Refresh(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonOK(w, snap)
}

type lifecycleRequest struct {
	Persisted bool `json:"persisted"`
	Visible   bool `json:"visible"`
}

func (h *Handlers) apiLifecycle(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.jsonError(w, "invalid request", http.StatusBadRequest)
			return
		}
	}
	switch ev := chi.URLParam(r, "event"); ev {
	case "pageshow":
		h.engine.PageShow(req.Persisted)
	case "visibilitychange":
		h.engine.VisibilityChange(req.Visible)
	default:
		h.jsonError(w, "unknown lifecycle event: "+ev, http.StatusNotFound)
		return
	}
	h.jsonOK(w, map[string]bool{"needsHydration": h.engine.Store().NeedsHydration()})
}

func (h *Handlers) apiShowModal(w http.ResponseWriter, r *http.Request) {
	err := h.engine.ShowModal(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, engine.ErrUnknownView):
		h.jsonError(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonOK(w, h.engine.Store().Snapshot().Totals)
}

func (h *Handlers) apiUpdateDataset(w http.ResponseWriter, r *http.Request) {
	var attrs map[string]string
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	h.jsonOK(w, map[string]bool{"changed": h.engine.UpdateDataset(attrs)})
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
