// Package www serves the operator console: JSON views of the store and
// journal, a server-sent event stream of applied snapshots, and authenticated
// endpoints to inject pushes and lifecycle events.
package www

import (
	"embed"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"smartmenu/engine"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionName = "smartmenu-console"

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
	tmpl     *template.Template
}

// NewRouter builds the console handler. The returned func stops the event
// hub and must be called before shutdown.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	web := eng.AppConfig().Web
	secret := []byte(web.SessionSecret)
	if len(secret) == 0 {
		log.Printf("www: no session_secret configured, sessions will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((12 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: store,
		eventHub: hub,
		tmpl:     template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleDashboard)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/events", hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealthCheck)
		r.Get("/diagnostics", h.apiDiagnostics)
		r.Get("/state", h.apiGetState)
		r.Get("/views/{name}", h.apiRenderView)
		r.Get("/journal", h.apiListJournal)
		r.Get("/snapshots/{slug}", h.apiGetSnapshot)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/state", h.apiPushState)
			r.Post("/refresh", h.apiRefresh)
			r.Post("/lifecycle/{event}", h.apiLifecycle)
			r.Post("/modals/{id}/show", h.apiShowModal)
			r.Post("/dataset", h.apiUpdateDataset)
		})
	})

	return r, hub.Stop
}
