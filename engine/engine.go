package engine

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"smartmenu/config"
	"smartmenu/dom"
	"smartmenu/hydrate"
	"smartmenu/push"
	"smartmenu/snapcache"
	"smartmenu/state"
	"smartmenu/view"
)

type LogFunc func(format string, args ...any)

// ContextID is the element whose data attributes bootstrap the store.
const ContextID = "contextContainer"

// skeleton is the page used when no server-rendered page is available.
//
//go:embed skeleton.html
var skeleton string

var ErrUnknownView = errors.New("engine: unknown view")

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	Cache      *snapcache.Manager
	Push       push.Subscriber
	// Hydrator replaces the HTTP client built from AppConfig, mainly in tests.
	Hydrator state.Hydrator
	// Doc replaces the page the engine would otherwise load.
	Doc     *dom.Document
	LogFunc LogFunc
	Debug   bool
}

type Engine struct {
	cfg        *config.Config
	configPath string
	cache      *snapcache.Manager
	pusher     push.Subscriber
	client     *hydrate.Client
	hydrator   state.Hydrator
	doc        *dom.Document
	store      *state.Store
	slug       string
	summary    *view.OrderSummary
	modals     map[string]*view.Totals
	cart       *view.Cart
	views      []view.View
	Events     *EventBus
	logFn      LogFunc
	debug      bool

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	pushActive atomic.Bool
	started    atomic.Bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	cfg := c.AppConfig
	if cfg == nil {
		cfg = config.Defaults()
	}
	client := hydrate.NewClient(hydrate.Config{
		BaseURL:   cfg.Smartmenu.BaseURL,
		Timeout:   cfg.Hydration.Timeout,
		MaxBytes:  cfg.Hydration.MaxBytes,
		UserAgent: cfg.Hydration.UserAgent,
	})
	var h state.Hydrator = client
	if c.Hydrator != nil {
		h = c.Hydrator
	}
	return &Engine{
		cfg:        cfg,
		configPath: c.ConfigPath,
		cache:      c.Cache,
		pusher:     c.Push,
		client:     client,
		hydrator:   h,
		doc:        c.Doc,
		Events:     NewEventBus(logFn),
		logFn:      logFn,
		debug:      c.Debug || cfg.Smartmenu.Debug,
	}
}

// Start loads the page, builds the store and views, connects the store and
// starts the push subscription.
func (e *Engine) Start() error {
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	if e.doc == nil {
		doc, err := e.loadDocument(e.ctx)
		if err != nil {
			return err
		}
		e.doc = doc
	}
	e.slug = e.resolveSlug()
	if e.slug == "" {
		e.logFn("engine: no smartmenu slug configured or found on the page, hydration disabled")
	}

	obs := &storeObserver{slug: e.slug, cache: e.cache, bus: e.Events, logFn: e.logFn}
	var h state.Hydrator
	if e.slug != "" {
		h = e.hydrator
	}
	e.store = state.New(state.Config{
		Slug:        e.slug,
		Context:     e.doc.ElementByID(ContextID),
		Hydrator:    h,
		Observer:    obs,
		VersionGate: e.cfg.Smartmenu.VersionGate,
		LogFunc:     state.LogFunc(e.logFn),
	})

	e.wireEventHandlers()
	e.mountViews()

	e.store.Connect(e.ctx)

	if e.pusher != nil && e.slug != "" {
		e.wg.Add(1)
		go e.runPush()
	}

	e.logFn("engine: started (slug %q)", e.slug)
	return nil
}

func (e *Engine) Stop() {
	if !e.started.Load() || e.cancel == nil {
		return
	}
	e.cancel()
	if e.pusher != nil {
		if err := e.pusher.Close(); err != nil {
			e.logFn("engine: close push: %v", err)
		}
	}
	e.wg.Wait()
	e.store.Wait()
	for _, v := range e.views {
		v.Unmount()
	}
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) AppConfig() *config.Config        { return e.cfg }
func (e *Engine) ConfigPath() string               { return e.configPath }
func (e *Engine) Cache() *snapcache.Manager        { return e.cache }
func (e *Engine) Store() *state.Store              { return e.store }
func (e *Engine) Document() *dom.Document          { return e.doc }
func (e *Engine) Slug() string                     { return e.slug }
func (e *Engine) Views() []view.View               { return e.views }
func (e *Engine) HydrationClient() *hydrate.Client { return e.client }
func (e *Engine) PushActive() bool                 { return e.pushActive.Load() }

func (e *Engine) loadDocument(ctx context.Context) (*dom.Document, error) {
	sm := e.cfg.Smartmenu
	switch {
	case sm.BootstrapFile != "":
		f, err := os.Open(sm.BootstrapFile)
		if err != nil {
			return nil, fmt.Errorf("engine: open bootstrap page: %w", err)
		}
		defer f.Close()
		doc, err := dom.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("engine: bootstrap page: %w", err)
		}
		e.logFn("engine: bootstrapped from %s", sm.BootstrapFile)
		return doc, nil
	case sm.Slug != "":
		root, err := e.client.FetchPage(ctx, sm.Slug)
		if err == nil {
			e.logFn("engine: bootstrapped from %s", e.client.PageURL(sm.Slug))
			return dom.NewDocument(root), nil
		}
		e.logFn("engine: fetch bootstrap page: %v, using skeleton", err)
	}
	return dom.ParseString(skeleton)
}

// resolveSlug prefers the configured slug over body[data-smartmenu-id].
func (e *Engine) resolveSlug() string {
	if e.cfg.Smartmenu.Slug != "" {
		return e.cfg.Smartmenu.Slug
	}
	var slug string
	e.doc.Read(func(root *html.Node) {
		slug = dom.Attr(dom.Body(root), "data-smartmenu-id")
	})
	return slug
}

func (e *Engine) mountViews() {
	e.summary = view.NewOrderSummary(view.OrderSummaryConfig{Doc: e.doc, Feed: e.store, LogFunc: view.LogFunc(e.logFn)})
	e.views = append(e.views, e.summary)

	e.modals = make(map[string]*view.Totals)
	for _, id := range []string{view.ViewOrderModalID, view.RequestBillModalID, view.PayOrderModalID} {
		t := view.NewTotals(view.TotalsConfig{Doc: e.doc, RootID: id, Feed: e.store, Refresher: e.store, LogFunc: view.LogFunc(e.logFn)})
		e.modals[id] = t
		e.views = append(e.views, t)
	}

	e.cart = view.NewCart(view.CartConfig{Doc: e.doc, Feed: e.store, LogFunc: view.LogFunc(e.logFn)})
	e.views = append(e.views, e.cart)

	for _, v := range e.views {
		v.Mount()
	}
}

func (e *Engine) runPush() {
	defer e.wg.Done()
	backend := e.cfg.Push.Backend
	e.pushActive.Store(true)
	e.Events.Emit(Event{Type: EventPushConnected, Payload: PushEvent{Backend: backend, Detail: e.slug}})
	err := e.pusher.Subscribe(e.ctx, e.slug, pushHandler(e.store))
	e.pushActive.Store(false)
	detail := "stopped"
	if err != nil {
		detail = err.Error()
	}
	e.Events.Emit(Event{Type: EventPushStopped, Payload: PushEvent{Backend: backend, Detail: detail}})
}

// PageShow forwards a page restore to the store.
func (e *Engine) PageShow(persisted bool) {
	e.store.PageShow(persisted)
	e.Events.Emit(Event{Type: EventLifecycle, Payload: LifecycleEvent{Name: "pageshow", Detail: fmt.Sprintf("persisted=%t", persisted)}})
}

// VisibilityChange forwards a visibility change to the store.
func (e *Engine) VisibilityChange(visible bool) {
	e.store.VisibilityChange(visible)
	e.Events.Emit(Event{Type: EventLifecycle, Payload: LifecycleEvent{Name: "visibilitychange", Detail: fmt.Sprintf("visible=%t", visible)}})
}

// UpdateDataset writes context attributes and reports whether they changed.
func (e *Engine) UpdateDataset(attrs map[string]string) bool {
	changed := e.store.UpdateDataset(attrs)
	if changed {
		e.Events.Emit(Event{Type: EventLifecycle, Payload: LifecycleEvent{Name: "dataset"}})
	}
	return changed
}

// ShowModal runs the modal-show hook of one of the totals modals.
func (e *Engine) ShowModal(ctx context.Context, id string) error {
	t, ok := e.modals[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	e.Events.Emit(Event{Type: EventLifecycle, Payload: LifecycleEvent{Name: "modal-show", Detail: id}})
	return t.ModalShow(ctx)
}

// InjectPush delivers raw as if it had arrived on the push channel and
// returns once it has been applied. With the local backend it travels through
// the subscription; otherwise it is applied directly.
func (e *Engine) InjectPush(ctx context.Context, raw []byte) error {
	p, err := push.Normalize(raw)
	if err != nil {
		return err
	}
	if local, ok := e.pusher.(*push.Local); ok && e.slug != "" {
		if n, err := local.Send(ctx, e.slug, raw); n > 0 {
			return err
		}
	}
	return e.store.Apply(state.SourcePush, p)
}

// RenderView returns the current markup of a mounted view's root element.
func (e *Engine) RenderView(name string) (string, error) {
	for _, v := range e.views {
		if v.Name() == name || v.RootID() == name {
			s, ok := e.doc.RenderByID(v.RootID())
			if !ok {
				return "", fmt.Errorf("%w: %s not on page", ErrUnknownView, v.RootID())
			}
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownView, name)
}
