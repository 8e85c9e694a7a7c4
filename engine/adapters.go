package engine

import (
	"context"

	"smartmenu/push"
	"smartmenu/snapcache"
	"smartmenu/state"
	"smartmenu/wire"
)

// storeObserver bridges the store's Observer hook to the snapshot cache and
// the EventBus.
type storeObserver struct {
	slug  string
	cache *snapcache.Manager
	bus   *EventBus
	logFn LogFunc
}

func (o *storeObserver) PayloadApplied(src state.Source, snap *state.Snapshot) {
	if o.cache != nil {
		if _, err := o.cache.Record(o.slug, src, snap); err != nil {
			o.logFn("engine: journal %s snapshot: %v", src, err)
		}
	}
	o.bus.Emit(Event{Type: EventSnapshotApplied, Payload: SnapshotAppliedEvent{
		Slug:     o.slug,
		Source:   src,
		Snapshot: snap,
	}})
}

func (o *storeObserver) HydrationFailed(src state.Source, err error) {
	if o.cache != nil {
		if _, jerr := o.cache.RecordFailure(o.slug, src, err); jerr != nil {
			o.logFn("engine: journal %s failure: %v", src, jerr)
		}
	}
	o.bus.Emit(Event{Type: EventHydrationFailed, Payload: HydrationFailedEvent{
		Slug:   o.slug,
		Source: src,
		Error:  err.Error(),
	}})
}

// pushHandler applies pushed payloads to the store.
func pushHandler(s *state.Store) push.Handler {
	return func(_ context.Context, p *wire.Payload) error {
		return s.Apply(state.SourcePush, p)
	}
}
