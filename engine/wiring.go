package engine

import "smartmenu/state"

func (e *Engine) wireEventHandlers() {
	e.Events.SubscribeTypes(func(evt Event) {
		if !e.debug {
			return
		}
		ev := evt.Payload.(SnapshotAppliedEvent)
		o := ev.Snapshot.Order
		e.logFn("engine: applied %s for %s: order %q status %q items %d/%d version %d",
			ev.Source, ev.Slug, o.ID, o.Status, o.OpenedCount, o.TotalCount, ev.Snapshot.Version)
	}, EventSnapshotApplied)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PushEvent)
		switch evt.Type {
		case EventPushConnected:
			e.logFn("engine: push (%s) subscribing for %s", ev.Backend, ev.Detail)
		case EventPushStopped:
			e.logFn("engine: push (%s) ended: %s", ev.Backend, ev.Detail)
		}
	}, EventPushConnected, EventPushStopped)

	e.store.Events().Named.Subscribe(func(ev state.NamedEvent) {
		if e.debug {
			e.logFn("engine: event %s", ev.Name)
		}
	}, state.EventOrdrUpdated)
}
