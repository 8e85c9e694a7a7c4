package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"smartmenu/engine"
)

type sseEvent struct {
	name string
	data []byte
}

// EventHub fans engine events out to connected SSE clients. Slow clients
// miss events rather than stall the hub.
type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan sseEvent]struct{}
	broadcast chan sseEvent
	done      chan struct{}
	stopOnce  sync.Once

	eng    *engine.Engine
	subIDs []int
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan sseEvent]struct{}),
		broadcast: make(chan sseEvent, 64),
		done:      make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) run() {
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.broadcast:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- ev:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop disconnects every client and detaches from the engine.
func (h *EventHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		if h.eng != nil {
			for _, id := range h.subIDs {
				h.eng.Events.Unsubscribe(id)
			}
		}
	})
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every client. It drops the event when the
// queue is full or the hub has stopped.
func (h *EventHub) Broadcast(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("www: encode %s event: %v", name, err)
		return
	}
	select {
	case <-h.done:
	case h.broadcast <- sseEvent{name: name, data: data}:
	default:
		log.Printf("www: event queue full, dropping %s", name)
	}
}

// SetupEngineListeners forwards every engine event to the clients.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	h.eng = eng
	id := eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast(evt.Type.String(), evt.Payload)
	})
	h.subIDs = append(h.subIDs, id)
}

func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan sseEvent, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}()

	fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case ev := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
			flusher.Flush()
		}
	}
}
