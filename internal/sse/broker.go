// Package sse implements a Server-Sent Events broker for live scene updates.
package sse

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types sent for scene changes.
const (
	TypeSceneCreated   = "scene.created"
	TypeSceneUpdated   = "scene.updated"
	TypeSceneDeleted   = "scene.deleted"
	TypeScenesChanged  = "scenes.changed"
	TypeHistoryChanged = "history.changed"
)

// Scene change kinds accepted by PublishScene.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
	KindHistory = "history"
)

// HistoryState is the undo and redo depth of a scene.
type HistoryState struct {
	Undo    int  `json:"undo"`
	Redo    int  `json:"redo"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// SceneChange is one persisted scene mutation. History is only read for
// KindHistory.
type SceneChange struct {
	Kind    string
	ID      string
	Name    string
	Live    int
	History HistoryState
}

type scenePayload struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Live int    `json:"liveElements"`
}

type historyPayload struct {
	ID string `json:"id"`
	HistoryState
}

type listPayload struct {
	IDs []string `json:"ids"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop (goroutine) owns mutable state: the clients, the
// last history state per scene and the scenes waiting for a list refresh.
// Public methods talk to it through channels.
type Broker struct {
	listMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	sceneCh       chan SceneChange
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. scenes.changed is sent at most once per
// listThrottle; scenes touched in between are batched into the next one.
func NewBroker(listThrottle time.Duration) *Broker {
	if listThrottle <= 0 {
		listThrottle = 2 * time.Second
	}

	b := &Broker{
		listMin:       listThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		sceneCh:       make(chan SceneChange, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	histories := make(map[string]HistoryState)
	pending := make(map[string]struct{})
	var lastList time.Time
	flush := time.NewTimer(b.listMin)
	flush.Stop()
	defer flush.Stop()
	flushArmed := false

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	sendList := func(now time.Time) {
		lastList = now
		ids := slices.Sorted(maps.Keys(pending))
		clear(pending)
		broadcast(Event{Type: TypeScenesChanged, Data: listPayload{IDs: ids}})
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case sc := <-b.sceneCh:
			data := scenePayload{ID: sc.ID, Name: sc.Name, Live: sc.Live}
			switch sc.Kind {
			case KindCreated:
				broadcast(Event{Type: TypeSceneCreated, Data: data})
			case KindUpdated:
				broadcast(Event{Type: TypeSceneUpdated, Data: data})
			case KindDeleted:
				delete(histories, sc.ID)
				broadcast(Event{Type: TypeSceneDeleted, Data: scenePayload{ID: sc.ID}})
			case KindHistory:
				if prev, seen := histories[sc.ID]; seen && prev == sc.History {
					continue
				}
				histories[sc.ID] = sc.History
				broadcast(Event{Type: TypeHistoryChanged, Data: historyPayload{ID: sc.ID, HistoryState: sc.History}})
				continue
			default:
				continue
			}

			pending[sc.ID] = struct{}{}
			now := time.Now()
			if wait := b.listMin - now.Sub(lastList); wait <= 0 {
				sendList(now)
			} else if !flushArmed {
				flush.Reset(wait)
				flushArmed = true
			}

		case now := <-flush.C:
			flushArmed = false
			if len(pending) > 0 {
				sendList(now)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishScene publishes a scene change. Created, updated and deleted scenes
// are followed by a throttled scenes.changed event. History changes map to
// history.changed and are dropped when the scene's depth did not change.
func (b *Broker) PublishScene(sc SceneChange) {
	if b.closed.Load() {
		return
	}
	select {
	case b.sceneCh <- sc:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
