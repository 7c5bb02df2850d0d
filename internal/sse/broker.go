// Package sse implements a Server-Sent Events broker for project and
// preview updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/jstcode/internal/metrics"
)

// Event types published on the stream.
const (
	TypeFileCreated    = "file.created"
	TypeFileUpdated    = "file.updated"
	TypeFileDeleted    = "file.deleted"
	TypeSessionChanged = "session.changed"
	TypeProjectReset   = "project.reset"
	TypeTreeUpdated    = "tree.updated"
	TypeBuildStatus    = "build.status"
	TypePreviewReady   = "preview.ready"
	TypeLog            = "log"
	TypeLogCleared     = "log.cleared"
	TypeBoundary       = "preview.boundary"
)

const (
	clientBuffer = 64
	// historySize frames are kept for Last-Event-ID replay.
	historySize = 64
	heartbeat   = 15 * time.Second
	retryHint   = 2 * time.Second
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type changeReq struct {
	kind string
	path string
}

type subscription struct {
	ch    chan []byte
	after uint64
}

type frame struct {
	id  uint64
	raw []byte
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, event ids, replay history, tree throttle timestamp). Public methods
// communicate with this loop through channels, so no mutexes are required.
type Broker struct {
	treeMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan changeReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. tree.updated is sent at most once per
// treeThrottle.
func NewBroker(treeThrottle time.Duration) *Broker {
	if treeThrottle <= 0 {
		treeThrottle = 500 * time.Millisecond
	}

	b := &Broker{
		treeMin:       treeThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan changeReq, 256),
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
	history := make([]frame, 0, historySize)
	var lastTree time.Time
	var seq uint64

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))
		metrics.RecordSSEEvent(event.Type)

		if len(history) == historySize {
			history = append(history[:0], history[1:]...)
		}
		history = append(history, frame{id: seq, raw: raw})

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	change := func(req changeReq) {
		data := map[string]string{"path": req.path}
		switch req.kind {
		case "created":
			broadcast(Event{Type: TypeFileCreated, Data: data})
		case "updated":
			broadcast(Event{Type: TypeFileUpdated, Data: data})
		case "deleted":
			broadcast(Event{Type: TypeFileDeleted, Data: data})
		case "session":
			broadcast(Event{Type: TypeSessionChanged, Data: data})
		case "reset":
			broadcast(Event{Type: TypeProjectReset, Data: map[string]string{}})
		}

		if req.kind == "updated" || req.kind == "session" {
			return
		}
		now := time.Now()
		if now.Sub(lastTree) >= b.treeMin {
			lastTree = now
			broadcast(Event{Type: TypeTreeUpdated, Data: map[string]string{}})
		}
	}

	// pending broadcasts everything queued before a subscription so replay
	// and live delivery do not overlap.
	pending := func() {
		for {
			select {
			case event := <-b.publishCh:
				broadcast(event)
			case req := <-b.changeCh:
				change(req)
			default:
				return
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			metrics.SetSSEConnectionsActive(0)
			return

		case sub := <-b.subscribeCh:
			pending()
			clients[sub.ch] = struct{}{}
			metrics.SetSSEConnectionsActive(len(clients))
			if sub.after == 0 {
				continue
			}
			// Ids from before a restart are unknown: replay what is kept.
			after := sub.after
			if after > seq {
				after = 0
			}
			for _, f := range history {
				if f.id <= after {
					continue
				}
				select {
				case sub.ch <- f.raw:
				default:
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}
			metrics.SetSSEConnectionsActive(len(clients))

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.changeCh:
			change(req)

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
	return b.SubscribeFrom(0)
}

// SubscribeFrom adds a new client that first receives the kept events
// with an id greater than after. after == 0 replays nothing.
func (b *Broker) SubscribeFrom(after uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, after: after}:
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

// PublishChange publishes a project change. kind is one of created,
// updated, deleted, session or reset. Structural kinds are followed by a
// throttled tree.updated.
func (b *Broker) PublishChange(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- changeReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// lastEventID reads the reconnect position from the Last-Event-ID header,
// or the lastEventId query parameter for clients that cannot set headers.
func lastEventID(r *http.Request) uint64 {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		v = r.URL.Query().Get("lastEventId")
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
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
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryHint.Milliseconds())
	flusher.Flush()

	ch := b.SubscribeFrom(lastEventID(r))
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(heartbeat)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
