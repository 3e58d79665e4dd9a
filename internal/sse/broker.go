// Package sse implements a Server-Sent Events broker that tells preview
// clients when pages are rebuilt.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Page event kinds accepted by PublishPageEvent.
const (
	KindBuilt   = "built"
	KindRemoved = "removed"
)

// Event types written to the stream.
const (
	TypePageBuilt   = "page.built"
	TypePageRemoved = "page.removed"
	TypeSiteReload  = "site.reload"
)

var pageEventTypes = map[string]string{
	KindBuilt:   TypePageBuilt,
	KindRemoved: TypePageRemoved,
}

// retryMillis is sent to clients as the reconnect delay.
const retryMillis = 2000

// clientBuffer is the number of undelivered messages a slow client may hold
// before further messages to it are dropped.
const clientBuffer = 64

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PageData is the payload of page.built and page.removed.
type PageData struct {
	Path string    `json:"path"`
	At   time.Time `json:"at"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithKeepAlive sets the interval of comment lines written to idle streams
// so proxies do not close them. Zero disables keep-alives.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// Broker fans events out to connected SSE clients.
//
// One goroutine owns the client set, the event sequence and the reload
// throttle. Public methods talk to it over channels.
type Broker struct {
	reloadEvery time.Duration
	keepAlive   time.Duration
	now         func() time.Time

	join   chan chan []byte
	leave  chan chan []byte
	events chan Event
	pages  chan Event
	counts chan chan int

	quit    chan struct{}
	done    chan struct{}
	closing atomic.Bool
}

// NewBroker creates a broker that emits at most one site.reload per
// reloadThrottle.
func NewBroker(reloadThrottle time.Duration, opts ...Option) *Broker {
	if reloadThrottle <= 0 {
		reloadThrottle = 2 * time.Second
	}
	b := &Broker{
		reloadEvery: reloadThrottle,
		keepAlive:   15 * time.Second,
		now:         time.Now,
		join:        make(chan chan []byte),
		leave:       make(chan chan []byte),
		events:      make(chan Event, 256),
		pages:       make(chan Event, 256),
		counts:      make(chan chan int),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

// fanout is the state owned by the broker goroutine.
type fanout struct {
	clients    map[chan []byte]struct{}
	seq        uint64
	lastReload time.Time
}

// frame encodes event in wire format with the next sequence id.
func (f *fanout) frame(event Event) ([]byte, bool) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, false
	}
	f.seq++
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", f.seq, event.Type, payload), true
}

func (f *fanout) send(event Event) {
	msg, ok := f.frame(event)
	if !ok {
		return
	}
	for ch := range f.clients {
		select {
		case ch <- msg:
		default:
			// Slow client; drop rather than stall everyone.
		}
	}
}

func (b *Broker) loop() {
	defer close(b.done)

	f := &fanout{clients: make(map[chan []byte]struct{})}
	for {
		select {
		case <-b.quit:
			for ch := range f.clients {
				close(ch)
			}
			return

		case ch := <-b.join:
			f.clients[ch] = struct{}{}

		case ch := <-b.leave:
			if _, ok := f.clients[ch]; ok {
				delete(f.clients, ch)
				close(ch)
			}

		case event := <-b.events:
			f.send(event)

		case event := <-b.pages:
			f.send(event)
			if now := b.now(); now.Sub(f.lastReload) >= b.reloadEvery {
				f.lastReload = now
				f.send(Event{Type: TypeSiteReload, Data: struct{}{}})
			}

		case resp := <-b.counts:
			resp <- len(f.clients)
		}
	}
}

// Close stops the broker and closes every client channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closing.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe adds a new client and returns its channel. The channel is
// already closed when the broker is.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closing.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closing.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closing.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.counts <- resp:
	case <-b.done:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.enqueue(b.events, event)
}

// PublishPageEvent announces that the page built from path changed, followed
// by a throttled site.reload. kind is KindBuilt or KindRemoved; other kinds
// are ignored. Its signature matches the site builder's watch callback.
func (b *Broker) PublishPageEvent(kind, path string) {
	typ, ok := pageEventTypes[kind]
	if !ok {
		return
	}
	b.enqueue(b.pages, Event{Type: typ, Data: PageData{Path: path, At: b.now().UTC()}})
}

func (b *Broker) enqueue(ch chan Event, event Event) {
	if b.closing.Load() {
		return
	}
	select {
	case ch <- event:
	case <-b.done:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": keepalive\n\n"))
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
