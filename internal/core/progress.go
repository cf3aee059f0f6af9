package core

// progress.go fans progress events out to observers.
//
// Publishing is fire-and-forget: a slow or missing subscriber never blocks
// or fails a job. Delivery is at-most-once.

import (
	"sync"
	"time"
)

// ProgressEventName is the event name used on every progress channel.
const ProgressEventName = "csv-upload-progress"

// Broadcaster publishes progress events for an upload.
type Broadcaster interface {
	Publish(uploadID string, ev ProgressEvent)
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(uploadID string, ev ProgressEvent)

// Publish implements Broadcaster.
func (f BroadcasterFunc) Publish(uploadID string, ev ProgressEvent) { f(uploadID, ev) }

// NopBroadcaster discards every event.
type NopBroadcaster struct{}

// Publish implements Broadcaster.
func (NopBroadcaster) Publish(string, ProgressEvent) {}

// MultiBroadcaster publishes to each broadcaster in order.
type MultiBroadcaster []Broadcaster

// Publish implements Broadcaster.
func (m MultiBroadcaster) Publish(uploadID string, ev ProgressEvent) {
	for _, b := range m {
		b.Publish(uploadID, ev)
	}
}

// MaxProgressErrors caps the error messages carried by one progress event.
// The full list is in the job summary.
const MaxProgressErrors = 50

const (
	defaultSubscriberBuffer = 16
	defaultRetention        = 5 * time.Minute
)

// Hub is an in-process fan-out keyed by merchant and upload ID. Events
// are routed on their MerchantID, so a subscriber only ever sees jobs of
// its own merchant even when upload IDs collide. Each topic remembers
// its latest event so late subscribers start from the current state.
// After the completed event the topic's channels are closed and the
// topic is kept for the retention period.
type Hub struct {
	retention time.Duration
	buffer    int

	mu     sync.Mutex
	topics map[topicKey]*topic
	closed bool
}

type topicKey struct {
	merchantID string
	uploadID   string
}

type topic struct {
	last    ProgressEvent
	hasLast bool
	done    bool
	subs    map[int]chan ProgressEvent
	nextID  int
	expiry  *time.Timer
}

// NewHub creates a hub. retention <= 0 uses five minutes.
func NewHub(retention time.Duration) *Hub {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Hub{
		retention: retention,
		buffer:    defaultSubscriberBuffer,
		topics:    make(map[topicKey]*topic),
	}
}

// Publish implements Broadcaster.
func (h *Hub) Publish(uploadID string, ev ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	key := topicKey{ev.MerchantID, uploadID}
	t := h.topics[key]
	if t == nil || t.done {
		// A finished topic is replaced when its upload ID is reused.
		if t != nil && t.expiry != nil {
			t.expiry.Stop()
		}
		t = &topic{subs: make(map[int]chan ProgressEvent)}
		h.topics[key] = t
	}

	t.last, t.hasLast = ev, true
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop the event.
		}
	}

	if ev.Completed {
		t.done = true
		for id, ch := range t.subs {
			close(ch)
			delete(t.subs, id)
		}
		t.expiry = time.AfterFunc(h.retention, func() { h.expire(key, t) })
	}
}

func (h *Hub) expire(key topicKey, t *topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[key] == t {
		delete(h.topics, key)
	}
}

// Subscribe returns a channel of the events scope's merchant published for
// uploadID and a function that ends the subscription. The latest event, if any, is delivered first.
// The channel is closed after the completed event. Subscribing before the
// job starts is allowed.
func (h *Hub) Subscribe(scope Scope, uploadID string) (<-chan ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ProgressEvent, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	key := topicKey{scope.MerchantID, uploadID}
	t := h.topics[key]
	if t == nil {
		t = &topic{subs: make(map[int]chan ProgressEvent)}
		h.topics[key] = t
	}
	if t.hasLast {
		ch <- t.last
	}
	if t.done {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(key, t, id) })
	}
}

func (h *Hub) unsubscribe(key topicKey, t *topic, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := t.subs[id]; ok {
		close(ch)
		delete(t.subs, id)
	}
	// Drop topics that were only ever opened by a subscriber.
	if len(t.subs) == 0 && !t.hasLast && h.topics[key] == t {
		delete(h.topics, key)
	}
}

// Last returns the most recent event scope's merchant published for uploadID.
func (h *Hub) Last(scope Scope, uploadID string) (ProgressEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.topics[topicKey{scope.MerchantID, uploadID}]
	if t == nil || !t.hasLast {
		return ProgressEvent{}, false
	}
	return t.last, true
}

// Close closes every subscriber channel. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, t := range h.topics {
		if t.expiry != nil {
			t.expiry.Stop()
		}
		for sid, ch := range t.subs {
			close(ch)
			delete(t.subs, sid)
		}
		delete(h.topics, id)
	}
}

// progressTracker builds the events of one job.
type progressTracker struct {
	uploadID     string
	merchantID   string
	totalItems   int
	totalBatches int
	processed    int
}

// event returns a snapshot. Progress is floor(processed*100/total).
// errs is the sample to send and errorCount the total recorded.
func (p *progressTracker) event(currentBatch int, errs []string, errorCount int, completed bool) ProgressEvent {
	pct := 0
	if p.totalItems > 0 {
		pct = p.processed * 100 / p.totalItems
	}
	if completed {
		pct = 100
	}
	return ProgressEvent{
		UploadID:       p.uploadID,
		MerchantID:     p.merchantID,
		Progress:       pct,
		CurrentItem:    p.processed,
		TotalItems:     p.totalItems,
		ProcessedItems: p.processed,
		Errors:         errs,
		ErrorCount:     errorCount,
		Completed:      completed,
		CurrentBatch:   currentBatch,
		TotalBatches:   p.totalBatches,
	}
}
