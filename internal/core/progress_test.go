package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch <-chan ProgressEvent) []ProgressEvent {
	t.Helper()
	var out []ProgressEvent
	timeout := time.After(time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("channel was not closed")
			return out
		}
	}
}

func TestHub_DeliversUntilCompleted(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	ch, unsubscribe := hub.Subscribe(Scope{}, "u1")
	defer unsubscribe()

	hub.Publish("u1", ProgressEvent{UploadID: "u1", Progress: 0})
	hub.Publish("u1", ProgressEvent{UploadID: "u1", Progress: 50})
	hub.Publish("u1", ProgressEvent{UploadID: "u1", Progress: 100, Completed: true})

	events := drain(t, ch)
	require.Len(t, events, 3)
	assert.Equal(t, []int{0, 50, 100}, []int{events[0].Progress, events[1].Progress, events[2].Progress})
	assert.True(t, events[2].Completed)
}

func TestHub_IsolatesUploads(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	ch, unsubscribe := hub.Subscribe(Scope{}, "a")
	defer unsubscribe()

	hub.Publish("b", ProgressEvent{UploadID: "b", Completed: true})
	hub.Publish("a", ProgressEvent{UploadID: "a", Progress: 100, Completed: true})

	events := drain(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].UploadID)
}

func TestHub_LateSubscriberGetsSnapshot(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	hub.Publish("u1", ProgressEvent{UploadID: "u1", Progress: 40})

	ch, unsubscribe := hub.Subscribe(Scope{}, "u1")
	defer unsubscribe()

	select {
	case ev := <-ch:
		assert.Equal(t, 40, ev.Progress)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestHub_SubscribeAfterCompletion(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	hub.Publish("u1", ProgressEvent{UploadID: "u1", Progress: 100, Completed: true})

	ch, unsubscribe := hub.Subscribe(Scope{}, "u1")
	defer unsubscribe()

	events := drain(t, ch)
	require.Len(t, events, 1)
	assert.True(t, events[0].Completed)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	_, unsubscribe := hub.Subscribe(Scope{}, "u1")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10*defaultSubscriberBuffer; i++ {
			hub.Publish("u1", ProgressEvent{UploadID: "u1", Progress: i % 100})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestHub_RetentionExpiresTopic(t *testing.T) {
	hub := NewHub(20 * time.Millisecond)
	defer hub.Close()

	hub.Publish("u1", ProgressEvent{UploadID: "u1", Completed: true})
	_, ok := hub.Last(Scope{}, "u1")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := hub.Last(Scope{}, "u1")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestHub_ReusedUploadIDStartsFresh(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	hub.Publish("u1", ProgressEvent{UploadID: "u1", Progress: 100, Completed: true})
	hub.Publish("u1", ProgressEvent{UploadID: "u1", Progress: 0})

	ch, unsubscribe := hub.Subscribe(Scope{}, "u1")
	defer unsubscribe()

	ev := <-ch
	assert.Equal(t, 0, ev.Progress)
	assert.False(t, ev.Completed)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	ch, unsubscribe := hub.Subscribe(Scope{}, "u1")
	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	_, exists := hub.Last(Scope{}, "u1")
	assert.False(t, exists)
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(time.Minute)
	ch, unsubscribe := hub.Subscribe(Scope{}, "u1")
	defer unsubscribe()

	hub.Close()
	hub.Publish("u1", ProgressEvent{UploadID: "u1"})

	assert.Empty(t, drain(t, ch))
}

func TestHub_ConcurrentPublishers(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch, unsubscribe := hub.Subscribe(Scope{}, "shared")
			defer unsubscribe()
			hub.Publish("shared", ProgressEvent{UploadID: "shared", Progress: i})
			<-ch
		}(i)
	}
	wg.Wait()
}

func TestMultiBroadcaster(t *testing.T) {
	a, b := &recordingBroadcaster{}, &recordingBroadcaster{}
	m := MultiBroadcaster{a, NopBroadcaster{}, b}

	m.Publish("u1", ProgressEvent{UploadID: "u1", Progress: 10})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestProgressTracker_Event(t *testing.T) {
	p := &progressTracker{uploadID: "u1", totalItems: 3, totalBatches: 3}

	assert.Equal(t, 0, p.event(0, nil, 0, false).Progress)

	p.processed = 1
	assert.Equal(t, 33, p.event(1, nil, 0, false).Progress)

	p.processed = 2
	ev := p.event(2, []string{"x"}, 7, false)
	assert.Equal(t, 7, ev.ErrorCount)
	assert.Equal(t, 66, ev.Progress)
	assert.Equal(t, 2, ev.ProcessedItems)
	assert.Equal(t, 2, ev.CurrentBatch)
	assert.Equal(t, 3, ev.TotalBatches)

	final := p.event(3, nil, 0, true)
	assert.Equal(t, 100, final.Progress)
	assert.True(t, final.Completed)
}

func TestHub_IsolatesMerchants(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	m1 := Scope{MerchantID: "m1"}
	m2 := Scope{MerchantID: "m2"}

	other, unsubscribe := hub.Subscribe(m2, "shared")
	defer unsubscribe()

	hub.Publish("shared", ProgressEvent{UploadID: "shared", MerchantID: "m1", Errors: []string{"row 2: secret"}, Completed: true})

	select {
	case ev, ok := <-other:
		t.Fatalf("m2 received m1 event: %+v (open=%v)", ev, ok)
	case <-time.After(50 * time.Millisecond):
	}

	_, ok := hub.Last(m2, "shared")
	assert.False(t, ok)

	// m2 reusing the ID leaves m1's retained snapshot alone.
	hub.Publish("shared", ProgressEvent{UploadID: "shared", MerchantID: "m2", Progress: 100, Completed: true})

	last, ok := hub.Last(m1, "shared")
	require.True(t, ok)
	assert.Equal(t, []string{"row 2: secret"}, last.Errors)

	own := drain(t, other)
	require.Len(t, own, 1)
	assert.Equal(t, "m2", own[0].MerchantID)
}
