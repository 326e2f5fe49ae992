package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "scene.created", Data: map[string]string{"id": "s1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: scene.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"s1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func count(msgs []string, eventType string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+eventType+"\n") {
			n++
		}
	}
	return n
}

func TestPublishScene_ListThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger scenes.changed.
	b.PublishScene(SceneChange{Kind: KindCreated, ID: "s1"})
	// Second event immediately should NOT trigger another one.
	b.PublishScene(SceneChange{Kind: KindUpdated, ID: "s2"})
	// History events never do.
	b.PublishScene(SceneChange{Kind: KindHistory, ID: "s2", History: HistoryState{Undo: 1, CanUndo: true}})

	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)

	if n := count(msgs, TypeSceneCreated) + count(msgs, TypeSceneUpdated); n != 2 {
		t.Errorf("scene events = %d, want 2", n)
	}
	if n := count(msgs, TypeHistoryChanged); n != 1 {
		t.Errorf("history events = %d, want 1", n)
	}
	if n := count(msgs, TypeScenesChanged); n != 1 {
		t.Errorf("list events = %d, want 1 (throttled)", n)
	}
}

func TestPublishScene_ThrottledScenesFlushLater(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishScene(SceneChange{Kind: KindCreated, ID: "s1"})
	b.PublishScene(SceneChange{Kind: KindUpdated, ID: "s3"})
	b.PublishScene(SceneChange{Kind: KindDeleted, ID: "s2"})

	time.Sleep(400 * time.Millisecond)
	var lists []string
	for _, m := range drain(ch) {
		if strings.HasPrefix(m, "event: "+TypeScenesChanged) {
			lists = append(lists, m)
		}
	}
	if len(lists) != 2 {
		t.Fatalf("list events = %d, want 2: %q", len(lists), lists)
	}
	if !strings.Contains(lists[0], `"ids":["s1"]`) {
		t.Errorf("first list event = %q", lists[0])
	}
	if !strings.Contains(lists[1], `"ids":["s2","s3"]`) {
		t.Errorf("trailing list event = %q", lists[1])
	}
}

func TestPublishScene_HistoryCarriesDepth(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	state := HistoryState{Undo: 2, Redo: 1, CanUndo: true, CanRedo: true}
	b.PublishScene(SceneChange{Kind: KindHistory, ID: "s1", History: state})
	// Same depth again is dropped.
	b.PublishScene(SceneChange{Kind: KindHistory, ID: "s1", History: state})
	// Deleting forgets the depth, so the next report is sent.
	b.PublishScene(SceneChange{Kind: KindDeleted, ID: "s1"})
	b.PublishScene(SceneChange{Kind: KindHistory, ID: "s1", History: state})

	time.Sleep(50 * time.Millisecond)
	msgs := drain(ch)
	if n := count(msgs, TypeHistoryChanged); n != 2 {
		t.Errorf("history events = %d, want 2", n)
	}
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+TypeHistoryChanged) &&
			!strings.Contains(m, `"id":"s1","undo":2,"redo":1,"canUndo":true,"canRedo":true`) {
			t.Errorf("history payload = %q", m)
		}
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "scene.updated", Data: map[string]string{"id": "s1"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: scene.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "scene.updated", Data: map[string]string{"id": "s1"}})
	b.PublishScene(SceneChange{Kind: KindUpdated, ID: "s1"})
}
