package internal

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/vellum/internal/sceneservice"
	"github.com/starford/vellum/internal/sse"
)

func TestPublishTo_ForwardsHistoryDepth(t *testing.T) {
	b := sse.NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	publishTo(b)(sceneservice.Event{
		Kind:    sceneservice.EventHistory,
		SceneID: "s1",
		History: &sceneservice.HistoryInfo{Undo: 3, Redo: 1, CanUndo: true, CanRedo: true},
	})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: history.changed") {
			t.Errorf("unexpected event %q", s)
		}
		if !strings.Contains(s, `"undo":3`) || !strings.Contains(s, `"redo":1`) {
			t.Errorf("history depth missing from %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for history event")
	}
}
