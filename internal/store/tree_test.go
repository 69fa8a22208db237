package store

import (
	"encoding/json"
	"testing"
	"time"
)

// recvEvent waits for the next event on a subscription.
func recvEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// TestValueSubscriptionInitialDelivery verifies that a value subscription
// immediately delivers the current value, or an absent event for a missing
// path.
func TestValueSubscriptionInitialDelivery(t *testing.T) {
	testCases := []struct {
		name     string
		populate bool
		want     string
	}{
		{"existing value", true, `"hello"`},
		{"absent path", false, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tree := NewTree()
			if tc.populate {
				if err := tree.Publish("/a/b", "hello"); err != nil {
					t.Fatalf("Publish failed: %v", err)
				}
			}

			sub, err := tree.SubscribeValue("/a/b")
			if err != nil {
				t.Fatalf("SubscribeValue failed: %v", err)
			}
			defer sub.Close()

			ev := recvEvent(t, sub)
			if tc.populate {
				if string(ev.Data) != tc.want {
					t.Errorf("initial value: got %s, want %s", ev.Data, tc.want)
				}
			} else if ev.Data != nil {
				t.Errorf("expected absent event, got %s", ev.Data)
			}
		})
	}
}

// TestValueSubscriptionUpdates verifies in-order delivery of subsequent
// writes.
func TestValueSubscriptionUpdates(t *testing.T) {
	tree := NewTree()
	sub, err := tree.SubscribeValue("counter")
	if err != nil {
		t.Fatalf("SubscribeValue failed: %v", err)
	}
	defer sub.Close()

	recvEvent(t, sub) // initial absent

	for i := 1; i <= 5; i++ {
		if err := tree.Publish("counter", i); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	for i := 1; i <= 5; i++ {
		ev := recvEvent(t, sub)
		var got int
		if err := json.Unmarshal(ev.Data, &got); err != nil {
			t.Fatalf("bad event data %s: %v", ev.Data, err)
		}
		if got != i {
			t.Errorf("event %d: got %d", i, got)
		}
	}
}

// TestChildAddedReplayOrder verifies that pre-existing children are
// replayed in creation order before live events.
func TestChildAddedReplayOrder(t *testing.T) {
	tree := NewTree()
	keys := []string{"first", "second", "third"}
	for i, k := range keys {
		if err := tree.Publish("room/"+k, i); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	sub, err := tree.SubscribeChildAdded("room")
	if err != nil {
		t.Fatalf("SubscribeChildAdded failed: %v", err)
	}
	defer sub.Close()

	for _, want := range keys {
		ev := recvEvent(t, sub)
		if ev.Key != want {
			t.Errorf("replay key: got %q, want %q", ev.Key, want)
		}
	}

	// Live event after replay.
	if err := tree.Publish("room/fourth", 3); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if ev := recvEvent(t, sub); ev.Key != "fourth" {
		t.Errorf("live key: got %q, want %q", ev.Key, "fourth")
	}
}

// TestPublishAutoKeyedOrdering verifies that auto-assigned keys sort in
// creation order and are delivered to child subscribers in that order.
func TestPublishAutoKeyedOrdering(t *testing.T) {
	tree := NewTree()
	sub, err := tree.SubscribeChildAdded("queue")
	if err != nil {
		t.Fatalf("SubscribeChildAdded failed: %v", err)
	}
	defer sub.Close()

	var keys []string
	for i := 0; i < 10; i++ {
		key, err := tree.PublishAutoKeyed("queue", i)
		if err != nil {
			t.Fatalf("PublishAutoKeyed failed: %v", err)
		}
		keys = append(keys, key)
	}

	for i, want := range keys {
		if i > 0 && !(keys[i-1] < want) {
			t.Errorf("keys out of order at %d: %q >= %q", i, keys[i-1], want)
		}
		if ev := recvEvent(t, sub); ev.Key != want {
			t.Errorf("delivery %d: got key %q, want %q", i, ev.Key, want)
		}
	}
}

// TestDeleteNotifiesValueSubscribers verifies that deleting a subtree
// surfaces absent events at the path and its descendants.
func TestDeleteNotifiesValueSubscribers(t *testing.T) {
	tree := NewTree()
	if err := tree.Publish("a/b/c", "x"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	subB, _ := tree.SubscribeValue("a/b")
	defer subB.Close()
	subC, _ := tree.SubscribeValue("a/b/c")
	defer subC.Close()
	recvEvent(t, subB)
	recvEvent(t, subC)

	if err := tree.Delete("a/b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if ev := recvEvent(t, subB); ev.Data != nil {
		t.Errorf("a/b after delete: got %s, want absent", ev.Data)
	}
	if ev := recvEvent(t, subC); ev.Data != nil {
		t.Errorf("a/b/c after delete: got %s, want absent", ev.Data)
	}

	// Deleting a missing path is a no-op.
	if err := tree.Delete("a/b"); err != nil {
		t.Errorf("second Delete errored: %v", err)
	}
}

// TestSubscriptionCloseIdempotent verifies that closing twice is a no-op
// and ends the event stream.
func TestSubscriptionCloseIdempotent(t *testing.T) {
	tree := NewTree()
	sub, err := tree.SubscribeValue("x")
	if err != nil {
		t.Fatalf("SubscribeValue failed: %v", err)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("first Close errored: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close errored: %v", err)
	}

	// The channel drains and closes.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel never closed")
		}
	}
}

// TestPathNormalization verifies that path spellings collapse to the same
// location.
func TestPathNormalization(t *testing.T) {
	testCases := []struct {
		write string
		read  string
	}{
		{"/a/b", "a/b"},
		{"a/b/", "/a/b"},
		{"//a//b", "a/b"},
	}

	for _, tc := range testCases {
		t.Run(tc.write, func(t *testing.T) {
			tree := NewTree()
			if err := tree.Publish(tc.write, 1); err != nil {
				t.Fatalf("Publish failed: %v", err)
			}
			sub, _ := tree.SubscribeValue(tc.read)
			defer sub.Close()
			if ev := recvEvent(t, sub); string(ev.Data) != "1" {
				t.Errorf("read via %q: got %s, want 1", tc.read, ev.Data)
			}
		})
	}
}
