package store

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// startTestServer launches a server on a random localhost port and returns
// the ws URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	srv := NewServer(NewTree())
	port, err := srv.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("server start failed: %v", err)
	}
	t.Cleanup(srv.Close)
	return fmt.Sprintf("ws://127.0.0.1:%d/ws", port)
}

func dialTest(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestClientValueRoundTrip verifies the full wire path: a write from one
// client reaches a value subscriber on another.
func TestClientValueRoundTrip(t *testing.T) {
	url := startTestServer(t)
	watcher := dialTest(t, url)
	writer := dialTest(t, url)

	sub, err := watcher.SubscribeValue("/users/u1/clipboard")
	if err != nil {
		t.Fatalf("SubscribeValue failed: %v", err)
	}
	defer sub.Close()

	if ev := recvEvent(t, sub); ev.Data != nil {
		t.Fatalf("initial event: expected absent, got %s", ev.Data)
	}

	if err := writer.Publish("/users/u1/clipboard", map[string]string{"text": "hi"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	ev := recvEvent(t, sub)
	if string(ev.Data) != `{"text":"hi"}` {
		t.Errorf("update: got %s", ev.Data)
	}
}

// TestClientChildAddedReplay verifies that children written before the
// subscription replay in order over the wire. Writes and the subscription
// share one connection, so server-side ordering is deterministic.
func TestClientChildAddedReplay(t *testing.T) {
	url := startTestServer(t)
	client := dialTest(t, url)

	var keys []string
	for i := 0; i < 3; i++ {
		key, err := client.PublishAutoKeyed("/msgs", i)
		if err != nil {
			t.Fatalf("PublishAutoKeyed failed: %v", err)
		}
		keys = append(keys, key)
	}

	sub, err := client.SubscribeChildAdded("/msgs")
	if err != nil {
		t.Fatalf("SubscribeChildAdded failed: %v", err)
	}
	defer sub.Close()

	for i, want := range keys {
		ev := recvEvent(t, sub)
		if ev.Key != want {
			t.Errorf("replay %d: got key %q, want %q", i, ev.Key, want)
		}
	}
}

// TestClientDelete verifies that a delete surfaces as an absent event.
func TestClientDelete(t *testing.T) {
	url := startTestServer(t)
	client := dialTest(t, url)

	if err := client.Publish("/pref/theme", "dark"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	sub, err := client.SubscribeValue("/pref/theme")
	if err != nil {
		t.Fatalf("SubscribeValue failed: %v", err)
	}
	defer sub.Close()

	if ev := recvEvent(t, sub); string(ev.Data) != `"dark"` {
		t.Fatalf("initial: got %s", ev.Data)
	}

	if err := client.Delete("/pref/theme"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ev := recvEvent(t, sub); ev.Data != nil {
		t.Errorf("after delete: got %s, want absent", ev.Data)
	}
}

// TestClientUnsubscribeIdempotent verifies Close twice on a wire-backed
// subscription is harmless.
func TestClientUnsubscribeIdempotent(t *testing.T) {
	url := startTestServer(t)
	client := dialTest(t, url)

	sub, err := client.SubscribeValue("/x")
	if err != nil {
		t.Fatalf("SubscribeValue failed: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("first Close errored: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close errored: %v", err)
	}
}

// TestClientCloseEndsSubscriptions verifies that closing the client closes
// every live subscription channel.
func TestClientCloseEndsSubscriptions(t *testing.T) {
	url := startTestServer(t)
	client := dialTest(t, url)

	sub, err := client.SubscribeValue("/y")
	if err != nil {
		t.Fatalf("SubscribeValue failed: %v", err)
	}
	recvEvent(t, sub) // initial absent

	client.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription never closed")
		}
	}
}
