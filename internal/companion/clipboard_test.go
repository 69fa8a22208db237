package companion

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/1ureka/phonelink/internal/store"
)

// memClipboard is an in-memory Clipboard recording every write.
type memClipboard struct {
	mu     sync.Mutex
	text   string
	writes int
}

func (m *memClipboard) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *memClipboard) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.writes++
	return nil
}

func (m *memClipboard) set(text string) {
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
}

func (m *memClipboard) snapshot() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, m.writes
}

func remotePayload(t *testing.T, text, deviceID string) []byte {
	t.Helper()
	data, err := json.Marshal(clipboardPayload{Text: text, DeviceID: deviceID, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestSync(clip Clipboard) (*ClipboardSync, *store.Tree) {
	tree := store.NewTree()
	return NewClipboardSync(tree, clip, "u1", "desktop-1", NewThrottler(time.Second)), tree
}

func TestApplyRemoteWritesClipboard(t *testing.T) {
	clip := &memClipboard{}
	cs, _ := newTestSync(clip)

	cs.applyRemote(remotePayload(t, "hello from phone", "phone-1"))

	text, writes := clip.snapshot()
	if text != "hello from phone" || writes != 1 {
		t.Errorf("clipboard: text %q, writes %d", text, writes)
	}
}

func TestApplyRemoteSkipsOwnEcho(t *testing.T) {
	clip := &memClipboard{}
	cs, _ := newTestSync(clip)

	cs.applyRemote(remotePayload(t, "copied here", "desktop-1"))

	if _, writes := clip.snapshot(); writes != 0 {
		t.Errorf("own publication re-applied: %d writes", writes)
	}
}

func TestApplyRemoteDeduplicatesContent(t *testing.T) {
	clip := &memClipboard{}
	cs, _ := newTestSync(clip)

	cs.applyRemote(remotePayload(t, "same text", "phone-1"))
	cs.applyRemote(remotePayload(t, "same text", "phone-1"))

	if _, writes := clip.snapshot(); writes != 1 {
		t.Errorf("identical content applied twice: %d writes", writes)
	}
}

func TestApplyRemoteIgnoresGarbage(t *testing.T) {
	clip := &memClipboard{}
	cs, _ := newTestSync(clip)

	cs.applyRemote([]byte("not json"))
	cs.applyRemote(nil)

	if _, writes := clip.snapshot(); writes != 0 {
		t.Errorf("garbage reached the clipboard: %d writes", writes)
	}
}

func TestPollLocalPublishes(t *testing.T) {
	clip := &memClipboard{}
	cs, tree := newTestSync(clip)

	clip.set("typed locally")
	cs.pollLocal()

	sub, err := tree.SubscribeValue(userPath("u1", leafClipboard))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	select {
	case ev := <-sub.Events():
		var p clipboardPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if p.Text != "typed locally" || p.DeviceID != "desktop-1" {
			t.Errorf("published payload: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
	}
}

func TestPollLocalSkipsEmptyAndUnchanged(t *testing.T) {
	clip := &memClipboard{}
	cs, tree := newTestSync(clip)

	sub, err := tree.SubscribeValue(userPath("u1", leafClipboard))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	<-sub.Events() // initial absent delivery

	cs.pollLocal() // empty clipboard: nothing published
	clip.set("once")
	cs.pollLocal()
	cs.pollLocal() // unchanged: no second publish

	var got int
	deadline := time.After(200 * time.Millisecond)
	for done := false; !done; {
		select {
		case <-sub.Events():
			got++
		case <-deadline:
			done = true
		}
	}
	if got != 1 {
		t.Errorf("published %d times, want 1", got)
	}
}

func TestApplyThenPollDoesNotRepublish(t *testing.T) {
	clip := &memClipboard{}
	cs, tree := newTestSync(clip)

	sub, err := tree.SubscribeValue(userPath("u1", leafClipboard))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	<-sub.Events()

	// Remote content arrives, lands on the clipboard, and the next local
	// poll must not bounce it back to the store.
	cs.applyRemote(remotePayload(t, "from phone", "phone-1"))
	cs.pollLocal()

	select {
	case ev := <-sub.Events():
		t.Fatalf("remote content republished: %s", ev.Data)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFileClipboard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip")
	fc := FileClipboard{Path: path}

	text, err := fc.Read()
	if err != nil || text != "" {
		t.Fatalf("missing file: text %q, err %v", text, err)
	}

	if err := fc.Write("persisted"); err != nil {
		t.Fatal(err)
	}
	text, err = fc.Read()
	if err != nil || text != "persisted" {
		t.Fatalf("round trip: text %q, err %v", text, err)
	}
}
