package companion

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/1ureka/phonelink/internal/util"
)

// Clipboard abstracts the local clipboard. Implementations must tolerate
// concurrent external writes (the user copies things).
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// FileClipboard bridges a plain file as the clipboard: desktop integrations
// point their clipboard manager at it. A missing file reads as empty.
type FileClipboard struct {
	Path string
}

func (f FileClipboard) Read() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f FileClipboard) Write(text string) error {
	return os.WriteFile(f.Path, []byte(text), 0o600)
}

// clipboardPayload is the clipboard value as stored. DeviceID identifies
// the writer so a device never re-applies its own publication.
type clipboardPayload struct {
	Text      string `json:"text"`
	DeviceID  string `json:"deviceId"`
	Timestamp int64  `json:"timestamp"`
}

// ClipboardSync mirrors the clipboard in both directions through the store.
// A single goroutine handles remote events and the local poll, so the
// loop-avoidance state needs no locking.
type ClipboardSync struct {
	store    Store
	clip     Clipboard
	userID   string
	deviceID string
	throttle *Throttler

	// lastHash is the content hash of whatever this device last applied or
	// published. Matching content is never re-propagated, which breaks the
	// publish → echo → publish loop.
	lastHash uint32
	seeded   bool
}

// NewClipboardSync wires a clipboard mirror for one user/device pair.
func NewClipboardSync(st Store, clip Clipboard, userID, deviceID string, th *Throttler) *ClipboardSync {
	return &ClipboardSync{
		store:    st,
		clip:     clip,
		userID:   userID,
		deviceID: deviceID,
		throttle: th,
	}
}

// Run blocks until ctx is done or the store subscription ends. The local
// poll cadence follows the battery throttler.
func (c *ClipboardSync) Run(ctx context.Context) error {
	sub, err := c.store.SubscribeValue(userPath(c.userID, leafClipboard))
	if err != nil {
		return err
	}
	defer sub.Close()

	timer := time.NewTimer(c.throttle.Interval())
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			c.applyRemote(ev.Data)

		case <-timer.C:
			c.pollLocal()
			timer.Reset(c.throttle.Interval())

		case <-ctx.Done():
			return nil
		}
	}
}

func (c *ClipboardSync) applyRemote(data []byte) {
	if data == nil {
		return
	}
	var p clipboardPayload
	if err := json.Unmarshal(data, &p); err != nil {
		util.LogWarning("malformed clipboard value: %v", err)
		return
	}
	if p.DeviceID == c.deviceID {
		return // our own write echoed back
	}

	h := util.ContentHash(p.Text)
	if c.seeded && h == c.lastHash {
		return
	}
	if err := c.clip.Write(p.Text); err != nil {
		util.LogWarning("clipboard write failed: %v", err)
		return
	}
	c.lastHash = h
	c.seeded = true
	util.Stats.AddClipboardPull()
	util.LogDebug("clipboard updated from %s (%d bytes)", p.DeviceID, len(p.Text))
}

func (c *ClipboardSync) pollLocal() {
	text, err := c.clip.Read()
	if err != nil {
		util.LogWarning("clipboard read failed: %v", err)
		return
	}
	if text == "" {
		return
	}

	h := util.ContentHash(text)
	if c.seeded && h == c.lastHash {
		return
	}

	payload := clipboardPayload{
		Text:      text,
		DeviceID:  c.deviceID,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := c.store.Publish(userPath(c.userID, leafClipboard), payload); err != nil {
		util.LogWarning("clipboard publish failed: %v", err)
		return
	}
	c.lastHash = h
	c.seeded = true
	util.Stats.AddClipboardPush()
	util.LogDebug("clipboard published (%d bytes)", len(text))
}
