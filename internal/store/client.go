package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/phonelink/internal/util"
)

// Client mirrors the store contract over a WebSocket connection to a
// syncstored server. Writes are fire-and-forget: a write error is returned
// to the caller but never retried.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	subsMu  sync.Mutex
	subs    map[uint64]*subscription
	nextSID atomic.Uint64

	pushIDs pushIDGen

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to a syncstored server, e.g. ws://192.168.1.10:8787/ws.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sync store: %w", err)
	}

	c := &Client{
		conn:   conn,
		subs:   make(map[uint64]*subscription),
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// readLoop routes event frames to the matching subscription by sid.
// It exits when the connection drops, closing every live subscription.
func (c *Client) readLoop() {
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			select {
			case <-c.closed:
			default:
				util.LogWarning("sync store connection lost: %v", err)
			}
			break
		}
		if f.Op != opEvent {
			continue
		}

		c.subsMu.Lock()
		sub := c.subs[f.SID]
		c.subsMu.Unlock()
		if sub == nil {
			continue // already unsubscribed
		}

		data := f.Data
		if f.Absent {
			data = nil
		}
		sub.deliver(Event{Key: f.Key, Data: data})
	}
	c.Close()
}

func (c *Client) writeFrame(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

// subscribe registers a subscription of the given kind and asks the server
// to start feeding it.
func (c *Client) subscribe(kind, path string) (Subscription, error) {
	sid := c.nextSID.Add(1)

	sub := newSubscription(func() {
		c.subsMu.Lock()
		delete(c.subs, sid)
		c.subsMu.Unlock()
		// Best-effort: the connection may already be gone.
		_ = c.writeFrame(frame{Op: opUnsubscribe, SID: sid})
	})

	c.subsMu.Lock()
	c.subs[sid] = sub
	c.subsMu.Unlock()

	if err := c.writeFrame(frame{Op: opSubscribe, SID: sid, Kind: kind, Path: normalizePath(path)}); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s %s: %w", kind, path, err)
	}
	return sub, nil
}

// SubscribeValue subscribes to the value at path. The server sends the
// current value immediately, then every subsequent write.
func (c *Client) SubscribeValue(path string) (Subscription, error) {
	return c.subscribe(kindValue, path)
}

// SubscribeChildAdded subscribes to children of path, replaying existing
// children in creation order first.
func (c *Client) SubscribeChildAdded(path string) (Subscription, error) {
	return c.subscribe(kindChildAdded, path)
}

// Publish writes value at path.
func (c *Client) Publish(path string, value any) error {
	data, err := marshalValue(path, value)
	if err != nil {
		return err
	}
	return c.writeFrame(frame{Op: opPut, Path: normalizePath(path), Data: data})
}

// PublishAutoKeyed writes value under a fresh time-ordered child key of
// path. The key is generated client-side so the call never waits on the
// server.
func (c *Client) PublishAutoKeyed(path string, value any) (string, error) {
	data, err := marshalValue(path, value)
	if err != nil {
		return "", err
	}
	key := c.pushIDs.next(time.Now())
	if err := c.writeFrame(frame{Op: opPush, Path: normalizePath(path), Key: key, Data: data}); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes the subtree at path.
func (c *Client) Delete(path string) error {
	return c.writeFrame(frame{Op: opDelete, Path: normalizePath(path)})
}

// Close shuts down the connection and ends every live subscription.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()

		c.subsMu.Lock()
		subs := make([]*subscription, 0, len(c.subs))
		for _, s := range c.subs {
			subs = append(subs, s)
		}
		c.subsMu.Unlock()

		for _, s := range subs {
			s.Close()
		}
	})
	return nil
}
