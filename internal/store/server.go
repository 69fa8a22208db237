package store

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/1ureka/phonelink/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes a Tree over WebSocket. Every connected client gets its own
// set of subscriptions; all clients observe the same tree.
type Server struct {
	tree     *Tree
	listener net.Listener
}

// NewServer creates a server backed by the given tree.
func NewServer(tree *Tree) *Server {
	return &Server{tree: tree}
}

// Handler returns the HTTP routes: /ws for the sync protocol, /healthz for
// probes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", s.handleWS)
	return r
}

// Start begins listening on addr (":0" picks a random port). Returns the
// assigned port number.
func (s *Server) Start(addr string) (int, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to start sync store server: %w", err)
	}
	s.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	go func() {
		_ = http.Serve(listener, s.Handler())
	}()

	return port, nil
}

// Close shuts down the listener, preventing new connections.
func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
}

// clientConn is the server-side state of one connected client.
type clientConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	subsMu sync.Mutex
	subs   map[uint64]Subscription
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	cc := &clientConn{
		conn: conn,
		subs: make(map[uint64]Subscription),
	}
	util.LogDebug("sync client connected: %s", conn.RemoteAddr())
	cc.serve(s.tree)
	util.LogDebug("sync client disconnected: %s", conn.RemoteAddr())
}

// serve runs the read loop until the connection drops, then releases every
// subscription the client still holds.
func (cc *clientConn) serve(tree *Tree) {
	defer cc.cleanup()

	for {
		var f frame
		if err := cc.conn.ReadJSON(&f); err != nil {
			return
		}

		switch f.Op {
		case opSubscribe:
			cc.handleSubscribe(tree, f)

		case opUnsubscribe:
			cc.subsMu.Lock()
			sub := cc.subs[f.SID]
			delete(cc.subs, f.SID)
			cc.subsMu.Unlock()
			if sub != nil {
				sub.Close()
			}

		case opPut:
			if err := tree.Publish(f.Path, json.RawMessage(f.Data)); err != nil {
				util.LogWarning("put %s: %v", f.Path, err)
			}

		case opPush:
			if f.Key == "" {
				util.LogWarning("push without key: %s", f.Path)
				continue
			}
			if err := tree.Publish(f.Path+"/"+f.Key, json.RawMessage(f.Data)); err != nil {
				util.LogWarning("push %s: %v", f.Path, err)
			}

		case opDelete:
			if err := tree.Delete(f.Path); err != nil {
				util.LogWarning("delete %s: %v", f.Path, err)
			}
		}
	}
}

func (cc *clientConn) handleSubscribe(tree *Tree, f frame) {
	var (
		sub Subscription
		err error
	)
	switch f.Kind {
	case kindValue:
		sub, err = tree.SubscribeValue(f.Path)
	case kindChildAdded:
		sub, err = tree.SubscribeChildAdded(f.Path)
	default:
		util.LogWarning("unknown subscription kind: %q", f.Kind)
		return
	}
	if err != nil {
		util.LogWarning("subscribe %s %s: %v", f.Kind, f.Path, err)
		return
	}

	cc.subsMu.Lock()
	cc.subs[f.SID] = sub
	cc.subsMu.Unlock()

	// One forwarder per subscription keeps per-path ordering intact.
	go func(sid uint64) {
		for ev := range sub.Events() {
			out := frame{Op: opEvent, SID: sid, Key: ev.Key, Data: ev.Data}
			if ev.Data == nil {
				out.Absent = true
			}
			cc.writeMu.Lock()
			err := cc.conn.WriteJSON(out)
			cc.writeMu.Unlock()
			if err != nil {
				sub.Close()
				return
			}
		}
	}(f.SID)
}

func (cc *clientConn) cleanup() {
	cc.subsMu.Lock()
	subs := make([]Subscription, 0, len(cc.subs))
	for _, s := range cc.subs {
		subs = append(subs, s)
	}
	cc.subs = make(map[uint64]Subscription)
	cc.subsMu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	cc.conn.Close()
}
