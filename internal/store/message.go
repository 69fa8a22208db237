package store

import (
	"encoding/json"
	"fmt"
)

// frameOp identifies the kind of wire frame.
type frameOp string

const (
	opSubscribe   frameOp = "subscribe"   // client → server
	opUnsubscribe frameOp = "unsubscribe" // client → server
	opPut         frameOp = "put"         // client → server
	opPush        frameOp = "push"        // client → server, client-assigned key
	opDelete      frameOp = "delete"      // client → server
	opEvent       frameOp = "event"       // server → client
)

// Subscription kinds on the wire.
const (
	kindValue      = "value"
	kindChildAdded = "child_added"
)

// frame is the JSON structure exchanged over the WebSocket.
type frame struct {
	Op   frameOp `json:"op"`
	SID  uint64  `json:"sid,omitempty"`  // subscription id, client-assigned
	Kind string  `json:"kind,omitempty"` // value | child_added
	Path string  `json:"path,omitempty"`
	Key  string  `json:"key,omitempty"` // child key for push / child-added events

	Data   json.RawMessage `json:"data,omitempty"`
	Absent bool            `json:"absent,omitempty"` // event carrying no value
}

// marshalValue encodes a value for the wire or the tree.
func marshalValue(path string, value any) (json.RawMessage, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value for %s: %w", path, err)
	}
	return data, nil
}
