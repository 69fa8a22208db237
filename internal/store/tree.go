package store

import (
	"encoding/json"
	"sync"
	"time"
)

// node is one level of the hierarchy. A node may carry a leaf value, child
// nodes, or both. Child creation order is retained for child-added replay.
type node struct {
	value    json.RawMessage // nil when the node has no value of its own
	children map[string]*node
	order    []string // child keys in creation order
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Tree is the in-process sync store. It defines the reference semantics for
// the whole package: value subscriptions deliver the current value
// immediately and on every subsequent write; child-added subscriptions
// replay existing children in creation order before going live.
//
// Tree is safe for concurrent use. Event delivery never blocks a writer.
type Tree struct {
	mu        sync.Mutex
	root      *node
	valueSubs map[string][]*subscription
	childSubs map[string][]*subscription
	pushIDs   pushIDGen
}

// NewTree creates an empty store.
func NewTree() *Tree {
	return &Tree{
		root:      newNode(),
		valueSubs: make(map[string][]*subscription),
		childSubs: make(map[string][]*subscription),
	}
}

// lookup returns the node at path, or nil. Caller holds t.mu.
func (t *Tree) lookup(path string) *node {
	n := t.root
	for _, part := range splitPath(path) {
		n = n.children[part]
		if n == nil {
			return nil
		}
	}
	return n
}

// ensure returns the node at path, creating intermediate nodes as needed
// and firing child-added events for every key that appears. Caller holds t.mu.
func (t *Tree) ensure(path string, leaf json.RawMessage) *node {
	n := t.root
	prefix := ""
	parts := splitPath(path)
	for i, part := range parts {
		child, ok := n.children[part]
		if !ok {
			child = newNode()
			n.children[part] = child
			n.order = append(n.order, part)

			// New key under prefix: notify child-added subscribers. Only the
			// final segment carries the written value; intermediate keys
			// appear with no value of their own.
			var data json.RawMessage
			if i == len(parts)-1 {
				data = leaf
			}
			for _, sub := range t.childSubs[prefix] {
				sub.deliver(Event{Key: part, Data: data})
			}
		}
		n = child
		if prefix == "" {
			prefix = part
		} else {
			prefix = prefix + "/" + part
		}
	}
	return n
}

// SubscribeValue delivers the current value at path immediately (nil Data
// when absent), then again after every write or delete affecting the path.
func (t *Tree) SubscribeValue(path string) (Subscription, error) {
	path = normalizePath(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	sub := newSubscription(func() { t.detachValue(path) })
	t.valueSubs[path] = append(t.valueSubs[path], sub)

	var current json.RawMessage
	if n := t.lookup(path); n != nil {
		current = n.value
	}
	sub.deliver(Event{Data: current})
	return sub, nil
}

// SubscribeChildAdded replays every existing child of path in creation
// order, then delivers one event per child added afterwards.
func (t *Tree) SubscribeChildAdded(path string) (Subscription, error) {
	path = normalizePath(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	sub := newSubscription(func() { t.detachChild(path) })
	t.childSubs[path] = append(t.childSubs[path], sub)

	if n := t.lookup(path); n != nil {
		for _, key := range n.order {
			sub.deliver(Event{Key: key, Data: n.children[key].value})
		}
	}
	return sub, nil
}

// Publish marshals value and writes it at path, creating the path as
// needed. Value subscribers at the path and child-added subscribers of the
// parent (for a new key) are notified.
func (t *Tree) Publish(path string, value any) error {
	data, err := marshalValue(path, value)
	if err != nil {
		return err
	}
	path = normalizePath(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.ensure(path, data)
	n.value = data
	for _, sub := range t.valueSubs[path] {
		sub.deliver(Event{Data: data})
	}
	return nil
}

// PublishAutoKeyed writes value under a store-assigned child key of path.
// Keys are time-ordered: later writes sort after earlier ones.
func (t *Tree) PublishAutoKeyed(path string, value any) (string, error) {
	key := t.pushIDs.next(time.Now())
	if err := t.Publish(normalizePath(path)+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes the subtree at path. Value subscribers at the path and at
// every descendant that held a value observe an absent event. Deleting a
// missing path is a no-op.
func (t *Tree) Delete(path string) error {
	path = normalizePath(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	parent, key := parentKey(path)
	pn := t.lookup(parent)
	if pn == nil {
		return nil
	}
	n, ok := pn.children[key]
	if !ok {
		return nil
	}

	delete(pn.children, key)
	for i, k := range pn.order {
		if k == key {
			pn.order = append(pn.order[:i], pn.order[i+1:]...)
			break
		}
	}

	t.notifyRemoved(path, n)
	return nil
}

// notifyRemoved delivers absent events for the removed node and all its
// descendants that carried a value. Caller holds t.mu.
func (t *Tree) notifyRemoved(path string, n *node) {
	for _, sub := range t.valueSubs[path] {
		sub.deliver(Event{Data: nil})
	}
	for _, key := range n.order {
		t.notifyRemoved(path+"/"+key, n.children[key])
	}
}

func (t *Tree) detachValue(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.valueSubs[path] = removeClosed(t.valueSubs[path])
	if len(t.valueSubs[path]) == 0 {
		delete(t.valueSubs, path)
	}
}

func (t *Tree) detachChild(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.childSubs[path] = removeClosed(t.childSubs[path])
	if len(t.childSubs[path]) == 0 {
		delete(t.childSubs, path)
	}
}

// removeClosed filters out subscriptions whose done channel is closed.
func removeClosed(subs []*subscription) []*subscription {
	live := subs[:0]
	for _, s := range subs {
		select {
		case <-s.done:
		default:
			live = append(live, s)
		}
	}
	return live
}
