package call

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/1ureka/phonelink/internal/store"
	"github.com/1ureka/phonelink/internal/util"
)

// statusBuffer bounds how far the status consumer may lag before the loop
// blocks. A session produces a handful of transitions, so this is ample.
const statusBuffer = 32

// eventKind discriminates everything the controller loop can react to.
type eventKind int

const (
	evStart eventKind = iota
	evStop
	evShutdown
	evOffer
	evRemoteCandidate
	evLocalCandidate
	evConnState
)

// event is one unit of work for the controller loop. Transport and engine
// events carry the generation of the session that produced them so stale
// deliveries from a torn-down session are discarded.
type event struct {
	kind eventKind
	gen  uint64

	userID string // evStart
	callID string // evStart

	data json.RawMessage // evOffer, evRemoteCandidate
	cand Candidate       // evLocalCandidate
	conn ConnState       // evConnState
}

// Controller owns a single active call's signaling lifecycle. All events —
// transport deliveries, engine notifications, Start/Stop calls — are
// funneled onto one goroutine, so the state machine is evaluated by exactly
// one writer and session fields need no locking.
//
// The status stream must be drained by the owner; it receives every
// transition, in order.
type Controller struct {
	transport SignalingTransport
	engine    MediaEngine

	events   chan event
	status   chan Status
	loopDone chan struct{}

	// Owned by the loop goroutine.
	phase   Phase
	sess    *session
	nextGen uint64
}

// New creates a controller and starts its processing loop. The caller keeps
// ownership of the transport and engine; the controller owns only the
// subscriptions and engine sessions it creates.
func New(transport SignalingTransport, engine MediaEngine) *Controller {
	c := &Controller{
		transport: transport,
		engine:    engine,
		events:    make(chan event, 64),
		status:    make(chan Status, statusBuffer),
		loopDone:  make(chan struct{}),
		phase:     PhaseIdle,
	}
	go c.run()
	return c
}

// Start begins signaling for a call. Calling it again for the same call
// while it is already active is a no-op; calling it for a different call
// tears the current session down first.
func (c *Controller) Start(userID, callID string) {
	c.send(event{kind: evStart, userID: userID, callID: callID})
}

// Stop terminates the active session, releasing all subscriptions and the
// engine session. Safe to call from any state, including mid-negotiation.
func (c *Controller) Stop() {
	c.send(event{kind: evStop})
}

// Status returns the transition stream. It is closed by Close.
func (c *Controller) Status() <-chan Status {
	return c.status
}

// Close terminates any active session and shuts the controller down.
func (c *Controller) Close() {
	c.send(event{kind: evShutdown})
}

// send hands an event to the loop unless the controller is already closed.
func (c *Controller) send(ev event) {
	select {
	case c.events <- ev:
	case <-c.loopDone:
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Processing loop
// ──────────────────────────────────────────────────────────────────────────────

func (c *Controller) run() {
	for {
		ev := <-c.events

		switch ev.kind {
		case evStart:
			c.handleStart(ev.userID, ev.callID)

		case evStop:
			c.teardownSession()
			if c.phase != PhaseIdle {
				c.setPhase(PhaseIdle, "")
			}

		case evShutdown:
			c.teardownSession()
			close(c.loopDone)
			close(c.status)
			return

		default:
			// Session-scoped events: drop anything from a torn-down session.
			if c.sess == nil || ev.gen != c.sess.gen {
				continue
			}
			switch ev.kind {
			case evOffer:
				c.handleOffer(ev.data)
			case evRemoteCandidate:
				c.handleRemoteCandidate(ev.data)
			case evLocalCandidate:
				c.handleLocalCandidate(ev.cand)
			case evConnState:
				c.handleConnState(ev.conn)
			}
		}
	}
}

// setPhase records a transition and delivers it to the status stream.
func (c *Controller) setPhase(p Phase, reason string) {
	c.phase = p
	if reason != "" {
		util.LogWarning("call %s", Status{p, reason})
	} else {
		util.LogDebug("call state: %s", p)
	}
	c.status <- Status{Phase: p, Reason: reason}
}

// handleStart allocates a fresh session: engine session first, then the
// offer and remote-candidate subscriptions, then the forwarders.
func (c *Controller) handleStart(userID, callID string) {
	if c.sess != nil && c.sess.userID == userID && c.sess.callID == callID &&
		(c.phase == PhaseConnecting || c.phase == PhaseConnected) {
		util.LogDebug("start ignored: call %s already active", callID)
		return
	}

	// Failed sessions and call switches: clean up before starting over.
	c.teardownSession()

	c.nextGen++
	sess := &session{
		userID: userID,
		callID: callID,
		gen:    c.nextGen,
		done:   make(chan struct{}),
	}

	engineSess, err := c.engine.NewReceiveOnlyAudioSession()
	if err != nil {
		c.setPhase(PhaseFailed, fmt.Sprintf("engine init failed: %v", err))
		return
	}
	sess.engine = engineSess

	offerSub, err := c.transport.SubscribeValue(signalingPath(userID, callID, leafOffer))
	if err != nil {
		sess.teardown()
		c.setPhase(PhaseFailed, fmt.Sprintf("subscribe offer failed: %v", err))
		return
	}
	sess.subs = append(sess.subs, offerSub)

	candSub, err := c.transport.SubscribeChildAdded(signalingPath(userID, callID, leafIceRemote))
	if err != nil {
		sess.teardown()
		c.setPhase(PhaseFailed, fmt.Sprintf("subscribe candidates failed: %v", err))
		return
	}
	sess.subs = append(sess.subs, candSub)

	c.sess = sess
	c.setPhase(PhaseConnecting, "")

	go c.forwardStore(sess, offerSub.Events(), evOffer)
	go c.forwardStore(sess, candSub.Events(), evRemoteCandidate)
	go c.forwardCandidates(sess, engineSess.LocalCandidates())
	go c.forwardConnStates(sess, engineSess.ConnectionStates())
}

// handleOffer applies the remote offer exactly once per session, produces
// and commits the local answer, and publishes it under an auto-keyed child
// of the answer path.
func (c *Controller) handleOffer(data json.RawMessage) {
	if c.phase != PhaseConnecting {
		return
	}
	if data == nil {
		return // no offer written yet
	}
	if c.sess.remoteOfferApplied {
		util.LogDebug("duplicate offer ignored for call %s", c.sess.callID)
		return
	}

	var offer OfferPayload
	if err := json.Unmarshal(data, &offer); err != nil {
		c.failSession(&NegotiationError{Stage: "apply remote offer", Err: err})
		return
	}

	if err := c.sess.engine.ApplyRemoteOffer(offer.SDP); err != nil {
		c.failSession(&NegotiationError{Stage: "apply remote offer", Err: err})
		return
	}
	c.sess.remoteOfferApplied = true

	answer, err := c.sess.engine.CreateAnswer()
	if err != nil {
		c.failSession(&NegotiationError{Stage: "create answer", Err: err})
		return
	}

	// The engine starts emitting local candidates only after the answer is
	// committed, so commit before publishing.
	if err := c.sess.engine.SetLocalAnswer(answer); err != nil {
		c.failSession(&NegotiationError{Stage: "commit local answer", Err: err})
		return
	}

	payload := AnswerPayload{Type: "answer", SDP: answer, Timestamp: time.Now().UnixMilli()}
	path := signalingPath(c.sess.userID, c.sess.callID, leafAnswer)
	if _, err := c.transport.PublishAutoKeyed(path, payload); err != nil {
		// Not fatal by itself: the engine's connection state is the
		// ultimate signal.
		util.LogWarning("publish answer failed: %v", err)
	}
}

// handleRemoteCandidate forwards one remote candidate to the engine,
// best-effort. Candidates are never deduplicated; the engine treats
// duplicates as harmless.
func (c *Controller) handleRemoteCandidate(data json.RawMessage) {
	if c.phase != PhaseConnecting && c.phase != PhaseConnected {
		return
	}
	if data == nil {
		return
	}

	var cand Candidate
	if err := json.Unmarshal(data, &cand); err != nil {
		util.LogWarning("malformed remote candidate dropped: %v", err)
		return
	}
	util.Stats.AddCandidateRecv()
	if err := c.sess.engine.AddRemoteCandidate(cand); err != nil {
		util.LogWarning("remote candidate rejected: %v", err)
	}
}

// handleLocalCandidate republishes one locally discovered candidate under
// an auto-keyed child so concurrent writers can never collide.
func (c *Controller) handleLocalCandidate(cand Candidate) {
	if c.phase != PhaseConnecting && c.phase != PhaseConnected {
		return
	}

	cand.Timestamp = time.Now().UnixMilli()
	path := signalingPath(c.sess.userID, c.sess.callID, leafIceLocal)
	if _, err := c.transport.PublishAutoKeyed(path, cand); err != nil {
		util.LogWarning("publish candidate failed: %v", err)
		return
	}
	util.Stats.AddCandidateSent()
}

// handleConnState reacts to the engine's coarse health signal. Disconnected
// and Failed both end the session, whether or not it ever connected.
func (c *Controller) handleConnState(state ConnState) {
	switch state {
	case ConnConnected:
		if c.phase == PhaseConnecting {
			c.setPhase(PhaseConnected, "")
		}
	case ConnDisconnected, ConnFailed:
		if c.phase == PhaseConnecting || c.phase == PhaseConnected {
			c.failSession(fmt.Errorf("connection %s", state))
		}
	}
}

// failSession tears the session down and surfaces the reason through the
// status stream. All subscriptions are released before the transition is
// emitted, so no listener fires afterwards.
func (c *Controller) failSession(err error) {
	c.teardownSession()
	c.setPhase(PhaseFailed, err.Error())
}

func (c *Controller) teardownSession() {
	if c.sess == nil {
		return
	}
	c.sess.teardown()
	c.sess = nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Forwarders — pump each async source into the single event channel
// ──────────────────────────────────────────────────────────────────────────────

func (c *Controller) forwardStore(s *session, ch <-chan store.Event, kind eventKind) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			c.forward(s, event{kind: kind, gen: s.gen, data: ev.Data})
		case <-s.done:
			return
		}
	}
}

func (c *Controller) forwardCandidates(s *session, ch <-chan Candidate) {
	for {
		select {
		case cand, ok := <-ch:
			if !ok {
				return
			}
			c.forward(s, event{kind: evLocalCandidate, gen: s.gen, cand: cand})
		case <-s.done:
			return
		}
	}
}

func (c *Controller) forwardConnStates(s *session, ch <-chan ConnState) {
	for {
		select {
		case state, ok := <-ch:
			if !ok {
				return
			}
			c.forward(s, event{kind: evConnState, gen: s.gen, conn: state})
		case <-s.done:
			return
		}
	}
}

func (c *Controller) forward(s *session, ev event) {
	select {
	case c.events <- ev:
	case <-s.done:
	case <-c.loopDone:
	}
}
