package call

import "github.com/1ureka/phonelink/internal/store"

// session is the state of one negotiation attempt. It is owned exclusively
// by the controller loop; only forwarder goroutines touch it concurrently,
// and they only read gen and done.
type session struct {
	userID string
	callID string
	gen    uint64 // discriminates events of torn-down sessions

	engine EngineSession
	subs   []store.Subscription

	// remoteOfferApplied flips to true once an offer has been handed to the
	// engine and never back: at most one offer application per session, no
	// matter how often the store re-delivers the offer.
	remoteOfferApplied bool

	done     chan struct{} // closed on teardown, stops forwarders
	tornDown bool
}

// teardown releases everything the session holds: all transport
// subscriptions, the engine session, and the forwarder goroutines.
// Idempotent; safe on a partially initialized session.
func (s *session) teardown() {
	if s.tornDown {
		return
	}
	s.tornDown = true

	close(s.done)
	for _, sub := range s.subs {
		sub.Close()
	}
	s.subs = nil
	if s.engine != nil {
		s.engine.Close()
	}
}
