// Package call implements the call-audio signaling controller: it watches
// the sync store for an incoming offer, drives the media engine through
// offer → answer → connected, relays ICE candidates in both directions, and
// exposes the session lifecycle as an ordered stream of status changes.
package call

// Phase is the coarse lifecycle state of the controller.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is one observed lifecycle transition. Reason is set only for
// PhaseFailed and distinguishes initialization, negotiation, and
// post-connection failures.
type Status struct {
	Phase  Phase
	Reason string
}

func (s Status) String() string {
	if s.Reason == "" {
		return s.Phase.String()
	}
	return s.Phase.String() + ": " + s.Reason
}
