package call

import "fmt"

// ConnState is the coarse connection-health signal reported by the media
// engine. Disconnected and Failed are treated identically by the
// controller: both end the session.
type ConnState int

const (
	ConnConnected ConnState = iota
	ConnDisconnected
	ConnFailed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NegotiationError marks a fatal failure of one offer/answer stage.
type NegotiationError struct {
	Stage string // "apply remote offer", "create answer", "commit local answer"
	Err   error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// EngineSession is one allocated receive-only audio session.
//
// ApplyRemoteOffer must be called at most once; the controller guarantees
// this. AddRemoteCandidate is best-effort: a malformed or late candidate is
// the engine's problem to drop, never fatal. Close is idempotent and safe
// on a session that never connected.
type EngineSession interface {
	ApplyRemoteOffer(sdp string) error
	CreateAnswer() (string, error)
	SetLocalAnswer(sdp string) error
	AddRemoteCandidate(c Candidate) error

	// LocalCandidates emits locally discovered candidates in discovery
	// order. Emission starts only after SetLocalAnswer.
	LocalCandidates() <-chan Candidate

	// ConnectionStates emits coarse health transitions.
	ConnectionStates() <-chan ConnState

	Close() error
}

// MediaEngine allocates media sessions. The controller holds at most one
// live session at a time.
type MediaEngine interface {
	// NewReceiveOnlyAudioSession allocates a session configured for one
	// inbound audio stream and nothing outbound. It fails if the native
	// media stack cannot be initialized.
	NewReceiveOnlyAudioSession() (EngineSession, error)
}
