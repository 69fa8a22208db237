// Package media implements call.MediaEngine on top of pion/webrtc: a
// receive-only audio PeerConnection whose candidates and connection states
// surface as channels for the signaling controller to consume.
package media

import (
	"fmt"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/phonelink/internal/call"
	"github.com/1ureka/phonelink/internal/util"
)

// STUN servers for ICE candidate gathering. No TURN — the companion targets
// direct connectivity with zero infrastructure cost.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// AudioSink consumes decoded-agnostic RTP payloads from the inbound audio
// track. The engine does not interpret the media; playback is the sink's
// problem.
type AudioSink interface {
	Write(payload []byte) error
}

// DiscardSink drops all audio. Useful for tests and headless runs.
type DiscardSink struct{}

func (DiscardSink) Write([]byte) error { return nil }

// Engine allocates receive-only audio sessions. One Engine may serve many
// sequential sessions.
type Engine struct {
	sink          AudioSink
	loggerFactory *logging.DefaultLoggerFactory
}

// NewEngine creates an engine feeding inbound audio to sink. A nil sink
// discards audio.
func NewEngine(sink AudioSink) *Engine {
	if sink == nil {
		sink = DiscardSink{}
	}
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = logging.LogLevelWarn
	return &Engine{sink: sink, loggerFactory: lf}
}

// NewReceiveOnlyAudioSession allocates a PeerConnection configured with a
// single recvonly audio transceiver.
func (e *Engine) NewReceiveOnlyAudioSession() (call.EngineSession, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	se := webrtc.SettingEngine{LoggerFactory: e.loggerFactory}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se))

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(
		webrtc.RTPCodecTypeAudio,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly},
	); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}

	s := &session{
		pc:         pc,
		sink:       e.sink,
		localCands: make(chan call.Candidate, 64),
		states:     make(chan call.ConnState, 8),
		closed:     make(chan struct{}),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // end of gathering
		}
		init := c.ToJSON()
		cand := call.Candidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		}
		select {
		case s.localCands <- cand:
		case <-s.closed:
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("peer connection state: %s", state)
		var cs call.ConnState
		switch state {
		case webrtc.PeerConnectionStateConnected:
			cs = call.ConnConnected
		case webrtc.PeerConnectionStateDisconnected:
			cs = call.ConnDisconnected
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			cs = call.ConnFailed
		default:
			return
		}
		select {
		case s.states <- cs:
		case <-s.closed:
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		util.LogInfo("inbound audio track: %s", track.Codec().MimeType)
		go s.drainTrack(track)
	})

	return s, nil
}

// session wraps one PeerConnection as a call.EngineSession.
type session struct {
	pc   *webrtc.PeerConnection
	sink AudioSink

	localCands chan call.Candidate
	states     chan call.ConnState

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit // candidates that arrived before the offer

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *session) ApplyRemoteOffer(sdp string) error {
	err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
	if err != nil {
		return err
	}

	// Flush candidates queued while no remote description existed.
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.remoteSet = true
	s.mu.Unlock()

	for _, init := range pending {
		if err := s.pc.AddICECandidate(init); err != nil {
			util.LogWarning("queued candidate rejected: %v", err)
		}
	}
	return nil
}

func (s *session) CreateAnswer() (string, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	return answer.SDP, nil
}

func (s *session) SetLocalAnswer(sdp string) error {
	return s.pc.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
}

// AddRemoteCandidate ingests one remote candidate. Candidates arriving
// before the remote offer are queued and replayed once it lands.
func (s *session) AddRemoteCandidate(c call.Candidate) error {
	init := webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}

	s.mu.Lock()
	if !s.remoteSet {
		s.pending = append(s.pending, init)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.pc.AddICECandidate(init)
}

func (s *session) LocalCandidates() <-chan call.Candidate {
	return s.localCands
}

func (s *session) ConnectionStates() <-chan call.ConnState {
	return s.states
}

// Close releases the PeerConnection. Idempotent; safe on a session that
// never connected.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.pc.Close()
	})
	return err
}

// drainTrack reads the inbound RTP stream and hands payloads to the sink
// until the track ends.
func (s *session) drainTrack(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return // track closed
		}
		util.Stats.AddAudio(len(pkt.Payload))
		if err := s.sink.Write(pkt.Payload); err != nil {
			util.LogWarning("audio sink error: %v", err)
			return
		}
	}
}
