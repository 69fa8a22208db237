package call

// Signaling path layout under the sync store. All paths for one call live
// under /users/{userId}/webrtc_signaling/{callId}/.
const (
	leafOffer     = "offer"
	leafAnswer    = "answer"
	leafIceRemote = "ice_candidates_remote"
	leafIceLocal  = "ice_candidates_local"
)

func signalingPath(userID, callID, leaf string) string {
	return "/users/" + userID + "/webrtc_signaling/" + callID + "/" + leaf
}

// OfferPayload is the remote offer as written by the phone. The timestamp
// is diagnostic only: it plays no part in ordering or rejection.
type OfferPayload struct {
	SDP       string `json:"sdp"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// AnswerPayload is the local answer published under an auto-keyed child of
// the answer path, so answers from retried sessions stay distinguishable by
// creation order.
type AnswerPayload struct {
	Type      string `json:"type"`
	SDP       string `json:"sdp"`
	Timestamp int64  `json:"timestamp"`
}

// Candidate is an ICE candidate as carried through the store. The fields
// are opaque to the controller; it never inspects or deduplicates them.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	Timestamp     int64   `json:"timestamp,omitempty"`
}
