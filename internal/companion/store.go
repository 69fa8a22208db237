// Package companion contains the desktop-side collaborators built around
// the sync store: the incoming-call watcher that drives the signaling
// controller, the clipboard mirror, scheduled-message management, and
// battery-driven throttling of background work.
package companion

import "github.com/1ureka/phonelink/internal/call"

// Store is the slice of the sync store the companion needs: everything the
// signaling controller uses, plus Delete for CRUD. Both *store.Tree and
// *store.Client satisfy it.
type Store interface {
	call.SignalingTransport
	Delete(path string) error
}

// Per-user path layout used by the collaborators.
func userPath(userID, leaf string) string {
	return "/users/" + userID + "/" + leaf
}

const (
	leafClipboard  = "clipboard"
	leafBattery    = "battery"
	leafActiveCall = "active_call"
	leafScheduled  = "scheduled_messages"
)
