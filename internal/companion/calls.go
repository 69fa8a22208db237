package companion

import (
	"context"
	"encoding/json"

	"github.com/1ureka/phonelink/internal/call"
	"github.com/1ureka/phonelink/internal/util"
)

// Call states the phone writes to active_call.
const (
	callStateRinging  = "ringing"
	callStateAnswered = "answered"
	callStateEnded    = "ended"
)

// activeCall is the phone's view of the current call.
type activeCall struct {
	CallID string `json:"callId"`
	State  string `json:"state"`
	Caller string `json:"caller,omitempty"`
}

// CallWatcher owns the signaling controller's lifecycle: it watches the
// active_call value and starts signaling when a call is answered, stopping
// it when the call ends or the value disappears.
type CallWatcher struct {
	store  Store
	ctrl   *call.Controller
	userID string
}

// NewCallWatcher wires a watcher for one user.
func NewCallWatcher(st Store, ctrl *call.Controller, userID string) *CallWatcher {
	return &CallWatcher{store: st, ctrl: ctrl, userID: userID}
}

// Run blocks until ctx is done or the subscription ends. The controller is
// stopped on the way out so no session outlives the watcher.
func (w *CallWatcher) Run(ctx context.Context) error {
	sub, err := w.store.SubscribeValue(userPath(w.userID, leafActiveCall))
	if err != nil {
		return err
	}
	defer sub.Close()
	defer w.ctrl.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			w.handle(ev.Data)

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *CallWatcher) handle(data []byte) {
	if data == nil {
		w.ctrl.Stop()
		return
	}

	var ac activeCall
	if err := json.Unmarshal(data, &ac); err != nil {
		util.LogWarning("malformed active_call value: %v", err)
		return
	}

	switch ac.State {
	case callStateAnswered:
		util.LogInfo("call %s answered, starting audio signaling", ac.CallID)
		w.ctrl.Start(w.userID, ac.CallID)
	case callStateEnded:
		util.LogInfo("call %s ended", ac.CallID)
		w.ctrl.Stop()
	case callStateRinging:
		// Nothing to do until the user answers on the phone.
	default:
		util.LogDebug("active_call state %q ignored", ac.State)
	}
}
