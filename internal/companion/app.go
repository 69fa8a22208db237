package companion

import (
	"context"
	"fmt"
	"time"

	"github.com/1ureka/phonelink/internal/call"
	"github.com/1ureka/phonelink/internal/config"
	"github.com/1ureka/phonelink/internal/util"
)

// App wires the whole companion together: the signaling controller, the
// call watcher that drives it, the clipboard mirror, and battery
// throttling.
type App struct {
	cfg    config.Config
	store  Store
	engine call.MediaEngine
	clip   Clipboard
}

// New assembles an app from injected collaborators. Nothing is started
// until Run.
func New(cfg config.Config, st Store, engine call.MediaEngine, clip Clipboard) *App {
	return &App{cfg: cfg, store: st, engine: engine, clip: clip}
}

// Run starts every collaborator and blocks until ctx is cancelled or one of
// them fails. All resources are released on the way out.
func (a *App) Run(ctx context.Context) error {
	ctrl := call.New(a.store, a.engine)
	defer ctrl.Close()

	// Surface every call transition in the log.
	go func() {
		for st := range ctrl.Status() {
			switch st.Phase {
			case call.PhaseConnected:
				util.LogSuccess("call audio connected")
			case call.PhaseFailed:
				util.LogError("call audio failed: %s", st.Reason)
			default:
				util.LogInfo("call audio %s", st.Phase)
			}
		}
	}()

	throttler := NewThrottler(a.cfg.PollInterval)
	clipSync := NewClipboardSync(a.store, a.clip, a.cfg.UserID, a.cfg.DeviceName, throttler)
	watcher := NewCallWatcher(a.store, ctrl, a.cfg.UserID)

	// Surface the phone's scheduled messages in the log.
	book := NewMessageBook(a.store, a.cfg.UserID)
	msgs, err := book.Watch(ctx)
	if err != nil {
		return fmt.Errorf("scheduled messages: %w", err)
	}
	go func() {
		for msg := range msgs {
			util.LogInfo("scheduled message %s to %s at %s",
				msg.ID, msg.Recipient, time.UnixMilli(msg.SendAt).Format(time.RFC822))
		}
	}()

	util.StartStatsReporter(ctx)

	errCh := make(chan error, 3)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			errCh <- fmt.Errorf("call watcher: %w", err)
		}
	}()
	go func() {
		if err := clipSync.Run(ctx); err != nil {
			errCh <- fmt.Errorf("clipboard sync: %w", err)
		}
	}()
	go func() {
		if err := WatchBattery(ctx, a.store, a.cfg.UserID, throttler); err != nil {
			errCh <- fmt.Errorf("battery watch: %w", err)
		}
	}()

	util.LogSuccess("companion running for user %s (device %s)", a.cfg.UserID, a.cfg.DeviceName)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
