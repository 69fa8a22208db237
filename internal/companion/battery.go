package companion

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/1ureka/phonelink/internal/util"
)

// BatteryState is the phone's battery report as published to the store.
type BatteryState struct {
	Percent  int   `json:"percent"`
	Charging bool  `json:"charging"`
	Updated  int64 `json:"updatedAt,omitempty"`
}

// Throttler maps the phone's battery state to a poll interval for
// background work. Charging runs at the base cadence; the lower the
// battery, the wider the interval.
type Throttler struct {
	base time.Duration

	mu      sync.Mutex
	current time.Duration
}

// NewThrottler creates a throttler at the base cadence.
func NewThrottler(base time.Duration) *Throttler {
	return &Throttler{base: base, current: base}
}

// Apply recomputes the interval from a battery report.
func (t *Throttler) Apply(b BatteryState) {
	factor := time.Duration(1)
	switch {
	case b.Charging || b.Percent >= 50:
		factor = 1
	case b.Percent >= 20:
		factor = 2
	case b.Percent >= 10:
		factor = 4
	default:
		factor = 8
	}

	t.mu.Lock()
	prev := t.current
	t.current = t.base * factor
	changed := prev != t.current
	t.mu.Unlock()

	if changed {
		util.LogDebug("battery %d%% (charging=%v): poll interval now %s", b.Percent, b.Charging, t.base*factor)
	}
}

// Interval returns the current poll interval.
func (t *Throttler) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// WatchBattery subscribes to the phone's battery reports and keeps the
// throttler current. It blocks until ctx is done or the subscription ends.
func WatchBattery(ctx context.Context, st Store, userID string, th *Throttler) error {
	sub, err := st.SubscribeValue(userPath(userID, leafBattery))
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if ev.Data == nil {
				continue // nothing reported yet
			}
			var b BatteryState
			if err := json.Unmarshal(ev.Data, &b); err != nil {
				util.LogWarning("malformed battery report: %v", err)
				continue
			}
			th.Apply(b)

		case <-ctx.Done():
			return nil
		}
	}
}
