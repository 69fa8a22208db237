package companion

import (
	"context"
	"testing"
	"time"

	"github.com/1ureka/phonelink/internal/store"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", desc)
}

func TestThrottlerApply(t *testing.T) {
	base := time.Second
	testCases := []struct {
		name  string
		state BatteryState
		want  time.Duration
	}{
		{"charging low battery", BatteryState{Percent: 5, Charging: true}, base},
		{"full", BatteryState{Percent: 100}, base},
		{"half", BatteryState{Percent: 50}, base},
		{"mid", BatteryState{Percent: 35}, 2 * base},
		{"low", BatteryState{Percent: 15}, 4 * base},
		{"critical", BatteryState{Percent: 4}, 8 * base},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			th := NewThrottler(base)
			th.Apply(tc.state)
			if got := th.Interval(); got != tc.want {
				t.Errorf("interval: got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestThrottlerRecovers(t *testing.T) {
	th := NewThrottler(time.Second)
	th.Apply(BatteryState{Percent: 4})
	th.Apply(BatteryState{Percent: 80})
	if got := th.Interval(); got != time.Second {
		t.Errorf("interval after recovery: %s", got)
	}
}

func TestWatchBatteryUpdatesThrottler(t *testing.T) {
	tree := store.NewTree()
	th := NewThrottler(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- WatchBattery(ctx, tree, "u1", th) }()

	if err := tree.Publish(userPath("u1", leafBattery), BatteryState{Percent: 15}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "interval widened", func() bool { return th.Interval() == 4*time.Second })

	if err := tree.Publish(userPath("u1", leafBattery), BatteryState{Percent: 90, Charging: true}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "interval restored", func() bool { return th.Interval() == time.Second })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WatchBattery returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WatchBattery did not return after cancel")
	}
}

func TestWatchBatterySkipsGarbage(t *testing.T) {
	tree := store.NewTree()
	th := NewThrottler(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go WatchBattery(ctx, tree, "u1", th)

	if err := tree.Publish(userPath("u1", leafBattery), "not a battery report"); err != nil {
		t.Fatal(err)
	}
	if err := tree.Publish(userPath("u1", leafBattery), BatteryState{Percent: 15}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "valid report applied after garbage", func() bool { return th.Interval() == 4*time.Second })
}
