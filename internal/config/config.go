// Package config holds the CLI configuration types.
package config

import "time"

// DefaultPollInterval is the base clipboard poll cadence before battery
// throttling is applied.
const DefaultPollInterval = 2 * time.Second

// Config stores all parameters gathered from CLI flags or the interactive
// prompts.
type Config struct {
	StoreURL      string        // WebSocket URL of the sync store, e.g. ws://host:8787/ws
	UserID        string        // Account scoping all sync paths
	DeviceName    string        // Human-readable name of this desktop
	ClipboardFile string        // File bridged as the local clipboard
	PollInterval  time.Duration // Base clipboard poll interval
}
