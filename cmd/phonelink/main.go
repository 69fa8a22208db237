// Phonelink — desktop companion CLI entry point.
//
// The companion connects to a realtime sync store shared with the phone,
// mirrors the clipboard, manages scheduled messages, and — when an incoming
// call is answered on the phone — negotiates a one-way WebRTC audio session
// so the call is heard on the desktop.
//
// It can be launched non-interactively via CLI flags (-store, -user, ...)
// or interactively (no flags).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pterm/pterm"

	"github.com/1ureka/phonelink/internal/companion"
	"github.com/1ureka/phonelink/internal/config"
	"github.com/1ureka/phonelink/internal/media"
	"github.com/1ureka/phonelink/internal/store"
	"github.com/1ureka/phonelink/internal/util"
)

var version = "dev"

// mdnsService is the service type syncstored announces on the LAN.
const mdnsService = "_phonelink-sync._tcp"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	storeFlag := flag.String("store", "", "Sync store WebSocket URL, e.g. ws://192.168.1.10:8787/ws")
	userFlag := flag.String("user", "", "User id scoping all sync paths")
	deviceFlag := flag.String("device", "", "Device name (defaults to the hostname)")
	clipFlag := flag.String("clipboard", "", "Clipboard bridge file (defaults to ~/.phonelink-clipboard)")
	discoverFlag := flag.Bool("discover", false, "Discover a syncstored instance on the LAN via mDNS")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Phonelink — v%s", version))
	pterm.Println()

	storeURL := strings.TrimSpace(*storeFlag)
	if *discoverFlag {
		found, err := discoverStore(ctx)
		if err != nil {
			util.LogError("discovery failed: %v", err)
			os.Exit(1)
		}
		storeURL = found
	}
	if storeURL == "" {
		storeURL = askText("Sync store URL (e.g. ws://192.168.1.10:8787/ws)")
	}

	userID := strings.TrimSpace(*userFlag)
	if userID == "" {
		userID = askText("User id")
	}

	cfg := config.Config{
		StoreURL:      storeURL,
		UserID:        userID,
		DeviceName:    deviceName(*deviceFlag),
		ClipboardFile: clipboardFile(*clipFlag),
		PollInterval:  config.DefaultPollInterval,
	}

	client, err := store.Dial(ctx, cfg.StoreURL)
	if err != nil {
		util.LogError("failed to reach sync store: %v", err)
		os.Exit(1)
	}
	defer client.Close()
	util.LogInfo("connected to sync store: %s", cfg.StoreURL)

	app := companion.New(cfg, client, media.NewEngine(nil), companion.FileClipboard{Path: cfg.ClipboardFile})
	if err := app.Run(ctx); err != nil {
		util.LogError("companion stopped: %v", err)
		os.Exit(1)
	}

	util.LogInfo("companion shut down")
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// discoverStore browses mDNS for a syncstored instance and returns its
// WebSocket URL. The first instance found wins.
func discoverStore(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("mdns resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 4)
	if err := resolver.Browse(browseCtx, mdnsService, "local.", entries); err != nil {
		return "", fmt.Errorf("mdns browse: %w", err)
	}

	fmt.Println("Searching for a sync store on the LAN...")
	for entry := range entries {
		if len(entry.AddrIPv4) == 0 {
			continue
		}
		url := fmt.Sprintf("ws://%s:%d/ws", entry.AddrIPv4[0], entry.Port)
		util.LogInfo("found %s at %s", entry.Instance, url)
		return url, nil
	}
	return "", fmt.Errorf("no sync store found within 5s")
}

// deviceName resolves the device name: the flag, else the hostname, else a
// fixed fallback.
func deviceName(flagVal string) string {
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "desktop"
}

// clipboardFile resolves the clipboard bridge path.
func clipboardFile(flagVal string) string {
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "phonelink-clipboard")
	}
	return filepath.Join(home, ".phonelink-clipboard")
}

// askText prompts until a non-empty value is entered.
func askText(prompt string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		if v := strings.TrimSpace(raw); v != "" {
			pterm.Println()
			return v
		}

		util.LogWarning("a value is required")
		pterm.Println()
	}
}
