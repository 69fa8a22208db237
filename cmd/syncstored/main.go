// Syncstored — self-hostable realtime sync store.
//
// It serves the hierarchical key/value store phone and desktop meet in:
// WebSocket subscriptions with value and child-added semantics, plain and
// auto-keyed writes. Intended for LAN setups where the hosted store is not
// wanted; it announces itself over mDNS so companions can find it with
// -discover.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/grandcat/zeroconf"
	"github.com/pterm/pterm"

	"github.com/1ureka/phonelink/internal/store"
	"github.com/1ureka/phonelink/internal/util"
)

var version = "dev"

const mdnsService = "_phonelink-sync._tcp"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	listenFlag := flag.String("listen", ":8787", "Listen address (use :0 for a random port)")
	nameFlag := flag.String("name", "phonelink-sync", "mDNS instance name")
	noMDNS := flag.Bool("no-mdns", false, "Disable the mDNS announcement")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Syncstored — v%s", version))
	pterm.Println()

	srv := store.NewServer(store.NewTree())
	port, err := srv.Start(*listenFlag)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	defer srv.Close()
	util.LogSuccess("sync store listening on port %d (ws endpoint: /ws)", port)

	if !*noMDNS {
		mdns, err := zeroconf.Register(*nameFlag, mdnsService, "local.", port, nil, nil)
		if err != nil {
			util.LogWarning("mDNS announcement failed: %v", err)
		} else {
			defer mdns.Shutdown()
			util.LogInfo("announced as %q on the LAN", *nameFlag)
		}
	}

	<-ctx.Done()
	util.LogInfo("sync store shut down")
}
