// Command rabbitd runs the disk/piece/routing core of a BitTorrent engine
// against a single torrent file from the command line. Peer discovery
// (tracker, DHT) is out of scope; rabbitd only allocates disk state and
// starts a torrent's coordinator, reporting alerts to stderr.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
