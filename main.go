// remoteserver - a locally-bound, key-authenticated control server
// with an idle watchdog.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"remoteserver/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "remoteserver: %v\n", err)
		os.Exit(1)
	}
}
