// Command amgen runs the generative design loop for additive
// manufacturing: it sweeps a parametric part template into generations,
// voxelizes each generation with its support structure and reports the
// part and support metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "amgen:", err)
		stop()
		os.Exit(1)
	}
}
