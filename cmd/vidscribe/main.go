// Package main is the vidscribe command-line client.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/codebuildervaibhav/vidscribe/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.ExecuteContext(ctx); err != nil {
		stop()
		cli.Fatal(err)
	}
}
