package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/soundprediction/docgraph/cmd/docgraph"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := docgraph.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
