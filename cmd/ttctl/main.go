package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pilab-dev/tiktok-auth/cmd/ttctl/cmd"
	"github.com/pilab-dev/tiktok-auth/tracing"
)

func main() {
	tp, err := tracing.InitTracerProvider(cmd.AppName, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize tracer provider:", err)
		os.Exit(1)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "error shutting down tracer provider:", err)
		}
	}()

	os.Exit(cmd.Execute())
}
