package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadoa-org/kadoa-sdk-go/cli"
	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.RootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !cmd.IsReported(err) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
