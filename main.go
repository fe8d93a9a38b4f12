package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/deploymenttheory/go-rom-uf2/cmd"
	"github.com/deploymenttheory/go-rom-uf2/internal/config"
	"github.com/deploymenttheory/go-rom-uf2/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx, arguments())
	stop()

	if err != nil {
		logger.LogError("Command execution failed", err, nil)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	// Ensure logs are flushed before exit
	_ = logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

// arguments returns the CLI arguments, running the workflow named by
// ROM2UF2_WORKFLOW when none are given.
func arguments() []string {
	args := os.Args[1:]
	if len(args) == 0 {
		if wf := os.Getenv(config.EnvPrefix + "_WORKFLOW"); wf != "" {
			return []string{"--workflow", wf}
		}
	}
	return args
}
