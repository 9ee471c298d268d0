package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/kkirby/rax25kb/internal/bridge"
	"github.com/kkirby/rax25kb/internal/logging"
)

func main() {
	opts, err := loadOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "rax25kb: %v\n", err)
		os.Exit(1)
	}
	if err := logging.ConfigureRuntime(opts.logging); err != nil {
		fmt.Fprintf(os.Stderr, "rax25kb: %v\n", err)
		os.Exit(1)
	}

	svc := bridge.NewService(opts.bridge, log.Logger)
	if err := svc.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "rax25kb: %v\n", err)
		os.Exit(1)
	}
}
