package main

import (
	"fmt"
	"os"

	"competitor-knowledge/internal/shared/telemetry"
)

func main() {
	defer telemetry.Sync()
	if err := newRootCmd(defaultBuilder).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
