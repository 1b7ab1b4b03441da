package main

import (
	"errors"
	"fmt"
	"os"

	"symposium/internal/engine"
)

// Exit codes. A gate halt is not a failure: the run advanced as far as
// it can without a human.
const (
	exitOK    = 0
	exitFatal = 1
	exitGate  = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, engine.ErrReviewRequired) {
			os.Exit(exitGate)
		}
		os.Exit(exitFatal)
	}
}
