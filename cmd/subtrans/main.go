package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"subtrans/internal/llm"
)

const (
	exitFailure = 1
	exitAuth    = 2
)

func main() {
	// optional .env with SUBTRANS_API_KEY and friends
	_ = godotenv.Load()

	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		if llm.IsAuthError(err) {
			os.Exit(exitAuth)
		}
		os.Exit(exitFailure)
	}
}
