package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/JonMunkholm/shipimport/internal/core"
	"github.com/joho/godotenv"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(core.ExitGeneralError)
		}
	}()

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", core.FormatUserError(err))
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(core.ExitCodeForError(err))
	}
}
