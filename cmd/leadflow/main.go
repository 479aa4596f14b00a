package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/leadflow/cmd/leadflow/commands"
	"github.com/openfroyo/leadflow/pkg/telemetry"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	setupLogging()

	ctx, cancel := context.WithCancel(context.Background())

	// Cancel on interrupt; leads already claimed finish their current step
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn().Msg("Received interrupt signal, shutting down...")
		cancel()
	}()

	err := commands.Execute(ctx, Version, Commit, BuildDate)
	cancel()

	code := commands.ExitCode(err)
	if err != nil {
		event := log.Error()
		if code == commands.ExitLeadsFailed {
			event = log.Warn()
		}
		event.Err(err).Int("exit_code", code).Msg("Command finished with errors")
	}
	os.Exit(code)
}

// setupLogging configures the global logger used before the configuration
// is loaded.
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	zerolog.SetGlobalLevel(telemetry.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))))
}
