package main

import (
	"os"
	"time"

	"github.com/faultline/faultline/cmd"
	"github.com/faultline/faultline/internal/buildinfo"
	"github.com/faultline/faultline/internal/conf"
	"github.com/faultline/faultline/internal/logging"
	"github.com/faultline/faultline/internal/telemetry"
)

// Set via -ldflags at build time
var (
	version   string
	buildDate string
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		logging.Fatal("Error loading configuration", "error", err)
	}

	build := &buildinfo.Context{Version: version, BuildDate: buildDate}

	if err := telemetry.Init(settings, build.GetVersion()); err != nil {
		// Telemetry is optional, a broken Sentry setup must not block the CLI
		logging.Warn("Error initializing telemetry", "error", err)
	}
	defer telemetry.Flush(2 * time.Second)

	rootCmd := cmd.RootCommand(settings, build)
	if err := rootCmd.Execute(); err != nil {
		telemetry.Flush(2 * time.Second)
		os.Exit(1)
	}
}
