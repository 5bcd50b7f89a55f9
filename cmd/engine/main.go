// Package main is the engine entry point.
// It loads the configuration, builds the application and runs one of the
// commands below. SIGINT/SIGTERM trigger a graceful shutdown.
package main

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	setupLogging()

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to read .env")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging sets the log format. The level is applied once the
// configuration is loaded.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
