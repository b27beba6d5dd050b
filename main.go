package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/medleyhq/medley/internal"
	"github.com/medleyhq/medley/pkg/logger"
)

var log = logger.Get("Main")

// main loads the user configuration, constructs the Medley server and runs
// it until an interrupt/termination signal arrives.
func main() {
	configPath := flag.String("config", "medley.yaml", "path to the YAML configuration file")
	flag.Parse()

	if rawLevel, ok := os.LookupEnv("MEDLEY_LOG_LEVEL"); ok {
		if level, err := strconv.Atoi(rawLevel); err == nil {
			logger.SetMinLoggingLevel(level)
		}
	}

	config := internal.MedleyConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Emit(logger.FATAL, "Medley stopped with error: %v\n", err)
		os.Exit(1)
	}

	log.Emit(logger.STOP, "Medley shut down\n")
}
