package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"stockalert/internal/app"
	"stockalert/internal/clock"
	"stockalert/internal/config"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run parses flags and either migrates the schema or serves until shutdown.
// Params: command-line arguments without program name and stderr writer.
// Returns: process exit code.
func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("stockalert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config-file", "", "path to one TOML config file")
	configDir := fs.String("config-dir", "", "directory with TOML config fragments applied in name order")
	migrate := fs.Bool("migrate", false, "create or update database tables and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	source, err := config.FromCLI(*configFile, *configDir)
	if err != nil {
		fmt.Fprintf(stderr, "stockalert: %v\n", err)
		return exitUsage
	}

	if *migrate {
		if err := app.Migrate(source); err != nil {
			fmt.Fprintf(stderr, "stockalert: migrate: %v\n", err)
			return exitError
		}
		return exitOK
	}

	service, err := app.NewService(source, clock.RealClock{})
	if err != nil {
		fmt.Fprintf(stderr, "stockalert: init: %v\n", err)
		return exitError
	}
	if err := service.Run(context.Background()); err != nil {
		fmt.Fprintf(stderr, "stockalert: %v\n", err)
		return exitError
	}
	return exitOK
}
