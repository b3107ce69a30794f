package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/app"
	"github.com/dokzlo13/lookind/internal/config"
)

const usage = `Usage: lookind [-c config.yaml] [-address host] <command> [args]

Commands:
  serve                          run the daemon (health, metrics, mqtt, meteo)
  remotes list                   list remotes stored on the device
  remotes show <uuid>            show a remote with its functions
  remotes create [flags]         create a remote (-name, -type, -uuid, -extra)
  remotes update <uuid> [flags]  change name, type or extra
  remotes delete <uuid>          delete a remote and its local functions
  remotes export [file]          dump locally stored functions as JSON
  remotes import <file>          load functions from an export
  learn <uuid> <function>        learn a function from the IR sensor
  trigger <uuid> <function>      send a function
  functions delete <uuid> <fn>   delete a function
  ac state <uuid>                show the current and last AC status
  ac set <uuid> [flags]          change AC status (-mode -temp -temp-f -fan -swing -code)
  sensor [name]                  list sensors or read one
  history <uuid>                 show ledger entries of a remote
`

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	address := flag.String("address", "", "Device address, overrides device.address")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *address != "" {
		cfg.Device.Address = *address
	}

	// Setup logging
	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "serve" {
		serve(cfg, configPath)
		return
	}

	if err := runCommand(cfg, cmd, args); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		log.Fatal().Err(err).Str("command", cmd).Msg("Command failed")
	}
}

// loadConfig reads path, falling back to defaults when the file is missing
// so one-off commands can run with -address alone.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func serve(cfg *config.Config, configPath string) {
	log.Info().Str("config", configPath).Msg("Starting lookind")

	// Create application
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	// Start the application
	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Wait for shutdown
	application.Wait()

	// Graceful shutdown
	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
