package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/xorcism-go/internal/config"
	"github.com/xorcism-go/internal/storage"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("xorcism failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "xorcism",
		Usage:   "Repeating-key XOR munging for files, pipes and HTTP streams",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config `FILE` (default: config.json in ., ./configs, $HOME/.xorcism)",
				EnvVars: []string{"XORCISM_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log level `LEVEL` (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if lvl := c.String("log-level"); lvl != "" {
				cfg.Log.Level = lvl
			}
			setupLogging(cfg)
			c.App.Metadata[configKey] = cfg
			return nil
		},
		Metadata: map[string]interface{}{},
		Commands: []*cli.Command{
			mungeCommand,
			keysCommand,
			serveCommand,
			tokenCommand,
		},
	}
}

// configFrom returns the config loaded in Before
func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open key store in %s: %w", cfg.DataDir, err)
	}
	return store, nil
}

func setupLogging(cfg *config.Config) {
	// Set time format
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Set log level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Set output format. Logs always go to stderr so stdout stays clean for
	// munged output.
	if cfg.Log.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
