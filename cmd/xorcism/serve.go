package main

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/xorcism-go/internal/config"
	"github.com/xorcism-go/internal/server"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Run the HTTP munge service",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Override server.port `PORT`"},
		&cli.BoolFlag{Name: "h2c", Usage: "Enable HTTP/2 cleartext"},
	},
	Action: serveCmd,
}

func serveCmd(c *cli.Context) error {
	cfg := configFrom(c)
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("h2c") {
		cfg.Server.EnableH2C = c.Bool("h2c")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Info().Str("version", config.Version).Msg("Starting xorcism")
	log.Info().
		Str("http_addr", cfg.GetHTTPAddr()).
		Bool("h2c", cfg.Server.EnableH2C).
		Str("data_dir", cfg.DataDir).
		Int("stage_size", cfg.Munger.StageSize).
		Msg("Configuration loaded")

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
