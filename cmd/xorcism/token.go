package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/xorcism-go/internal/auth"
)

var tokenCommand = &cli.Command{
	Name:  "token",
	Usage: "Print an API token signed with the configured secret",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Token subject `NAME`", Required: true},
		&cli.DurationFlag{Name: "expire", Usage: "Token lifetime `DURATION` (default: auth.jwt_expire hours)"},
	},
	Action: tokenCmd,
}

func tokenCmd(c *cli.Context) error {
	cfg := configFrom(c)

	expire := time.Duration(cfg.Auth.JWTExpire) * time.Hour
	if c.IsSet("expire") {
		expire = c.Duration("expire")
	}

	token, err := auth.NewJWTAuth(cfg.Auth.JWTSecret, expire).GenerateToken(c.String("subject"))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
