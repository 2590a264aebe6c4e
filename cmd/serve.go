package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API server",
		Flags: append(globalFlags(),
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address (overrides configuration)",
				Sources: cli.EnvVars("ASFOOR_HTTP_ADDR"),
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			a, _, err := boot(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			addr := c.String("addr")
			if addr == "" {
				addr = a.Config.HTTPAddr
			}
			return a.Server.Run(ctx, addr)
		},
	}
}
