package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Summarize and index documents for retrieval",
		Flags: append(globalFlags(),
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory to ingest (overrides configuration)",
			},
			&cli.StringFlag{
				Name:  "pattern",
				Usage: "File name glob, e.g. *.md (overrides configuration)",
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			a, logger, err := boot(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			dir := c.String("dir")
			if dir == "" {
				dir = a.Config.DocPath
			}
			pattern := c.String("pattern")
			if pattern == "" {
				pattern = a.Config.IngestPattern
			}

			report, err := a.Ingest.IngestAll(ctx, dir, pattern)
			if err != nil {
				if report != nil {
					logger.Warn("ingestion aborted", "indexed", report.Indexed, "files", report.Files)
				}
				return fmt.Errorf("ingesting %s: %w", dir, err)
			}

			fmt.Printf("Indexed %d of %d files.\n", report.Indexed, report.Files)
			return nil
		},
	}
}
