package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/cory-johannsen/hilo/internal/importer"
)

func main() {
	cmd := &cli.Command{
		Name:  "import-items",
		Usage: "convert an item dataset into the YAML catalog format",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Value: "text",
				Usage: "source format: text or yaml",
			},
			&cli.StringFlag{
				Name:     "source",
				Usage:    "path to the source item file",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output",
				Usage:    "path to the output catalog file",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "dedupe",
				Usage: "drop items whose label repeats an earlier one",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	src, err := importer.SourceFor(cmd.String("format"))
	if err != nil {
		return err
	}

	start := time.Now()
	imp := importer.New(src, importer.Options{Dedupe: cmd.Bool("dedupe")}, os.Stdout)
	if err := imp.Run(cmd.String("source"), cmd.String("output")); err != nil {
		return err
	}
	fmt.Printf("import complete in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
