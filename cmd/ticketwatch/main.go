package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"ticketwatch/internal/app"
	"ticketwatch/internal/availability"
)

var version = "dev"

func newApp(cmd *cli.Command) (*app.App, error) {
	return app.New(app.Options{
		ConfigPath: cmd.String("config"),
		Version:    version,
	})
}

func run(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func check(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.Check(ctx)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rep)
	return err
}

func testNotify(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := a.TestNotify(ctx)
	fmt.Printf("delivered=%d skipped=%d failed=%d\n", out.Delivered, out.Skipped, out.Failed)
	if out.Delivered == 0 {
		return fmt.Errorf("no channel delivered the test notification")
	}
	return nil
}

func watchAvailability(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.WatchAvailability(ctx, availability.Config{
		URL:         cmd.String("url"),
		Selector:    cmd.String("selector"),
		SoldOutText: cmd.String("sold-out"),
		Interval:    cmd.Duration("interval"),
		Title:       cmd.String("title"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("delivered=%d skipped=%d failed=%d\n", out.Delivered, out.Skipped, out.Failed)
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := &cli.Command{
		Name:    "ticketwatch",
		Usage:   "Watch a ticket listing page and announce new entries",
		Version: version,
		Action:  run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (.yaml or .json); written with defaults if missing",
				Value:   "ticketwatch.yaml",
				Sources: cli.EnvVars("TICKETWATCH_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Poll on the configured schedule until interrupted",
				Action: run,
			},
			{
				Name:   "check",
				Usage:  "Run one cycle, persist the snapshot and print the report",
				Action: check,
			},
			{
				Name:   "availability",
				Usage:  "Poll a detail page until it is no longer sold out, then announce it once",
				Action: watchAvailability,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Detail page URL", Required: true},
					&cli.DurationFlag{Name: "interval", Usage: "Time between checks", Value: availability.DefaultInterval},
					&cli.StringFlag{Name: "selector", Usage: "CSS selector of the booking marker", Value: availability.DefaultSelector},
					&cli.StringFlag{Name: "sold-out", Usage: "Marker text that means sold out", Value: availability.DefaultSoldOutText},
					&cli.StringFlag{Name: "title", Usage: "Title for the announcement (default: page title)"},
				},
			},
			{
				Name:   "test-notify",
				Usage:  "Send a sample notification through every enabled channel",
				Action: testNotify,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
