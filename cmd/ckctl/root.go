package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"competitor-knowledge/internal/bootstrap"
	"competitor-knowledge/internal/catalog"
	"competitor-knowledge/internal/shared/config"
	"competitor-knowledge/internal/shared/telemetry"
	"competitor-knowledge/internal/workerproc"
)

const drainWait = 50 * time.Millisecond

// appBuilder wires the application; tests substitute one backed by fakes.
type appBuilder func() (*bootstrap.App, error)

func defaultBuilder() (*bootstrap.App, error) {
	cfg := config.Load()
	telemetry.Configure(cfg.Env, os.Getenv("LOG_LEVEL"))
	return bootstrap.Build(cfg)
}

// cli carries the lazily built app shared by every subcommand.
type cli struct {
	build       appBuilder
	app         *bootstrap.App
	catalogFile string
}

func newRootCmd(build appBuilder) *cobra.Command {
	c := &cli{build: build}
	root := &cobra.Command{
		Use:           "ckctl",
		Short:         "Run and inspect competitor analyses",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			err := c.app.Close()
			c.app = nil
			return err
		},
	}
	root.PersistentFlags().StringVar(&c.catalogFile, "catalog", "", "JSON file of products to load into the catalog before running")

	root.AddCommand(
		c.productCmd(),
		c.runCmd(),
		c.retryCmd(),
		c.progressCmd(),
		c.showCmd(),
		c.listCmd(),
		c.historyCmd(),
	)
	return root
}

// load builds the app on first use and applies --catalog.
func (c *cli) load(ctx context.Context) (*bootstrap.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	app, err := c.build()
	if err != nil {
		return nil, err
	}
	c.app = app
	if c.catalogFile != "" {
		if err := seedCatalog(ctx, app.Catalog, c.catalogFile); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func seedCatalog(ctx context.Context, store catalog.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	var entities []catalog.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return fmt.Errorf("decoding catalog: %w", err)
	}
	for _, e := range entities {
		if err := store.Upsert(ctx, e); err != nil {
			return fmt.Errorf("upserting %s: %w", e.ID, err)
		}
	}
	return nil
}

// drain runs queued steps in-process. Only the memory queue needs this; other
// backends have their own workers.
func (c *cli) drain(ctx context.Context) error {
	app := c.app
	if app == nil || app.Config.QueueBackend != "memory" || app.Receiver == nil {
		return nil
	}
	for {
		body, ok, err := app.Receiver.Receive(ctx, drainWait)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := workerproc.HandleMessage(ctx, app.Pipeline, body); err != nil {
			return err
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
