package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"competitor-knowledge/internal/analyses"
	"competitor-knowledge/internal/catalog"
)

func (c *cli) productCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage catalog products",
	}

	upsert := &cobra.Command{
		Use:   "upsert <id>",
		Short: "Create or update a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			sku, _ := cmd.Flags().GetString("sku")
			price, _ := cmd.Flags().GetFloat64("price")
			description, _ := cmd.Flags().GetString("description")
			categories, _ := cmd.Flags().GetString("categories")
			stock, _ := cmd.Flags().GetString("stock")
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}
			entity := catalog.Entity{
				ID:          args[0],
				Name:        name,
				SKU:         sku,
				Price:       price,
				Description: description,
				Categories:  splitList(categories),
				StockStatus: stock,
			}
			if err := app.Catalog.Upsert(cmd.Context(), entity); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entity)
		},
	}
	upsert.Flags().String("name", "", "product name")
	upsert.Flags().String("sku", "", "product SKU")
	upsert.Flags().Float64("price", 0, "own price")
	upsert.Flags().String("description", "", "product description (HTML allowed)")
	upsert.Flags().String("categories", "", "comma-separated category names")
	upsert.Flags().String("stock", "instock", "stock status")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a product as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			entity, err := app.Catalog.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entity)
		},
	}

	cmd.AddCommand(upsert, show)
	return cmd
}

func (c *cli) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <product-id>",
		Short: "Start a competitor analysis for a product",
		Long: `Start a competitor analysis for a product.

Examples:
  ckctl run 42
  ckctl run 42 --sync
  ckctl run 42 --catalog ./products.json --trigger price_change`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			sync, _ := cmd.Flags().GetBool("sync")
			trigger, _ := cmd.Flags().GetString("trigger")

			if sync {
				analysis, err := app.AnalysesService.RunSync(cmd.Context(), args[0], trigger)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), analysis)
			}

			analysis, created, err := app.AnalysesService.CreateAndRun(cmd.Context(), args[0], trigger)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.ErrOrStderr(), "analysis %s already in progress\n", analysis.ID)
			}
			if err := c.drain(cmd.Context()); err != nil {
				return err
			}
			if latest, err := app.AnalysesService.Get(cmd.Context(), analysis.ID); err == nil {
				analysis = latest
			}
			return printJSON(cmd.OutOrStdout(), analysis)
		},
	}
	cmd.Flags().Bool("sync", false, "run every step in this process and wait for the result")
	cmd.Flags().String("trigger", analyses.TriggerCLI, "trigger source recorded on the analysis")
	return cmd
}

func (c *cli) retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <analysis-id>",
		Short: "Retry a failed analysis from the search step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			analysis, err := app.AnalysesService.Retry(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, analyses.ErrNotFailed) {
					return fmt.Errorf("analysis %s is not in failed state", args[0])
				}
				return err
			}
			if err := c.drain(cmd.Context()); err != nil {
				return err
			}
			if latest, err := app.AnalysesService.Get(cmd.Context(), analysis.ID); err == nil {
				analysis = latest
			}
			return printJSON(cmd.OutOrStdout(), analysis)
		},
	}
}

func (c *cli) progressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <analysis-id>",
		Short: "Print the progress of an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			progress, err := app.AnalysesService.GetProgress(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), progress)
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <analysis-id>",
		Short: "Print an analysis record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			analysis, err := app.AnalysesService.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), analysis)
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <product-id>",
		Short: "List analyses for a product, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			items, err := app.AnalysesService.ListByEntity(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if items == nil {
				items = []analyses.Analysis{}
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of analyses")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <product-id>",
		Short: "Print recorded competitor prices for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			records, err := app.AnalysesService.PriceHistory(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if records == nil {
				return printJSON(cmd.OutOrStdout(), []any{})
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().Int("limit", 100, "maximum number of records")
	return cmd
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
