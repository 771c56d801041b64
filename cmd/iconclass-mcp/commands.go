package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sha1n/iconclass-mcp/internal/app"
	"github.com/sha1n/iconclass-mcp/internal/catalog"
	"github.com/sha1n/iconclass-mcp/internal/notation"
	"github.com/spf13/cobra"
)

func newResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve NOTATION...",
		Short: "Resolve notations and print them as JSON",
		Long:  "Resolve notations and print a JSON array with one record per notation, null for unknown ones",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, svc *catalog.Service) error {
				engine, err := svc.Engine()
				if err != nil {
					return err
				}
				records, err := engine.ResolveAll(ctx, args)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), records)
			})
		},
	}
	app.RegisterStoreFlags(cmd.Flags())
	return cmd
}

func newFormatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "format NOTATION...",
		Short: "Print notations in their spaced, human readable form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, n := range args {
				if _, err := fmt.Fprintln(out, notation.FormatSpaced(n)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newWalkCommand() *cobra.Command {
	var (
		lang  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "walk NOTATION",
		Short: "Print a notation and everything below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("limit cannot be negative: %d", limit)
			}
			return withCatalog(cmd, func(ctx context.Context, svc *catalog.Service) error {
				walker, err := svc.Walker()
				if err != nil {
					return err
				}
				walkLimit := svc.Settings().Resolver.WalkLimit
				if limit > 0 {
					walkLimit = min(limit, walkLimit)
				}
				records, truncated, err := walker.Collect(ctx, args[0], walkLimit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					return fmt.Errorf("notation not found: %s", args[0])
				}
				catalog.WriteHierarchy(cmd.OutOrStdout(), records, lang, truncated)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", catalog.DefaultLanguage, "Label language")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of records, capped by walk-limit")
	cmd.Flags().Int("walk-limit", 0, "Maximum number of records returned by a hierarchy walk")
	app.RegisterStoreFlags(cmd.Flags())
	return cmd
}

func newLoadCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Import the data source into the configured store",
		Long: "Import the data source into the configured store unless it already holds the same snapshot. " +
			"With the memory driver the data source is only read and validated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := app.LoadValidSettings(app.DefaultRunParams(), cmd.Flags())
			if err != nil {
				return err
			}
			app.SetupLogging()

			svc, err := catalog.NewService(settings)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			report, err := svc.Load(cmd.Context(), force)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Reload even when the store is up to date")
	app.RegisterStoreFlags(cmd.Flags())
	return cmd
}

// withCatalog runs fn against an initialized catalog configured from the
// command's flags and the environment.
func withCatalog(cmd *cobra.Command, fn func(context.Context, *catalog.Service) error) error {
	settings, err := app.LoadValidSettings(app.DefaultRunParams(), cmd.Flags())
	if err != nil {
		return err
	}
	app.SetupLogging()

	svc, err := catalog.NewService(settings)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx := cmd.Context()
	if err := svc.Initialize(ctx); err != nil {
		return err
	}
	return fn(ctx, svc)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
