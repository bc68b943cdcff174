package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"radiocap/internal/catalog"
	"radiocap/internal/config"
	"radiocap/internal/ipc"
	"radiocap/internal/store"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the station and show catalog",
	}
	catalogCmd.AddCommand(newCatalogImportCommand(ctx))
	catalogCmd.AddCommand(newCatalogExportCommand(ctx))
	catalogCmd.AddCommand(newCatalogCheckCommand(ctx))
	return catalogCmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import [path]",
		Short: "Load stations and shows from a catalog file",
		Long: "Load stations and shows from a catalog file. Shows missing from the file are " +
			"deactivated. When the daemon is running it imports the file itself and refreshes " +
			"the schedule; otherwise the database is updated directly.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.catalogPath(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			client, dialErr := ipc.Dial(ctx.socketPath())
			if dialErr == nil {
				defer client.Close()
				resp, err := client.ImportCatalog(path)
				if err != nil {
					return err
				}
				printImport(out, resp.Path, resp.Stations, resp.Shows, resp.ChangedStations, resp.ChangedShows, resp.Deactivated, resp.Warnings)
				return nil
			}
			if !isDaemonOffline(dialErr) {
				return wrapDialError(dialErr, ctx.socketPath())
			}

			return ctx.withStore(func(st *store.Store) error {
				res, err := catalog.ImportFile(cmd.Context(), st, path)
				if err != nil {
					return err
				}
				printImport(out, path, res.Stations, res.Shows, len(res.ChangedStations), len(res.ChangedShows), len(res.Deactivated), res.Warnings)
				fmt.Fprintln(out, "Daemon not running; the schedule refreshes when it starts")
				return nil
			})
		},
	}
}

func newCatalogExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Write the stations and shows in the database to a catalog file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.catalogPath(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := catalog.Export(cmd.Context(), st, path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote catalog to %s\n", path)
				return nil
			})
		},
	}
}

func newCatalogCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a catalog file without importing it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.catalogPath(args)
			if err != nil {
				return err
			}
			f, err := catalog.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog %s: %d station(s), %d show(s)\n", path, len(f.Stations), len(f.Shows))
			for _, warning := range f.Warnings() {
				fmt.Fprintf(out, "  warning: %s\n", warning)
			}
			return nil
		},
	}
}

func (c *commandContext) catalogPath(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return config.ExpandPath(strings.TrimSpace(args[0]))
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if cfg.Paths.CatalogPath == "" {
		return "", errors.New("no catalog path given and paths.catalog_path is not set")
	}
	return cfg.Paths.CatalogPath, nil
}

func printImport(out io.Writer, path string, stations, shows, changedStations, changedShows, deactivated int, warnings []string) {
	fmt.Fprintf(out, "Imported %s: %d station(s), %d show(s)\n", path, stations, shows)
	fmt.Fprintf(out, "  changed: %d station(s), %d show(s); deactivated: %d show(s)\n", changedStations, changedShows, deactivated)
	for _, warning := range warnings {
		fmt.Fprintf(out, "  warning: %s\n", warning)
	}
}
