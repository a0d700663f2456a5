package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"libristack/internal/app"
	"libristack/internal/config"
	"libristack/internal/core/services"
	"libristack/internal/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:          "libraryctl",
		Short:        "Maintenance commands for the library backend",
		SilenceUsage: true,
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "migration completed")
			return nil
		},
	}

	var scanCmd = &cobra.Command{
		Use:   "scan-overdue",
		Short: "Run one overdue scan and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			report, err := a.Scanner.ScanOnce(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	var importCmd = &cobra.Command{
		Use:   "import-books <file.json>",
		Short: "Import books from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := readBooks(args[0])
			if err != nil {
				return err
			}

			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			n, err := a.Catalog.Import(cmd.Context(), books)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d books\n", n)
			return nil
		},
	}

	rootCmd.AddCommand(migrateCmd, scanCmd, importCmd)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func open() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	zl, err := logger.New(cfg.AppMode, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, zl, false)
}

func readBooks(path string) ([]*services.CreateBookInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var books []*services.CreateBookInput
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return books, nil
}
