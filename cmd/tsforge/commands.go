package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/display"
	"github.com/Yrrrrrf/ts-forge/internal/generator"
	"github.com/Yrrrrrf/ts-forge/internal/health"
	"github.com/Yrrrrrf/ts-forge/internal/output"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		outputDir string
		exclude   []string
		dump      bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate TypeScript declarations for every schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("output-dir") {
				a.cfg.OutputDir = outputDir
			}

			schemas, err := a.fetchSchemas(cmd.Context())
			if err != nil {
				return err
			}
			excludeTables(schemas, exclude)

			result, err := generator.New(a.logger).Generate(schemas)
			if err != nil {
				return err
			}

			writer := output.NewWriter(a.cfg.OutputDir, a.logger)
			written, err := writer.Write(result.Files)
			if err != nil {
				return err
			}
			if dump {
				path, err := writer.WriteDump(schemas, a.cfg.DumpFormat)
				if err != nil {
					return err
				}
				written = append(written, path)
			}

			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			if len(result.Warnings) > 0 {
				a.logger.Warn("Some columns have unmapped types", zap.Int("count", len(result.Warnings)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory (default: src/gen)")
	cmd.Flags().StringSliceVarP(&exclude, "exclude", "e", nil, "Tables to skip, as table or schema.table (comma-separated)")
	cmd.Flags().BoolVar(&dump, "dump", false, "Also write the metadata snapshot next to the generated files")
	return cmd
}

func newDumpCmd(a *app) *cobra.Command {
	var (
		format     string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the raw schema metadata as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("format") {
				a.cfg.DumpFormat = strings.ToLower(format)
			}

			schemas, err := a.fetchSchemas(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() {
					if err := f.Close(); err != nil {
						a.logger.Warn("Failed to close output file", zap.Error(err))
					}
				}()
				out = f
			}
			return output.EncodeDump(out, schemas, a.cfg.DumpFormat)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json or yaml (default: json)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show element counts per schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemas, err := a.fetchSchemas(cmd.Context())
			if err != nil {
				return err
			}
			return display.NewPrinter(cmd.OutOrStdout()).Stats(schemas)
		},
	}
}

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [schema...]",
		Short: "List the tables, views, enums and callables of each schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				a.cfg.Schemas = args
			}
			schemas, err := a.fetchSchemas(cmd.Context())
			if err != nil {
				return err
			}
			p := display.NewPrinter(cmd.OutOrStdout())
			for _, s := range schemas {
				if err := p.Describe(s); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	var clearCache bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the backend's health and metadata cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			h := health.NewClient(client, a.logger)
			out := cmd.OutOrStdout()

			status, err := h.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "status:  %s\nversion: %s\nuptime:  %.0fs\n", status.Status, status.Version, status.Uptime)

			pong, err := h.Ping(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ping:    %s\n", pong)

			cache, err := h.Cache(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "cache:   %d items (updated %s)\n", cache.TotalItems, cache.LastUpdated)

			if clearCache {
				res, err := h.ClearCache(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "cleared: %s\n", res.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Ask the backend to drop its metadata cache")
	return cmd
}

// excludeTables removes the listed tables in place. An entry is either a bare
// table name, matched in every schema, or schema.table.
func excludeTables(schemas []schema.SchemaMetadata, exclude []string) {
	if len(exclude) == 0 {
		return
	}

	for _, s := range schemas {
		for _, entry := range exclude {
			entry = strings.TrimSpace(entry)
			name := entry
			if schemaName, table, ok := strings.Cut(entry, "."); ok {
				if schemaName != s.Name {
					continue
				}
				name = table
			}
			delete(s.Tables, name)
		}
	}
}
