// Package main contains the cli implementation of the tool. It uses
// cobra for cli implementation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"supersave"
	"supersave/config"
)

type syncFlags struct {
	configFile string
	skipSync   bool
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "supersave",
		Short: "Entity store setup and migration tool",
	}

	rootCmd.AddCommand(syncCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func syncCmd() *cobra.Command {
	flags := &syncFlags{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Load a TOML config, register its entities, and run migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSync(flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "supersave.toml", "Path to the TOML config file")
	cmd.Flags().BoolVar(&flags.skipSync, "skip-sync", false, "Suppress the schema synchronizer")

	return cmd
}

func runSync(flags *syncFlags) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	file, err := config.Load(flags.configFile)
	if err != nil {
		return fmt.Errorf("loading config %q: %w", flags.configFile, err)
	}

	defs, err := file.Definitions()
	if err != nil {
		return err
	}

	opts := []supersave.Option{supersave.WithLogger(sugar)}
	if flags.skipSync {
		opts = append(opts, supersave.WithSkipSync())
	}

	store, err := supersave.New(file.Connection.DSN, opts...)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, def := range defs {
		if _, err := store.AddEntity(ctx, def); err != nil {
			return fmt.Errorf("registering entity %q: %w", def.FullName(), err)
		}
		sugar.Infow("entity registered", "name", def.FullName())
	}

	return nil
}
