// Command notifyctl operates the notification queue from a shell: apply
// migrations, enqueue work, inspect documents and process them inline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/app"
	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
	"github.com/nate-a11y/lrpbolt-sub001/internal/db"
)

var Version = "dev"

func main() {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:           "notifyctl",
		Short:         "Operate the ride notification queue",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline activity to stderr")

	env := &environment{verbose: &verbose}
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(smsCmd(env))
	rootCmd.AddCommand(enqueueCmd(env))
	rootCmd.AddCommand(statusCmd(env))
	rootCmd.AddCommand(processCmd(env))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// environment lazily opens the database and builds the pipeline.
type environment struct {
	verbose *bool
	pool    *pgxpool.Pool
	app     *app.App
}

func (e *environment) open(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if *e.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	e.app = app.Build(ctx, cfg, pool, prometheus.NewRegistry(), logger)
	return e.app, nil
}

func (e *environment) close() {
	if e.app != nil {
		_ = e.app.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
