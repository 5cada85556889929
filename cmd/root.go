package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldops/app"
	"github.com/kilianp07/fieldops/config"
	"github.com/kilianp07/fieldops/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "fieldops",
	Short:         "Field service dispatch and settlement jobs",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json); defaults and FIELDOPS_ env when empty")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// withEngine loads the configuration, builds the engine and runs fn with a
// context canceled on SIGINT or SIGTERM. Metrics are served while fn runs.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *app.Engine) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("cli")
	e, err := app.New(cfg, app.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			log.Errorf("engine close: %v", err)
		}
	}()

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := e.ServeMetrics(srvCtx); err != nil {
			log.Errorf("prom server: %v", err)
		}
	}()
	return fn(ctx, e)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
