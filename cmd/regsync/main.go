// cmd/regsync/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tamzrod/modbus-regsync/internal/config"
	"github.com/tamzrod/modbus-regsync/internal/event"
	"github.com/tamzrod/modbus-regsync/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "regsync",
		Short: "Keep Modbus holding registers in sync over one persistent TCP link",
		Long: `regsync polls and writes holding registers of remote units over one
persistent Modbus TCP connection (client), or serves them from a register
store (server). read and write perform a single exchange and print the
raw frames. Configuration comes from a YAML file, then REGSYNC_*
environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML config file (defaults when empty)")

	root.AddCommand(
		newClientCmd(&cfgPath),
		newServerCmd(&cfgPath),
		newReadCmd(&cfgPath),
		newWriteCmd(&cfgPath),
	)
	return root
}

// app is what every subcommand starts from.
type app struct {
	cfg *config.Config
	log zerolog.Logger
	bus *event.Bus
}

// setup loads config (file, env, flags), validates it and builds the logger
// and the event bus. override applies explicitly set flags last.
func setup(cmd *cobra.Command, cfgPath string, override func(*config.Config)) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if err := config.ApplyEnv(cfg, changed); err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, nil)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus()
	bus.Subscribe(event.LogHandler(logging.Component(log, "events")))

	return &app{cfg: cfg, log: log, bus: bus}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
