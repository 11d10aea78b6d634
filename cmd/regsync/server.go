// cmd/regsync/server.go
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tamzrod/modbus-regsync/internal/backing/sqlite"
	"github.com/tamzrod/modbus-regsync/internal/backing/valkey"
	"github.com/tamzrod/modbus-regsync/internal/config"
	"github.com/tamzrod/modbus-regsync/internal/event"
	"github.com/tamzrod/modbus-regsync/internal/logging"
	"github.com/tamzrod/modbus-regsync/internal/register"
	"github.com/tamzrod/modbus-regsync/internal/server"
)

func newServerCmd(cfgPath *string) *cobra.Command {
	var (
		listen   string
		simulate bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the configured units from the register store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, *cfgPath, func(c *config.Config) {
				if cmd.Flags().Changed("listen") {
					c.Server.Listen = listen
				}
				if cmd.Flags().Changed("simulate") {
					c.Server.Simulate.Enabled = simulate
				}
			})
			if err != nil {
				return err
			}
			return runServer(rt)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "drive the read-only registers")
	return cmd
}

func runServer(rt *app) error {
	cfg, log := rt.cfg, rt.log

	ctx, stop := signalContext()
	defer stop()

	backing, closeBacking, err := openBacking(ctx, cfg.Backing)
	if err != nil {
		return err
	}
	defer closeBacking()

	storeLog := logging.Component(log, "store")
	var stores []*register.Store
	for _, u := range cfg.UnitIDs() {
		opts := []register.Option{
			register.WithChangeFunc(event.StoreNotifier(rt.bus)),
			register.WithLogger(storeLog.With().Uint8("unit", u).Logger()),
		}
		if backing != nil {
			opts = append(opts, register.WithBacking(backing))
		}
		s, err := register.NewStore(u, cfg.Layout.Layout(), opts...)
		if err != nil {
			return fmt.Errorf("store build failed (unit=%d): %w", u, err)
		}
		stores = append(stores, s)
	}

	d, err := server.NewDispatcher(logging.Component(log, "dispatcher"), stores...)
	if err != nil {
		return err
	}

	pub := startMQTT(rt, nil)
	if pub != nil {
		defer pub.Stop()
	}

	// initial values for subscribers
	d.Announce()

	if sim := cfg.Server.Simulate; sim.Enabled {
		go server.NewSimulator(d.Stores(), config.Ms(sim.IntervalMs), logging.Component(log, "simulator")).Run(ctx)
	}

	srv := server.New(d,
		server.WithLogger(logging.Component(log, "server")),
		server.WithIdleTimeout(config.Ms(cfg.Server.IdleTimeoutMs)),
		server.WithMaxClients(uint(cfg.Server.MaxClients)),
		server.WithStrictFraming(cfg.Server.StrictFraming),
	)

	log.Info().
		Str("listen", cfg.Server.Listen).
		Ints("units", cfg.Units).
		Str("backing", cfg.Backing.Type).
		Bool("strict_framing", cfg.Server.StrictFraming).
		Msg("server starting")

	if err := srv.ListenAndServe(ctx, cfg.Server.Listen); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// openBacking returns nil for the in-memory store.
func openBacking(ctx context.Context, b config.BackingConfig) (register.Backing, func(), error) {
	switch b.Type {
	case config.BackingSQLite:
		db, err := sqlite.Open(b.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("backing: %w", err)
		}
		return db, func() { _ = db.Close() }, nil

	case config.BackingValkey:
		v := b.Valkey
		kv, err := valkey.Open(ctx, valkey.Config{
			Address:   v.Address,
			Password:  v.Password,
			Database:  v.Database,
			UseTLS:    v.TLS,
			KeyPrefix: v.KeyPrefix,
			Timeout:   config.Ms(v.TimeoutMs),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("backing: %w", err)
		}
		return kv, func() { _ = kv.Close() }, nil

	default:
		return nil, func() {}, nil
	}
}
