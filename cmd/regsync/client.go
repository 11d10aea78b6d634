// cmd/regsync/client.go
package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tamzrod/modbus-regsync/internal/config"
	"github.com/tamzrod/modbus-regsync/internal/link"
	"github.com/tamzrod/modbus-regsync/internal/logging"
	"github.com/tamzrod/modbus-regsync/internal/poller"
)

func newClientCmd(cfgPath *string) *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Poll and write the configured units over one link",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, *cfgPath, func(c *config.Config) {
				if cmd.Flags().Changed("endpoint") {
					c.Client.Endpoint = endpoint
				}
			})
			if err != nil {
				return err
			}
			return runClient(rt)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "server host:port (overrides config)")
	return cmd
}

func runClient(rt *app) error {
	cfg, log := rt.cfg, rt.log
	c := cfg.Client

	mgr, err := link.NewTCP(
		link.Config{
			Endpoint:       c.Endpoint,
			Timeout:        config.Ms(c.TimeoutMs),
			Tick:           config.Ms(c.TickMs),
			BackoffInitial: config.Ms(c.Backoff.InitialMs),
			BackoffMax:     config.Ms(c.Backoff.MaxMs),
		},
		link.WithEmitter(rt.bus),
		link.WithLogger(logging.Component(log, "link")),
	)
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}

	plog := logging.Component(log, "poller")
	var pollers []*poller.Poller
	for _, u := range cfg.UnitIDs() {
		p, err := poller.Build(poller.UnitSpec{
			Unit:       u,
			Layout:     cfg.Layout.Layout(),
			Read:       c.Read.Span(),
			Interval:   config.Ms(c.Poll.IntervalMs),
			PauseRetry: config.Ms(c.Poll.PauseRetryMs),
			QueueSize:  c.QueueSize,
		}, mgr, rt.bus, plog)
		if err != nil {
			return fmt.Errorf("poller build failed (unit=%d): %w", u, err)
		}
		pollers = append(pollers, p)
	}

	group, err := poller.NewGroup(pollers...)
	if err != nil {
		return err
	}

	pub := startMQTT(rt, group)
	if pub != nil {
		defer pub.Stop()
	}

	ctx, stop := signalContext()
	defer stop()

	log.Info().
		Str("endpoint", c.Endpoint).
		Ints("units", cfg.Units).
		Int("interval_ms", c.Poll.IntervalMs).
		Msg("client started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = mgr.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		group.Run(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("received signal, stopping...")
	wg.Wait()

	return mgr.Disconnect()
}
