// internal/server/simulator.go
package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-regsync/internal/register"
)

// Simulator advances the read-only registers of every served unit so remote
// pollers observe changing data. Values go through the privileged path and
// therefore raise change notifications.
type Simulator struct {
	stores   []*register.Store
	interval time.Duration
	log      zerolog.Logger
}

func NewSimulator(stores []*register.Store, interval time.Duration, log zerolog.Logger) *Simulator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Simulator{stores: stores, interval: interval, log: log}
}

// Run ticks until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Step()
		}
	}
}

// Step increments every read-only register by one, wrapping at 0xFFFF.
func (s *Simulator) Step() {
	for _, st := range s.stores {
		ro := st.Layout().ReadOnly
		if ro.Len() == 0 {
			continue
		}

		cur, err := st.Read(int(ro.Start), ro.Len())
		if err != nil {
			s.log.Warn().Err(err).Uint8("unit", st.Unit()).Msg("simulation read failed")
			continue
		}
		for i := range cur {
			cur[i]++
		}
		if err := st.Set(int(ro.Start), cur); err != nil {
			s.log.Warn().Err(err).Uint8("unit", st.Unit()).Msg("simulation update failed")
		}
	}
}
