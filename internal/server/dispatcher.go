// internal/server/dispatcher.go
package server

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/simonvetter/modbus"

	"github.com/tamzrod/modbus-regsync/internal/register"
)

// Dispatcher resolves a request's unit id to its store and executes the
// operation through the validated path. It is the modbus.RequestHandler of
// the server; only holding registers are served.
type Dispatcher struct {
	stores map[uint8]*register.Store
	units  []uint8
	log    zerolog.Logger
}

// NewDispatcher indexes stores by unit. Duplicate units are rejected.
func NewDispatcher(log zerolog.Logger, stores ...*register.Store) (*Dispatcher, error) {
	d := &Dispatcher{
		stores: make(map[uint8]*register.Store, len(stores)),
		log:    log,
	}
	for _, s := range stores {
		if _, dup := d.stores[s.Unit()]; dup {
			return nil, fmt.Errorf("server: duplicate unit %d", s.Unit())
		}
		d.stores[s.Unit()] = s
		d.units = append(d.units, s.Unit())
	}
	sort.Slice(d.units, func(i, j int) bool { return d.units[i] < d.units[j] })
	return d, nil
}

// Store returns the store of unit.
func (d *Dispatcher) Store(unit uint8) (*register.Store, bool) {
	s, ok := d.stores[unit]
	return s, ok
}

// Stores returns every store in unit order.
func (d *Dispatcher) Stores() []*register.Store {
	out := make([]*register.Store, 0, len(d.units))
	for _, u := range d.units {
		out = append(out, d.stores[u])
	}
	return out
}

// Announce publishes the current value of every register of every unit.
func (d *Dispatcher) Announce() {
	for _, s := range d.Stores() {
		s.Announce()
	}
}

// ---- modbus.RequestHandler ----

// HandleHoldingRegisters serves FC 3 reads and FC 6 / FC 16 writes.
func (d *Dispatcher) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	store, ok := d.stores[req.UnitId]
	if !ok {
		d.log.Debug().Uint8("unit", req.UnitId).Str("remote", req.ClientAddr).Msg("request for unknown unit")
		return nil, modbus.ErrGWTargetFailedToRespond
	}

	if req.IsWrite {
		if err := store.Write(int(req.Addr), req.Args); err != nil {
			return nil, d.reject(req, err)
		}
		d.log.Info().
			Uint8("unit", req.UnitId).
			Uint16("addr", req.Addr).
			Interface("values", req.Args).
			Msg("write applied")
		return append([]uint16(nil), req.Args...), nil
	}

	values, err := store.Read(int(req.Addr), int(req.Quantity))
	if err != nil {
		return nil, d.reject(req, err)
	}
	return values, nil
}

func (d *Dispatcher) HandleCoils(*modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (d *Dispatcher) HandleDiscreteInputs(*modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (d *Dispatcher) HandleInputRegisters(*modbus.InputRegistersRequest) ([]uint16, error) {
	return nil, modbus.ErrIllegalFunction
}

// ---- error mapping ----

// reject maps a store error onto the exception returned to the client.
// OutOfRange is an illegal address; a write into the read-only span is
// refused by the device.
func (d *Dispatcher) reject(req *modbus.HoldingRegistersRequest, err error) error {
	d.log.Debug().
		Err(err).
		Uint8("unit", req.UnitId).
		Uint16("addr", req.Addr).
		Uint16("count", req.Quantity).
		Bool("write", req.IsWrite).
		Msg("request rejected")

	if errors.Is(err, register.ErrOutOfRange) {
		return modbus.ErrIllegalDataAddress
	}
	return modbus.ErrServerDeviceFailure
}
