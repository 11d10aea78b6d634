// internal/register/backing.go
package register

// Backing persists register values keyed by (unit, address).
// Addresses are zero-based, identical to store indices.
type Backing interface {
	// Load returns the persisted value. ok=false means nothing was stored.
	Load(unit uint8, addr uint16) (value uint16, ok bool, err error)
	Save(unit uint8, addr uint16, value uint16) error
}

// nopBacking keeps the store purely in memory.
type nopBacking struct{}

func (nopBacking) Load(uint8, uint16) (uint16, bool, error) { return 0, false, nil }
func (nopBacking) Save(uint8, uint16, uint16) error         { return nil }
