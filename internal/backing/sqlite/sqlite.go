// internal/backing/sqlite/sqlite.go
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS holding_registers (
	unit    INTEGER NOT NULL,
	address INTEGER NOT NULL,
	value   INTEGER NOT NULL,
	PRIMARY KEY (unit, address)
)`

// Backing is the durable register table of the server, one row per
// (unit, zero-based address).
type Backing struct {
	*sql.DB
	loadStmt *sql.Stmt
	saveStmt *sql.Stmt
	path     string
}

// Open creates the database file if needed and prepares the statements.
func Open(path string) (*Backing, error) {
	if path == "" {
		return nil, errors.New("sqlite backing: path required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite backing: open %s: %w", path, err)
	}
	// one writer; serialized by the register stores anyway
	db.SetMaxOpenConns(1)

	b := &Backing{DB: db, path: path}
	if err := b.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backing) init() error {
	if _, err := b.Exec(schema); err != nil {
		return fmt.Errorf("sqlite backing: create table: %w", err)
	}

	var err error
	b.loadStmt, err = b.Prepare(`SELECT value FROM holding_registers WHERE unit = ? AND address = ?`)
	if err != nil {
		return fmt.Errorf("sqlite backing: prepare load: %w", err)
	}
	b.saveStmt, err = b.Prepare(`
		INSERT INTO holding_registers (unit, address, value) VALUES (?, ?, ?)
		ON CONFLICT (unit, address) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("sqlite backing: prepare save: %w", err)
	}
	return nil
}

// Load returns the persisted value of one register. ok is false when the
// register was never saved.
func (b *Backing) Load(unit uint8, addr uint16) (uint16, bool, error) {
	var v int64
	err := b.loadStmt.QueryRow(unit, addr).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlite backing: load unit=%d addr=%d: %w", unit, addr, err)
	}
	return uint16(v), true, nil
}

// Save upserts one register value.
func (b *Backing) Save(unit uint8, addr, value uint16) error {
	if _, err := b.saveStmt.Exec(unit, addr, value); err != nil {
		return fmt.Errorf("sqlite backing: save unit=%d addr=%d: %w", unit, addr, err)
	}
	return nil
}

// Close releases the statements and the database.
func (b *Backing) Close() error {
	if b.loadStmt != nil {
		_ = b.loadStmt.Close()
	}
	if b.saveStmt != nil {
		_ = b.saveStmt.Close()
	}
	return b.DB.Close()
}

// Path returns the database file path.
func (b *Backing) Path() string { return b.path }
