// internal/backing/valkey/valkey.go
package valkey

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config is the Valkey/Redis connection configuration.
type Config struct {
	Address   string
	Password  string
	Database  int
	UseTLS    bool
	KeyPrefix string
	Timeout   time.Duration
}

// Backing keeps the registers of each unit in one hash:
//
//	<prefix>:unit:<id>:holding  field=<address> value=<register>
type Backing struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// joinKey joins key segments with colons, trimming leading/trailing colons
// from each segment to avoid empty key parts.
func joinKey(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, ":")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

// Open connects and pings the server.
func Open(ctx context.Context, cfg Config) (*Backing, error) {
	if cfg.Address == "" {
		return nil, errors.New("valkey backing: address required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("valkey backing: connect %s: %w", cfg.Address, err)
	}

	return New(client, cfg.KeyPrefix, cfg.Timeout), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string, timeout time.Duration) *Backing {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Backing{client: client, prefix: prefix, timeout: timeout}
}

func (b *Backing) key(unit uint8) string {
	return joinKey(b.prefix, "unit", strconv.Itoa(int(unit)), "holding")
}

// Load returns the stored value of one register. ok is false when absent.
func (b *Backing) Load(unit uint8, addr uint16) (uint16, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	s, err := b.client.HGet(ctx, b.key(unit), strconv.Itoa(int(addr))).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("valkey backing: load unit=%d addr=%d: %w", unit, addr, err)
	}

	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false, fmt.Errorf("valkey backing: unit=%d addr=%d: bad value %q", unit, addr, s)
	}
	return uint16(v), true, nil
}

// Save stores one register value.
func (b *Backing) Save(unit uint8, addr, value uint16) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := b.client.HSet(ctx, b.key(unit), strconv.Itoa(int(addr)), value).Err(); err != nil {
		return fmt.Errorf("valkey backing: save unit=%d addr=%d: %w", unit, addr, err)
	}
	return nil
}

// Close closes the client.
func (b *Backing) Close() error {
	return b.client.Close()
}
