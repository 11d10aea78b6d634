// internal/backing/valkey/valkey_test.go
package valkey

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinKey(t *testing.T) {
	tests := []struct {
		segments []string
		want     string
	}{
		{[]string{"regsync", "unit", "1", "holding"}, "regsync:unit:1:holding"},
		{[]string{"", "unit", "1", "holding"}, "unit:1:holding"},
		{[]string{"plant:", ":unit", "2", "holding"}, "plant:unit:2:holding"},
		{[]string{"a::b", "c"}, "a::b:c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, joinKey(tt.segments...))
	}
}

func TestKeyPerUnit(t *testing.T) {
	b := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "regsync", 0)
	defer b.Close()

	assert.Equal(t, "regsync:unit:3:holding", b.key(3))
	assert.Equal(t, 2*time.Second, b.timeout)
}

func TestOpen_RequiresAddress(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

// Runs against a live server when REGSYNC_TEST_VALKEY is set (host:port).
func TestLoadSave_Live(t *testing.T) {
	addr := os.Getenv("REGSYNC_TEST_VALKEY")
	if addr == "" {
		t.Skip("REGSYNC_TEST_VALKEY not set")
	}

	prefix := "regsync-test-" + time.Now().Format("150405.000000")
	b, err := Open(context.Background(), Config{Address: addr, KeyPrefix: prefix})
	require.NoError(t, err)
	defer func() {
		b.client.Del(context.Background(), b.key(1))
		b.Close()
	}()

	_, ok, err := b.Load(1, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Save(1, 6, 42))

	v, ok, err := b.Load(1, 6)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint16(42), v)
}
