// internal/event/bus_test.go
package event

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/modbus-regsync/internal/register"
)

func TestSubscribeAndEmit(t *testing.T) {
	bus := NewBus()
	var received []Event

	bus.Subscribe(func(e Event) {
		received = append(received, e)
	})

	bus.Emit(Event{Type: EventRegisterChanged, Payload: RegisterPayload{Unit: 1, Address: 6, Value: 42}})
	bus.Emit(Event{Type: EventOperationLog, Payload: LogPayload{Unit: 1, Message: "hi"}})

	require.Len(t, received, 2)
	assert.Equal(t, EventRegisterChanged, received[0].Type)
	assert.False(t, received[0].Timestamp.IsZero())
	assert.Equal(t, EventOperationLog, received[1].Type)
}

func TestSubscribeTypes(t *testing.T) {
	bus := NewBus()
	var received []Event

	bus.SubscribeTypes(func(e Event) {
		received = append(received, e)
	}, EventReadCompleted, EventWriteConfirmed)

	bus.Emit(Event{Type: EventReadCompleted, Payload: BlockPayload{Unit: 1}})
	bus.Emit(Event{Type: EventRegisterChanged}) // filtered
	bus.Emit(Event{Type: EventWriteConfirmed, Payload: BlockPayload{Unit: 2}})

	require.Len(t, received, 2)
	assert.Equal(t, uint8(1), received[0].Payload.(BlockPayload).Unit)
	assert.Equal(t, uint8(2), received[1].Payload.(BlockPayload).Unit)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	count := 0

	id := bus.Subscribe(func(e Event) { count++ })

	bus.Emit(Event{Type: EventOperationLog})
	require.Equal(t, 1, count)

	bus.Unsubscribe(id)
	bus.Emit(Event{Type: EventOperationLog})
	assert.Equal(t, 1, count)

	// unknown id is a no-op
	bus.Unsubscribe(999)
}

func TestSubscriberOrderPreserved(t *testing.T) {
	bus := NewBus()
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe(func(Event) { order = append(order, i) })
	}
	bus.Emit(Event{Type: EventOperationLog})

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestConcurrentEmit(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0

	bus.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Emit(Event{Type: EventRegisterChanged})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, count)
}

func TestStoreNotifier(t *testing.T) {
	bus := NewBus()
	var got []RegisterPayload
	bus.SubscribeTypes(func(e Event) {
		got = append(got, e.Payload.(RegisterPayload))
	}, EventRegisterChanged)

	s, err := register.NewStore(2, register.DefaultLayout(), register.WithChangeFunc(StoreNotifier(bus)))
	require.NoError(t, err)
	require.NoError(t, s.Write(6, []uint16{42}))

	assert.Equal(t, []RegisterPayload{{Unit: 2, Address: 6, Value: 42}}, got)
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus()
	bus.Subscribe(LogHandler(zerolog.New(&buf)))

	Logf(bus, 3, SeverityWarn, "reads paused (%s)", "link down")

	line := buf.String()
	assert.True(t, strings.Contains(line, `"level":"warn"`), line)
	assert.True(t, strings.Contains(line, `"unit":3`), line)
	assert.True(t, strings.Contains(line, "reads paused (link down)"), line)
}
