package events

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(hclog.NewNullLogger())

	ch, cancel := bus.Subscribe(4)
	defer cancel()

	bus.Publish(EventPlaybackState, map[string]interface{}{"state": "playing"})

	select {
	case event := <-ch:
		assert.Equal(t, EventPlaybackState, event.Type)
		assert.Equal(t, "playing", event.Data["state"])
		assert.WithinDuration(t, time.Now(), event.Timestamp, time.Second)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus(hclog.NewNullLogger())

	ch, cancel := bus.Subscribe(1)
	defer cancel()

	// The buffer holds one event; the second must be dropped, not block.
	bus.Publish(EventExportProgress, nil)
	bus.Publish(EventExportProgress, nil)

	require.Len(t, ch, 1)
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus(hclog.NewNullLogger())

	ch, cancel := bus.Subscribe(1)
	cancel()
	// Double cancel is safe.
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel reaches nobody and does not panic.
	bus.Publish(EventExportDone, nil)
}
