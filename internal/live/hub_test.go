package live_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/live"
	"fintrack/internal/testsupport"
)

func TestHubPublishDeliversEnvelope(t *testing.T) {
	hub := live.NewHub(testsupport.GetLogger())

	client := hub.Register()
	defer hub.Unregister(client)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Publish("new_visit", map[string]any{"page_url": "/pricing"})

	payload := <-client.Send()

	var envelope struct {
		Event     string         `json:"event"`
		Data      map[string]any `json:"data"`
		Timestamp string         `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(payload, &envelope))
	assert.Equal(t, "new_visit", envelope.Event)
	assert.Equal(t, "/pricing", envelope.Data["page_url"])
	assert.NotEmpty(t, envelope.Timestamp)
}

func TestHubFanOut(t *testing.T) {
	hub := live.NewHub(testsupport.GetLogger())

	a := hub.Register()
	b := hub.Register()
	defer hub.Unregister(a)
	defer hub.Unregister(b)

	hub.Publish("active_users_update", map[string]any{"active_users": 3})

	assert.NotEmpty(t, <-a.Send())
	assert.NotEmpty(t, <-b.Send())
}

func TestHubDropsWhenClientIsSlow(t *testing.T) {
	hub := live.NewHub(testsupport.GetLogger())

	client := hub.Register()
	defer hub.Unregister(client)

	// Nobody drains the client, so everything past its buffer is dropped.
	for i := 0; i < 40; i++ {
		hub.Publish("new_visit", map[string]any{"n": i})
	}

	assert.Equal(t, int64(8), hub.DroppedCount())

	// The buffered messages are still intact and in order.
	first := <-client.Send()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first, &envelope))
	assert.Equal(t, float64(0), envelope.Data["n"])
}

func TestHubUnregisterTwice(t *testing.T) {
	hub := live.NewHub(testsupport.GetLogger())

	client := hub.Register()
	hub.Unregister(client)
	hub.Unregister(client)

	assert.Equal(t, 0, hub.ClientCount())

	// Publishing to an empty hub is a no-op.
	hub.Publish("new_visit", map[string]any{"page_url": "/"})
	assert.Equal(t, int64(0), hub.DroppedCount())

	// The closed send channel reads as done.
	_, open := <-client.Send()
	assert.False(t, open)
}
