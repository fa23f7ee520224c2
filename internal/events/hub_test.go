package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/motion"
)

type recordingSink struct {
	mu        sync.Mutex
	samples   []motion.Acceleration
	available map[string]bool
}

func (s *recordingSink) Push(userID string, a motion.Acceleration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, a)
}

func (s *recordingSink) SetAvailable(userID string, available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available[userID] = available
}

func (s *recordingSink) snapshot() ([]motion.Acceleration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]motion.Acceleration(nil), s.samples...), s.available["u1"]
}

func dial(t *testing.T, h *Hub) *websocket.Conn {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeUser(w, r, "u1")
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	require.Eventually(t, func() bool { return h.IsForeground("u1") }, time.Second, 5*time.Millisecond)
	return ws
}

func TestHubIngestsSamplesAndAvailability(t *testing.T) {
	h := NewHub(nil, internal.NopLogger())
	sink := &recordingSink{available: map[string]bool{}}
	h.SetSampleSink(sink)
	ws := dial(t, h)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "motion.available", "available": true}))
	require.NoError(t, ws.WriteJSON(map[string]any{"type": "motion.sample", "x": 0.1, "y": 0.2, "z": 0.7}))

	assert.Eventually(t, func() bool {
		samples, available := sink.snapshot()
		return available && len(samples) == 1
	}, time.Second, 5*time.Millisecond)
	samples, _ := sink.snapshot()
	assert.InDelta(t, 0.7, samples[0].Z, 1e-9)

	ws.Close()
	assert.Eventually(t, func() bool {
		_, available := sink.snapshot()
		return !available && !h.IsForeground("u1")
	}, time.Second, 5*time.Millisecond)
}

func TestHubPublishesToDevice(t *testing.T) {
	h := NewHub(nil, internal.NopLogger())
	ws := dial(t, h)

	require.NoError(t, h.Publish(context.Background(), New("u1", CountdownTick, map[string]any{"remaining": 3})))
	require.NoError(t, h.RequestSamples("u1", time.Second))

	var ev Event
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, CountdownTick, ev.Type)
	assert.EqualValues(t, 3, ev.Data["remaining"])

	_, data, err = ws.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, MotionSubscribe, ev.Type)
	assert.EqualValues(t, 1000, ev.Data["interval_ms"])
}

func TestRequestSamplesWithoutDevice(t *testing.T) {
	h := NewHub(nil, internal.NopLogger())
	assert.ErrorIs(t, h.RequestSamples("u1", time.Second), ErrNotConnected)
	assert.False(t, h.IsForeground("u1"))
}

func TestDisconnectEndsSampleSubscription(t *testing.T) {
	h := NewHub(nil, internal.NopLogger())
	feed := motion.NewFeed(h, internal.NopLogger())
	h.SetSampleSink(feed)
	ws := dial(t, h)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "motion.available", "available": true}))
	require.Eventually(t, func() bool { return feed.Available("u1") }, time.Second, 5*time.Millisecond)

	lost := make(chan error, 1)
	_, err := feed.ForUser("u1").Subscribe(time.Second, func(motion.Acceleration) {}, func(err error) { lost <- err })
	require.NoError(t, err)

	ws.Close()
	select {
	case err := <-lost:
		assert.ErrorIs(t, err, internal.ErrSensorUnavailable)
	case <-time.After(time.Second):
		t.Fatal("subscription was not reported lost after disconnect")
	}
	assert.False(t, feed.Available("u1"))
}
