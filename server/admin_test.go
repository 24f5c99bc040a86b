package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*Server, *API, *httptest.Server) {
	t.Helper()
	s := NewServer(Options{Latency: 10 * time.Millisecond, RenderInterval: 20 * time.Millisecond})
	s.Register(1)
	api := NewAPI(s)
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return s, api, ts
}

func TestAPIHealthz(t *testing.T) {
	_, _, ts := newTestAPI(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestAPIAdminConfigUpdate(t *testing.T) {
	s, _, ts := newTestAPI(t)

	resp, err := http.Post(ts.URL+"/admin/config", "application/json",
		strings.NewReader(`{"latencyMs":0,"renderIntervalMs":75}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, time.Duration(0), s.Latency())
	assert.Equal(t, 75*time.Millisecond, s.RenderInterval())

	resp, err = http.Get(ts.URL + "/admin/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	var cur map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cur))
	assert.Equal(t, 75.0, cur["renderIntervalMs"])
	assert.Equal(t, float64(DefaultGridHalfExtent), cur["gridHalfExtent"])

	resp, err = http.Post(ts.URL+"/admin/config", "application/json", strings.NewReader(`{"latencyMs":-1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/admin/config", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAPIMetrics(t *testing.T) {
	s, _, ts := newTestAPI(t)
	s.SetLatency(0)
	s.Submit(NewAction(1, ActionMove, mgl64.Vec3{9, 0, 0}))
	s.Cycle(context.Background())

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var payload struct {
		Cycle   uint64         `json:"cycle"`
		Pending int            `json:"pending"`
		Metrics map[string]any `json:"metrics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, uint64(1), payload.Cycle)
	assert.Equal(t, 0, payload.Pending)
	assert.Equal(t, 1.0, payload.Metrics["actions_rejected"])
}

func TestAPISnapshotFormats(t *testing.T) {
	s, _, ts := newTestAPI(t)
	s.Submit(NewAction(1, ActionMove, mgl64.Vec3{1, 1, 0}))
	want := s.Flush()

	for _, f := range []Format{FormatJSON, FormatMsgpack, FormatProto} {
		resp, err := http.Get(ts.URL + "/snapshot?format=" + string(f))
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, f.ContentType(), resp.Header.Get("Content-Type"))

		if f == FormatJSON {
			body = bytes.TrimSpace(body)
		}
		got, err := DecodeSnapshot(body, f)
		require.NoError(t, err, "format %s", f)
		assert.Equal(t, want, got, "format %s", f)
	}

	resp, err := http.Get(ts.URL + "/snapshot?format=yaml")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIWebsocketStreamsCycles(t *testing.T) {
	s, api, ts := newTestAPI(t)
	s.SetLatency(0)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?format=msgpack"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, b, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	initial, err := DecodeSnapshot(b, FormatMsgpack)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), initial.Cycle)

	require.Eventually(t, func() bool { return api.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	s.Submit(NewAction(1, ActionMove, mgl64.Vec3{2, 0, 0}))
	s.Cycle(context.Background())

	_, b, err = conn.ReadMessage()
	require.NoError(t, err)
	next, err := DecodeSnapshot(b, FormatMsgpack)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next.Cycle)
	require.Len(t, next.Predicted, 1)
	assert.Equal(t, 2.0, next.Predicted[0].X)

	conn.Close()
	require.Eventually(t, func() bool { return api.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAPIWebsocketPingsIdleObserver(t *testing.T) {
	_, api, ts := newTestAPI(t)
	api.pingInterval = 20 * time.Millisecond

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	pings := make(chan struct{}, 8)
	conn.SetPingHandler(func(data string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-pings:
		case <-time.After(2 * time.Second):
			t.Fatalf("no ping %d from server", i+1)
		}
	}
	assert.Equal(t, 1, api.hub.Len())
}
