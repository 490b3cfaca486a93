package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/internal/storage"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/OCAP2/flightcore/pkg/streaming"
)

// testServer upgrades to WebSocket, records received envelopes and acks
// start_mission and end_mission.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartMission || env.Type == streaming.TypeEndMission {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	secret   string
	messages []streaming.Envelope
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) byType(msgType string) []streaming.Envelope {
	var out []streaming.Envelope
	for _, env := range m.all() {
		if env.Type == msgType {
			out = append(out, env)
		}
	}
	return out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newBackend(t *testing.T, srv *httptest.Server) *Backend {
	t.Helper()
	ref, err := geo.NewReference(13.4, 52.5, 30)
	require.NoError(t, err)
	b := New(Config{URL: wsURL(srv), Secret: "s3cret"}, ref, nil)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestStartAndEndMission(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()
	b := newBackend(t, srv)

	require.NoError(t, b.StartMission(&core.Mission{ID: 4, Name: "stream", FixedRate: 50}))
	require.NoError(t, b.EndMission())

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartMission, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndMission, msgs[len(msgs)-1].Type)
	assert.Equal(t, "s3cret", ml.secret)

	var start streaming.StartMissionPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, "stream", start.Name)
	assert.Equal(t, [3]float64{13.4, 52.5, 30}, start.Origin)

	assert.ErrorIs(t, b.EndMission(), storage.ErrNoMission)
}

func TestRecordBeforeStart(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()
	b := newBackend(t, srv)

	assert.ErrorIs(t, b.AddVehicle(&core.Vehicle{ID: 1}), storage.ErrNoMission)
	assert.ErrorIs(t, b.RecordVehicleState(&core.VehicleState{}), storage.ErrNoMission)
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()
	b := newBackend(t, srv)

	require.NoError(t, b.StartMission(&core.Mission{Name: "M"}))
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Callsign: "drone-01"}))
	require.NoError(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 1, Tick: 1, Position: core.Position3D{Y: 1.5}}))
	require.NoError(t, b.RecordStateChange(&core.StateChange{VehicleID: 1, Tick: 1, To: core.StateStartingEngine}))
	require.NoError(t, b.RecordArrival(&core.ArrivalEvent{VehicleID: 1, Tick: 2, Kind: core.ArrivalCollected}))
	require.NoError(t, b.RecordMatchResult(&core.MatchResult{Winner: "drone-01"}))
	require.NoError(t, b.EndMission())

	// end_mission is acked after everything queued before it
	for _, typ := range []string{
		streaming.TypeAddVehicle, streaming.TypeVehicleState, streaming.TypeStateChange,
		streaming.TypeArrival, streaming.TypeMatchResult,
	} {
		assert.Len(t, ml.byType(typ), 1, typ)
	}

	var state streaming.VehicleStatePayload
	require.NoError(t, json.Unmarshal(ml.byType(streaming.TypeVehicleState)[0].Payload, &state))
	assert.InDelta(t, 13.4, state.Lon, 1e-6)
	assert.InDelta(t, 52.5, state.Lat, 1e-6)
	assert.InDelta(t, 31.5, state.Alt, 1e-9)
}

func TestStartMission_AckTimeoutWithoutServerAck(t *testing.T) {
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil, nil)
	require.NoError(t, b.Init())

	done := make(chan error, 1)
	go func() { done <- b.StartMission(&core.Mission{Name: "silent"}) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("StartMission did not return after Close")
	}
}

func TestInit_BadURL(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/none"}, nil, nil)
	assert.Error(t, b.Init())
}

func TestReconnect_ReplaysRoster(t *testing.T) {
	var (
		mu    sync.Mutex
		conns int
	)
	second := &messageLog{}
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if json.Unmarshal(msg, &env) != nil {
				continue
			}
			if n > 1 {
				second.add(env)
			}
			if env.Type == streaming.TypeStartMission {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				_ = c.WriteMessage(ws.TextMessage, data)
			}
			// drop the first socket once the roster is complete
			if n == 1 && env.Type == streaming.TypeAddVehicle {
				return
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Backoff: 10 * time.Millisecond}, nil, nil)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.StartMission(&core.Mission{Name: "flaky"}))
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Callsign: "drone-01"}))

	require.Eventually(t, func() bool { return b.Reconnects() == 1 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 1, Tick: 9}))
	require.Eventually(t, func() bool {
		return len(second.byType(streaming.TypeVehicleState)) == 1
	}, 3*time.Second, 10*time.Millisecond)

	msgs := second.all()
	require.Len(t, msgs, 3)
	assert.Equal(t, streaming.TypeStartMission, msgs[0].Type)
	assert.Equal(t, streaming.TypeAddVehicle, msgs[1].Type)
	assert.Equal(t, streaming.TypeVehicleState, msgs[2].Type)
}
