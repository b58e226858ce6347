package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/storage"
	"github.com/scenewalk/scenewalk/pkg/core"
	"github.com/scenewalk/scenewalk/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for start_session/end_session.
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

			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
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

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndEndSession(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"})
	require.NoError(t, b.Init())
	defer b.Close()

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := &core.Session{ID: "s1", Tour: "campus", StartedAt: start, EndedAt: start.Add(time.Minute)}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.EndSession())

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[len(msgs)-1].Type)
	assert.Equal(t, "test", ml.secret)

	var end streaming.EndSessionPayload
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &end))
	assert.Equal(t, "s1", end.SessionID)
	assert.Equal(t, 60.0, end.Duration)
}

func TestFireAndForgetRows(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{ID: "s"}))
	require.NoError(t, b.RecordTrackingEvent(&core.TrackingEvent{Target: 0, Action: core.TrackingActivated}))
	require.NoError(t, b.RecordSlotView(&core.SlotView{Slot: 1}))
	require.NoError(t, b.RecordGateUnlock(&core.GateUnlock{Viewed: []int{0, 1, 2}}))
	require.NoError(t, b.RecordPartEvent(&core.PartEvent{Part: 1, Action: core.PartRevealed}))
	require.NoError(t, b.RecordLoadEvent(&core.LoadEvent{Ref: "a0p1"}))
	require.NoError(t, b.EndSession())

	// The end_session ack arrives after every earlier row was read by the server.
	types := make(map[string]int)
	for _, m := range ml.all() {
		types[m.Type]++
	}

	assert.Equal(t, 1, types[streaming.TypeStartSession])
	assert.Equal(t, 1, types[streaming.TypeEndSession])
	assert.Equal(t, 1, types[streaming.TypeTracking])
	assert.Equal(t, 1, types[streaming.TypeSlotView])
	assert.Equal(t, 1, types[streaming.TypeGateUnlock])
	assert.Equal(t, 1, types[streaming.TypePartEvent])
	assert.Equal(t, 1, types[streaming.TypeLoadEvent])
}

func TestReconnectReplaysSessionHeader(t *testing.T) {
	var conns atomic.Int32
	second := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := conns.Add(1)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			if n == 1 && env.Type == streaming.TypeTracking {
				return // drop the first connection mid-session
			}
			if n > 1 {
				second.add(env)
			}
			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{ID: "s"}))
	require.NoError(t, b.RecordTrackingEvent(&core.TrackingEvent{Target: 0, Action: core.TrackingActivated}))
	require.Eventually(t, func() bool { return conns.Load() == 2 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, b.RecordTrackingEvent(&core.TrackingEvent{Target: 0, Action: core.TrackingLost}))
	require.NoError(t, b.EndSession())

	msgs := second.all()
	require.Len(t, msgs, 3)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeTracking, msgs[1].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[2].Type)
}

func TestInit_DialFailure(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/stream"})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestEnvelopeSerialization(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypeSlotView, &core.SlotView{Target: 1, Slot: 2, Label: "Building 3/3"})
	require.NoError(t, err)

	var decoded streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, streaming.TypeSlotView, decoded.Type)

	var v core.SlotView
	require.NoError(t, json.Unmarshal(decoded.Payload, &v))
	assert.Equal(t, 2, v.Slot)
	assert.Equal(t, "Building 3/3", v.Label)
}
