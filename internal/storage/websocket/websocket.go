// Package websocket streams the session journal to a collection server over a
// WebSocket. It implements storage.Backend but not storage.Uploadable.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/scenewalk/scenewalk/pkg/core"
	"github.com/scenewalk/scenewalk/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	Logger *slog.Logger
}

// Backend streams journal rows as envelopes. Rows are fire-and-forget; session start
// and end wait for the server's ack.
type Backend struct {
	stream  *stream
	cfg     Config
	session atomic.Pointer[core.Session]
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		stream: newStream(logger),
		cfg:    cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.stream.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.stream.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and hands it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.stream.send(data)
	return nil
}

// StartSession sends the session header and waits for server ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}
	b.session.Store(s)

	b.stream.setHeader(data)
	return b.stream.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	payload := streaming.EndSessionPayload{}
	if s := b.session.Load(); s != nil {
		payload.SessionID = s.ID
		payload.Duration = s.Duration().Seconds()
	}
	data, err := marshalEnvelope(streaming.TypeEndSession, payload)
	if err != nil {
		return err
	}
	err = b.stream.sendAndWait(data, streaming.TypeEndSession, ackTimeout)

	b.stream.setHeader(nil)
	b.session.Store(nil)

	return err
}

func (b *Backend) RecordTrackingEvent(e *core.TrackingEvent) error {
	return b.sendEnvelope(streaming.TypeTracking, e)
}

func (b *Backend) RecordSlotView(v *core.SlotView) error {
	return b.sendEnvelope(streaming.TypeSlotView, v)
}

func (b *Backend) RecordGateUnlock(g *core.GateUnlock) error {
	return b.sendEnvelope(streaming.TypeGateUnlock, g)
}

func (b *Backend) RecordPartEvent(e *core.PartEvent) error {
	return b.sendEnvelope(streaming.TypePartEvent, e)
}

func (b *Backend) RecordLoadEvent(e *core.LoadEvent) error {
	return b.sendEnvelope(streaming.TypeLoadEvent, e)
}
