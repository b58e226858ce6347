package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/scenewalk/scenewalk/pkg/streaming"
)

const (
	outboxSize   = 10_000
	ackBuffer    = 16
	maxRedials   = 10
	firstBackoff = time.Second
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

var errStreamClosed = errors.New("journal stream closed")

// stream owns one WebSocket at a time. A single supervisor goroutine serves the
// socket and redials it when it drops, replaying the session header first.
type stream struct {
	outbox chan []byte
	acks   chan streaming.AckMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	target string
	header []byte
	conn   *ws.Conn

	log *slog.Logger
}

func newStream(log *slog.Logger) *stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &stream{
		outbox: make(chan []byte, outboxSize),
		acks:   make(chan streaming.AckMessage, ackBuffer),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// streamURL adds the shared secret to rawURL.
func streamURL(rawURL, secret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// open dials once and hands the socket to the supervisor.
func (s *stream) open(rawURL, secret string) error {
	target, err := streamURL(rawURL, secret)
	if err != nil {
		return err
	}
	conn, _, err := ws.DefaultDialer.DialContext(s.ctx, target, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	s.mu.Lock()
	s.target = target
	s.mu.Unlock()

	s.wg.Add(1)
	go s.supervise(conn)
	return nil
}

func (s *stream) setHeader(data []byte) {
	s.mu.Lock()
	s.header = data
	s.mu.Unlock()
}

func (s *stream) supervise(conn *ws.Conn) {
	defer s.wg.Done()
	for conn != nil {
		err := s.serve(conn)
		if s.ctx.Err() != nil {
			return
		}
		s.log.Warn("Journal stream dropped", "error", err)
		conn = s.redial()
	}
}

// serve pumps the outbox into conn and acks out of it until either side fails or
// the stream is closed.
func (s *stream) serve(conn *ws.Conn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	readErr := make(chan error, 1)
	go func() { readErr <- s.readAcks(conn) }()

	for {
		select {
		case <-s.ctx.Done():
			_ = conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = conn.Close()
			<-readErr
			return nil
		case err := <-readErr:
			_ = conn.Close()
			return err
		case data := <-s.outbox:
			if err := write(conn, data); err != nil {
				_ = conn.Close()
				<-readErr
				return err
			}
		}
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func (s *stream) readAcks(conn *ws.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ack streaming.AckMessage
		if json.Unmarshal(msg, &ack) != nil || ack.Type != "ack" {
			s.log.Debug("Ignoring server message", "raw", string(msg))
			continue
		}
		select {
		case s.acks <- ack:
		default:
			s.log.Debug("Ack buffer full, dropping", "for", ack.For)
		}
	}
}

// redial retries with doubling backoff. It returns nil when the stream closes or
// every attempt fails.
func (s *stream) redial() *ws.Conn {
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()

	backoff := firstBackoff
	for attempt := 1; attempt <= maxRedials; attempt++ {
		s.log.Info("Redialing journal stream", "attempt", attempt, "backoff", backoff)
		select {
		case <-s.ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)

		conn, _, err := ws.DefaultDialer.DialContext(s.ctx, target, nil)
		if err != nil {
			s.log.Warn("Redial failed", "attempt", attempt, "error", err)
			continue
		}

		s.mu.Lock()
		header := s.header
		s.mu.Unlock()
		if header != nil {
			if err := write(conn, header); err != nil {
				s.log.Warn("Failed to replay session header", "error", err)
				_ = conn.Close()
				continue
			}
		}
		s.log.Info("Journal stream restored", "attempt", attempt)
		return conn
	}
	s.log.Error("Giving up on journal stream", "attempts", maxRedials)
	return nil
}

// send queues data without blocking; a full outbox drops it.
func (s *stream) send(data []byte) {
	select {
	case s.outbox <- data:
	default:
		s.log.Warn("Journal stream outbox full, dropping message")
	}
}

// sendAndWait queues data and blocks until the server acks msgType.
func (s *stream) sendAndWait(data []byte, msgType string, timeout time.Duration) error {
	s.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-s.acks:
			if ack.For == msgType {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", msgType)
		case <-s.ctx.Done():
			return fmt.Errorf("%w while waiting for ack of %q", errStreamClosed, msgType)
		}
	}
}

// close stops the supervisor and waits for it. Safe to call more than once.
func (s *stream) close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}
