package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketSubscriber reads JSON text frames from a websocket endpoint.
// A dropped connection is not redialed.
type WebSocketSubscriber struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	started bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewWebSocketSubscriber returns a subscriber for url (ws:// or wss://).
func NewWebSocketSubscriber(url string, handshakeTimeout time.Duration, logger *zap.Logger) *WebSocketSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketSubscriber{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger.With(zap.String("push_url", url)),
		done:   make(chan struct{}),
	}
}

// Subscribe dials the endpoint and starts the read loop. ctx bounds the dial
// and, once connected, the lifetime of the connection.
func (s *WebSocketSubscriber) Subscribe(ctx context.Context, handler Handler) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("websocket subscriber already started")
	}
	s.started = true
	s.mu.Unlock()

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.finish()
		return fmt.Errorf("dial push %s: %w", s.url, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		s.finish()
		return ErrClosed
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("push connected")
	go s.readLoop(conn, handler)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return nil
}

func (s *WebSocketSubscriber) readLoop(conn *websocket.Conn, handler Handler) {
	defer s.finish()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("push connection closed", zap.Error(err))
			} else {
				s.logger.Warn("push connection lost", zap.Error(err))
			}
			return
		}
		deliver(s.logger, data, handler)
	}
}

// Close sends a close frame and closes the connection.
func (s *WebSocketSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	started := s.started
	s.mu.Unlock()

	if conn == nil {
		if !started {
			s.finish()
		}
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return conn.Close()
}

// Done is closed once delivery has stopped for good.
func (s *WebSocketSubscriber) Done() <-chan struct{} {
	return s.done
}

func (s *WebSocketSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *WebSocketSubscriber) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}
