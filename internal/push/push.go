// Package push delivers server-sent notifications over a persistent connection.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// TypeNewRecord is sent by the backend after a record is created.
const TypeNewRecord = observability.PushTypeNewRecord

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("subscriber closed")

// Message is one JSON notification. Only Type is interpreted.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IsNewRecord reports whether m announces a new weather record.
func IsNewRecord(m Message) bool {
	return m.Type == TypeNewRecord
}

// Handler receives every well-formed message, on the subscriber's delivery goroutine.
type Handler func(Message)

// Subscriber owns one persistent connection. Subscribe connects and starts
// delivery in the background; Close tears the connection down and is safe to
// call more than once. Done is closed once delivery has stopped, whether by
// Close, a failed connect or the server going away.
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
	Done() <-chan struct{}
}

func decodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("parse push message: %w", err)
	}
	return m, nil
}

// deliver decodes, counts and hands a raw payload to handler. Malformed payloads are dropped.
func deliver(logger *zap.Logger, data []byte, handler Handler) {
	m, err := decodeMessage(data)
	if err != nil {
		logger.Warn("dropping malformed push message", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}
	observability.RecordPushMessage(m.Type)
	logger.Debug("push message", zap.String("type", m.Type))
	handler(m)
}
