package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MQTTConfig selects the broker and topic carrying push notifications.
type MQTTConfig struct {
	Broker         string // e.g. tcp://localhost:1883
	Topic          string
	ClientID       string // generated when empty
	QoS            byte
	ConnectTimeout time.Duration
}

// MQTTSubscriber receives the same JSON notifications from an MQTT topic.
// Like the websocket transport it does not reconnect.
type MQTTSubscriber struct {
	cfg    MQTTConfig
	client mqtt.Client
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	started bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewMQTTSubscriber builds the paho client. No connection is made until Subscribe.
func NewMQTTSubscriber(cfg MQTTConfig, logger *zap.Logger) *MQTTSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "weather-dashboard-" + uuid.New().String()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	s := &MQTTSubscriber{
		cfg:    cfg,
		logger: logger.With(zap.String("broker", cfg.Broker), zap.String("topic", cfg.Topic)),
		done:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("push connection lost", zap.Error(err))
		s.finish()
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Subscribe connects to the broker and subscribes to the topic.
func (s *MQTTSubscriber) Subscribe(ctx context.Context, handler Handler) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("mqtt subscriber already started")
	}
	s.started = true
	s.mu.Unlock()

	if err := waitToken(ctx, s.client.Connect()); err != nil {
		s.client.Disconnect(0)
		s.finish()
		return fmt.Errorf("mqtt connect: %w", err)
	}

	token := s.client.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ mqtt.Client, m mqtt.Message) {
		deliver(s.logger, m.Payload(), handler)
	})
	if err := waitToken(ctx, token); err != nil {
		s.client.Disconnect(0)
		s.finish()
		return fmt.Errorf("mqtt subscribe %s: %w", s.cfg.Topic, err)
	}

	s.logger.Info("push connected")
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return nil
}

// Close unsubscribes and disconnects.
func (s *MQTTSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.client.IsConnected() {
		s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
		s.client.Disconnect(250)
	}
	s.finish()
	return nil
}

// Done is closed once delivery has stopped for good.
func (s *MQTTSubscriber) Done() <-chan struct{} {
	return s.done
}

func (s *MQTTSubscriber) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// waitToken waits for a paho token while honouring ctx.
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
