package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/lookup"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"go.uber.org/zap"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args     []string
		wantCmd  string
		wantArgs []string
	}{
		{nil, "watch", nil},
		{[]string{"-no-color"}, "watch", []string{"-no-color"}},
		{[]string{"watch", "-no-color"}, "watch", []string{"-no-color"}},
		{[]string{"lookup", "abc"}, "lookup", []string{"abc"}},
		{[]string{"create", "-date", "2025-06-01"}, "create", []string{"-date", "2025-06-01"}},
		{[]string{"--help"}, "help", nil},
		{[]string{"bogus"}, "bogus", []string{}},
	}
	for _, tt := range tests {
		cmd, args := parseCommand(tt.args)
		if cmd != tt.wantCmd {
			t.Errorf("parseCommand(%v) cmd = %q, want %q", tt.args, cmd, tt.wantCmd)
		}
		if strings.Join(args, " ") != strings.Join(tt.wantArgs, " ") {
			t.Errorf("parseCommand(%v) args = %v, want %v", tt.args, args, tt.wantArgs)
		}
	}
}

type stubBackend struct {
	record  models.WeatherRecord
	err     error
	created models.CreateRequest
}

func (s *stubBackend) GetRecord(ctx context.Context, id string) (models.WeatherRecord, error) {
	return s.record, s.err
}

func (s *stubBackend) ListRecent(ctx context.Context, limit int) ([]models.WeatherRecord, error) {
	return nil, s.err
}

func (s *stubBackend) GetStats(ctx context.Context) (models.DashboardStats, error) {
	return models.DashboardStats{}, s.err
}

func (s *stubBackend) CreateRecord(ctx context.Context, req models.CreateRequest) (string, error) {
	s.created = req
	return "new-id", s.err
}

var testConfig = &config.Config{BackendTimeout: time.Second}

func TestRunLookup(t *testing.T) {
	backend := &stubBackend{record: models.WeatherRecord{ID: "a1", Location: "Lisbon", Date: "2025-06-01"}}
	var out bytes.Buffer
	if err := runLookup(testConfig, backend, []string{"-no-color", "a1"}, &out); err != nil {
		t.Fatalf("runLookup() error = %v", err)
	}
	if !strings.Contains(out.String(), "Location:     Lisbon") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	err := runLookup(testConfig, backend, nil, &out)
	if !errors.Is(err, errReported) {
		t.Errorf("runLookup() without id error = %v, want errReported", err)
	}
	if !strings.Contains(out.String(), lookup.MessageValidation) {
		t.Errorf("output = %q, want validation message", out.String())
	}
}

func TestRunCreate(t *testing.T) {
	backend := &stubBackend{}
	var out bytes.Buffer
	err := runCreate(testConfig, backend, []string{"-date", " 2025-06-01 ", "-location", "Lisbon", "-notes", "windy"}, &out)
	if err != nil {
		t.Fatalf("runCreate() error = %v", err)
	}
	if strings.TrimSpace(out.String()) != "new-id" {
		t.Errorf("output = %q, want new-id", out.String())
	}
	if backend.created.Date != "2025-06-01" || backend.created.Location != "Lisbon" {
		t.Errorf("created = %+v", backend.created)
	}

	out.Reset()
	if err := runCreate(testConfig, backend, []string{"-date", "2025-06-01"}, &out); !errors.Is(err, errReported) {
		t.Errorf("runCreate() without location error = %v, want errReported", err)
	}
}

func TestNewPushSubscriber(t *testing.T) {
	logger := zap.NewNop()
	if sub := newPushSubscriber(&config.Config{PushTransport: config.PushTransportNone}, logger); sub != nil {
		t.Errorf("transport none returned %T", sub)
	}
	if sub := newPushSubscriber(&config.Config{PushTransport: config.PushTransportWebSocket, PushURL: "ws://localhost:1/ws"}, logger); sub == nil {
		t.Error("websocket transport returned nil")
	}
	mqttCfg := &config.Config{PushTransport: config.PushTransportMQTT, MQTTBroker: "tcp://localhost:1", MQTTTopic: "weather/records"}
	if sub := newPushSubscriber(mqttCfg, logger); sub == nil {
		t.Error("mqtt transport returned nil")
	}
}
