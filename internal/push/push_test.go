package push

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

func TestIsNewRecord(t *testing.T) {
	tests := []struct {
		msg  Message
		want bool
	}{
		{Message{Type: "new_weather_record"}, true},
		{Message{Type: "NEW_WEATHER_RECORD"}, false},
		{Message{Type: " new_weather_record"}, false},
		{Message{Type: "heartbeat"}, false},
		{Message{}, false},
	}
	for _, tt := range tests {
		if got := IsNewRecord(tt.msg); got != tt.want {
			t.Errorf("IsNewRecord(%q) = %v, want %v", tt.msg.Type, got, tt.want)
		}
	}
}

func TestDecodeMessage(t *testing.T) {
	m, err := decodeMessage([]byte(`{"type":"new_weather_record","data":{"id":"abc"}}`))
	if err != nil {
		t.Fatalf("decodeMessage() error = %v", err)
	}
	if m.Type != TypeNewRecord {
		t.Errorf("Type = %q, want %q", m.Type, TypeNewRecord)
	}
	if string(m.Data) != `{"id":"abc"}` {
		t.Errorf("Data = %s, want raw payload", m.Data)
	}

	if _, err := decodeMessage([]byte(`not json`)); err == nil {
		t.Error("decodeMessage() expected error for malformed payload")
	}
}

func TestDeliver_DropsMalformed(t *testing.T) {
	var got []Message
	handler := func(m Message) { got = append(got, m) }

	deliver(zap.NewNop(), []byte(`{"type":"ping"}`), handler)
	deliver(zap.NewNop(), []byte(`{{{`), handler)
	deliver(zap.NewNop(), []byte(`{"type":"new_weather_record"}`), handler)

	if len(got) != 2 {
		t.Fatalf("handler called %d times, want 2", len(got))
	}
	if got[0].Type != "ping" || got[1].Type != TypeNewRecord {
		t.Errorf("delivered %+v", got)
	}
}

// A message is counted under the new-record label exactly when it would
// trigger a refresh.
func TestDeliver_CountMatchesFilter(t *testing.T) {
	counter := observability.PushMessagesTotal.WithLabelValues(TypeNewRecord)
	for _, typ := range []string{"new_weather_record", " New_Weather_Record", "NEW_WEATHER_RECORD ", "heartbeat"} {
		before := testutil.ToFloat64(counter)
		var refresh bool
		deliver(zap.NewNop(), []byte(`{"type":"`+typ+`"}`), func(m Message) { refresh = IsNewRecord(m) })

		counted := testutil.ToFloat64(counter)-before == 1
		if counted != refresh {
			t.Errorf("type %q: counted as new record = %v, triggers refresh = %v", typ, counted, refresh)
		}
	}
}
