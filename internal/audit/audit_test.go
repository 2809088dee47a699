package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestDispatcherDeliversInOrderAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for _, action := range []string{"A", "B", "C"} {
		d.Emit(context.Background(), Event{Action: action})
	}
	d.Close()

	for _, want := range []string{"A", "B", "C"} {
		select {
		case got := <-sink.Events():
			if got.Action != want {
				t.Fatalf("expected %s, got %s", want, got.Action)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	d.Emit(context.Background(), Event{Action: "late"})
	select {
	case got := <-sink.Events():
		t.Fatalf("expected no delivery after close, got %+v", got)
	default:
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{Action: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher should report zero drops")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Action: "x"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}
	close(sink.release)
	d.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	NewJSONWriterSink(&buf).Emit(context.Background(), Event{Action: "LOGIN_SUCCEEDED", ActorID: "u1", Success: true})

	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("invalid json line %q: %v", buf.String(), err)
	}
	if decoded["action"] != "LOGIN_SUCCEEDED" || decoded["actor_id"] != "u1" {
		t.Fatalf("unexpected payload %v", decoded)
	}
}

func TestLogrusSinkLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewLogrusSink(logger)

	sink.Emit(context.Background(), Event{Action: "LOGIN_SUCCEEDED", Success: true, Description: "ok"})
	sink.Emit(context.Background(), Event{Action: "LOGIN_FAILED", Error: "invalid_credentials", Metadata: map[string]string{"email": "a@x.io"}})

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != logrus.InfoLevel || entries[1].Level != logrus.WarnLevel {
		t.Fatalf("unexpected levels %v %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].Data["meta_email"] != "a@x.io" || !strings.Contains(entries[1].Data["error"].(string), "invalid") {
		t.Fatalf("unexpected fields %v", entries[1].Data)
	}
}
