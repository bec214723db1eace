package eventsource

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/r3labs/sse/v2"

	"github.com/ivcap-works/relay-autoconfig/pkg/ssecodec"
)

// newFixtureServer starts a real SSE server (the same library the
// broader retrieval pack uses server-side) so the reconnecting client
// can be exercised against a genuine HTTP transport instead of a
// hand-rolled fake.
func newFixtureServer(t *testing.T) (*httptest.Server, *sse.Server) {
	t.Helper()
	srv := sse.New()
	srv.CreateStream("relay")
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, srv
}

func TestEventSourceReceivesPublishedEvents(t *testing.T) {
	ts, srv := newFixtureServer(t)

	es := New(Config{URL: ts.URL + "?stream=relay", ReadTimeout: 3 * time.Second})
	t.Cleanup(func() { _ = es.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(200 * time.Millisecond)
		srv.Publish("relay", &sse.Event{Event: []byte("put"), Data: []byte(`{"ok":true}`)})
	}()

	frame, ok, err := es.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatalf("expected a frame, source closed")
	}
	ev, isEvent := frame.(ssecodec.Event)
	if !isEvent {
		t.Fatalf("expected Event, got %T", frame)
	}
	if ev.Name != "put" {
		t.Fatalf("expected event name 'put', got %q", ev.Name)
	}
	<-done
}

func TestEventSourceReceivesEventsAfterForcedReconnect(t *testing.T) {
	ts, srv := newFixtureServer(t)

	es := New(Config{
		URL:            ts.URL + "?stream=relay",
		ReadTimeout:    2 * time.Second,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = es.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(100 * time.Millisecond)
		srv.Publish("relay", &sse.Event{Event: []byte("put"), Data: []byte(`{"n":1}`)})
	}()

	if _, ok, err := es.Next(ctx); err != nil || !ok {
		t.Fatalf("expected first frame, got ok=%v err=%v", ok, err)
	}

	es.Reconnect()

	go func() {
		time.Sleep(100 * time.Millisecond)
		srv.Publish("relay", &sse.Event{Event: []byte("put"), Data: []byte(`{"n":2}`)})
	}()

	frame, ok, err := es.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("expected frame after forced reconnect, got ok=%v err=%v", ok, err)
	}
	ev := frame.(ssecodec.Event)
	if ev.Name != "put" {
		t.Fatalf("expected 'put' event after reconnect, got %q", ev.Name)
	}
}
