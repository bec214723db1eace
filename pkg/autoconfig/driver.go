package autoconfig

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ivcap-works/relay-autoconfig/pkg/eventsource"
	"github.com/ivcap-works/relay-autoconfig/pkg/ssecodec"
)

// Driver pulls decoded SSE events from an EventSource, turns them into
// Messages, and feeds them to a Client, draining every ChangeEvent a
// message produces before asking the EventSource for the next frame.
type Driver struct {
	source *eventsource.EventSource
	client *Client
	logger *zap.Logger
}

// NewDriver ties a reconnecting EventSource to a merge-engine Client.
func NewDriver(source *eventsource.EventSource, client *Client, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{source: source, client: client, logger: logger}
}

// Next blocks until the next batch of ChangeEvents is available, the
// context is canceled, or the underlying source closes for good. A
// single stream frame can legitimately produce zero events (an ignored
// stale patch) or several (a full resync), so callers should range over
// the returned slice rather than assume exactly one.
func (d *Driver) Next(ctx context.Context) ([]ChangeEvent, bool, error) {
	for {
		frame, ok, err := d.source.Next(ctx)
		if err != nil {
			return nil, false, &DriverError{Err: err}
		}
		if !ok {
			return nil, false, nil
		}

		ev, isEvent := frame.(ssecodec.Event)
		if !isEvent {
			// Comments and Retry frames are consumed by the transport
			// layer already; nothing for the merge engine to do.
			continue
		}

		msg, err := ParseMessage(ev.Name, ev.Data)
		if err != nil {
			// Payload deserialization failures are fatal to the engine:
			// the cache's invariants depend on seeing every message, and
			// there is no safe way to skip one and keep merging.
			return nil, false, &DriverError{Err: &EventParseError{Err: err}}
		}

		if _, isReconnect := msg.(ReconnectMessage); isReconnect {
			d.logger.Debug("autoconfig: server requested reconnect")
			d.source.Reconnect()
		}

		events, err := d.client.Process(msg)
		if err != nil {
			return nil, false, &DriverError{Err: err}
		}
		if len(events) == 0 {
			continue
		}
		return events, true, nil
	}
}

// DriverError wraps a fatal error surfaced while pumping the stream.
type DriverError struct{ Err error }

func (e *DriverError) Error() string { return fmt.Sprintf("autoconfig: %v", e.Err) }
func (e *DriverError) Unwrap() error  { return e.Err }
