// Package eventsource implements a reconnecting Server-Sent Events
// client on top of pkg/ssecodec: an HTTP transport that reconnects with
// backoff, classifies errors as retryable or fatal, captures permanent
// redirects, and yields decoded events through a pull-based State
// machine.
package eventsource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ivcap-works/relay-autoconfig/pkg/ssecodec"
)

// State is one phase of the reconnecting client's lifecycle.
type State int

const (
	StateInitial State = iota
	StateNew
	StateForceReconnect
	StateConnecting
	StateStreaming
	StateWaitingForRetry
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateNew:
		return "New"
	case StateForceReconnect:
		return "ForceReconnect"
	case StateConnecting:
		return "Connecting"
	case StateStreaming:
		return "Streaming"
	case StateWaitingForRetry:
		return "WaitingForRetry"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Config configures a reconnecting EventSource.
type Config struct {
	URL        string
	Headers    http.Header
	HTTPClient *http.Client

	// InitialBackoff, MaxBackoff, and MaxElapsed tune the inner
	// exponential backoff policy wrapped with a server-adjustable floor.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxElapsed     time.Duration

	// ReadTimeout bounds how long the client waits for the next byte
	// before treating the connection as stalled and reconnecting.
	ReadTimeout time.Duration

	// MaxDecoderBuffer bounds the decoder's pending event data plus the
	// next incoming line, in bytes; 0 disables the limit.
	MaxDecoderBuffer int

	Logger *zap.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{}
	}
	if out.InitialBackoff == 0 {
		out.InitialBackoff = 1 * time.Second
	}
	if out.MaxBackoff == 0 {
		out.MaxBackoff = 30 * time.Second
	}
	if out.MaxElapsed == 0 {
		out.MaxElapsed = 0 // no cap: stay connected forever, retrying
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = 5 * time.Minute
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}

// EventSource is a pull-based, reconnecting SSE client. Call Next
// repeatedly; it blocks until a Frame is available, the context is
// canceled, or the source is permanently closed.
type EventSource struct {
	cfg     Config
	client  *http.Client
	cell    *redirectCell
	backoff *minimumBackoff
	decoder *ssecodec.Decoder

	state       State
	lastEventID string
	body        io.ReadCloser
	buf         *bytes.Buffer

	retries int
	lastErr error
}

// New builds an EventSource in StateInitial. It does not connect until
// the first call to Next.
func New(cfg Config) *EventSource {
	c := cfg.withDefaults()
	cell := &redirectCell{url: c.URL}

	client := *c.HTTPClient
	client.CheckRedirect = checkRedirectFunc(cell)

	return &EventSource{
		cfg:     c,
		client:  &client,
		cell:    cell,
		backoff: newMinimumBackoff(newExponentialBackOff(c.InitialBackoff, c.MaxBackoff, c.MaxElapsed), 0),
		decoder: ssecodec.NewDecoder(c.MaxDecoderBuffer),
		state:   StateInitial,
		buf:     &bytes.Buffer{},
	}
}

// State reports the current lifecycle phase, for diagnostics and tests.
func (es *EventSource) State() State { return es.state }

// Reconnect forces the next Next call to tear down any live connection
// and start over, even mid-stream. It is how the autoconfig merge
// engine reacts to a server-sent "reconnect" directive.
func (es *EventSource) Reconnect() {
	es.state = StateForceReconnect
}

// Close releases the underlying connection, if any, and transitions to
// StateClosed. Further calls to Next return (nil, false, nil).
func (es *EventSource) Close() error {
	es.state = StateClosed
	if es.body != nil {
		err := es.body.Close()
		es.body = nil
		return err
	}
	return nil
}

// Next drives the state machine forward until it can yield a Frame. It
// returns (frame, true, nil) on success, (nil, false, nil) once the
// source is closed, or (nil, false, err) on a fatal, non-retryable
// error.
func (es *EventSource) Next(ctx context.Context) (ssecodec.Frame, bool, error) {
	for {
		switch es.state {
		case StateClosed:
			return nil, false, nil

		case StateInitial:
			es.state = StateNew

		case StateNew:
			es.state = StateConnecting

		case StateForceReconnect:
			es.teardown()
			es.state = StateNew

		case StateConnecting:
			if err := es.connect(ctx); err != nil {
				if !IsRetryable(err) {
					es.state = StateClosed
					return nil, false, err
				}
				es.retries++
				es.lastErr = err
				es.state = StateWaitingForRetry
				continue
			}
			es.retries = 0
			es.backoff.Reset()
			es.state = StateStreaming

		case StateStreaming:
			frame, err := es.readFrame(ctx)
			if err != nil {
				es.teardown()
				if !IsRetryable(err) {
					es.state = StateClosed
					return nil, false, err
				}
				es.retries++
				es.lastErr = err
				es.state = StateWaitingForRetry
				continue
			}
			if frame == nil {
				// end-of-stream is a normal termination, not a connection
				// failure: yield end-of-sequence, do not reconnect.
				es.teardown()
				es.state = StateClosed
				return nil, false, nil
			}
			switch v := frame.(type) {
			case ssecodec.Event:
				if v.ID != "" {
					es.lastEventID = v.ID
				}
				return frame, true, nil
			case ssecodec.Retry:
				es.backoff.SetMinimumDuration(time.Duration(v.Millis) * time.Millisecond)
				continue
			case ssecodec.Comment:
				// Comments are keep-alives: consumed at the transport level,
				// never surfaced to the caller.
				continue
			default:
				return frame, true, nil
			}

		case StateWaitingForRetry:
			d := es.backoff.NextBackOff()
			if d == backoff.Stop {
				es.state = StateClosed
				return nil, false, &EventSourceError{Kind: ErrKindMaxRetriesExceeded, Err: es.lastErr, Attempts: es.retries}
			}
			es.cfg.Logger.Debug("eventsource: waiting before reconnect", zap.Duration("delay", d))
			select {
			case <-ctx.Done():
				es.state = StateClosed
				return nil, false, ctx.Err()
			case <-time.After(d):
			}
			es.state = StateNew
		}
	}
}

func (es *EventSource) teardown() {
	if es.body != nil {
		_ = es.body.Close()
		es.body = nil
	}
	es.buf.Reset()
	es.decoder.Reset()
}

func (es *EventSource) connect(ctx context.Context) error {
	url := es.cell.get()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &EventSourceError{Kind: ErrKindRequestClone, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, vs := range es.cfg.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if es.lastEventID != "" {
		req.Header.Set("Last-Event-ID", es.lastEventID)
	}

	es.cfg.Logger.Debug("eventsource: connecting", zap.String("url", url))
	resp, err := es.client.Do(req)
	if err != nil {
		// CheckRedirect can fail the request with an EventSourceError of
		// its own (e.g. too many redirects), wrapped by net/http in a
		// *url.Error; classify off that inner error instead of flattening
		// everything into a retryable transport failure.
		var inner *EventSourceError
		if errors.As(err, &inner) {
			return inner
		}
		return &EventSourceError{Kind: ErrKindTransport, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return &EventSourceError{Kind: ErrKindStatus, Err: &StatusError{StatusCode: resp.StatusCode}}
	}
	es.body = resp.Body
	return nil
}

func (es *EventSource) readFrame(ctx context.Context) (ssecodec.Frame, error) {
	for {
		frame, err := es.decoder.Decode(es.buf)
		if err != nil {
			return nil, &EventSourceError{Kind: ErrKindDecode, Err: err}
		}
		if frame != nil {
			return frame, nil
		}

		n, err := es.readMore(ctx)
		if err != nil {
			if err == io.EOF {
				if eofFrame, eerr := es.decoder.DecodeEOF(es.buf); eerr != nil {
					return nil, &EventSourceError{Kind: ErrKindDecode, Err: eerr}
				} else {
					return eofFrame, nil
				}
			}
			return nil, err
		}
		if n == 0 {
			continue
		}
	}
}

func (es *EventSource) readMore(ctx context.Context) (int, error) {
	type result struct {
		n   int
		b   []byte
		err error
	}
	// body is captured as a local so the goroutine never touches es.body
	// or es.buf directly: on a timeout or cancellation this function
	// returns while the Read below may still be in flight, and teardown()
	// may reassign or reset both fields concurrently. The goroutine reads
	// into its own slice and only the caller, on the success branch,
	// appends that slice to es.buf.
	body := es.body
	ch := make(chan result, 1)
	go func() {
		b := make([]byte, 4096)
		n, err := body.Read(b)
		ch <- result{n: n, b: b[:n], err: err}
	}()

	select {
	case r := <-ch:
		if r.n > 0 {
			es.buf.Write(r.b)
		}
		return r.n, r.err
	case <-time.After(es.cfg.ReadTimeout):
		return 0, &EventSourceError{Kind: ErrKindReadTimeout}
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
