package ssecodec

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Encoder serializes Frames back into event-stream wire bytes. In this
// module it is used by the codec's own encode/decode round-trip tests.
type Encoder struct {
	w        io.Writer
	lastID   string
	haveLast bool
}

// NewEncoder wraps w with sticky-id tracking: an Event whose ID matches
// the previously-written Event's ID omits the redundant "id:" line, the
// same economy a real server applies when it hasn't changed the last
// event id.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one Frame.
func (e *Encoder) Encode(f Frame) error {
	switch v := f.(type) {
	case Event:
		return e.encodeEvent(v)
	case Comment:
		return e.encodeComment(v)
	case Retry:
		return e.encodeRetry(v)
	default:
		return fmt.Errorf("ssecodec: unknown frame type %T", f)
	}
}

func (e *Encoder) encodeEvent(ev Event) error {
	var b strings.Builder
	switch {
	case ev.ID == "" && e.haveLast:
		// The event omits an id: the wire form still carries the last
		// non-empty id we saw, every time, not just on first sight.
		fmt.Fprintf(&b, "id: %s\n", e.lastID)
	case ev.ID != "" && ev.ID != e.lastID:
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	if ev.ID != "" {
		e.lastID = ev.ID
		e.haveLast = true
	}
	name := ev.Name
	if name == "" {
		name = defaultEventName
	}
	fmt.Fprintf(&b, "event: %s\n", name)
	data := ev.Data
	if len(data) == 0 {
		b.WriteString("data: \n")
	} else {
		for _, line := range strings.Split(string(data), "\n") {
			fmt.Fprintf(&b, "data: %s\n", line)
		}
	}
	b.WriteString("\n")
	_, err := io.WriteString(e.w, b.String())
	return err
}

func (e *Encoder) encodeComment(c Comment) error {
	var b strings.Builder
	if c.Text == "" {
		b.WriteString(":\n")
	} else {
		for _, line := range strings.Split(c.Text, "\n") {
			fmt.Fprintf(&b, ": %s\n", line)
		}
	}
	_, err := io.WriteString(e.w, b.String())
	return err
}

func (e *Encoder) encodeRetry(r Retry) error {
	_, err := io.WriteString(e.w, "retry: "+strconv.FormatUint(r.Millis, 10)+"\n")
	return err
}
