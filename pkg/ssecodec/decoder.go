package ssecodec

import (
	"bytes"
	"strconv"
	"unicode/utf8"
)

const defaultEventName = "message"

// DefaultMaxBufferSize is a 64 KiB maxBufLen for NewDecoder. Callers
// that need unbounded buffers can pass 0 to NewDecoder to disable the
// check.
const DefaultMaxBufferSize = 64 * 1024

// Decoder turns a stream of event-stream bytes into Frames. It holds no
// reference to the transport: callers append bytes they've read to a
// shared *bytes.Buffer and call Decode until it returns (nil, nil),
// meaning more bytes are needed before another Frame can be produced.
type Decoder struct {
	scanner   fieldScanner
	dataBuf   bytes.Buffer
	eventType string
	eventID   string
	maxBufLen int
	closed    bool
}

// NewDecoder returns a Decoder that fails with ErrExceededSizeLimit once
// the pending "data" buffer plus the next complete line (field name,
// value and line terminator, whatever the field) would exceed maxBufLen
// bytes. A maxBufLen of 0 disables the limit.
func NewDecoder(maxBufLen int) *Decoder {
	return &Decoder{eventType: defaultEventName, maxBufLen: maxBufLen}
}

// BufferedLen reports how many bytes are currently held in the pending
// "data" buffer, for diagnostics and tests.
func (d *Decoder) BufferedLen() int { return d.dataBuf.Len() }

// Reset clears decoder state between reconnects, keeping the
// pre-allocated data buffer capacity so the next connection doesn't
// re-pay the allocation cost.
func (d *Decoder) Reset() {
	d.dataBuf.Reset()
	d.eventType = defaultEventName
	d.eventID = ""
	d.closed = false
	d.scanner = fieldScanner{}
}

// Decode consumes as many complete lines from buf as it takes to
// dispatch one Frame, draining consumed bytes from buf as it goes. It
// returns (nil, nil) when buf holds only a partial line and the caller
// should read more bytes before calling again.
func (d *Decoder) Decode(buf *bytes.Buffer) (Frame, error) {
	if d.closed {
		return nil, nil
	}
	for {
		field, consumed, ok := d.scanner.scan(buf.Bytes())
		if !ok {
			return nil, nil
		}
		if err := d.checkSize(consumed, len(buf.Bytes())); err != nil {
			return nil, err
		}
		buf.Next(consumed)

		frame, emit, err := d.dispatch(field)
		if err != nil {
			return nil, err
		}
		if emit {
			return frame, nil
		}
	}
}

// DecodeEOF is called once after the underlying stream has closed, to
// flush a final unterminated line and detect truncated input. It
// returns ErrUnexpectedEOF if the stream ended mid-field.
func (d *Decoder) DecodeEOF(buf *bytes.Buffer) (Frame, error) {
	if d.closed {
		return nil, nil
	}
	field, consumed, ok := d.scanner.scanEOF(buf.Bytes())
	if ok {
		buf.Next(consumed)
		frame, emit, err := d.dispatch(field)
		if err != nil {
			return nil, err
		}
		d.closed = true
		if emit {
			return frame, nil
		}
		if buf.Len() > 0 || d.dataBuf.Len() > 0 {
			return nil, ErrUnexpectedEOF
		}
		return nil, nil
	}
	d.closed = true
	if buf.Len() > 0 || d.dataBuf.Len() > 0 {
		return nil, ErrUnexpectedEOF
	}
	return nil, nil
}

func (d *Decoder) checkSize(consumed, remaining int) error {
	if d.maxBufLen <= 0 {
		return nil
	}
	if d.dataBuf.Len()+consumed > d.maxBufLen {
		return &ErrExceededSizeLimit{Limit: d.maxBufLen, Incoming: consumed, Consumed: d.dataBuf.Len()}
	}
	return nil
}

// dispatch applies one scanned field to decoder state, returning a Frame
// to emit immediately (Comment, Retry) or signalling that an Event
// should be emitted once a blank line is seen.
func (d *Decoder) dispatch(field scannedField) (frame Frame, emit bool, err error) {
	if field.emptyLine {
		if d.dataBuf.Len() == 0 {
			d.eventType = defaultEventName
			return nil, false, nil
		}
		data := d.dataBuf.Bytes()
		// strip the single trailing '\n' appended after the last data line
		if n := len(data); n > 0 && data[n-1] == '\n' {
			data = data[:n-1]
		}
		out := make([]byte, len(data))
		copy(out, data)
		ev := Event{ID: d.eventID, Name: d.eventType, Data: out}
		d.dataBuf.Reset()
		d.eventType = defaultEventName
		return ev, true, nil
	}

	switch field.kind {
	case fieldKindData:
		d.dataBuf.Write(field.value)
		d.dataBuf.WriteByte('\n')
		return nil, false, nil
	case fieldKindEvent:
		if !utf8.Valid(field.value) {
			return nil, false, &ErrInvalidUTF8{Field: "event"}
		}
		d.eventType = string(field.value)
		return nil, false, nil
	case fieldKindID:
		if bytes.IndexByte(field.value, 0) >= 0 {
			// ids containing NUL are ignored, per the event-stream grammar
			return nil, false, nil
		}
		if !utf8.Valid(field.value) {
			return nil, false, &ErrInvalidUTF8{Field: "id"}
		}
		d.eventID = string(field.value)
		return nil, false, nil
	case fieldKindRetry:
		millis, perr := strconv.ParseUint(string(field.value), 10, 64)
		if perr != nil {
			// non-numeric retry values are ignored, not fatal
			return nil, false, nil
		}
		return Retry{Millis: millis}, true, nil
	case fieldKindComment:
		return Comment{Text: string(field.value)}, true, nil
	default:
		return nil, false, nil
	}
}
