package ssecodec

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	frames := []Frame{
		Event{ID: "1", Name: "put", Data: []byte("line1\nline2")},
		Comment{Text: "ping"},
		Retry{Millis: 3000},
	}
	for _, f := range frames {
		if err := enc.Encode(f); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	d := NewDecoder(0)
	var got []Frame
	for {
		f, err := d.Decode(&buf)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if f == nil {
			break
		}
		got = append(got, f)
	}
	if f, err := d.DecodeEOF(&buf); err != nil {
		t.Fatalf("DecodeEOF: %v", err)
	} else if f != nil {
		got = append(got, f)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(got))
	}
	ev, ok := got[0].(Event)
	if !ok || ev.ID != "1" || ev.Name != "put" || string(ev.Data) != "line1\nline2" {
		t.Fatalf("unexpected event: %+v", got[0])
	}
	c, ok := got[1].(Comment)
	if !ok || c.Text != "ping" {
		t.Fatalf("unexpected comment: %+v", got[1])
	}
	r, ok := got[2].(Retry)
	if !ok || r.Millis != 3000 {
		t.Fatalf("unexpected retry: %+v", got[2])
	}
}

func TestEncodeOmitsRepeatedStickyID(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	_ = enc.Encode(Event{ID: "7", Name: "patch", Data: []byte("a")})
	_ = enc.Encode(Event{ID: "7", Name: "patch", Data: []byte("b")})
	out := buf.String()
	if n := countOccurrences(out, "id: 7"); n != 1 {
		t.Fatalf("expected sticky id to be written once, appeared %d times in %q", n, out)
	}
}

func TestEncodeRewritesIDWhenItChanges(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	_ = enc.Encode(Event{ID: "7", Name: "patch", Data: []byte("a")})
	_ = enc.Encode(Event{ID: "8", Name: "patch", Data: []byte("b")})
	out := buf.String()
	if countOccurrences(out, "id: ") != 2 {
		t.Fatalf("expected both distinct ids to be written, got %q", out)
	}
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
