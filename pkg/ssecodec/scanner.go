package ssecodec

import "bytes"

// fieldKind identifies which named SSE field a scanned line carries.
type fieldKind int

const (
	fieldKindData fieldKind = iota
	fieldKindEvent
	fieldKindID
	fieldKindRetry
	fieldKindComment
	fieldKindUnknown
)

var fieldNames = map[string]fieldKind{
	"data":  fieldKindData,
	"event": fieldKindEvent,
	"id":    fieldKindID,
	"retry": fieldKindRetry,
}

// scannedField is one scanned "name: value" line, a comment line, or a
// blank line (signalled by emptyLine).
type scannedField struct {
	kind      fieldKind
	value     []byte
	emptyLine bool
}

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// fieldScanner splits a byte stream into SSE lines and classifies each
// one. It is stateless across calls other than having stripped the
// leading byte-order-mark once: callers pass it successive prefixes of
// an ever-growing buffer and it reports how many bytes were consumed by
// the field it found, so the decoder can drain exactly that much.
type fieldScanner struct {
	strippedBOM bool
}

// scan looks for one complete line (terminated by \r\n, \r, or \n) at the
// start of buf. If found it returns the classified field and the number
// of bytes the line plus its terminator occupied. If buf has no complete
// line yet, ok is false and the caller should wait for more data.
func (s *fieldScanner) scan(buf []byte) (field scannedField, consumed int, ok bool) {
	if !s.strippedBOM {
		if len(buf) > 0 && len(buf) < len(byteOrderMark) && bytes.HasPrefix(byteOrderMark, buf) {
			// A proper prefix of the BOM: hold it, don't mark it
			// stripped or misclassify it as the start of a field.
			return scannedField{}, 0, false
		}
		s.strippedBOM = true
		if bytes.HasPrefix(buf, byteOrderMark) {
			buf = buf[len(byteOrderMark):]
			consumed = len(byteOrderMark)
		}
	}

	lineLen, termLen := findLine(buf)
	if lineLen < 0 {
		if consumed > 0 {
			// A BOM but no complete line yet: report zero progress and
			// leave the BOM unstripped, so the next call strips it
			// together with the line that follows it.
			s.strippedBOM = false
			return scannedField{}, 0, false
		}
		return scannedField{}, 0, false
	}
	consumed += lineLen + termLen
	line := buf[:lineLen]

	if len(line) == 0 {
		return scannedField{emptyLine: true}, consumed, true
	}

	colon := bytes.IndexByte(line, ':')
	var name, value []byte
	switch {
	case colon == 0:
		return scannedField{kind: fieldKindComment, value: trimOneLeadingSpace(line[1:])}, consumed, true
	case colon < 0:
		name = line
		value = nil
	default:
		name = line[:colon]
		value = trimOneLeadingSpace(line[colon+1:])
	}

	kind, known := fieldNames[string(name)]
	if !known {
		kind = fieldKindUnknown
	}
	return scannedField{kind: kind, value: value}, consumed, true
}

// findLine returns the length of the line content (excluding the
// terminator) and the terminator's own length. It returns (-1, 0) if buf
// does not yet contain a complete terminator, with one exception: a
// trailing lone '\r' is ambiguous (it might be the start of "\r\n"), so
// it is only treated as a terminator once the scanner sees the next
// byte or end of input is signalled via scanEOF.
func findLine(buf []byte) (lineLen, termLen int) {
	for i, b := range buf {
		switch b {
		case '\n':
			return i, 1
		case '\r':
			if i+1 < len(buf) {
				if buf[i+1] == '\n' {
					return i, 2
				}
				return i, 1
			}
			// lone '\r' at the end of what we have so far: ambiguous,
			// wait for more bytes (or scanEOF).
			return -1, 0
		}
	}
	return -1, 0
}

// scanEOF behaves like scan but treats the end of buf as a line
// terminator, for use once the underlying stream has closed.
func (s *fieldScanner) scanEOF(buf []byte) (field scannedField, consumed int, ok bool) {
	if len(buf) == 0 {
		return scannedField{}, 0, false
	}
	if !bytes.ContainsAny(buf, "\r\n") {
		return s.scanTrailing(buf)
	}
	return s.scan(buf)
}

func (s *fieldScanner) scanTrailing(buf []byte) (field scannedField, consumed int, ok bool) {
	colon := bytes.IndexByte(buf, ':')
	var name, value []byte
	switch {
	case colon == 0:
		return scannedField{kind: fieldKindComment, value: trimOneLeadingSpace(buf[1:])}, len(buf), true
	case colon < 0:
		name = buf
	default:
		name = buf[:colon]
		value = trimOneLeadingSpace(buf[colon+1:])
	}
	kind, known := fieldNames[string(name)]
	if !known {
		kind = fieldKindUnknown
	}
	return scannedField{kind: kind, value: value}, len(buf), true
}

func trimOneLeadingSpace(v []byte) []byte {
	if len(v) > 0 && v[0] == ' ' {
		return v[1:]
	}
	return v
}
