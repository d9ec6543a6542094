package main

import (
	"bytes"
	"mime"
	"net/url"
	"strings"
)

// Field is one value extracted from a submitted form
type Field struct {
	Name     string // Form field name, empty if the part carried none
	FileName string // Set for file inputs
	Value    string // Body with CRLF normalized to LF
}

var (
	crlf        = []byte("\r\n")
	blankLine   = []byte("\r\n\r\n")
	closeSuffix = []byte("--")
)

type scanState int

const (
	stateBoundaryLine scanState = iota
	stateDelimiterTail
	stateSegment
	stateDone
)

// multipartScanner walks a multipart body byte by byte and cuts it into raw
// segments. A marker only counts as a delimiter when it starts a line and is
// followed by CRLF (next segment), by "--" ending the line (terminator) or by
// the end of the body, so payloads containing the marker text elsewhere are
// left intact.
type multipartScanner struct {
	body     []byte
	boundary string
	marker   []byte
	pos      int
	state    scanState
	segments [][]byte
}

func (s *multipartScanner) run() [][]byte {
	for s.state != stateDone {
		switch s.state {
		case stateBoundaryLine:
			s.scanBoundaryLine()
		case stateDelimiterTail:
			s.scanDelimiterTail()
		case stateSegment:
			s.scanSegment()
		}
	}
	return s.segments
}

// scanBoundaryLine picks the marker: the declared boundary when it occurs in
// the body, otherwise the first line of the body.
func (s *multipartScanner) scanBoundaryLine() {
	if s.boundary != "" {
		marker := []byte("--" + s.boundary)
		if bytes.HasPrefix(s.body, marker) {
			s.marker, s.pos, s.state = marker, len(marker), stateDelimiterTail
			return
		}
		// Skip the preamble up to the first marker line
		if i := bytes.Index(s.body, lineMarker(marker)); i >= 0 {
			s.marker, s.pos, s.state = marker, i+len(crlf)+len(marker), stateDelimiterTail
			return
		}
	}

	i := bytes.Index(s.body, crlf)
	if i <= 0 {
		s.state = stateDone
		return
	}
	s.marker, s.pos, s.state = s.body[:i], i, stateDelimiterTail
}

// scanDelimiterTail runs right after a marker
func (s *multipartScanner) scanDelimiterTail() {
	rest := s.body[s.pos:]
	switch {
	case len(rest) == 0 || isTerminator(rest):
		s.state = stateDone
	case bytes.HasPrefix(rest, crlf):
		s.pos += len(crlf)
		s.state = stateSegment
	default:
		s.state = stateSegment
	}
}

func (s *multipartScanner) isDelimiterTail(at int) bool {
	rest := s.body[at:]
	return len(rest) == 0 || bytes.HasPrefix(rest, crlf) || isTerminator(rest)
}

// isTerminator reports whether rest is "--" ending the line or the body
func isTerminator(rest []byte) bool {
	if !bytes.HasPrefix(rest, closeSuffix) {
		return false
	}
	after := rest[len(closeSuffix):]
	return len(after) == 0 || bytes.HasPrefix(after, crlf)
}

func (s *multipartScanner) scanSegment() {
	start := s.pos

	// A marker at the very start of a segment means the segment is empty
	if bytes.HasPrefix(s.body[start:], s.marker) && s.isDelimiterTail(start+len(s.marker)) {
		s.pos = start + len(s.marker)
		s.state = stateDelimiterTail
		return
	}

	delim := lineMarker(s.marker)
	for from := start; ; {
		i := bytes.Index(s.body[from:], delim)
		if i < 0 {
			// No terminator: the rest of the body is the last segment
			s.emit(s.body[start:])
			s.pos = len(s.body)
			s.state = stateDone
			return
		}
		at := from + i
		after := at + len(delim)
		if s.isDelimiterTail(after) {
			s.emit(s.body[start:at])
			s.pos = after
			s.state = stateDelimiterTail
			return
		}
		from = at + 1
	}
}

// lineMarker returns CRLF followed by marker in a fresh slice
func lineMarker(marker []byte) []byte {
	delim := make([]byte, 0, len(crlf)+len(marker))
	return append(append(delim, crlf...), marker...)
}

func (s *multipartScanner) emit(segment []byte) {
	if len(segment) > 0 {
		s.segments = append(s.segments, segment)
	}
}

// DecodeMultipart extracts the field values of a multipart/form-data body.
// With an empty boundary the first line of the body is used as the marker.
// Segments without a header/body separator and whitespace-only bodies are
// skipped, so one malformed part never fails the whole request.
func DecodeMultipart(body []byte, boundary string) []Field {
	scanner := &multipartScanner{body: body, boundary: boundary}

	var fields []Field
	for _, segment := range scanner.run() {
		if field, ok := decodeSegment(segment); ok {
			fields = append(fields, field)
		}
	}
	return fields
}

// decodeSegment splits a segment once at the first blank line
func decodeSegment(segment []byte) (Field, bool) {
	header, body, found := bytes.Cut(segment, blankLine)
	if !found {
		return Field{}, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Field{}, false
	}

	field := Field{Value: string(bytes.ReplaceAll(body, crlf, []byte("\n")))}
	field.Name, field.FileName = parseDisposition(header)
	return field, true
}

// parseDisposition reads name and filename from a Content-Disposition header
func parseDisposition(header []byte) (name, fileName string) {
	for _, line := range bytes.Split(header, crlf) {
		key, value, ok := strings.Cut(string(line), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "Content-Disposition") {
			continue
		}
		_, params, err := mime.ParseMediaType(strings.TrimSpace(value))
		if err != nil {
			return "", ""
		}
		return params["name"], params["filename"]
	}
	return "", ""
}

// DecodeURLEncoded decodes an application/x-www-form-urlencoded body into one
// Field per key, in the order keys first appear. Repeated keys keep their
// first value and pairs that fail to unescape are skipped.
func DecodeURLEncoded(body []byte) []Field {
	seen := make(map[string]bool)

	var fields []Field
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		fields = append(fields, Field{Name: key, Value: strings.ReplaceAll(value, "\r\n", "\n")})
	}
	return fields
}
