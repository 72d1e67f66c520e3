package hl7

import (
	"fmt"
	"io"
	"strings"
)

// Parse reads an HL7 message from raw text using the delimiters of p.
//
// Segments are split on the segment separator; a line feed following it is
// tolerated. Fields are split escape-aware. MSH-2 is taken verbatim.
func Parse(raw string, p Profile) (*Message, error) {
	msg := NewMessage(p)
	lines := strings.Split(raw, string(p.segment))
	for i, line := range lines {
		line = strings.TrimPrefix(line, "\n")
		if line == "" {
			continue
		}
		seg, err := parseSegment(line, p)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		msg.segments = append(msg.segments, seg)
	}
	if len(msg.segments) == 0 {
		return nil, ErrEmptyMessage
	}
	return msg, nil
}

// Decode reads all of r and parses it with Parse.
func Decode(r io.Reader, p Profile) (*Message, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(string(raw), p)
}

func parseSegment(line string, p Profile) (*Segment, error) {
	if isHeaderLine(line, p) {
		return parseHeader(line, p), nil
	}
	tokens := splitEscaped(line, p.field, p.escape)
	if tokens[0] == "" {
		return nil, ErrMissingSegmentType
	}
	fields := make([]Field, 0, len(tokens)-1)
	for _, tok := range tokens[1:] {
		fields = append(fields, Encoded(tok))
	}
	return &Segment{name: tokens[0], fields: fields, profile: p}, nil
}

func isHeaderLine(line string, p Profile) bool {
	return len(line) > len(headerSegment) &&
		strings.HasPrefix(line, headerSegment) &&
		line[len(headerSegment)] == p.field
}

// parseHeader handles MSH, where the byte after the type code is MSH-1 and
// the encoding characters in MSH-2 contain the escape character unpaired.
func parseHeader(line string, p Profile) *Segment {
	rest := line[len(headerSegment)+1:]
	fields := []Field{Encoded(string(p.field))}
	idx := strings.IndexByte(rest, p.field)
	if idx < 0 {
		fields = append(fields, Encoded(rest))
		return &Segment{name: headerSegment, fields: fields, profile: p}
	}
	fields = append(fields, Encoded(rest[:idx]))
	for _, tok := range splitEscaped(rest[idx+1:], p.field, p.escape) {
		fields = append(fields, Encoded(tok))
	}
	return &Segment{name: headerSegment, fields: fields, profile: p}
}
