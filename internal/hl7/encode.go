package hl7

import (
	"io"
	"strings"
)

// Encode writes msg to w. Each segment is terminated by the segment
// separator; literal field content is escaped.
func Encode(w io.Writer, msg *Message) error {
	if msg == nil {
		return ErrEmptyMessage
	}
	_, err := io.WriteString(w, msg.String())
	return err
}

// String returns the wire text of the message.
func (m *Message) String() string {
	var b strings.Builder
	for _, seg := range m.segments {
		writeSegment(&b, seg, m.profile)
		b.WriteByte(m.profile.segment)
	}
	return b.String()
}

// Bytes returns the wire text of the message.
func (m *Message) Bytes() []byte {
	return []byte(m.String())
}

// String returns the wire text of the segment without a terminator.
func (s *Segment) String() string {
	var b strings.Builder
	writeSegment(&b, s, s.profile)
	return b.String()
}

func writeSegment(b *strings.Builder, seg *Segment, p Profile) {
	b.WriteString(seg.name)
	for i, f := range seg.fields {
		n := i + 1
		if seg.name == headerSegment && n == 1 {
			// MSH-1 is the separator written just below.
			continue
		}
		b.WriteByte(p.field)
		if seg.isVerbatim(n) {
			b.WriteString(f.text)
			continue
		}
		b.WriteString(f.Encode(p))
	}
}
