package hl7

// Message is an ordered list of segments sharing one delimiter profile.
type Message struct {
	profile  Profile
	segments []*Segment
}

// NewMessage returns an empty message bound to a copy of p.
func NewMessage(p Profile) *Message {
	return &Message{profile: p}
}

// Profile returns the delimiter profile the message encodes with.
func (m *Message) Profile() Profile { return m.profile }

// Len returns the number of segments.
func (m *Message) Len() int { return len(m.segments) }

// AddSegment appends seg. The segment adopts the message's profile.
func (m *Message) AddSegment(seg *Segment) {
	if seg == nil {
		return
	}
	seg.rebind(m.profile)
	m.segments = append(m.segments, seg)
}

// Segment returns the 0-based i-th segment; false when out of range.
func (m *Message) Segment(i int) (*Segment, bool) {
	if i < 0 || i >= len(m.segments) {
		return nil, false
	}
	return m.segments[i], true
}

// SegmentByName returns the first segment with the given type code.
func (m *Message) SegmentByName(name string) (*Segment, bool) {
	for _, seg := range m.segments {
		if seg.name == name {
			return seg, true
		}
	}
	return nil, false
}

// SegmentsByName returns every segment with the given type code, in order.
func (m *Message) SegmentsByName(name string) []*Segment {
	out := make([]*Segment, 0)
	for _, seg := range m.segments {
		if seg.name == name {
			out = append(out, seg)
		}
	}
	return out
}

// Segments returns the segment list. The slice is a copy; segments are not.
func (m *Message) Segments() []*Segment {
	out := make([]*Segment, len(m.segments))
	copy(out, m.segments)
	return out
}

// Header returns segment 0 when it is an MSH segment.
func (m *Message) Header() (*Segment, bool) {
	seg, ok := m.Segment(0)
	if !ok || seg.name != headerSegment {
		return nil, false
	}
	return seg, true
}

// Equal reports structural equality: same segment types and encoded fields.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if len(m.segments) != len(o.segments) {
		return false
	}
	for i := range m.segments {
		if !m.segments[i].Equal(o.segments[i]) {
			return false
		}
	}
	return true
}

func (m *Message) setProfile(p Profile) {
	m.profile = p
	for _, seg := range m.segments {
		seg.rebind(p)
	}
}

func (m *Message) reset() {
	m.segments = nil
}
