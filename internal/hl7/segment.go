package hl7

const headerSegment = "MSH"

// Segment is one typed line of a message. Field numbers are 1-based.
type Segment struct {
	name    string
	fields  []Field
	profile Profile
}

// NewSegment returns an empty segment of the given type. An MSH segment is
// seeded with MSH-1 (field separator) and MSH-2 (encoding characters).
func NewSegment(name string, p Profile) *Segment {
	s := &Segment{name: name, profile: p}
	if name == headerSegment {
		s.fields = []Field{
			Encoded(string(p.field)),
			Encoded(p.EncodingCharacters()),
		}
	}
	return s
}

// newSegmentFields builds a segment from already-copied fields.
func newSegmentFields(name string, fields []Field, p Profile) *Segment {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{text: f.text, encoded: f.encoded}
	}
	return &Segment{name: name, fields: out, profile: p}
}

// Name returns the segment type code, e.g. "MSH".
func (s *Segment) Name() string { return s.name }

// Len returns the highest populated field number.
func (s *Segment) Len() int { return len(s.fields) }

// Field returns field n, or the zero Field when n is out of range.
func (s *Segment) Field(n int) Field {
	if n < 1 || n > len(s.fields) {
		return Field{}
	}
	f := s.fields[n-1]
	f.parts = nil
	return f
}

// Value returns field n with escape sequences resolved ("" when absent).
func (s *Segment) Value(n int) string {
	if s.isVerbatim(n) {
		return s.Raw(n)
	}
	return s.Field(n).Decode(s.profile)
}

// Raw returns the wire text of field n ("" when absent).
func (s *Segment) Raw(n int) string {
	if n < 1 || n > len(s.fields) {
		return ""
	}
	f := s.fields[n-1]
	if s.isVerbatim(n) {
		return f.text
	}
	return f.Encode(s.profile)
}

// IsNull reports whether field n holds the profile's explicit-null token.
func (s *Segment) IsNull(n int) bool {
	return s.Raw(n) == s.profile.null
}

// SetField stores value as literal text in field n, extending the segment
// with empty fields as needed. Delimiters in value are escaped on output.
func (s *Segment) SetField(n int, value string) {
	if s.isVerbatim(n) {
		s.put(n, Encoded(value))
		return
	}
	s.put(n, Literal(value))
}

// SetFieldRaw stores wire text in field n; its separators are structure.
func (s *Segment) SetFieldRaw(n int, raw string) {
	s.put(n, Encoded(raw))
}

// PutField stores a copy of f in field n.
func (s *Segment) PutField(n int, f Field) {
	s.put(n, Field{text: f.text, encoded: f.encoded})
}

// Fields returns copies of the fields from start (1-based) to the end.
func (s *Segment) Fields(start int) []Field {
	if start < 1 {
		start = 1
	}
	if start > len(s.fields) {
		return []Field{}
	}
	out := make([]Field, 0, len(s.fields)-start+1)
	for _, f := range s.fields[start-1:] {
		out = append(out, Field{text: f.text, encoded: f.encoded})
	}
	return out
}

// Component returns the decoded value at field n, repetition rep,
// component comp, subcomponent sub, all 1-based.
func (s *Segment) Component(n, rep, comp, sub int) string {
	if n < 1 || n > len(s.fields) {
		return ""
	}
	return s.fields[n-1].component(s.profile, rep, comp, sub)
}

// SetComponent writes value at the given 1-based position of field n.
func (s *Segment) SetComponent(n, rep, comp, sub int, value string) {
	if n < 1 || rep < 1 || comp < 1 || sub < 1 {
		return
	}
	s.grow(n)
	s.fields[n-1].setComponent(s.profile, rep, comp, sub, value)
}

// Equal reports whether both segments encode to the same fields.
func (s *Segment) Equal(o *Segment) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.name != o.name || len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.Raw(i+1) != o.Raw(i+1) {
			return false
		}
	}
	return true
}

func (s *Segment) put(n int, f Field) {
	if n < 1 {
		return
	}
	s.grow(n)
	s.fields[n-1] = f
}

func (s *Segment) grow(n int) {
	for len(s.fields) < n {
		s.fields = append(s.fields, Field{})
	}
}

// rebind moves the segment onto a message profile and drops split caches.
func (s *Segment) rebind(p Profile) {
	s.profile = p
	for i := range s.fields {
		s.fields[i].parts = nil
	}
}

// isVerbatim reports MSH-1 and MSH-2, which carry delimiters themselves
// and are never escaped.
func (s *Segment) isVerbatim(n int) bool {
	return s.name == headerSegment && (n == 1 || n == 2)
}
