package hl7

import (
	"fmt"
	"strings"
)

const (
	DefaultSegmentSeparator      = '\r'
	DefaultFieldSeparator        = '|'
	DefaultComponentSeparator    = '^'
	DefaultRepetitionSeparator   = '~'
	DefaultEscapeCharacter       = '\\'
	DefaultSubcomponentSeparator = '&'
	DefaultNull                  = `""`
	DefaultVersion               = "2.3"
)

// Profile is the delimiter set a message is encoded with.
//
// A Profile is a plain value. Messages copy it when they are built, so
// adjusting a Profile afterwards only affects messages built from then on.
type Profile struct {
	segment      byte
	field        byte
	component    byte
	repetition   byte
	subcomponent byte
	escape       byte
	null         string
	version      string
}

// DefaultProfile returns the standard HL7 delimiter set.
func DefaultProfile() Profile {
	return Profile{
		segment:      DefaultSegmentSeparator,
		field:        DefaultFieldSeparator,
		component:    DefaultComponentSeparator,
		repetition:   DefaultRepetitionSeparator,
		subcomponent: DefaultSubcomponentSeparator,
		escape:       DefaultEscapeCharacter,
		null:         DefaultNull,
		version:      DefaultVersion,
	}
}

// SegmentSeparator returns the byte that ends each segment.
func (p Profile) SegmentSeparator() byte { return p.segment }

// FieldSeparator returns the MSH-1 byte.
func (p Profile) FieldSeparator() byte { return p.field }

func (p Profile) ComponentSeparator() byte    { return p.component }
func (p Profile) RepetitionSeparator() byte   { return p.repetition }
func (p Profile) SubcomponentSeparator() byte { return p.subcomponent }
func (p Profile) EscapeCharacter() byte       { return p.escape }

// Null returns the explicit-null token (`""` by default).
func (p Profile) Null() string { return p.null }

// Version returns the HL7 version written to MSH-12 by NewHeader.
func (p Profile) Version() string { return p.version }

// EncodingCharacters returns the MSH-2 value for this profile.
func (p Profile) EncodingCharacters() string {
	return string([]byte{p.component, p.repetition, p.escape, p.subcomponent})
}

// SetSegmentSeparator sets the segment separator. It returns false and
// leaves the profile unchanged unless v is one byte no other separator uses.
func (p *Profile) SetSegmentSeparator(v string) bool {
	return p.setSeparator(&p.segment, v)
}

// SetFieldSeparator sets the field separator. It returns false and leaves
// the profile unchanged unless v is one byte no other separator uses.
func (p *Profile) SetFieldSeparator(v string) bool {
	return p.setSeparator(&p.field, v)
}

// SetComponentSeparator sets the component separator. It returns false and
// leaves the profile unchanged unless v is one byte no other separator uses.
func (p *Profile) SetComponentSeparator(v string) bool {
	return p.setSeparator(&p.component, v)
}

// SetRepetitionSeparator sets the repetition separator. It returns false and
// leaves the profile unchanged unless v is one byte no other separator uses.
func (p *Profile) SetRepetitionSeparator(v string) bool {
	return p.setSeparator(&p.repetition, v)
}

// SetSubcomponentSeparator sets the subcomponent separator. It returns false
// and leaves the profile unchanged unless v is one byte no other separator
// uses.
func (p *Profile) SetSubcomponentSeparator(v string) bool {
	return p.setSeparator(&p.subcomponent, v)
}

// SetEscapeCharacter sets the escape character. It returns false and leaves
// the profile unchanged unless v is one byte no separator uses.
func (p *Profile) SetEscapeCharacter(v string) bool {
	return p.setSeparator(&p.escape, v)
}

// SetNull sets the explicit-null token. Any string is accepted.
func (p *Profile) SetNull(v string) bool {
	p.null = v
	return true
}

// SetVersion sets the version NewHeader writes to MSH-12.
func (p *Profile) SetVersion(v string) bool {
	p.version = v
	return true
}

// Delimiters holds replacement separators for SetDelimiters. A zero byte
// keeps the current value.
type Delimiters struct {
	Segment      byte
	Field        byte
	Component    byte
	Repetition   byte
	Subcomponent byte
	Escape       byte
}

// SetDelimiters applies d as one change and validates only the result, so
// two separators may trade values. On error the profile is unchanged.
func (p *Profile) SetDelimiters(d Delimiters) error {
	next := *p
	for i, b := range []byte{d.Segment, d.Field, d.Component, d.Repetition, d.Subcomponent, d.Escape} {
		if b != 0 {
			*next.slots()[i] = b
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*p = next
	return nil
}

// setSeparator rejects anything but a single byte that no other separator
// already uses. State is untouched on rejection.
func (p *Profile) setSeparator(target *byte, v string) bool {
	if len(v) != 1 {
		return false
	}
	b := v[0]
	for _, other := range p.slots() {
		if other != target && *other == b {
			return false
		}
	}
	*target = b
	return true
}

func (p *Profile) slots() []*byte {
	return []*byte{&p.segment, &p.field, &p.component, &p.repetition, &p.subcomponent, &p.escape}
}

// Validate reports whether the separators are set and pairwise distinct.
func (p Profile) Validate() error {
	names := []string{"segment", "field", "component", "repetition", "subcomponent", "escape"}
	seen := make(map[byte]string, len(names))
	for i, slot := range p.slots() {
		if *slot == 0 {
			return fmt.Errorf("%w: %s separator not set", ErrInvalidProfile, names[i])
		}
		if prev, ok := seen[*slot]; ok {
			return fmt.Errorf("%w: %s and %s separators both %q", ErrInvalidProfile, prev, names[i], *slot)
		}
		seen[*slot] = names[i]
	}
	return nil
}

// isDelimiter reports whether b has structural meaning inside a segment.
func (p Profile) isDelimiter(b byte) bool {
	switch b {
	case p.segment, p.field, p.component, p.repetition, p.subcomponent, p.escape:
		return true
	}
	return false
}

// ProfileFromHeader derives a profile from the MSH-1 and MSH-2 values of a
// parsed header. Segment separator, null and version come from base. The
// boolean is false when seg is not a usable MSH segment.
func ProfileFromHeader(seg *Segment, base Profile) (Profile, bool) {
	if seg == nil || seg.Name() != headerSegment {
		return base, false
	}
	fs := seg.Raw(1)
	enc := seg.Raw(2)
	if len(fs) != 1 || len(enc) < 4 {
		return base, false
	}
	out := base
	out.field = fs[0]
	out.component = enc[0]
	out.repetition = enc[1]
	out.escape = enc[2]
	out.subcomponent = enc[3]
	if err := out.Validate(); err != nil {
		return base, false
	}
	return out, true
}

// DetectProfile reads MSH-1 and the four encoding characters from the start
// of raw message text. It is for receivers that accept senders with
// non-standard delimiters; Parse itself never guesses.
func DetectProfile(raw string, base Profile) (Profile, bool) {
	if len(raw) < len(headerSegment)+5 || !strings.HasPrefix(raw, headerSegment) {
		return base, false
	}
	out := base
	out.field = raw[3]
	out.component = raw[4]
	out.repetition = raw[5]
	out.escape = raw[6]
	out.subcomponent = raw[7]
	if err := out.Validate(); err != nil {
		return base, false
	}
	return out, true
}
