package hl7

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Escape encodes every delimiter byte in value as an HL7 escape sequence:
// \F\ field, \S\ component, \R\ repetition, \T\ subcomponent, \E\ escape.
// The segment separator (and nothing else) is written as a hex run, \X0D\
// for the default carriage return.
func (p Profile) Escape(value string) string {
	if !p.needsEscape(value) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value) + 8)
	for i := 0; i < len(value); i++ {
		c := value[i]
		var code string
		switch c {
		case p.field:
			code = "F"
		case p.component:
			code = "S"
		case p.repetition:
			code = "R"
		case p.subcomponent:
			code = "T"
		case p.escape:
			code = "E"
		case p.segment:
			code = fmt.Sprintf("X%02X", c)
		default:
			b.WriteByte(c)
			continue
		}
		b.WriteByte(p.escape)
		b.WriteString(code)
		b.WriteByte(p.escape)
	}
	return b.String()
}

// Unescape decodes the sequences Escape produces, plus any \Xhh..\ hex run.
// Unknown or unterminated sequences are kept verbatim.
func (p Profile) Unescape(value string) string {
	if strings.IndexByte(value, p.escape) < 0 {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != p.escape {
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(value[i+1:], p.escape)
		if end < 0 {
			b.WriteString(value[i:])
			break
		}
		seq := value[i+1 : i+1+end]
		if decoded, ok := p.decodeSequence(seq); ok {
			b.WriteString(decoded)
		} else {
			b.WriteString(value[i : i+end+2])
		}
		i += end + 1
	}
	return b.String()
}

func (p Profile) decodeSequence(seq string) (string, bool) {
	switch seq {
	case "F":
		return string(p.field), true
	case "S":
		return string(p.component), true
	case "R":
		return string(p.repetition), true
	case "T":
		return string(p.subcomponent), true
	case "E":
		return string(p.escape), true
	}
	if len(seq) > 1 && seq[0] == 'X' {
		raw, err := hex.DecodeString(seq[1:])
		if err != nil {
			return "", false
		}
		return string(raw), true
	}
	return "", false
}

func (p Profile) needsEscape(value string) bool {
	for i := 0; i < len(value); i++ {
		if p.isDelimiter(value[i]) {
			return true
		}
	}
	return false
}

// splitEscaped splits s on sep, except while an escape sequence is open:
// a sep byte between an escape marker and its terminator is content.
func splitEscaped(s string, sep, esc byte) []string {
	out := make([]string, 0, 8)
	start := 0
	inEscape := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case esc:
			inEscape = !inEscape
		case sep:
			if inEscape {
				continue
			}
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
