package hl7

import "strings"

// Field is the content of one field position.
//
// A literal field holds plain text that is escaped when written. An encoded
// field holds wire text (as parsed, or as built by SetComponent) whose
// repetition, component and subcomponent separators are structure.
type Field struct {
	text    string
	encoded bool

	// parts caches the split of the wire text: repetitions, then
	// components, then subcomponents. Nil until first structured access.
	parts [][][]string
}

// Literal returns a field holding plain text.
func Literal(value string) Field {
	return Field{text: value}
}

// Encoded returns a field holding wire text in some profile's delimiters.
func Encoded(raw string) Field {
	return Field{text: raw, encoded: true}
}

// IsEmpty reports whether the field has no content at all.
func (f Field) IsEmpty() bool {
	return f.text == ""
}

// Encode returns the wire text of the field under p.
func (f Field) Encode(p Profile) string {
	if f.encoded {
		return f.text
	}
	return p.Escape(f.text)
}

// Decode returns the field content with escape sequences resolved.
// Structural separators in an encoded field are returned as-is.
func (f Field) Decode(p Profile) string {
	if f.encoded {
		return p.Unescape(f.text)
	}
	return f.text
}

func (f *Field) split(p Profile) [][][]string {
	if f.parts != nil {
		return f.parts
	}
	wire := f.Encode(p)
	reps := splitEscaped(wire, p.repetition, p.escape)
	parts := make([][][]string, len(reps))
	for i, rep := range reps {
		comps := splitEscaped(rep, p.component, p.escape)
		parts[i] = make([][]string, len(comps))
		for j, comp := range comps {
			parts[i][j] = splitEscaped(comp, p.subcomponent, p.escape)
		}
	}
	f.parts = parts
	return parts
}

// component returns the decoded leaf at the 1-based position, or "".
func (f *Field) component(p Profile, rep, comp, sub int) string {
	if rep < 1 || comp < 1 || sub < 1 {
		return ""
	}
	parts := f.split(p)
	if rep > len(parts) || comp > len(parts[rep-1]) || sub > len(parts[rep-1][comp-1]) {
		return ""
	}
	return p.Unescape(parts[rep-1][comp-1][sub-1])
}

// setComponent writes value (escaped) at the 1-based position, growing the
// structure as needed, and turns the field into an encoded field.
func (f *Field) setComponent(p Profile, rep, comp, sub int, value string) {
	parts := cloneParts(f.split(p))
	for len(parts) < rep {
		parts = append(parts, [][]string{{""}})
	}
	for len(parts[rep-1]) < comp {
		parts[rep-1] = append(parts[rep-1], []string{""})
	}
	for len(parts[rep-1][comp-1]) < sub {
		parts[rep-1][comp-1] = append(parts[rep-1][comp-1], "")
	}
	parts[rep-1][comp-1][sub-1] = p.Escape(value)

	reps := make([]string, len(parts))
	for i, r := range parts {
		comps := make([]string, len(r))
		for j, c := range r {
			comps[j] = strings.Join(c, string(p.subcomponent))
		}
		reps[i] = strings.Join(comps, string(p.component))
	}
	*f = Encoded(strings.Join(reps, string(p.repetition)))
}

func cloneParts(in [][][]string) [][][]string {
	out := make([][][]string, len(in))
	for i, r := range in {
		out[i] = make([][]string, len(r))
		for j, c := range r {
			out[i][j] = append([]string(nil), c...)
		}
	}
	return out
}
