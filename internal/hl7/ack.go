package hl7

import "strings"

const ackSegment = "MSA"

// AckMode is the acknowledgment mode requested by the sender.
type AckMode int

const (
	// ModeNormal is original-mode acknowledgment: codes AA, AE, AR.
	ModeNormal AckMode = iota
	// ModeEnhanced is enhanced-mode acknowledgment: codes CA, CE, CR.
	ModeEnhanced
)

func (m AckMode) String() string {
	if m == ModeEnhanced {
		return "enhanced"
	}
	return "normal"
}

func (m AckMode) prefix() string {
	if m == ModeEnhanced {
		return "C"
	}
	return "A"
}

// Ack is an acknowledgment message under construction. It wraps a Message,
// so every Message accessor is available on an Ack directly.
type Ack struct {
	*Message
	mode AckMode
	// base is the fallback profile for requests without a usable header.
	base Profile
}

// NewAck returns an empty acknowledgment bound to p.
func NewAck(p Profile) *Ack {
	return &Ack{Message: NewMessage(p), base: p}
}

// NewAckFromRequest derives an acknowledgment for req, defaulting to p
// when req carries no usable header.
func NewAckFromRequest(req *Message, p Profile) *Ack {
	ack := NewAck(p)
	ack.ImportRequest(req)
	return ack
}

// ParseAck parses an acknowledgment received from a peer. The mode is
// taken from the MSA-1 prefix letter.
func ParseAck(raw string, p Profile) (*Ack, error) {
	msg, err := Parse(raw, p)
	if err != nil {
		return nil, err
	}
	return AckFromMessage(msg), nil
}

// AckFromMessage views an already-parsed reply as an acknowledgment.
func AckFromMessage(msg *Message) *Ack {
	ack := &Ack{Message: msg, base: msg.profile}
	if strings.HasPrefix(ack.Code(), "C") {
		ack.mode = ModeEnhanced
	}
	return ack
}

// ImportRequest rebuilds the acknowledgment from req: header at index 0
// with addressing swapped, MSA at index 1 carrying a success code and the
// request's control ID. The profile is derived from the request header on
// every call; a request without one yields an ACK built from the profile
// the Ack was created with.
func (a *Ack) ImportRequest(req *Message) {
	a.reset()

	var reqHeader *Segment
	if req != nil {
		reqHeader, _ = req.Segment(0)
	}

	profile := a.base
	if derived, ok := ProfileFromHeader(reqHeader, a.base); ok {
		profile = derived
	}
	a.setProfile(profile)

	var msh *Segment
	if reqHeader != nil {
		msh = newSegmentFields(headerSegment, reqHeader.Fields(1), profile)
		if reqHeader.Name() != headerSegment {
			msh.SetFieldRaw(1, string(profile.field))
			msh.SetFieldRaw(2, profile.EncodingCharacters())
		}
	} else {
		msh = NewSegment(headerSegment, profile)
	}

	msa := NewSegment(ackSegment, profile)
	if msh.Raw(15) != "" || msh.Raw(16) != "" {
		a.mode = ModeEnhanced
		msa.SetField(1, "CA")
	} else {
		a.mode = ModeNormal
		msa.SetField(1, "AA")
	}

	msh.SetField(9, "ACK")
	if reqHeader != nil {
		msh.PutField(3, reqHeader.Field(5))
		msh.PutField(4, reqHeader.Field(6))
		msh.PutField(5, reqHeader.Field(3))
		msh.PutField(6, reqHeader.Field(4))
		msa.PutField(2, reqHeader.Field(10))
	}

	a.AddSegment(msh)
	a.AddSegment(msa)
}

// Mode returns the mode determined by the last ImportRequest.
func (a *Ack) Mode() AckMode { return a.mode }

// SetAckCode writes the acknowledgment code to MSA-1. A one-letter code
// (A, E, R) is prefixed with the mode letter; longer codes are used as-is.
// A non-empty detail goes to MSA-3. It returns false when the message has
// no segment at index 1 to receive the code.
func (a *Ack) SetAckCode(code, detail string) bool {
	if len(code) == 1 {
		code = a.mode.prefix() + code
	}
	msa, ok := a.Segment(1)
	if !ok {
		return false
	}
	msa.SetField(1, code)
	if detail != "" {
		msa.SetField(3, detail)
	}
	return true
}

// SetErrorMessage marks the acknowledgment as an application error (AE or
// CE) with detail in MSA-3.
func (a *Ack) SetErrorMessage(detail string) bool {
	return a.SetAckCode("E", detail)
}

// Code returns MSA-1.
func (a *Ack) Code() string {
	return a.msaValue(1)
}

// ControlID returns MSA-2, the control ID being acknowledged.
func (a *Ack) ControlID() string {
	return a.msaValue(2)
}

// Detail returns MSA-3.
func (a *Ack) Detail() string {
	return a.msaValue(3)
}

// Accepted reports whether the code is AA or CA.
func (a *Ack) Accepted() bool {
	code := a.Code()
	return len(code) == 2 && code[1] == 'A'
}

func (a *Ack) msaValue(n int) string {
	msa, ok := a.SegmentByName(ackSegment)
	if !ok {
		return ""
	}
	return msa.Value(n)
}
