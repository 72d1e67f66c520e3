package hl7

import (
	"fmt"
	"math/rand"
	"time"
)

// TimestampLayout is the HL7 DTM layout used for MSH-7.
const TimestampLayout = "20060102150405"

// NewHeader returns an MSH segment for p with MSH-7 set to the current
// time, MSH-10 to a control ID derived from it and MSH-12 to the version.
func NewHeader(p Profile) *Segment {
	return newHeaderAt(p, time.Now())
}

func newHeaderAt(p Profile, now time.Time) *Segment {
	msh := NewSegment(headerSegment, p)
	stamp := now.Format(TimestampLayout)
	msh.SetField(7, stamp)
	msh.SetField(10, ControlID(stamp))
	msh.SetField(12, p.version)
	return msh
}

// ControlID returns stamp followed by five random digits.
func ControlID(stamp string) string {
	return fmt.Sprintf("%s%d", stamp, 10000+rand.Intn(90000))
}

// NewMessageWithHeader returns a message for p whose first segment is a
// fresh header with MSH-9 set to messageType (e.g. "ADT^A01").
func NewMessageWithHeader(p Profile, messageType string) *Message {
	msg := NewMessage(p)
	msh := NewHeader(p)
	if messageType != "" {
		msh.SetFieldRaw(9, messageType)
	}
	msg.AddSegment(msh)
	return msg
}
