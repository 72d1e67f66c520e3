package hl7

import (
	"strings"
	"testing"
	"time"
)

func TestNewHeaderDefaults(t *testing.T) {
	p := DefaultProfile()
	msh := NewHeader(p)

	if msh.Name() != "MSH" {
		t.Fatalf("unexpected segment name: %q", msh.Name())
	}
	if msh.Value(1) != "|" || msh.Value(2) != `^~\&` {
		t.Fatalf("unexpected encoding fields: %q %q", msh.Value(1), msh.Value(2))
	}
	if msh.Value(12) != p.Version() {
		t.Fatalf("unexpected version: %q", msh.Value(12))
	}
	stamp := msh.Value(7)
	if len(stamp) != len(TimestampLayout) {
		t.Fatalf("unexpected timestamp: %q", stamp)
	}
	id := msh.Value(10)
	if !strings.HasPrefix(id, stamp) || len(id) != len(stamp)+5 {
		t.Fatalf("unexpected control id: %q", id)
	}
}

func TestNewHeaderAtFixedTime(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msh := newHeaderAt(DefaultProfile(), at)
	if msh.Value(7) != "20240102030405" {
		t.Fatalf("unexpected timestamp: %q", msh.Value(7))
	}
}

func TestNewHeaderUsesProfileVersion(t *testing.T) {
	p := DefaultProfile()
	p.SetVersion("2.5.1")
	p.SetFieldSeparator("#")

	msh := NewHeader(p)
	if msh.Value(12) != "2.5.1" {
		t.Fatalf("unexpected version: %q", msh.Value(12))
	}
	if !strings.HasPrefix(msh.String(), "MSH#^~\\&#") {
		t.Fatalf("unexpected header text: %q", msh.String())
	}
}

func TestNewMessageWithHeader(t *testing.T) {
	msg := NewMessageWithHeader(DefaultProfile(), "ADT^A01")
	msh, ok := msg.Header()
	if !ok {
		t.Fatalf("expected header")
	}
	if msh.Component(9, 1, 1, 1) != "ADT" || msh.Component(9, 1, 2, 1) != "A01" {
		t.Fatalf("unexpected message type: %q", msh.Raw(9))
	}
}
