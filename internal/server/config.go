package server

import (
	"strings"
	"time"

	"github.com/danmuck/hl7ctl/internal/protocol/session"
)

// Config defines one MLLP receiver.
type Config struct {
	NodeID     string
	ListenAddr string
	// AdminAddr enables the admin HTTP server when non-empty.
	AdminAddr        string
	AdminCORSOrigins []string

	// ReadTimeout bounds the wait for the next frame on an idle
	// connection; zero waits indefinitely.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// DetectProfile takes delimiters from each inbound MSH instead of
	// Session.Profile.
	DetectProfile bool

	// Session carries the framing, limits, profile and TLS settings shared
	// with the client side.
	Session session.Config
}

func DefaultConfig() Config {
	return Config{
		NodeID:       "hl7ctl",
		ListenAddr:   ":2575",
		WriteTimeout: 15 * time.Second,
		Session:      session.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.NodeID) == "" {
		c.NodeID = def.NodeID
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	c.Session = c.Session.WithDefaults()
	return c
}
