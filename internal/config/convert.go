package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/hl7ctl/internal/hl7"
	"github.com/danmuck/hl7ctl/internal/protocol/session"
	"github.com/danmuck/hl7ctl/internal/server"
)

func applyProfile(p *hl7.Profile, raw profileFile, defined definedFunc) error {
	var delims hl7.Delimiters
	separators := []struct {
		key    string
		val    string
		target *byte
	}{
		{"segment_separator", raw.SegmentSeparator, &delims.Segment},
		{"field_separator", raw.FieldSeparator, &delims.Field},
		{"component_separator", raw.ComponentSeparator, &delims.Component},
		{"repetition_separator", raw.RepetitionSeparator, &delims.Repetition},
		{"subcomponent_separator", raw.SubcomponentSeparator, &delims.Subcomponent},
		{"escape_character", raw.EscapeCharacter, &delims.Escape},
	}
	for _, sep := range separators {
		if !defined("profile", sep.key) {
			continue
		}
		v := unescapeControl(sep.val)
		if len(v) != 1 {
			return fmt.Errorf("%w: profile.%s=%q", ErrInvalidSeparator, sep.key, sep.val)
		}
		*sep.target = v[0]
	}
	// Collisions are judged on the final set so files may swap two separators.
	if err := p.SetDelimiters(delims); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSeparator, err)
	}
	if defined("profile", "null_token") {
		p.SetNull(raw.Null)
	}
	if defined("profile", "version") {
		p.SetVersion(strings.TrimSpace(raw.Version))
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("config: profile: %w", err)
	}
	return nil
}

// unescapeControl lets files spell the segment separator as "\r" or "\n"
// literally, as well as with a real control byte.
func unescapeControl(v string) string {
	switch v {
	case `\r`:
		return "\r"
	case `\n`:
		return "\n"
	}
	return v
}

func applyClient(c *ClientConfig, raw clientFile, defined definedFunc) error {
	if defined("client", "host") {
		c.Host = strings.TrimSpace(raw.Host)
	}
	if defined("client", "port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return fmt.Errorf("%w: client.port=%d", ErrInvalidValue, raw.Port)
		}
		c.Port = raw.Port
	}
	durations := []struct {
		key    string
		val    string
		target *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &c.Session.ConnectTimeout},
		{"read_timeout", raw.ReadTimeout, &c.Session.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &c.Session.WriteTimeout},
	}
	for _, d := range durations {
		if !defined("client", d.key) {
			continue
		}
		v, err := parseDuration("client."+d.key, d.val)
		if err != nil {
			return err
		}
		*d.target = v
	}
	if defined("client", "max_connect_attempts") {
		c.Session.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if defined("client", "chunk_size") {
		c.Session.Limits.ChunkSize = raw.ChunkSize
	}
	if defined("client", "max_response_bytes") {
		c.Session.Limits.MaxResponseBytes = raw.MaxResponseBytes
	}
	if defined("client", "security_mode") {
		c.Session.SecurityMode = session.NormalizeSecurityMode(session.SecurityMode(raw.SecurityMode))
	}
	applyTLS(&c.Session.TLS, raw.TLS, "client", defined)
	if err := c.Session.ValidateClientTransport(); err != nil {
		return fmt.Errorf("config: client: %w", err)
	}
	return nil
}

func applyServer(s *server.Config, raw serverFile, defined definedFunc) error {
	if defined("server", "node_id") {
		s.NodeID = strings.TrimSpace(raw.NodeID)
	}
	if defined("server", "addr") {
		s.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if defined("server", "admin_addr") {
		s.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if defined("server", "admin_cors_origins") {
		s.AdminCORSOrigins = normalizeOrigins(raw.AdminCORSOrigins)
	}
	if defined("server", "read_timeout") {
		v, err := parseDuration("server.read_timeout", raw.ReadTimeout)
		if err != nil {
			return err
		}
		s.ReadTimeout = v
	}
	if defined("server", "write_timeout") {
		v, err := parseDuration("server.write_timeout", raw.WriteTimeout)
		if err != nil {
			return err
		}
		s.WriteTimeout = v
	}
	if defined("server", "max_frame_bytes") {
		if raw.MaxFrameBytes <= 0 {
			return fmt.Errorf("%w: server.max_frame_bytes=%d", ErrInvalidValue, raw.MaxFrameBytes)
		}
		s.Session.Limits.MaxFrameBytes = raw.MaxFrameBytes
	}
	if defined("server", "detect_profile") {
		s.DetectProfile = raw.DetectProfile
	}
	if defined("server", "security_mode") {
		s.Session.SecurityMode = session.NormalizeSecurityMode(session.SecurityMode(raw.SecurityMode))
	}
	applyTLS(&s.Session.TLS, raw.TLS, "server", defined)
	if err := s.Session.ValidateServerTransport(); err != nil {
		return fmt.Errorf("config: server: %w", err)
	}
	return nil
}

func applyTLS(t *session.TLSConfig, raw tlsFile, section string, defined definedFunc) {
	if defined(section, "tls", "enabled") {
		t.Enabled = raw.Enabled
	}
	if defined(section, "tls", "mutual") {
		t.Mutual = raw.Mutual
	}
	if defined(section, "tls", "ca_file") {
		t.CAFile = strings.TrimSpace(raw.CAFile)
	}
	if defined(section, "tls", "cert_file") {
		t.CertFile = strings.TrimSpace(raw.CertFile)
	}
	if defined(section, "tls", "key_file") {
		t.KeyFile = strings.TrimSpace(raw.KeyFile)
	}
	if defined(section, "tls", "server_name") {
		t.ServerName = strings.TrimSpace(raw.ServerName)
	}
	if defined(section, "tls", "insecure_skip_verify") {
		t.InsecureSkipVerify = raw.InsecureSkipVerify
	}
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidValue, key)
	}
	return d, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}
