package session

import (
	"time"

	"github.com/danmuck/hl7ctl/internal/hl7"
	"github.com/danmuck/hl7ctl/internal/protocol/mllp"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// TLSConfig describes optional TLS on the MLLP stream.
type TLSConfig struct {
	Enabled            bool
	Mutual             bool
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

// Config defines per-connection transport settings.
//
// ReadTimeout and WriteTimeout of zero leave the stream without deadlines;
// Send then blocks until the peer answers or closes.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// MaxConnectAttempts bounds DialRetry; zero retries until the context ends.
	MaxConnectAttempts int

	Framing mllp.Framing
	Limits  mllp.Limits
	Profile hl7.Profile

	SecurityMode SecurityMode
	TLS          TLSConfig
	Backoff      BackoffConfig
}

// DefaultConfig returns the standard MLLP client settings.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		MaxConnectAttempts: 1,
		Framing:            mllp.DefaultFraming(),
		Limits:             mllp.DefaultLimits(),
		Profile:            hl7.DefaultProfile(),
		SecurityMode:       SecurityModeDevelopment,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills unset framing, limits and profile from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Framing.Validate() != nil {
		c.Framing = def.Framing
	}
	c.Limits = c.Limits.WithDefaults()
	if c.Profile.Validate() != nil {
		c.Profile = def.Profile
	}
	return c
}
