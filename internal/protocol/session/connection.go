package session

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/hl7ctl/internal/hl7"
	"github.com/danmuck/hl7ctl/internal/observability"
	"github.com/danmuck/hl7ctl/internal/protocol/mllp"
)

// Connection is one open MLLP stream to a receiver.
type Connection struct {
	cfg  Config
	conn net.Conn
	peer string
}

// Dial opens a stream to host:port. Any failure, including invalid TLS
// settings, is returned as a KindConnection error.
func Dial(ctx context.Context, host string, port int, cfg Config) (*Connection, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, connectionError("dial", err)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, connectionError("dial", err)
	}
	if !cfg.TLS.Enabled {
		return NewConnection(raw, cfg), nil
	}

	tlsCfg, err := cfg.ClientTLSConfig(host)
	if err != nil {
		_ = raw.Close()
		return nil, connectionError("dial", err)
	}
	conn := tls.Client(raw, tlsCfg)
	handshakeCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		handshakeCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = raw.Close()
		return nil, connectionError("handshake", err)
	}
	return NewConnection(conn, cfg), nil
}

// DialRetry calls Dial until it succeeds, the context ends, or
// cfg.MaxConnectAttempts is reached, sleeping per cfg.Backoff in between.
func DialRetry(ctx context.Context, host string, port int, cfg Config) (*Connection, error) {
	rng := newBackoffRand()
	attempt := 0
	for {
		attempt++
		conn, err := Dial(ctx, host, port, cfg)
		if err == nil {
			return conn, nil
		}
		if cfg.MaxConnectAttempts > 0 && attempt >= cfg.MaxConnectAttempts {
			return nil, err
		}
		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Warn().
			Str("host", host).
			Int("port", port).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Err(err).
			Msg("mllp dial failed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, connectionError("dial", ctx.Err())
		case <-timer.C:
		}
	}
}

// NewConnection wraps an already established stream.
func NewConnection(conn net.Conn, cfg Config) *Connection {
	return &Connection{
		cfg:  cfg.WithDefaults(),
		conn: conn,
		peer: conn.RemoteAddr().String(),
	}
}

func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send writes req as one frame and waits for the reply frame.
//
// Write and read failures are KindConnection errors. A reply that is empty
// after unwrapping wraps ErrNoResponse, and a reply that does not parse is
// returned with its parse error; both are KindProtocol.
func (c *Connection) Send(req *hl7.Message) (*hl7.Message, error) {
	start := time.Now()
	resp, n, err := c.exchange(req)
	result := observability.ResultOK
	switch {
	case IsKind(err, KindConnection):
		result = observability.ResultConnectionError
	case err != nil:
		result = observability.ResultProtocolError
	}
	observability.RecordExchange(c.peer, result, time.Since(start))

	event := log.Debug()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.
		Str("peer", c.peer).
		Int("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("mllp exchange")
	return resp, err
}

func (c *Connection) exchange(req *hl7.Message) (*hl7.Message, int, error) {
	if req == nil {
		return nil, 0, protocolError("send", ErrNilRequest)
	}
	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := mllp.WriteFrame(c.conn, req.Bytes(), c.cfg.Framing); err != nil {
		return nil, 0, connectionError("write", err)
	}

	if c.cfg.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
	payload, err := mllp.ReadResponse(c.conn, c.cfg.Framing, c.cfg.Limits)
	if err != nil {
		return nil, 0, connectionError("read", err)
	}
	if len(payload) == 0 {
		return nil, 0, protocolError("read", ErrNoResponse)
	}

	resp, err := hl7.Parse(string(payload), c.cfg.Profile)
	if err != nil {
		return nil, len(payload), protocolError("parse", err)
	}
	return resp, len(payload), nil
}

// Close releases the stream. It is meant to be called once; later calls
// return whatever the underlying connection reports.
func (c *Connection) Close() error {
	return c.conn.Close()
}
