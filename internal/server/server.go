package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/hl7ctl/internal/hl7"
	"github.com/danmuck/hl7ctl/internal/observability"
	"github.com/danmuck/hl7ctl/internal/protocol/mllp"
)

// Handler processes one inbound message. A non-nil error turns the reply
// into an application error ACK carrying the error text in MSA-3.
type Handler interface {
	HandleMessage(ctx context.Context, msg *hl7.Message) error
}

type HandlerFunc func(ctx context.Context, msg *hl7.Message) error

func (f HandlerFunc) HandleMessage(ctx context.Context, msg *hl7.Message) error {
	return f(ctx, msg)
}

// Server accepts MLLP connections and acknowledges every frame it reads.
type Server struct {
	cfg     Config
	handler Handler
	started time.Time

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	active   atomic.Int64
	received atomic.Uint64
}

// New builds a Server. A nil handler accepts every message.
func New(cfg Config, handler Handler) *Server {
	if handler == nil {
		handler = HandlerFunc(func(context.Context, *hl7.Message) error { return nil })
	}
	observability.RegisterMetrics()
	return &Server{
		cfg:     cfg.withDefaults(),
		handler: handler,
		started: time.Now(),
		conns:   make(map[net.Conn]struct{}),
	}
}

func (s *Server) Config() Config {
	return s.cfg
}

// Run listens on ListenAddr (and AdminAddr when set) until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	if err := s.cfg.Session.ValidateServerTransport(); err != nil {
		return err
	}
	ln, err := s.listen()
	if err != nil {
		return err
	}
	log.Info().
		Str("node", s.cfg.NodeID).
		Str("addr", ln.Addr().String()).
		Bool("tls", s.cfg.Session.TLS.Enabled).
		Msg("mllp listening")

	adminErr := make(chan error, 1)
	if s.cfg.AdminAddr != "" {
		go func() {
			adminErr <- s.ServeAdmin(ctx, s.cfg.AdminAddr)
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

func (s *Server) listen() (net.Listener, error) {
	if !s.cfg.Session.TLS.Enabled {
		return net.Listen("tcp", s.cfg.ListenAddr)
	}
	tlsCfg, err := s.cfg.Session.ServerTLSConfig()
	if err != nil {
		return nil, err
	}
	return tls.Listen("tcp", s.cfg.ListenAddr, tlsCfg)
}

// Serve runs the accept loop on ln until ctx ends or ln fails. Open
// connections are closed on shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	stop := make(chan struct{})
	watcher := make(chan struct{})
	go func() {
		defer close(watcher)
		select {
		case <-ctx.Done():
			s.closeAllConns()
			_ = ln.Close()
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		<-watcher
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer s.closeAllConns()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)

	logger := log.With().
		Str("node", s.cfg.NodeID).
		Str("conn", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()
	active := s.active.Add(1)
	observability.ConnOpened(s.cfg.NodeID)
	logger.Info().Int64("active_clients", active).Msg("mllp client connected")
	defer func() {
		remaining := s.active.Add(-1)
		observability.ConnClosed(s.cfg.NodeID)
		logger.Info().Int64("active_clients", remaining).Msg("mllp client disconnected")
	}()

	framing := s.cfg.Session.Framing
	reader := bufio.NewReader(conn)
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		payload, err := mllp.ReadFrame(reader, framing, s.cfg.Session.Limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("mllp read frame failed")
			}
			return
		}
		s.received.Add(1)

		ack := s.Acknowledge(ctx, string(payload))
		if s.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if _, err := mllp.WriteFrame(conn, ack.Bytes(), framing); err != nil {
			logger.Warn().Err(err).Msg("mllp write ack failed")
			return
		}
		observability.RecordAckSent(s.cfg.NodeID, ack.Code())
		logger.Debug().
			Str("control_id", ack.ControlID()).
			Str("code", ack.Code()).
			Int("bytes", len(payload)).
			Msg("mllp ack sent")
	}
}

// Acknowledge parses raw, passes it to the handler and builds the reply.
// Unparseable input is rejected with AR; a handler error yields AE (or CE
// in enhanced mode).
func (s *Server) Acknowledge(ctx context.Context, raw string) *hl7.Ack {
	profile := s.cfg.Session.Profile
	if s.cfg.DetectProfile {
		profile, _ = hl7.DetectProfile(raw, profile)
	}

	msg, err := hl7.Parse(raw, profile)
	if err != nil {
		observability.RecordFrameReceived(s.cfg.NodeID, "")
		ack := hl7.NewAckFromRequest(nil, profile)
		ack.SetAckCode("R", err.Error())
		return ack
	}
	messageType := ""
	if msh, ok := msg.Header(); ok {
		messageType = msh.Raw(9)
	}
	observability.RecordFrameReceived(s.cfg.NodeID, messageType)

	ack := hl7.NewAckFromRequest(msg, profile)
	if err := s.handler.HandleMessage(ctx, msg); err != nil {
		ack.SetErrorMessage(err.Error())
	}
	return ack
}

// ActiveConnections reports the number of open client connections.
func (s *Server) ActiveConnections() int64 {
	return s.active.Load()
}

// FramesReceived reports the number of frames read since start.
func (s *Server) FramesReceived() uint64 {
	return s.received.Load()
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
