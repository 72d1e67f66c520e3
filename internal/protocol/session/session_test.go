package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/hl7ctl/internal/hl7"
	"github.com/danmuck/hl7ctl/internal/protocol/mllp"
	"github.com/danmuck/hl7ctl/internal/testutil/testlog"
)

const (
	testRequest = "MSH|^~\\&|AppA|FacA|AppB|FacB|20240101120000||ADT^A01|CTRL42|P|2.3\rPID|1\r"
	testReply   = "MSH|^~\\&|AppB|FacB|AppA|FacA|20240101120000||ACK|CTRL42|P|2.3\rMSA|AA|CTRL42\r"
)

// startPeer runs handle against the first connection accepted on a
// loopback listener and returns the listener address.
func startPeer(t *testing.T, handle func(net.Conn)) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func readRequest(conn net.Conn) ([]byte, error) {
	return mllp.ReadFrame(bufio.NewReader(conn), mllp.DefaultFraming(), mllp.DefaultLimits())
}

func parseTestRequest(t *testing.T) *hl7.Message {
	t.Helper()
	msg, err := hl7.Parse(testRequest, hl7.DefaultProfile())
	if err != nil {
		t.Fatalf("parse request: %v", err)
	}
	return msg
}

func dialPeer(t *testing.T, host string, port int) *Connection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := Dial(ctx, host, port, DefaultConfig())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestSendReceivesFramedReply(t *testing.T) {
	testlog.Start(t)
	got := make(chan []byte, 1)
	host, port := startPeer(t, func(conn net.Conn) {
		payload, err := readRequest(conn)
		if err != nil {
			return
		}
		got <- payload
		_, _ = mllp.WriteFrame(conn, []byte(testReply), mllp.DefaultFraming())
	})

	conn := dialPeer(t, host, port)
	resp, err := conn.Send(parseTestRequest(t))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if string(<-got) != testRequest {
		t.Fatalf("peer received unexpected payload")
	}
	if resp.String() != testReply {
		t.Fatalf("unexpected reply: %q", resp.String())
	}
	ack := hl7.AckFromMessage(resp)
	if !ack.Accepted() || ack.ControlID() != "CTRL42" {
		t.Fatalf("unexpected ack: %q %q", ack.Code(), ack.ControlID())
	}
}

func TestSendRecognizesSuffixSplitAcrossReads(t *testing.T) {
	testlog.Start(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	host, port := startPeer(t, func(conn net.Conn) {
		if _, err := readRequest(conn); err != nil {
			return
		}
		framed := mllp.DefaultFraming().Wrap([]byte(testReply))
		_, _ = conn.Write(framed[:len(framed)-1])
		time.Sleep(50 * time.Millisecond)
		_, _ = conn.Write(framed[len(framed)-1:])
		// Hold the stream open; only the suffix can end the read.
		<-release
	})

	conn := dialPeer(t, host, port)
	req := parseTestRequest(t)
	done := make(chan error, 1)
	go func() {
		_, err := conn.Send(req)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("send: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("send did not complete after split suffix")
	}
}

func TestSendEmptyReplyIsProtocolError(t *testing.T) {
	testlog.Start(t)
	for name, reply := range map[string][]byte{
		"framed empty": mllp.DefaultFraming().Wrap(nil),
		"closed":       nil,
	} {
		host, port := startPeer(t, func(conn net.Conn) {
			if _, err := readRequest(conn); err != nil {
				return
			}
			if len(reply) > 0 {
				_, _ = conn.Write(reply)
			}
		})
		conn := dialPeer(t, host, port)
		_, err := conn.Send(parseTestRequest(t))
		if !IsKind(err, KindProtocol) {
			t.Fatalf("%s: expected protocol error, got %v", name, err)
		}
		if !errors.Is(err, ErrNoResponse) {
			t.Fatalf("%s: expected ErrNoResponse, got %v", name, err)
		}
		if !strings.Contains(err.Error(), "no response from server") {
			t.Fatalf("%s: unexpected message: %v", name, err)
		}
	}
}

func TestSendUnparseableReplyIsProtocolError(t *testing.T) {
	testlog.Start(t)
	host, port := startPeer(t, func(conn net.Conn) {
		if _, err := readRequest(conn); err != nil {
			return
		}
		_, _ = mllp.WriteFrame(conn, []byte("|no segment type\r"), mllp.DefaultFraming())
	})
	conn := dialPeer(t, host, port)
	_, err := conn.Send(parseTestRequest(t))
	if !IsKind(err, KindProtocol) || !errors.Is(err, hl7.ErrMissingSegmentType) {
		t.Fatalf("expected protocol parse error, got %v", err)
	}
}

func TestSendStopsAtResponseCeiling(t *testing.T) {
	testlog.Start(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	host, port := startPeer(t, func(conn net.Conn) {
		if _, err := readRequest(conn); err != nil {
			return
		}
		oversized := append([]byte{mllp.StartBlock}, "MSH|^~\\&|"...)
		oversized = append(oversized, bytes.Repeat([]byte("A"), 9000)...)
		_, _ = conn.Write(oversized)
		<-release
	})

	conn := dialPeer(t, host, port)
	req := parseTestRequest(t)
	done := make(chan error, 1)
	go func() {
		resp, err := conn.Send(req)
		// One chunk may land past the ceiling before the loop stops.
		if err == nil && len(resp.String()) > 8192+256 {
			err = errors.New("reply longer than ceiling")
		}
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("send: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("send did not stop at the response ceiling")
	}
}

func TestDialFailureIsConnectionError(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	_, err = Dial(context.Background(), "127.0.0.1", port, DefaultConfig())
	if !IsKind(err, KindConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	var se *Error
	if !errors.As(err, &se) || se.Op != "dial" || se.Err == nil {
		t.Fatalf("unexpected error shape: %#v", err)
	}
}

func TestDialRetryStopsAtMaxAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.MaxConnectAttempts = 3
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	start := time.Now()
	if _, err := DialRetry(context.Background(), "127.0.0.1", port, cfg); !IsKind(err, KindConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("retry took too long")
	}
}

func TestSendNilRequest(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer server.Close()
	conn := NewConnection(client, DefaultConfig())
	defer conn.Close()

	if _, err := conn.Send(nil); !errors.Is(err, ErrNilRequest) {
		t.Fatalf("expected ErrNilRequest, got %v", err)
	}
}

func TestSendWriteFailureIsConnectionError(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	_ = server.Close()
	conn := NewConnection(client, DefaultConfig())
	defer conn.Close()

	if _, err := conn.Send(parseTestRequest(t)); !IsKind(err, KindConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestErrorKindString(t *testing.T) {
	err := &Error{Kind: KindProtocol, Op: "read", Err: ErrNoResponse}
	if got := err.Error(); got != "session: read protocol error: session: no response from server" {
		t.Fatalf("unexpected error text: %q", got)
	}
	if IsKind(errors.New("plain"), KindConnection) {
		t.Fatalf("plain errors carry no kind")
	}
}

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	got := NextBackoffDelay(cfg, 1, rng)
	if got < 125*time.Millisecond || got > 375*time.Millisecond {
		t.Fatalf("jitter out of range: %v", got)
	}
}

func TestValidateClientTransportProductionRequiresTLS(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.SecurityMode = SecurityModeProduction
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}

	cfg.TLS.Enabled = true
	cfg.TLS.InsecureSkipVerify = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSInsecureSkipNotAllow) {
		t.Fatalf("expected ErrTLSInsecureSkipNotAllow, got %v", err)
	}

	cfg.SecurityMode = "staging"
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrInvalidSecurityMode) {
		t.Fatalf("expected ErrInvalidSecurityMode, got %v", err)
	}
}

func TestValidateClientTransportMutualRequiresCertKeyCA(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.TLS.Enabled = true
	cfg.TLS.Mutual = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}

	cfg.TLS.CAFile = "/tmp/ca.pem"
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}

	cfg.TLS.CertFile = "/tmp/client.pem"
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSKeyFileRequired) {
		t.Fatalf("expected ErrTLSKeyFileRequired, got %v", err)
	}

	cfg.TLS.KeyFile = "/tmp/client.key"
	if err := cfg.ValidateClientTransport(); err != nil {
		t.Fatalf("expected valid transport config, got %v", err)
	}
}

func TestValidateServerTransport(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.SecurityMode = SecurityModeProduction
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}

	cfg.TLS.Enabled = true
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}

	cfg.TLS.CertFile = "/tmp/server.pem"
	cfg.TLS.KeyFile = "/tmp/server.key"
	cfg.TLS.Mutual = true
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}
}
