package session

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/danmuck/hl7ctl/internal/protocol/mllp"
	"github.com/danmuck/hl7ctl/internal/testutil/testlog"
	"github.com/danmuck/hl7ctl/internal/testutil/tlstest"
)

func TestSendOverMutualTLS(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir, "hl7-test-ca")
	serverCert, serverKey := ca.IssueLoopbackServerCert(t, dir)
	clientCert, clientKey := ca.IssueClientCert(t, dir, "hl7-sender")

	serverCfg := DefaultConfig()
	serverCfg.TLS = TLSConfig{Enabled: true, Mutual: true, CAFile: ca.CAFile(), CertFile: serverCert, KeyFile: serverKey}
	if err := serverCfg.ValidateServerTransport(); err != nil {
		t.Fatalf("server transport: %v", err)
	}
	tlsCfg, err := serverCfg.ServerTLSConfig()
	if err != nil {
		t.Fatalf("server tls config: %v", err)
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", tlsCfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := mllp.ReadFrame(bufio.NewReader(conn), mllp.DefaultFraming(), mllp.DefaultLimits()); err != nil {
			return
		}
		_, _ = mllp.WriteFrame(conn, []byte(testReply), mllp.DefaultFraming())
	}()

	clientCfg := DefaultConfig()
	clientCfg.SecurityMode = SecurityModeProduction
	clientCfg.TLS = TLSConfig{Enabled: true, Mutual: true, CAFile: ca.CAFile(), CertFile: clientCert, KeyFile: clientKey}
	addr := ln.Addr().(*net.TCPAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, addr.IP.String(), addr.Port, clientCfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp, err := conn.Send(parseTestRequest(t))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.String() != testReply {
		t.Fatalf("unexpected reply: %q", resp.String())
	}
}

func TestDialRejectsUntrustedServer(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	serverCA := tlstest.NewAuthority(t, t.TempDir(), "server-ca")
	otherCA := tlstest.NewAuthority(t, dir, "other-ca")
	serverCert, serverKey := serverCA.IssueLoopbackServerCert(t, dir)

	serverCfg := DefaultConfig()
	serverCfg.TLS = TLSConfig{Enabled: true, CertFile: serverCert, KeyFile: serverKey}
	tlsCfg, err := serverCfg.ServerTLSConfig()
	if err != nil {
		t.Fatalf("server tls config: %v", err)
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", tlsCfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.(*tls.Conn).Handshake()
	}()

	clientCfg := DefaultConfig()
	clientCfg.TLS = TLSConfig{Enabled: true, CAFile: otherCA.CAFile()}
	addr := ln.Addr().(*net.TCPAddr)
	if _, err := Dial(context.Background(), addr.IP.String(), addr.Port, clientCfg); !IsKind(err, KindConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
}
