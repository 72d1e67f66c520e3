package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/hl7ctl/internal/hl7"
	"github.com/danmuck/hl7ctl/internal/server"
	"github.com/danmuck/hl7ctl/internal/testutil/testlog"
)

func startReceiver(t *testing.T, h server.Handler) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.New(server.Config{NodeID: "cli-test"}, h).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().(*net.TCPAddr).Port
}

func TestSendFromStdinPrintsAck(t *testing.T) {
	testlog.Start(t)
	port := startReceiver(t, nil)
	stdin := strings.NewReader("MSH|^~\\&|AppA|FacA|AppB|FacB|20240101120000||ADT^A01|CTRL42|P|2.3\nPID|1\n")

	var stdout, stderr bytes.Buffer
	args := []string{"send", "-file", "-", "-host", "127.0.0.1", "-port", strconv.Itoa(port)}
	if code := run(context.Background(), args, stdin, &stdout, &stderr); code != 0 {
		t.Fatalf("unexpected exit code %d stderr=%s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "\nMSA|AA|CTRL42") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestSendReportsRejectedAck(t *testing.T) {
	testlog.Start(t)
	port := startReceiver(t, server.HandlerFunc(func(context.Context, *hl7.Message) error {
		return errors.New("not today")
	}))

	var stdout, stderr bytes.Buffer
	args := []string{"send", "-type", "ORU^R01", "-host", "127.0.0.1", "-port", strconv.Itoa(port)}
	if code := run(context.Background(), args, nil, &stdout, &stderr); code != exitNotAccepted {
		t.Fatalf("unexpected exit code %d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "MSA|AE|") || !strings.Contains(stdout.String(), "not today") {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestSendConnectionFailure(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	var stdout, stderr bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	args := []string{"send", "-type", "ADT^A01", "-host", "127.0.0.1", "-port", strconv.Itoa(port)}
	if code := run(ctx, args, nil, &stdout, &stderr); code != 1 {
		t.Fatalf("unexpected exit code %d", code)
	}
	if !strings.Contains(stderr.String(), "connection") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}

func TestInitThenValidate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "hl7ctl.yaml")

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"init", "-format", "yaml", "-output", path}, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("init exit code %d stderr=%s", code, stderr.String())
	}
	if code := run(context.Background(), []string{"validate", "-config", path}, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("validate exit code %d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "validated "+path) {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestUnknownCommand(t *testing.T) {
	testlog.Start(t)
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"bogus"}, nil, &stdout, &stderr); code != 2 {
		t.Fatalf("unexpected exit code %d", code)
	}
	if code := run(context.Background(), nil, nil, &stdout, &stderr); code != 2 {
		t.Fatalf("unexpected exit code %d", code)
	}
	if !strings.Contains(stderr.String(), "usage: hl7ctl") {
		t.Fatalf("usage not printed: %q", stderr.String())
	}
}
