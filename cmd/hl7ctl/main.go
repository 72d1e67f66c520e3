package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/hl7ctl/internal/logging"
)

const usage = `usage: hl7ctl <command> [flags]

commands:
  send      send one message and print the acknowledgment
  listen    run an acknowledging MLLP receiver
  init      write a starter config file
  validate  load a config file and report errors
`

func main() {
	logging.ConfigureRuntime()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	var err error
	code := 0
	switch args[0] {
	case "send":
		code, err = runSend(ctx, args[1:], stdin, stdout)
	case "listen":
		err = runListen(ctx, args[1:])
	case "init":
		err = runInit(args[1:], stdout)
	case "validate":
		err = runValidate(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "hl7ctl: unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "hl7ctl %s: %v\n", args[0], err)
		return 1
	}
	return code
}
