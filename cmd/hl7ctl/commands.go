package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/hl7ctl/internal/config"
	"github.com/danmuck/hl7ctl/internal/hl7"
	"github.com/danmuck/hl7ctl/internal/protocol/session"
	"github.com/danmuck/hl7ctl/internal/server"
)

// Exit code for a reply that is not an accept.
const exitNotAccepted = 3

func loadConfig(path string) (config.Config, error) {
	if strings.TrimSpace(path) == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	log.Info().Str("path", path).Msg("loaded config")
	return cfg, nil
}

func runSend(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) (int, error) {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "config file (.toml, .yaml)")
	file := fs.String("file", "", "message file, - for stdin")
	messageType := fs.String("type", "", "send a header-only message of this type (e.g. ADT^A01) when -file is empty")
	host := fs.String("host", "", "receiver host (overrides config)")
	port := fs.Int("port", 0, "receiver port (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return 0, err
	}
	if *host != "" {
		cfg.Client.Host = *host
	}
	if *port > 0 {
		cfg.Client.Port = *port
	}

	req, err := buildRequest(*file, *messageType, stdin, cfg.Profile)
	if err != nil {
		return 0, err
	}

	conn, err := session.DialRetry(ctx, cfg.Client.Host, cfg.Client.Port, cfg.Client.Session)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	resp, err := conn.Send(req)
	if err != nil {
		return 0, err
	}
	fmt.Fprintln(stdout, displayText(resp))

	ack := hl7.AckFromMessage(resp)
	if !ack.Accepted() {
		log.Warn().
			Str("code", ack.Code()).
			Str("control_id", ack.ControlID()).
			Str("detail", ack.Detail()).
			Msg("message not accepted")
		return exitNotAccepted, nil
	}
	return 0, nil
}

func buildRequest(file, messageType string, stdin io.Reader, p hl7.Profile) (*hl7.Message, error) {
	switch {
	case file == "-":
		return readMessage(stdin, p)
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readMessage(f, p)
	case messageType != "":
		return hl7.NewMessageWithHeader(p, messageType), nil
	default:
		return nil, fmt.Errorf("one of -file or -type is required")
	}
}

// readMessage accepts files saved with LF or CRLF line endings and
// normalizes them to the profile's segment separator.
func readMessage(r io.Reader, p hl7.Profile) (*hl7.Message, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", string(p.SegmentSeparator()))
	return hl7.Parse(text, p)
}

// displayText renders segments one per line for a terminal.
func displayText(msg *hl7.Message) string {
	sep := string(msg.Profile().SegmentSeparator())
	return strings.TrimRight(strings.ReplaceAll(msg.String(), sep, "\n"), "\n")
}

func runListen(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "config file (.toml, .yaml)")
	addr := fs.String("addr", "", "listen address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}

	srv := server.New(cfg.Server, server.HandlerFunc(logMessage))
	return srv.Run(ctx)
}

func logMessage(_ context.Context, msg *hl7.Message) error {
	msh, ok := msg.Header()
	if !ok {
		log.Info().Int("segments", msg.Len()).Msg("received message without header")
		return nil
	}
	log.Info().
		Str("type", msh.Raw(9)).
		Str("control_id", msh.Value(10)).
		Str("sender", msh.Value(3)).
		Int("segments", msg.Len()).
		Msg("received message")
	return nil
}

func runInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	format := fs.String("format", "toml", "config format: toml|yaml")
	output := fs.String("output", "", "output path (default hl7ctl.<format>)")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target := *output
	if target == "" {
		target = "hl7ctl." + strings.ToLower(strings.TrimSpace(*format))
	}
	if err := config.WriteTemplate(target, *format, *force); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", target)
	return nil
}

func runValidate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "config file (.toml, .yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return fmt.Errorf("-config is required")
	}
	if _, err := config.Load(*configPath); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "validated %s\n", *configPath)
	return nil
}
