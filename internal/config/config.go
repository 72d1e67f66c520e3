package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/hl7ctl/internal/hl7"
	"github.com/danmuck/hl7ctl/internal/protocol/session"
	"github.com/danmuck/hl7ctl/internal/server"
)

var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrInvalidSeparator  = errors.New("config: invalid separator")
	ErrInvalidValue      = errors.New("config: invalid value")
)

// Config is the resolved runtime configuration for hl7ctl.
type Config struct {
	Profile hl7.Profile
	Client  ClientConfig
	Server  server.Config
}

// ClientConfig addresses one receiver for `hl7ctl send`.
type ClientConfig struct {
	Host    string
	Port    int
	Session session.Config
}

func Default() Config {
	return Config{
		Profile: hl7.DefaultProfile(),
		Client: ClientConfig{
			Host:    "127.0.0.1",
			Port:    2575,
			Session: session.DefaultConfig(),
		},
		Server: server.DefaultConfig(),
	}
}

type fileConfig struct {
	Profile profileFile `toml:"profile" yaml:"profile"`
	Client  clientFile  `toml:"client" yaml:"client"`
	Server  serverFile  `toml:"server" yaml:"server"`
}

type profileFile struct {
	SegmentSeparator      string `toml:"segment_separator" yaml:"segment_separator"`
	FieldSeparator        string `toml:"field_separator" yaml:"field_separator"`
	ComponentSeparator    string `toml:"component_separator" yaml:"component_separator"`
	RepetitionSeparator   string `toml:"repetition_separator" yaml:"repetition_separator"`
	SubcomponentSeparator string `toml:"subcomponent_separator" yaml:"subcomponent_separator"`
	EscapeCharacter       string `toml:"escape_character" yaml:"escape_character"`
	Null                  string `toml:"null_token" yaml:"null_token"`
	Version               string `toml:"version" yaml:"version"`
}

type tlsFile struct {
	Enabled            bool   `toml:"enabled" yaml:"enabled"`
	Mutual             bool   `toml:"mutual" yaml:"mutual"`
	CAFile             string `toml:"ca_file" yaml:"ca_file"`
	CertFile           string `toml:"cert_file" yaml:"cert_file"`
	KeyFile            string `toml:"key_file" yaml:"key_file"`
	ServerName         string `toml:"server_name" yaml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

type clientFile struct {
	Host               string  `toml:"host" yaml:"host"`
	Port               int     `toml:"port" yaml:"port"`
	ConnectTimeout     string  `toml:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout        string  `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout       string  `toml:"write_timeout" yaml:"write_timeout"`
	MaxConnectAttempts int     `toml:"max_connect_attempts" yaml:"max_connect_attempts"`
	ChunkSize          int     `toml:"chunk_size" yaml:"chunk_size"`
	MaxResponseBytes   int     `toml:"max_response_bytes" yaml:"max_response_bytes"`
	SecurityMode       string  `toml:"security_mode" yaml:"security_mode"`
	TLS                tlsFile `toml:"tls" yaml:"tls"`
}

type serverFile struct {
	NodeID           string   `toml:"node_id" yaml:"node_id"`
	Addr             string   `toml:"addr" yaml:"addr"`
	AdminAddr        string   `toml:"admin_addr" yaml:"admin_addr"`
	AdminCORSOrigins []string `toml:"admin_cors_origins" yaml:"admin_cors_origins"`
	ReadTimeout      string   `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout     string   `toml:"write_timeout" yaml:"write_timeout"`
	MaxFrameBytes    int      `toml:"max_frame_bytes" yaml:"max_frame_bytes"`
	DetectProfile    bool     `toml:"detect_profile" yaml:"detect_profile"`
	SecurityMode     string   `toml:"security_mode" yaml:"security_mode"`
	TLS              tlsFile  `toml:"tls" yaml:"tls"`
}

// definedFunc reports whether a key path was present in the source file.
type definedFunc func(keys ...string) bool

// Load reads a TOML (.toml) or YAML (.yaml, .yml) file. Only keys present
// in the file override Default().
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return Parse(data, FormatTOML)
	case ".yaml", ".yml":
		return Parse(data, FormatYAML)
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Parse decodes data in the given format onto Default().
func Parse(data []byte, format Format) (Config, error) {
	var (
		raw     fileConfig
		defined definedFunc
		err     error
	)
	switch format {
	case FormatTOML:
		raw, defined, err = decodeTOML(data)
	case FormatYAML:
		raw, defined, err = decodeYAML(data)
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed: %w", err)
	}

	cfg := Default()
	if err := applyProfile(&cfg.Profile, raw.Profile, defined); err != nil {
		return Config{}, err
	}
	if err := applyClient(&cfg.Client, raw.Client, defined); err != nil {
		return Config{}, err
	}
	if err := applyServer(&cfg.Server, raw.Server, defined); err != nil {
		return Config{}, err
	}
	cfg.Client.Session.Profile = cfg.Profile
	cfg.Server.Session.Profile = cfg.Profile
	return cfg, nil
}

func decodeTOML(data []byte) (fileConfig, definedFunc, error) {
	var raw fileConfig
	meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw)
	if err != nil {
		return fileConfig{}, nil, err
	}
	return raw, meta.IsDefined, nil
}

func decodeYAML(data []byte) (fileConfig, definedFunc, error) {
	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fileConfig{}, nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fileConfig{}, nil, err
	}
	defined := func(keys ...string) bool {
		var node any = tree
		for _, key := range keys {
			m, ok := node.(map[string]any)
			if !ok {
				return false
			}
			if node, ok = m[key]; !ok {
				return false
			}
		}
		return true
	}
	return raw, defined, nil
}
