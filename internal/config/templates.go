package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter config file in the given format.
func Template(format string) (string, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case FormatTOML:
		return tomlTemplate, nil
	case FormatYAML:
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const tomlTemplate = `[profile]
field_separator = "|"
component_separator = "^"
repetition_separator = "~"
escape_character = "\\"
subcomponent_separator = "&"
null_token = '""'
version = "2.3"

[client]
host = "127.0.0.1"
port = 2575
connect_timeout = "5s"
max_connect_attempts = 1
security_mode = "development"

[client.tls]
enabled = false

[server]
node_id = "hl7ctl"
addr = ":2575"
admin_addr = "127.0.0.1:9102"
write_timeout = "15s"
max_frame_bytes = 1048576
detect_profile = false

[server.tls]
enabled = false
`

const yamlTemplate = `profile:
  field_separator: "|"
  component_separator: "^"
  repetition_separator: "~"
  escape_character: "\\"
  subcomponent_separator: "&"
  null_token: '""'
  version: "2.3"

client:
  host: 127.0.0.1
  port: 2575
  connect_timeout: 5s
  max_connect_attempts: 1
  security_mode: development
  tls:
    enabled: false

server:
  node_id: hl7ctl
  addr: ":2575"
  admin_addr: 127.0.0.1:9102
  write_timeout: 15s
  max_frame_bytes: 1048576
  detect_profile: false
  tls:
    enabled: false
`
