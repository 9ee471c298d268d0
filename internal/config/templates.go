package config

import (
	"fmt"
	"os"
)

// Template returns the annotated starter configuration.
func Template() string {
	return bridgeTemplate
}

// WriteTemplate writes the starter configuration to path, refusing
// to overwrite unless asked.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(bridgeTemplate), 0o600)
}

const bridgeTemplate = `# rax25kb bridge configuration

pid_file = ""

[[serial_ports]]
id = "tnc0"
device = "/dev/ttyUSB0"
baud = 9600
parity = "none"
stop_bits = 1
flow_control = "none"
extended_kiss = false

# Cross-connects. Endpoint syntax:
#   serial:<port-id>:<kiss-port>   serial device, TNC port 0-15
#   tcp-listen:<addr>              KISS-over-TCP server
#   tcp:<host:port>                KISS-over-TCP client
[[links]]
id = "link0"
endpoint_a = "serial:tnc0:0"
endpoint_b = "tcp-listen:0.0.0.0:8001"
parse_kiss = false
dump = false
dump_ax25 = false
phil_flag = false
raw_copy = false
max_attempts = 0

[links.backoff]
initial = "250ms"
max = "5s"
multiplier = 2.0
jitter = true

[admin]
listen = "127.0.0.1:8081"
cors_origins = []

[capture]
pcap_file = ""
`
