package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kkirby/rax25kb/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOptionsFlagOnly(t *testing.T) {
	opts, err := loadOptions([]string{"-D", "/dev/ttyS4", "-b", "19200", "-p", "9100"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(opts.bridge.SerialPorts) != 1 {
		t.Fatalf("serial ports = %d, want 1", len(opts.bridge.SerialPorts))
	}
	sp := opts.bridge.SerialPorts[0]
	if sp.Device != "/dev/ttyS4" || sp.Baud != 19200 {
		t.Fatalf("serial port = %+v", sp)
	}
	if len(opts.bridge.Links) != 1 {
		t.Fatalf("links = %d, want 1", len(opts.bridge.Links))
	}
	l := opts.bridge.Links[0]
	if l.EndpointA != "serial:tnc0:0" {
		t.Fatalf("endpoint_a = %q", l.EndpointA)
	}
	if l.EndpointB != "tcp-listen:0.0.0.0:9100" {
		t.Fatalf("endpoint_b = %q", l.EndpointB)
	}
}

func TestLoadOptionsFileWithFlagOverrides(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
log_file = "/tmp/bridge.log"

[[serial_ports]]
id = "tnc0"
device = "/dev/ttyUSB1"

[[links]]
id = "link0"
endpoint_a = "serial:tnc0:0"
endpoint_b = "tcp-listen:0.0.0.0:8001"
dump = false
`)

	opts, err := loadOptions([]string{"-c", path, "-d", "-L", "warn"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if opts.bridge.SerialPorts[0].Device != "/dev/ttyUSB1" {
		t.Fatalf("device = %q", opts.bridge.SerialPorts[0].Device)
	}
	if !opts.bridge.Links[0].Dump {
		t.Fatal("dump flag did not override file value")
	}
	if opts.logging.Level != zerolog.WarnLevel {
		t.Fatalf("level = %s, want warn", opts.logging.Level)
	}
	if opts.logging.LogFile != "/tmp/bridge.log" {
		t.Fatalf("log file = %q", opts.logging.LogFile)
	}
}

func TestLoadOptionsSerialAndPortOverrideFile(t *testing.T) {
	path := writeConfig(t, `
[[serial_ports]]
id = "tnc0"
device = "/dev/ttyUSB1"
baud = 1200

[[links]]
id = "link0"
endpoint_a = "serial:tnc0:0"
endpoint_b = "tcp-listen:127.0.0.1:8001"
`)

	opts, err := loadOptions([]string{"-c", path, "-D", "/dev/ttyS9", "-b", "38400", "-p", "9200"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	sp := opts.bridge.SerialPorts[0]
	if sp.Device != "/dev/ttyS9" || sp.Baud != 38400 {
		t.Fatalf("serial override missed: %+v", sp)
	}
	if got := opts.bridge.Links[0].EndpointB; got != "tcp-listen:127.0.0.1:9200" {
		t.Fatalf("endpoint_b = %q, want port 9200", got)
	}
}

func TestLoadOptionsPortOverrideNeedsListener(t *testing.T) {
	path := writeConfig(t, `
[[serial_ports]]
id = "tnc0"
device = "/dev/ttyUSB0"

[[serial_ports]]
id = "tnc1"
device = "/dev/ttyUSB1"

[[links]]
id = "link0"
endpoint_a = "serial:tnc0:0"
endpoint_b = "serial:tnc1:0"
`)
	_, err := loadOptions([]string{"-c", path, "-p", "9000"})
	if !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestLoadOptionsBadLogLevel(t *testing.T) {
	_, err := loadOptions([]string{"-L", "loud"})
	if !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestLoadOptionsRejectsInvalidFile(t *testing.T) {
	path := writeConfig(t, `
[[links]]
id = "link0"
endpoint_a = "serial:nonexistent:0"
endpoint_b = "tcp-listen:0.0.0.0:8001"
`)
	_, err := loadOptions([]string{"-c", path})
	if !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}
