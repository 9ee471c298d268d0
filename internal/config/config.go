// Package config loads and validates the bridge's TOML
// configuration: serial port definitions, cross-connect links, the
// admin surface, and capture settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/kkirby/rax25kb/internal/transport"
)

// ErrConfiguration marks a startup configuration failure. It is
// fatal: the process reports it to the operator and exits without
// retrying.
var ErrConfiguration = errors.New("config: invalid configuration")

// SerialPortConfig describes one TNC serial device.
type SerialPortConfig struct {
	ID           string `toml:"id"`
	Device       string `toml:"device"`
	Baud         int    `toml:"baud"`
	Parity       string `toml:"parity"`
	StopBits     int    `toml:"stop_bits"`
	FlowControl  string `toml:"flow_control"`
	ExtendedKISS bool   `toml:"extended_kiss"`
}

// Duration decodes TOML duration strings ("250ms", "5s").
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("%w: bad duration %q: %v", ErrConfiguration, b, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// BackoffConfig shapes the per-link restart delay.
type BackoffConfig struct {
	Initial    Duration `toml:"initial"`
	Max        Duration `toml:"max"`
	Multiplier float64  `toml:"multiplier"`
	Jitter     bool     `toml:"jitter"`
}

// LinkConfig is one cross-connect between two endpoints.
type LinkConfig struct {
	ID        string `toml:"id"`
	EndpointA string `toml:"endpoint_a"`
	EndpointB string `toml:"endpoint_b"`

	PhilFlag  bool `toml:"phil_flag"`
	ParseKISS bool `toml:"parse_kiss"`
	Dump      bool `toml:"dump"`
	DumpAX25  bool `toml:"dump_ax25"`
	RawCopy   bool `toml:"raw_copy"`

	// MaxAttempts bounds reconnect attempts per failure streak;
	// zero retries forever.
	MaxAttempts int           `toml:"max_attempts"`
	Backoff     BackoffConfig `toml:"backoff"`
}

// AdminConfig configures the HTTP status/metrics server. An empty
// listen address disables it.
type AdminConfig struct {
	Listen      string   `toml:"listen"`
	CorsOrigins []string `toml:"cors_origins"`
}

// CaptureConfig configures pcap capture of relayed AX.25 frames.
type CaptureConfig struct {
	PcapFile string `toml:"pcap_file"`
}

// BridgeConfig is the full daemon configuration.
type BridgeConfig struct {
	SerialPorts []SerialPortConfig `toml:"serial_ports"`
	Links       []LinkConfig       `toml:"links"`
	Admin       AdminConfig        `toml:"admin"`
	Capture     CaptureConfig      `toml:"capture"`
	PidFile     string             `toml:"pid_file"`
}

// EndpointKind discriminates parsed endpoint specs.
type EndpointKind int

const (
	EndpointSerial EndpointKind = iota
	EndpointTCPListen
	EndpointTCPDial
)

// EndpointSpec is one parsed endpoint string.
//
//	serial:<port-id>:<kiss-port>
//	tcp-listen:<addr>
//	tcp:<host:port>
type EndpointSpec struct {
	Kind     EndpointKind
	SerialID string
	Addr     string
	KISSPort uint8
}

func (s EndpointSpec) String() string {
	switch s.Kind {
	case EndpointSerial:
		return fmt.Sprintf("serial:%s:%d", s.SerialID, s.KISSPort)
	case EndpointTCPListen:
		return "tcp-listen:" + s.Addr
	default:
		return "tcp:" + s.Addr
	}
}

// ParseEndpoint parses an endpoint string.
func ParseEndpoint(s string) (EndpointSpec, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "serial:"):
		rest := strings.TrimPrefix(s, "serial:")
		idx := strings.LastIndex(rest, ":")
		if idx <= 0 || idx == len(rest)-1 {
			return EndpointSpec{}, fmt.Errorf("%w: serial endpoint needs id and kiss port: %q", ErrConfiguration, s)
		}
		port, err := strconv.ParseUint(rest[idx+1:], 10, 8)
		if err != nil || port > 15 {
			return EndpointSpec{}, fmt.Errorf("%w: kiss port must be 0-15: %q", ErrConfiguration, s)
		}
		return EndpointSpec{Kind: EndpointSerial, SerialID: rest[:idx], KISSPort: uint8(port)}, nil
	case strings.HasPrefix(s, "tcp-listen:"):
		addr := strings.TrimPrefix(s, "tcp-listen:")
		if addr == "" {
			return EndpointSpec{}, fmt.Errorf("%w: tcp-listen endpoint needs an address: %q", ErrConfiguration, s)
		}
		return EndpointSpec{Kind: EndpointTCPListen, Addr: addr}, nil
	case strings.HasPrefix(s, "tcp:"):
		addr := strings.TrimPrefix(s, "tcp:")
		if addr == "" {
			return EndpointSpec{}, fmt.Errorf("%w: tcp endpoint needs an address: %q", ErrConfiguration, s)
		}
		return EndpointSpec{Kind: EndpointTCPDial, Addr: addr}, nil
	default:
		return EndpointSpec{}, fmt.Errorf("%w: unknown endpoint type: %q", ErrConfiguration, s)
	}
}

// LoadBridgeConfig reads, defaults, and validates a bridge config.
func LoadBridgeConfig(path string) (BridgeConfig, error) {
	var cfg BridgeConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return BridgeConfig{}, fmt.Errorf("%w: load failed (%s): %v", ErrConfiguration, path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return BridgeConfig{}, fmt.Errorf("%w: parse failed (%s): %v", ErrConfiguration, path, err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return BridgeConfig{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills per-port and per-link defaults, and builds the
// historical default link (first serial port bridged to a KISS
// server on :8001) when ports exist but no links do.
func ApplyDefaults(cfg *BridgeConfig) {
	for i := range cfg.SerialPorts {
		p := &cfg.SerialPorts[i]
		if p.Baud <= 0 {
			p.Baud = 9600
		}
		if p.Parity == "" {
			p.Parity = "none"
		}
		if p.StopBits == 0 {
			p.StopBits = 1
		}
		if p.FlowControl == "" {
			p.FlowControl = "none"
		}
	}

	if len(cfg.Links) == 0 && len(cfg.SerialPorts) > 0 {
		cfg.Links = append(cfg.Links, LinkConfig{
			ID:        "link0",
			EndpointA: fmt.Sprintf("serial:%s:0", cfg.SerialPorts[0].ID),
			EndpointB: "tcp-listen:0.0.0.0:8001",
		})
	}

	for i := range cfg.Links {
		l := &cfg.Links[i]
		if l.ID == "" {
			l.ID = fmt.Sprintf("link%d", i)
		}
		if l.Backoff.Initial <= 0 {
			l.Backoff.Initial = Duration(250 * time.Millisecond)
		}
		if l.Backoff.Max <= 0 {
			l.Backoff.Max = Duration(5 * time.Second)
		}
		if l.Backoff.Multiplier < 1.0 {
			l.Backoff.Multiplier = 2.0
		}
	}
}

// Validate rejects configurations the bridge cannot run.
func Validate(cfg BridgeConfig) error {
	ports := make(map[string]SerialPortConfig, len(cfg.SerialPorts))
	for i, p := range cfg.SerialPorts {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%w: serial_ports[%d] missing id", ErrConfiguration, i)
		}
		if strings.TrimSpace(p.Device) == "" {
			return fmt.Errorf("%w: serial port %q missing device", ErrConfiguration, p.ID)
		}
		if _, dup := ports[p.ID]; dup {
			return fmt.Errorf("%w: duplicate serial port id %q", ErrConfiguration, p.ID)
		}
		switch strings.ToLower(p.Parity) {
		case "none", "n", "no", "odd", "o", "even", "e":
		default:
			return fmt.Errorf("%w: serial port %q invalid parity %q", ErrConfiguration, p.ID, p.Parity)
		}
		if p.StopBits != 1 && p.StopBits != 2 {
			return fmt.Errorf("%w: serial port %q invalid stop_bits %d", ErrConfiguration, p.ID, p.StopBits)
		}
		if _, err := transport.ParseFlowControl(p.FlowControl); err != nil {
			return fmt.Errorf("%w: serial port %q: %v", ErrConfiguration, p.ID, err)
		}
		ports[p.ID] = p
	}

	if len(cfg.Links) == 0 {
		return fmt.Errorf("%w: no links configured", ErrConfiguration)
	}

	linkIDs := make(map[string]bool, len(cfg.Links))
	for _, l := range cfg.Links {
		if linkIDs[l.ID] {
			return fmt.Errorf("%w: duplicate link id %q", ErrConfiguration, l.ID)
		}
		linkIDs[l.ID] = true

		specA, err := ParseEndpoint(l.EndpointA)
		if err != nil {
			return fmt.Errorf("link %q endpoint_a: %w", l.ID, err)
		}
		specB, err := ParseEndpoint(l.EndpointB)
		if err != nil {
			return fmt.Errorf("link %q endpoint_b: %w", l.ID, err)
		}
		for _, spec := range []EndpointSpec{specA, specB} {
			if spec.Kind == EndpointSerial {
				if _, ok := ports[spec.SerialID]; !ok {
					return fmt.Errorf("%w: link %q references unknown serial port %q", ErrConfiguration, l.ID, spec.SerialID)
				}
			}
		}
		if specA.Kind != EndpointSerial && specB.Kind != EndpointSerial && l.PhilFlag {
			return fmt.Errorf("%w: link %q phil_flag requires a serial endpoint", ErrConfiguration, l.ID)
		}
		if l.RawCopy && (l.PhilFlag || l.ParseKISS || l.DumpAX25) {
			return fmt.Errorf("%w: link %q raw_copy excludes KISS processing flags", ErrConfiguration, l.ID)
		}
		if l.MaxAttempts < 0 {
			return fmt.Errorf("%w: link %q negative max_attempts", ErrConfiguration, l.ID)
		}
	}
	return nil
}

// SerialPort returns the named serial port definition.
func (c BridgeConfig) SerialPort(id string) (SerialPortConfig, bool) {
	for _, p := range c.SerialPorts {
		if p.ID == id {
			return p, true
		}
	}
	return SerialPortConfig{}, false
}
