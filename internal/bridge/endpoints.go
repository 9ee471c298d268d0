package bridge

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkirby/rax25kb/internal/capture"
	"github.com/kkirby/rax25kb/internal/config"
	"github.com/kkirby/rax25kb/internal/transport"
)

// dialTimeout bounds one outbound TCP connect attempt; the supervisor
// retries with backoff on failure.
const dialTimeout = 10 * time.Second

// buildSide resolves an endpoint spec against the configuration into
// a relay Side.
func buildSide(cfg config.BridgeConfig, spec config.EndpointSpec) (Side, error) {
	switch spec.Kind {
	case config.EndpointSerial:
		pc, ok := cfg.SerialPort(spec.SerialID)
		if !ok {
			return Side{}, fmt.Errorf("%w: unknown serial port %q", config.ErrConfiguration, spec.SerialID)
		}
		if _, err := transport.ParseFlowControl(pc.FlowControl); err != nil {
			return Side{}, fmt.Errorf("%w: serial port %q: %v", config.ErrConfiguration, pc.ID, err)
		}
		ep := transport.NewSerialEndpoint(transport.SerialOptions{
			Device:   pc.Device,
			Baud:     pc.Baud,
			Parity:   pc.Parity,
			StopBits: pc.StopBits,
		}, spec.KISSPort)
		return Side{Endpoint: ep, Serial: true, Extended: pc.ExtendedKISS}, nil
	case config.EndpointTCPListen:
		return Side{Endpoint: transport.NewTCPListenEndpoint(spec.Addr, spec.KISSPort)}, nil
	case config.EndpointTCPDial:
		return Side{Endpoint: transport.NewTCPDialEndpoint(spec.Addr, spec.KISSPort, dialTimeout)}, nil
	default:
		return Side{}, fmt.Errorf("%w: unknown endpoint kind", config.ErrConfiguration)
	}
}

// NewLinkFromConfig builds a supervised link from its configuration
// entry.
func NewLinkFromConfig(cfg config.BridgeConfig, lc config.LinkConfig, cw *capture.Writer, logger zerolog.Logger) (*Link, error) {
	specA, err := config.ParseEndpoint(lc.EndpointA)
	if err != nil {
		return nil, fmt.Errorf("link %q endpoint_a: %w", lc.ID, err)
	}
	specB, err := config.ParseEndpoint(lc.EndpointB)
	if err != nil {
		return nil, fmt.Errorf("link %q endpoint_b: %w", lc.ID, err)
	}
	a, err := buildSide(cfg, specA)
	if err != nil {
		return nil, fmt.Errorf("link %q: %w", lc.ID, err)
	}
	b, err := buildSide(cfg, specB)
	if err != nil {
		return nil, fmt.Errorf("link %q: %w", lc.ID, err)
	}

	return NewLink(LinkOptions{
		ID: lc.ID,
		A:  a,
		B:  b,

		PhilFlag:  lc.PhilFlag,
		ParseKISS: lc.ParseKISS,
		Dump:      lc.Dump,
		DumpAX25:  lc.DumpAX25,
		RawCopy:   lc.RawCopy,

		MaxAttempts: lc.MaxAttempts,
		Backoff: BackoffConfig{
			InitialDelay: lc.Backoff.Initial.Std(),
			Multiplier:   lc.Backoff.Multiplier,
			MaxDelay:     lc.Backoff.Max.Std(),
			Jitter:       lc.Backoff.Jitter,
		},

		Capture: cw,
		Logger:  logger,
	}), nil
}
