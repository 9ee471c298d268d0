package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kkirby/rax25kb/internal/config"
	"github.com/kkirby/rax25kb/internal/logging"
)

// fileConfig holds the top-level runtime keys of config.toml that
// belong to the process rather than the bridge: log sinks and level.
// The bridge sections are loaded separately by internal/config.
type fileConfig struct {
	LogFile  string `toml:"log_file"`
	LogLevel string `toml:"log_level"`
}

type options struct {
	bridge  config.BridgeConfig
	logging logging.Options
}

// loadOptions resolves the effective configuration: built-in defaults,
// then the config file, then any command line flags actually given.
func loadOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("rax25kb", flag.ContinueOnError)
	configPath := fs.String("c", "", "TOML configuration file")
	device := fs.String("D", "/dev/ttyUSB0", "serial device of the KISS TNC")
	baud := fs.Int("b", 9600, "serial baud rate")
	listenPort := fs.Int("p", 8001, "KISS-over-TCP listen port")
	parseKISS := fs.Bool("k", false, "log a summary of every relayed KISS frame")
	dump := fs.Bool("d", false, "hex dump relayed frames")
	dumpAX25 := fs.Bool("a", false, "decode relayed AX.25 frames and dump their info fields")
	philFlag := fs.Bool("n", false, "repair TASCO-style mis-escaped frames on the serial side")
	rawCopy := fs.Bool("R", false, "relay raw bytes with no KISS processing")
	logFile := fs.String("l", "", "append logs to this file")
	logLevel := fs.String("L", "", "log level: trace|debug|info|warn|error")
	pidFile := fs.String("P", "", "write the process id to this file")
	pcapFile := fs.String("pcap", "", "capture relayed AX.25 frames to this pcap file")
	adminListen := fs.String("admin", "", "admin HTTP listen address (empty disables)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	given := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { given[f.Name] = true })

	opts := options{logging: logging.DefaultOptions(logging.ProfileRuntime)}

	if *configPath != "" {
		cfg, err := config.LoadBridgeConfig(*configPath)
		if err != nil {
			return options{}, err
		}
		opts.bridge = cfg

		var raw fileConfig
		meta, err := toml.DecodeFile(*configPath, &raw)
		if err != nil {
			return options{}, fmt.Errorf("load runtime config: %w", err)
		}
		if meta.IsDefined("log_file") {
			opts.logging.LogFile = strings.TrimSpace(raw.LogFile)
		}
		if meta.IsDefined("log_level") {
			lvl, ok := logging.ParseLevel(raw.LogLevel)
			if !ok {
				return options{}, fmt.Errorf("%w: unknown log_level %q", config.ErrConfiguration, raw.LogLevel)
			}
			opts.logging.Level = lvl
		}
	} else {
		opts.bridge = flagOnlyBridgeConfig(*device, *baud, *listenPort)
	}

	// Flags given on the command line win over the file.
	if given["D"] || given["b"] {
		if len(opts.bridge.SerialPorts) == 0 {
			return options{}, fmt.Errorf("%w: -D/-b override needs a configured serial port", config.ErrConfiguration)
		}
		if given["D"] {
			opts.bridge.SerialPorts[0].Device = *device
		}
		if given["b"] {
			opts.bridge.SerialPorts[0].Baud = *baud
		}
	}
	if given["p"] {
		if !overrideListenPort(&opts.bridge, *listenPort) {
			return options{}, fmt.Errorf("%w: -p override needs a tcp-listen endpoint", config.ErrConfiguration)
		}
	}
	if given["P"] {
		opts.bridge.PidFile = *pidFile
	}
	if given["pcap"] {
		opts.bridge.Capture.PcapFile = *pcapFile
	}
	if given["admin"] {
		opts.bridge.Admin.Listen = *adminListen
	}
	if given["l"] {
		opts.logging.LogFile = *logFile
	}
	if given["L"] {
		lvl, ok := logging.ParseLevel(*logLevel)
		if !ok {
			return options{}, fmt.Errorf("%w: unknown log level %q", config.ErrConfiguration, *logLevel)
		}
		opts.logging.Level = lvl
	}
	for i := range opts.bridge.Links {
		l := &opts.bridge.Links[i]
		if given["k"] {
			l.ParseKISS = *parseKISS
		}
		if given["d"] {
			l.Dump = *dump
		}
		if given["a"] {
			l.DumpAX25 = *dumpAX25
		}
		if given["n"] {
			l.PhilFlag = *philFlag
		}
		if given["R"] {
			l.RawCopy = *rawCopy
		}
	}

	if err := config.Validate(opts.bridge); err != nil {
		return options{}, err
	}
	return opts, nil
}

// overrideListenPort rewrites the port of the first tcp-listen
// endpoint found across the configured links.
func overrideListenPort(cfg *config.BridgeConfig, port int) bool {
	for i := range cfg.Links {
		for _, ep := range []*string{&cfg.Links[i].EndpointA, &cfg.Links[i].EndpointB} {
			if !strings.HasPrefix(*ep, "tcp-listen:") {
				continue
			}
			host := strings.TrimPrefix(*ep, "tcp-listen:")
			if idx := strings.LastIndex(host, ":"); idx >= 0 {
				host = host[:idx]
			}
			*ep = fmt.Sprintf("tcp-listen:%s:%d", host, port)
			return true
		}
	}
	return false
}

// flagOnlyBridgeConfig builds the classic single-link setup when no
// config file is given: one TNC bridged to a KISS TCP server.
func flagOnlyBridgeConfig(device string, baud, listenPort int) config.BridgeConfig {
	cfg := config.BridgeConfig{
		SerialPorts: []config.SerialPortConfig{
			{ID: "tnc0", Device: device, Baud: baud},
		},
		Links: []config.LinkConfig{
			{
				ID:        "link0",
				EndpointA: "serial:tnc0:0",
				EndpointB: fmt.Sprintf("tcp-listen:0.0.0.0:%d", listenPort),
			},
		},
	}
	config.ApplyDefaults(&cfg)
	return cfg
}
