package bridge

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/kkirby/rax25kb/internal/capture"
	"github.com/kkirby/rax25kb/internal/config"
	"github.com/kkirby/rax25kb/internal/observability"
)

// Service is the bridge daemon: links, supervisor, optional admin
// server and pcap capture, torn down together on SIGINT/SIGTERM.
type Service struct {
	cfg config.BridgeConfig
	log zerolog.Logger
}

func NewService(cfg config.BridgeConfig, logger zerolog.Logger) *Service {
	return &Service{cfg: cfg, log: logger}
}

// Run blocks until a termination signal or a fatal startup error.
func (s *Service) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	observability.RegisterMetrics()
	for _, sp := range s.cfg.SerialPorts {
		parity := "N"
		if sp.Parity != "" {
			parity = strings.ToUpper(sp.Parity[:1])
		}
		s.log.Info().
			Str("port", sp.ID).
			Str("device", sp.Device).
			Int("baud", sp.Baud).
			Str("format", fmt.Sprintf("8%s%d", parity, sp.StopBits)).
			Str("flow", sp.FlowControl).
			Bool("extended_kiss", sp.ExtendedKISS).
			Msg("serial port configured")
	}

	if s.cfg.PidFile != "" {
		pid := strconv.Itoa(os.Getpid()) + "\n"
		if err := os.WriteFile(s.cfg.PidFile, []byte(pid), 0o644); err != nil {
			return fmt.Errorf("bridge: write pid file %s: %w", s.cfg.PidFile, err)
		}
		defer os.Remove(s.cfg.PidFile)
	}

	var cw *capture.Writer
	if s.cfg.Capture.PcapFile != "" {
		var err error
		cw, err = capture.NewWriter(s.cfg.Capture.PcapFile)
		if err != nil {
			return fmt.Errorf("bridge: open capture file: %w", err)
		}
		defer cw.Close()
		s.log.Info().Str("file", s.cfg.Capture.PcapFile).Msg("pcap capture enabled")
	}

	sup := NewSupervisor(s.log)
	for _, lc := range s.cfg.Links {
		l, err := NewLinkFromConfig(s.cfg, lc, cw, s.log)
		if err != nil {
			return err
		}
		if err := sup.Add(l); err != nil {
			return err
		}
		s.log.Info().
			Str("link", lc.ID).
			Str("a", lc.EndpointA).
			Str("b", lc.EndpointB).
			Msg("link configured")
	}
	sup.Start(runCtx)

	adminErr := make(chan error, 1)
	if s.cfg.Admin.Listen != "" {
		admin := NewAdminServer(s.cfg.Admin, sup, s.log)
		go func() {
			if err := admin.Run(runCtx); err != nil {
				s.log.Error().Err(err).Msg("admin server failed")
				adminErr <- err
				cancel()
			}
		}()
	}

	<-runCtx.Done()
	s.log.Info().Msg("shutting down")
	cancel()
	sup.Shutdown()

	select {
	case err := <-adminErr:
		return err
	default:
		return nil
	}
}
