package bridge

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkirby/rax25kb/internal/observability"
)

// Supervisor owns the link watchers. Each link runs in its own
// goroutine; a link failing, backing off, or giving up never touches
// its siblings.
type Supervisor struct {
	log zerolog.Logger

	mu    sync.Mutex
	links []*Link
	byID  map[string]*Link

	wg sync.WaitGroup
}

func NewSupervisor(logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		log:  logger.With().Str("component", "supervisor").Logger(),
		byID: make(map[string]*Link),
	}
}

func (s *Supervisor) Add(l *Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byID[l.ID()]; dup {
		return fmt.Errorf("bridge: duplicate link id %q", l.ID())
	}
	s.byID[l.ID()] = l
	s.links = append(s.links, l)
	return nil
}

// Start launches one watcher per registered link. It returns
// immediately; Shutdown waits for the watchers after ctx is canceled.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	links := append([]*Link(nil), s.links...)
	s.mu.Unlock()

	for _, l := range links {
		s.wg.Add(1)
		go s.watch(ctx, l)
	}
	s.log.Info().Int("links", len(links)).Msg("supervisor started")
}

// Shutdown waits for all watchers to finish and releases the
// endpoints. Call after canceling the Start context.
func (s *Supervisor) Shutdown() {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		_ = l.opts.A.Endpoint.Close()
		_ = l.opts.B.Endpoint.Close()
	}
	s.log.Info().Msg("supervisor stopped")
}

// Status snapshots every link for the admin surface.
func (s *Supervisor) Status() []LinkStatus {
	s.mu.Lock()
	links := append([]*Link(nil), s.links...)
	s.mu.Unlock()

	out := make([]LinkStatus, 0, len(links))
	for _, l := range links {
		out = append(out, l.Status())
	}
	return out
}

// watch drives one link through connect, relay, backoff, reconnect
// until ctx ends or the attempt budget runs out.
func (s *Supervisor) watch(ctx context.Context, l *Link) {
	defer s.wg.Done()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		if ctx.Err() != nil {
			l.setState(StateStopped, nil)
			return
		}
		l.setState(StateConnecting, nil)

		a, err := l.opts.A.Endpoint.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.setState(StateStopped, nil)
				return
			}
			l.log.Warn().Err(err).Str("endpoint", l.opts.A.Endpoint.Label()).Msg("open failed")
			if !s.backOff(ctx, l, rng, err) {
				return
			}
			continue
		}
		b, err := l.opts.B.Endpoint.Open(ctx)
		if err != nil {
			_ = a.Close()
			if ctx.Err() != nil {
				l.setState(StateStopped, nil)
				return
			}
			l.log.Warn().Err(err).Str("endpoint", l.opts.B.Endpoint.Label()).Msg("open failed")
			if !s.backOff(ctx, l, rng, err) {
				return
			}
			continue
		}

		l.mu.Lock()
		l.attempt = 0
		l.mu.Unlock()
		l.setState(StateRelaying, nil)
		l.log.Info().
			Str("a", a.Label()).
			Str("b", b.Label()).
			Msg("relay session established")

		serr := l.runSession(ctx, a, b)
		if ctx.Err() != nil {
			l.setState(StateStopped, nil)
			return
		}
		l.log.Warn().Err(serr).Msg("relay session ended")
		if !s.backOff(ctx, l, rng, serr) {
			return
		}
	}
}

// backOff records one failed attempt and sleeps the backoff delay.
// It returns false when the link is done retrying.
func (s *Supervisor) backOff(ctx context.Context, l *Link, rng *rand.Rand, cause error) bool {
	l.mu.Lock()
	l.attempt++
	attempt := l.attempt
	l.mu.Unlock()

	if l.opts.MaxAttempts > 0 && attempt >= l.opts.MaxAttempts {
		l.log.Error().
			Err(cause).
			Int("attempts", attempt).
			Msg("attempt budget exhausted, link stopped")
		l.setState(StateStopped, cause)
		return false
	}

	l.setState(StateBackoff, cause)
	delay := NextBackoffDelay(l.opts.Backoff, attempt, rng)
	l.log.Info().
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("backing off before reconnect")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		l.setState(StateStopped, nil)
		return false
	case <-timer.C:
	}
	l.restarts.Add(1)
	observability.RecordLinkRestart(l.ID())
	return true
}
