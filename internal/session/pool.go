package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourneighborhoodchef/asinfetch/internal/logging"
	"github.com/yourneighborhoodchef/asinfetch/internal/metrics"
)

// DefaultAcquireTimeout bounds how long an acquire waits for an idle
// session before the caller falls back to a one-off session.
const DefaultAcquireTimeout = 10 * time.Second

// Pool is a bounded set of warmed sessions handed out over a channel, so a
// session is held by at most one caller at a time: it is either in the
// channel (idle) or owned by whoever received it.
type Pool struct {
	orch           *Orchestrator
	idle           chan *Session
	met            *metrics.Metrics
	AcquireTimeout time.Duration
}

// NewPool builds an empty pool bounded at size sessions. met may be nil.
func NewPool(orch *Orchestrator, size int, met *metrics.Metrics) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		orch:           orch,
		idle:           make(chan *Session, size),
		met:            met,
		AcquireTimeout: DefaultAcquireTimeout,
	}
}

// Warm fills the pool by creating and handshaking sessions concurrently.
// Individual failures are logged and skipped; the return value is how many
// sessions actually made it into the pool.
func (p *Pool) Warm(ctx context.Context) int {
	var warmed int32
	var g errgroup.Group
	for i := 0; i < cap(p.idle); i++ {
		i := i
		g.Go(func() error {
			s, err := p.orch.NewSession()
			if err != nil {
				logging.Errorf("session %d: %v", i+1, err)
				return nil
			}
			if err := p.orch.Warm(ctx, s); err != nil {
				logging.Errorf("session %d handshake: %v", i+1, err)
				p.destroy(s)
				return nil
			}
			p.idle <- s
			atomic.AddInt32(&warmed, 1)
			logging.Successf("session %d warmed (%s)", i+1, s.ID)
			return nil
		})
	}
	g.Wait()
	return int(atomic.LoadInt32(&warmed))
}

// Acquire waits for an idle session, marks it Busy, and hands it to the
// caller. It gives up with ErrPoolTimeout after the acquire window, or
// earlier if ctx is cancelled.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	timer := time.NewTimer(p.AcquireTimeout)
	defer timer.Stop()

	select {
	case s := <-p.idle:
		if err := s.acquire(); err != nil {
			p.destroy(s)
			return nil, err
		}
		return s, nil
	case <-timer.C:
		return nil, ErrPoolTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AcquireOrCreate is Acquire with the exhaustion fallback: when the pool
// times out, a one-off session is handshaked synchronously for this caller.
// One-off sessions never enter the pool; Release destroys them.
func (p *Pool) AcquireOrCreate(ctx context.Context) (*Session, error) {
	s, err := p.Acquire(ctx)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrPoolTimeout) {
		return nil, err
	}

	p.met.IncPoolFallback()
	logging.Warnf("session pool exhausted, creating one-off session")

	s, err = p.orch.NewSession()
	if err != nil {
		return nil, err
	}
	s.ephemeral = true
	if err := p.orch.Warm(ctx, s); err != nil {
		p.destroy(s)
		return nil, err
	}
	if err := s.acquire(); err != nil {
		p.destroy(s)
		return nil, err
	}
	return s, nil
}

// Release returns a healthy session to the pool. Failed and one-off
// sessions are destroyed instead of recycled.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	if s.State() == Busy {
		_ = s.release()
	}
	if s.ephemeral || s.State() != Ready {
		p.destroy(s)
		return
	}
	select {
	case p.idle <- s:
	default:
		p.destroy(s)
	}
}

// Size reports how many sessions are currently idle in the pool.
func (p *Pool) Size() int {
	return len(p.idle)
}

func (p *Pool) destroy(s *Session) {
	if c, ok := s.client.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	p.met.SessionClosed()
}
