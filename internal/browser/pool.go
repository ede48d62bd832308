package browser

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Session is one reusable headless-browser connection. Resolve navigates
// to the URL, lets the page settle, performs the minimal reveal
// interaction, and returns the final location.
type Session interface {
	Resolve(ctx context.Context, url string) (string, error)
	Close() error
}

// SessionFactory creates a fresh session. Invoked lazily: a pool slot
// only mints a session the first time it is acquired, and again after a
// discarded session leaves the slot empty.
type SessionFactory func() (Session, error)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("browser pool is closed")

type slot struct {
	session Session // nil when the slot needs a fresh session
}

// Pool is a bounded pool of browser sessions. At most capacity sessions
// are ever live; Acquire blocks until a slot frees or ctx expires, which
// is the engine's backpressure mechanism against browser exhaustion.
type Pool struct {
	slots   chan *slot
	factory SessionFactory
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool with the given capacity. Sessions are created
// lazily on first acquire of each slot.
func NewPool(capacity int, factory SessionFactory, logger zerolog.Logger) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	p := &Pool{
		slots:   make(chan *slot, capacity),
		factory: factory,
		logger:  logger.With().Str("component", "BrowserPool").Logger(),
	}
	for i := 0; i < capacity; i++ {
		p.slots <- &slot{}
	}
	return p
}

// Acquire returns a live session, blocking until a slot is free or the
// caller's remaining budget (ctx) runs out.
func (p *Pool) Acquire(ctx context.Context) (Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s, ok := <-p.slots:
		if !ok {
			return nil, ErrPoolClosed
		}
		if s.session != nil {
			return s.session, nil
		}
		session, err := p.factory()
		if err != nil {
			// Hand the empty slot back so capacity is not leaked.
			p.returnSlot(&slot{})
			return nil, err
		}
		return session, nil
	}
}

// Release returns a healthy session to the pool for reuse.
func (p *Pool) Release(session Session) {
	if session == nil {
		return
	}
	p.returnSlot(&slot{session: session})
}

// Discard closes a session that was cancelled mid-operation or observed
// to misbehave, and frees its slot so a replacement can be minted. A
// cancelled session is never reused.
func (p *Pool) Discard(session Session) {
	if session != nil {
		if err := session.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to close discarded browser session")
		}
	}
	p.returnSlot(&slot{})
}

func (p *Pool) returnSlot(s *slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		if s.session != nil {
			_ = s.session.Close()
		}
		return
	}
	select {
	case p.slots <- s:
	default:
		// Slot accounting guarantees room; reaching here means a double
		// release, drop the extra session rather than block.
		if s.session != nil {
			_ = s.session.Close()
		}
	}
}

// Close shuts down the pool and all idle sessions. In-flight sessions
// are closed as they are released or discarded.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.slots)
	p.mu.Unlock()

	for s := range p.slots {
		if s.session != nil {
			_ = s.session.Close()
		}
	}
	p.logger.Debug().Msg("Browser pool closed")
}
