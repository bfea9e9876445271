package chatclient

import (
	"context"
	"log"
	"sync"
	"time"
)

// Poll intervals the UI runs at: an open chat refreshes fast, the sidebar
// lists a little slower, and the badge count slowest of all.
const (
	ConversationPollInterval = 3 * time.Second
	ListPollInterval         = 5 * time.Second
	UnreadPollInterval       = 30 * time.Second
)

// Poller invokes a fetch function on a fixed interval until stopped. A
// failed tick is logged and retried on the next one; ticks never overlap
// because the loop is sequential.
type Poller struct {
	interval time.Duration
	fetch    func(ctx context.Context) error

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPoller(interval time.Duration, fetch func(ctx context.Context) error) *Poller {
	return &Poller{
		interval: interval,
		fetch:    fetch,
		done:     make(chan struct{}),
	}
}

// Start begins polling in a new goroutine. The first fetch fires immediately
// so the caller never waits a full interval for initial data. Starting an
// already-stopped or already-started poller is a no-op: a window can be
// closed by an eviction racing its own startup, and the loop must never
// outlive that Stop.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.stopped || p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go func() {
		defer close(p.done)

		p.tick(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

func (p *Poller) tick(ctx context.Context) {
	if err := p.fetch(ctx); err != nil {
		// Cancellation is the normal shutdown path, not a fetch failure.
		if ctx.Err() != nil {
			return
		}
		log.Printf("poll failed, retrying next tick: %v", err)
	}
}

// Stop cancels the loop and waits for the in-flight fetch, if any, to
// return. Safe to call more than once, and before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-p.done
	}
}
