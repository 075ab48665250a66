package scrape

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Per-host pacing defaults. All pages live on the same game host, so the
// limiter is what keeps concurrent domains from hammering it.
const (
	DefaultMaxConcurrencyPerHost = 2
	DefaultDelayBetweenRequests  = 500 * time.Millisecond
)

// hostGate is the pacing state of one host.
type hostGate struct {
	slots chan struct{}
	pace  *rate.Limiter
}

// hostLimiter hands out a gate per host. A gate admits at most perHost
// requests at once and starts one every delay.
type hostLimiter struct {
	perHost int
	every   rate.Limit

	mu    sync.Mutex
	gates map[string]*hostGate
}

func newHostLimiter(perHost int, delay time.Duration) *hostLimiter {
	if perHost <= 0 {
		perHost = DefaultMaxConcurrencyPerHost
	}
	every := rate.Inf
	if delay > 0 {
		every = rate.Every(delay)
	}
	return &hostLimiter{perHost: perHost, every: every, gates: make(map[string]*hostGate)}
}

func (hl *hostLimiter) gate(host string) *hostGate {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	g, ok := hl.gates[host]
	if !ok {
		g = &hostGate{
			slots: make(chan struct{}, hl.perHost),
			pace:  rate.NewLimiter(hl.every, 1),
		}
		hl.gates[host] = g
	}
	return g
}

// acquire takes a slot for host and waits for its turn. Every successful
// acquire must be paired with release.
func (hl *hostLimiter) acquire(ctx context.Context, host string) error {
	g := hl.gate(host)
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := g.pace.Wait(ctx); err != nil {
		<-g.slots
		return err
	}
	return nil
}

func (hl *hostLimiter) release(host string) {
	<-hl.gate(host).slots
}

// hostOf gets the host from a URL.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
