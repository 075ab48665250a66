// Package poller schedules the processors with cron and keeps their cycles
// from overlapping.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/bryan-buckman/mudwatch/internal/logging"
	"github.com/bryan-buckman/mudwatch/internal/metrics"
	"github.com/bryan-buckman/mudwatch/internal/processor"
)

// DefaultCycleTimeout bounds a single cycle.
const DefaultCycleTimeout = 2 * time.Minute

// StopTimeout is how long Stop waits for running cycles.
const StopTimeout = 5 * time.Second

var (
	// ErrUnknownDomain is returned for a domain that was never registered.
	ErrUnknownDomain = errors.New("unknown domain")
	// ErrBusy is returned by RunOnce while a cycle of the domain is running.
	ErrBusy = errors.New("cycle already running")
	// ErrPanic wraps a recovered processor panic.
	ErrPanic = errors.New("processor panicked")
)

type job struct {
	proc processor.Processor
	spec string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Poller runs every registered processor on its own schedule.
type Poller struct {
	cron    *cron.Cron
	log     zerolog.Logger
	timeout time.Duration

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
}

// New creates a poller. A timeout of zero means DefaultCycleTimeout.
func New(log zerolog.Logger, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Poller{
		cron:    cron.New(cron.WithLogger(logging.CronLogger{Log: log})),
		log:     log,
		timeout: timeout,
		ctx:     ctx,
		stop:    stop,
		jobs:    make(map[string]*job),
	}
}

// Register adds proc under its name. An empty spec registers it for RunOnce
// only.
func (p *Poller) Register(proc processor.Processor, spec string) error {
	name := proc.Name()

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.jobs[name]; dup {
		return fmt.Errorf("domain %s registered twice", name)
	}

	j := &job{proc: proc, spec: spec}
	if spec != "" {
		if _, err := p.cron.AddFunc(spec, func() { p.fire(j) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
		}
	}
	p.jobs[name] = j
	return nil
}

// Domains lists the registered domain names in order.
func (p *Poller) Domains() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.jobs))
	for name := range p.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Start begins the schedule.
func (p *Poller) Start() {
	p.mu.Lock()
	for name, j := range p.jobs {
		if j.spec != "" {
			p.log.Info().Str("domain", name).Str("schedule", j.spec).Msg("Scheduled")
		}
	}
	p.mu.Unlock()
	p.cron.Start()
}

// Stop cancels running cycles and waits for them to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.stop()
	stopCtx := p.cron.Stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-stopCtx.Done():
		<-done
	case <-time.After(StopTimeout):
		p.log.Warn().Msg("Timed out waiting for running cycles")
	}
	p.log.Info().Msg("Poller stopped")
}

// fire is the timer callback. A cycle that is still running when its timer
// fires again is cancelled and the new one is not started.
func (p *Poller) fire(j *job) {
	name := j.proc.Name()

	j.mu.Lock()
	if j.cancel != nil {
		j.cancel()
		j.mu.Unlock()
		metrics.CyclesOverlapped.WithLabelValues(name).Inc()
		p.log.Warn().Str("domain", name).Msg("Previous cycle still running, cancelled it")
		return
	}
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	j.cancel = cancel
	j.mu.Unlock()

	p.wg.Add(1)
	defer p.wg.Done()
	defer p.release(j, cancel)

	if err := p.run(ctx, j.proc); err != nil && !errors.Is(err, processor.ErrSkipped) {
		p.log.Error().Err(err).Str("domain", name).Msg("Cycle failed")
	}
}

func (p *Poller) release(j *job, cancel context.CancelFunc) {
	cancel()
	j.mu.Lock()
	j.cancel = nil
	j.mu.Unlock()
}

// RunOnce runs one cycle of domain now and returns its error. It fails
// with ErrBusy when a cycle is already in progress. The cycle can still be
// cancelled by an overlapping timer.
func (p *Poller) RunOnce(ctx context.Context, domain string) error {
	p.mu.Lock()
	j, ok := p.jobs[domain]
	closed := p.closed
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	if closed {
		return context.Canceled
	}

	j.mu.Lock()
	if j.cancel != nil {
		j.mu.Unlock()
		return fmt.Errorf("%s: %w", domain, ErrBusy)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	stop := context.AfterFunc(p.ctx, cancel)
	j.cancel = cancel
	j.mu.Unlock()

	p.wg.Add(1)
	defer p.wg.Done()
	defer stop()
	defer p.release(j, cancel)

	return p.run(ctx, j.proc)
}

// run executes one cycle, recovering panics and recording metrics.
func (p *Poller) run(ctx context.Context, proc processor.Processor) (err error) {
	name := proc.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		metrics.CycleDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		metrics.CyclesTotal.WithLabelValues(name, cycleResult(ctx, err)).Inc()
	}()

	return proc.Run(ctx)
}

func cycleResult(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, processor.ErrSkipped):
		return "skipped"
	case errors.Is(err, ErrPanic):
		return "panic"
	case ctx.Err() != nil:
		return "cancelled"
	default:
		return "error"
	}
}
