// Package poller runs the periodic change-detection and notification cycle.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/vietddude/dashnotifier/internal/core/detector"
	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/core/format"
	"github.com/vietddude/dashnotifier/internal/infra/provider"
)

// State is the scheduler state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "cycle_running"
)

// Store is the subset of storage.Store the poller needs.
type Store interface {
	Snapshot() *domain.State
	Update(ctx context.Context, fn func(state *domain.State) error) error
}

// Notifier delivers a rendered notification to a user.
type Notifier interface {
	Notify(ctx context.Context, user domain.UserID, msg format.Message) error
}

// Config holds poller configuration.
type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
	Workers      int
	TxLimit      int
	NotifiedCap  int
	IncomingOnly bool
	MaxBackoff   time.Duration
}

// Status is a point-in-time view of the poller.
type Status struct {
	State     State
	Running   bool
	Cycles    uint64
	LastCycle *CycleReport
}

// Poller implements the scheduler loop.
type Poller struct {
	cfg       Config
	store     Store
	client    provider.Client
	detector  *detector.Detector
	formatter *format.Formatter
	notifier  Notifier
	pool      pond.Pool
	log       *slog.Logger
	now       func() time.Time

	running  atomic.Bool
	cycling  atomic.Bool
	cycles   atomic.Uint64
	last     atomic.Pointer[CycleReport]
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a poller.
func New(
	cfg Config,
	store Store,
	client provider.Client,
	det *detector.Detector,
	formatter *format.Formatter,
	notifier Notifier,
) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.TxLimit <= 0 {
		cfg.TxLimit = 10
	}
	if cfg.NotifiedCap <= 0 {
		cfg.NotifiedCap = domain.DefaultNotifiedCap
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}

	return &Poller{
		cfg:       cfg,
		store:     store,
		client:    client,
		detector:  det,
		formatter: formatter,
		notifier:  notifier,
		pool:      pond.NewPool(cfg.Workers),
		log:       slog.Default().With("component", "poller"),
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the loop until ctx is cancelled or Stop is called. The first
// cycle starts after the initial delay. An in-flight cycle always completes.
func (p *Poller) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("poller already running")
	}
	defer func() {
		p.running.Store(false)
		close(p.done)
	}()

	p.log.Info("Poller started",
		"interval", p.cfg.Interval,
		"initial_delay", p.cfg.InitialDelay,
		"workers", p.cfg.Workers,
		"detection", p.detector.Mode(),
	)

	if !p.wait(ctx, p.cfg.InitialDelay) {
		return nil
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		// Cycles run detached from ctx so shutdown never tears one in half
		p.RunCycle(context.WithoutCancel(ctx))

		if pause := p.throttlePause(); pause > 0 {
			p.log.Warn("Provider throttled, pausing", "pause", pause)
			if !p.wait(ctx, pause) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-p.stop:
			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends the loop and waits for an in-flight cycle to finish.
func (p *Poller) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stop)
		if p.running.Load() {
			<-p.done
		}
		p.pool.StopAndWait()
	})
	return nil
}

// Status returns the current status.
func (p *Poller) Status() Status {
	state := StateIdle
	if p.cycling.Load() {
		state = StateRunning
	}
	return Status{
		State:     state,
		Running:   p.running.Load(),
		Cycles:    p.cycles.Load(),
		LastCycle: p.last.Load(),
	}
}

// wait sleeps for d and reports whether the loop should continue.
func (p *Poller) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-p.stop:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-p.stop:
		return false
	case <-timer.C:
		return true
	}
}

// throttlePause is the extra wait imposed by provider rate limiting.
func (p *Poller) throttlePause() time.Duration {
	return min(p.client.RetryAfter(), p.cfg.MaxBackoff)
}
