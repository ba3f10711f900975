package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vietddude/dashnotifier/internal/core/detector"
	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/indexing/metrics"
	"github.com/vietddude/dashnotifier/internal/infra/provider"
)

// CycleReport summarizes one cycle.
type CycleReport struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	Entries    int
	Notified   int
	Suppressed int // marked seen without delivery
	Failed     int // entries with a fetch or delivery error
	Stale      int // outcomes dropped because the entry changed mid-cycle
	PriceKnown bool
	PersistErr string
}

// outcome is the result of evaluating one entry against a snapshot.
type outcome struct {
	user    domain.UserID
	address domain.Address
	seen    []domain.Transaction // in the order they must be applied
	sent    int
	muted   int
	err     error
}

// RunCycle performs one full cycle: snapshot, fetch price, evaluate every
// entry on the worker pool, then merge the outcomes into the live state with
// a single write.
func (p *Poller) RunCycle(ctx context.Context) CycleReport {
	p.cycling.Store(true)
	defer p.cycling.Store(false)

	start := p.now()
	report := CycleReport{ID: uuid.NewString(), StartedAt: start}
	log := p.log.With("cycle_id", report.ID)

	snapshot := p.store.Snapshot()
	users := snapshot.UserIDs()
	report.Entries = len(users)

	price, err := p.client.FetchPrice(ctx)
	if err != nil {
		log.Warn("Price unavailable, sending without fiat value", "error", err)
	}
	report.PriceKnown = price.Valid

	outcomes := make([]outcome, len(users))
	group := p.pool.NewGroupContext(ctx)
	for i, user := range users {
		group.Submit(func() {
			outcomes[i] = p.evaluate(ctx, log, user, snapshot.Users[user], price)
		})
	}
	if err := group.Wait(); err != nil {
		log.Error("Worker group failed", "error", err)
	}

	err = p.store.Update(ctx, func(state *domain.State) error {
		for _, o := range outcomes {
			if o.err != nil {
				report.Failed++
			}
			report.Notified += o.sent
			report.Suppressed += o.muted
			if len(o.seen) == 0 {
				continue
			}

			live, ok := state.Users[o.user]
			if !ok || live.Address != o.address {
				report.Stale++
				log.Info("Entry changed during cycle, dropping outcome", "user", o.user, "address", o.address)
				continue
			}
			for _, tx := range o.seen {
				if !live.HasNotified(tx.Hash) {
					detector.Apply(live, tx, p.cfg.NotifiedCap, p.now().UTC())
				}
			}
		}
		state.LastChecked = p.now().Unix()
		return nil
	})
	if err != nil {
		report.PersistErr = err.Error()
	}

	report.Duration = p.now().Sub(start)
	p.cycles.Add(1)
	p.last.Store(&report)
	metrics.CyclesTotal.Inc()
	metrics.CycleDuration.Observe(report.Duration.Seconds())

	log.Info("Cycle completed",
		"entries", report.Entries,
		"notified", report.Notified,
		"suppressed", report.Suppressed,
		"failed", report.Failed,
		"stale", report.Stale,
		"price_known", report.PriceKnown,
		"duration", report.Duration,
	)
	return report
}

// evaluate fetches, detects and delivers for one entry. It never panics.
func (p *Poller) evaluate(
	ctx context.Context,
	log *slog.Logger,
	user domain.UserID,
	entry *domain.WatchEntry,
	price decimal.NullDecimal,
) (out outcome) {
	out = outcome{user: user, address: entry.Address}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Entry evaluation panicked",
				"user", user,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			out.err = fmt.Errorf("panic: %v", r)
		}
	}()

	txs, err := p.client.FetchTransactions(ctx, entry.Address, p.cfg.TxLimit)
	if err != nil {
		log.Warn("Failed to fetch transactions",
			"user", user,
			"address", entry.Address,
			"action", provider.ClassifyError(err).String(),
			"error", err,
		)
		out.err = err
		return out
	}

	decision := p.detector.Detect(entry, txs)
	if decision.Empty() {
		return out
	}
	for _, tx := range decision.Notify {
		if p.cfg.IncomingOnly && !tx.Incoming() {
			metrics.NotificationsTotal.WithLabelValues("suppressed").Inc()
			out.seen = append(out.seen, tx)
			out.muted++
			continue
		}

		msg := p.formatter.Format(tx, price)
		if err := p.notifier.Notify(ctx, user, msg); err != nil {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			log.Warn("Failed to deliver notification",
				"user", user,
				"tx", tx.Hash,
				"error", err,
			)
			// Later transactions wait so they are delivered in order next cycle
			out.err = err
			return out
		}

		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		log.Info("Notification sent", "user", user, "tx", tx.Hash, "amount", msg.Amount)
		out.seen = append(out.seen, tx)
		out.sent++
	}

	return out
}
