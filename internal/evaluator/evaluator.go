package evaluator

import (
	"context"
	"time"

	"sigfuse/internal/logger"
	"sigfuse/internal/types"
)

// PriceSource resolves a current reference price for a symbol.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// Store is the slice of the ledger the evaluator needs.
type Store interface {
	PendingSignals(ctx context.Context, before time.Time, limit int) ([]types.Signal, error)
	AttachOutcome(ctx context.Context, out types.Outcome) error
}

// Options tune the evaluation loop.
type Options struct {
	// Horizon is how long after generation a signal gets evaluated.
	Horizon time.Duration
	// PollInterval is how often the loop scans for due signals.
	PollInterval time.Duration
	// BatchSize caps how many signals one scan evaluates.
	BatchSize int
}

func (o Options) withDefaults() Options {
	if o.Horizon <= 0 {
		o.Horizon = 24 * time.Hour
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	return o
}

// Evaluator periodically grades directional signals whose horizon has passed:
// it fetches the current price, computes realized pnl relative to the entry
// price and attaches a win/loss outcome. Attachment is idempotent at the
// ledger, so an overlapping or retried scan cannot double-grade a signal.
type Evaluator struct {
	store  Store
	prices PriceSource
	opts   Options
	clock  func() time.Time
}

func New(store Store, prices PriceSource, opts Options) *Evaluator {
	return &Evaluator{
		store:  store,
		prices: prices,
		opts:   opts.withDefaults(),
		clock:  time.Now,
	}
}

// SetClock injects a clock for tests.
func (e *Evaluator) SetClock(clock func() time.Time) {
	if clock != nil {
		e.clock = clock
	}
}

// Run blocks, scanning on every tick until the context is cancelled.
func (e *Evaluator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := e.EvaluateDue(ctx); err != nil {
				logger.Warnf("outcome evaluation scan failed: %v", err)
			} else if n > 0 {
				logger.Infof("evaluated %d signal outcomes", n)
			}
		}
	}
}

// EvaluateDue grades every signal past its horizon and returns how many
// outcomes were attached.
func (e *Evaluator) EvaluateDue(ctx context.Context) (int, error) {
	cutoff := e.clock().Add(-e.opts.Horizon)
	due, err := e.store.PendingSignals(ctx, cutoff, e.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	attached := 0
	for _, sig := range due {
		if err := ctx.Err(); err != nil {
			return attached, err
		}
		if err := e.evaluateOne(ctx, sig); err != nil {
			logger.Warnf("evaluating %s (%s): %v", sig.Symbol, sig.ID, err)
			continue
		}
		attached++
	}
	return attached, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, sig types.Signal) error {
	if sig.EntryPrice <= 0 {
		// No reference price was available at generation time; the signal can
		// never be graded against price action.
		return e.store.AttachOutcome(ctx, types.Outcome{
			SignalID:    sig.ID,
			EvaluatedAt: e.clock().UTC(),
			Result:      types.OutcomePending,
		})
	}
	price, err := e.prices.LastPrice(ctx, sig.Symbol)
	if err != nil {
		return err
	}
	pnl := (price - sig.EntryPrice) / sig.EntryPrice * 100
	if sig.Direction == types.DirectionShort {
		pnl = -pnl
	}
	result := types.OutcomeLoss
	if pnl > 0 {
		result = types.OutcomeWin
	}
	return e.store.AttachOutcome(ctx, types.Outcome{
		SignalID:       sig.ID,
		EvaluatedAt:    e.clock().UTC(),
		RealizedPnlPct: pnl,
		Result:         result,
	})
}
