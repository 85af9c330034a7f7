package evaluator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigfuse/internal/types"
)

type fakeStore struct {
	mu       sync.Mutex
	pending  []types.Signal
	attached map[string]types.Outcome
	err      error
}

func newFakeStore(pending ...types.Signal) *fakeStore {
	return &fakeStore{pending: pending, attached: make(map[string]types.Outcome)}
}

func (f *fakeStore) PendingSignals(_ context.Context, before time.Time, limit int) ([]types.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []types.Signal
	for _, sig := range f.pending {
		if _, done := f.attached[sig.ID]; done {
			continue
		}
		if sig.GeneratedAt.After(before) {
			continue
		}
		out = append(out, sig)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) AttachOutcome(_ context.Context, out types.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, done := f.attached[out.SignalID]; done {
		return nil
	}
	f.attached[out.SignalID] = out
	return nil
}

func (f *fakeStore) outcome(id string) (types.Outcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.attached[id]
	return out, ok
}

type fakePrices struct {
	prices map[string]float64
	err    error
}

func (f *fakePrices) LastPrice(_ context.Context, symbol string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return p, nil
}

func dueSignal(id string, dir types.Direction, entry float64, age time.Duration) types.Signal {
	return types.Signal{
		ID:          id,
		Symbol:      "BTC/USDT",
		GeneratedAt: time.Now().Add(-age),
		Direction:   dir,
		EntryPrice:  entry,
	}
}

func TestEvaluateDueLongWin(t *testing.T) {
	store := newFakeStore(dueSignal("a", types.DirectionLong, 100, 48*time.Hour))
	prices := &fakePrices{prices: map[string]float64{"BTC/USDT": 110}}
	ev := New(store, prices, Options{Horizon: 24 * time.Hour})

	n, err := ev.EvaluateDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out, ok := store.outcome("a")
	require.True(t, ok)
	assert.Equal(t, types.OutcomeWin, out.Result)
	assert.InDelta(t, 10.0, out.RealizedPnlPct, 1e-9)
}

func TestEvaluateDueShortPnlIsInverted(t *testing.T) {
	store := newFakeStore(dueSignal("a", types.DirectionShort, 100, 48*time.Hour))
	prices := &fakePrices{prices: map[string]float64{"BTC/USDT": 90}}
	ev := New(store, prices, Options{Horizon: 24 * time.Hour})

	_, err := ev.EvaluateDue(context.Background())
	require.NoError(t, err)

	out, _ := store.outcome("a")
	assert.Equal(t, types.OutcomeWin, out.Result)
	assert.InDelta(t, 10.0, out.RealizedPnlPct, 1e-9)
}

func TestEvaluateDueLoss(t *testing.T) {
	store := newFakeStore(dueSignal("a", types.DirectionLong, 100, 48*time.Hour))
	prices := &fakePrices{prices: map[string]float64{"BTC/USDT": 95}}
	ev := New(store, prices, Options{Horizon: 24 * time.Hour})

	_, err := ev.EvaluateDue(context.Background())
	require.NoError(t, err)

	out, _ := store.outcome("a")
	assert.Equal(t, types.OutcomeLoss, out.Result)
	assert.InDelta(t, -5.0, out.RealizedPnlPct, 1e-9)
}

func TestEvaluateDueSkipsSignalsInsideHorizon(t *testing.T) {
	store := newFakeStore(
		dueSignal("old", types.DirectionLong, 100, 48*time.Hour),
		dueSignal("fresh", types.DirectionLong, 100, time.Hour),
	)
	prices := &fakePrices{prices: map[string]float64{"BTC/USDT": 110}}
	ev := New(store, prices, Options{Horizon: 24 * time.Hour})

	n, err := ev.EvaluateDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := store.outcome("fresh")
	assert.False(t, ok)
}

func TestEvaluateDueMissingEntryPriceGoesPending(t *testing.T) {
	store := newFakeStore(dueSignal("a", types.DirectionLong, 0, 48*time.Hour))
	ev := New(store, &fakePrices{}, Options{Horizon: 24 * time.Hour})

	n, err := ev.EvaluateDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out, ok := store.outcome("a")
	require.True(t, ok)
	assert.Equal(t, types.OutcomePending, out.Result)
}

func TestEvaluateDuePriceFailureLeavesSignalPending(t *testing.T) {
	store := newFakeStore(dueSignal("a", types.DirectionLong, 100, 48*time.Hour))
	prices := &fakePrices{err: assert.AnError}
	ev := New(store, prices, Options{Horizon: 24 * time.Hour})

	n, err := ev.EvaluateDue(context.Background())
	require.NoError(t, err, "a failed grade is retried next scan, not an error")
	assert.Equal(t, 0, n)
	_, ok := store.outcome("a")
	assert.False(t, ok)

	// Price recovers: the next scan picks the signal up again.
	prices.err = nil
	prices.prices = map[string]float64{"BTC/USDT": 101}
	n, err = ev.EvaluateDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEvaluateDueRepeatScanIsIdempotent(t *testing.T) {
	store := newFakeStore(dueSignal("a", types.DirectionLong, 100, 48*time.Hour))
	prices := &fakePrices{prices: map[string]float64{"BTC/USDT": 110}}
	ev := New(store, prices, Options{Horizon: 24 * time.Hour})

	_, err := ev.EvaluateDue(context.Background())
	require.NoError(t, err)
	first, _ := store.outcome("a")

	prices.prices["BTC/USDT"] = 50
	n, err := ev.EvaluateDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	second, _ := store.outcome("a")
	assert.Equal(t, first, second)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newFakeStore()
	ev := New(store, &fakePrices{}, Options{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ev.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
