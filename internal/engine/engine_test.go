package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigfuse/internal/health"
	"sigfuse/internal/provider"
	"sigfuse/internal/types"
)

type memLedger struct {
	mu      sync.Mutex
	signals []types.Signal
	err     error
}

func (m *memLedger) Record(_ context.Context, sig types.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.signals = append(m.signals, sig)
	return nil
}

func (m *memLedger) recorded() []types.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Signal(nil), m.signals...)
}

type memAlerter struct {
	mu      sync.Mutex
	signals []types.Signal
}

func (m *memAlerter) Enqueue(sig types.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, sig)
}

func (m *memAlerter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.signals)
}

func bullishAdapters() []provider.Adapter {
	return []provider.Adapter{
		&stubAdapter{id: provider.IDBinanceFutures, result: provider.Result{
			Status: provider.StatusOK,
			Payload: provider.Payload{
				Candles:        trendingCandles(60, 100, 1, 500),
				OpenInterest:   []provider.OpenInterestPoint{{Value: 100, Timestamp: 1}, {Value: 150, Timestamp: 2}},
				Funding:        &provider.FundingInfo{Rate: -0.01, MarkPrice: 160},
				TopTraderRatio: []provider.LongShortRatioPoint{{Ratio: 1.9, Timestamp: 1}},
			},
		}},
		&stubAdapter{id: provider.IDCoinGecko, result: provider.Result{
			Status:  provider.StatusOK,
			Payload: provider.Payload{Market: &provider.MarketStats{Price: 160, Volume24h: 1e9, PriceChange24h: 6}},
		}},
		&stubAdapter{id: provider.IDAlternativeMe, result: provider.Result{
			Status:  provider.StatusOK,
			Payload: provider.Payload{Sentiment: &provider.SentimentIndex{Value: 78, Classification: "Extreme Greed"}},
		}},
		&stubAdapter{id: provider.IDCoinglass, result: provider.Result{
			Status:  provider.StatusOK,
			Payload: provider.Payload{Liquidations: &provider.LiquidationStats{LongNotional: 1e6, ShortNotional: 5e6}},
		}},
	}
}

func newTestEngine(t *testing.T, ledger Ledger, alerter Alerter, adapters ...provider.Adapter) *Engine {
	t.Helper()
	reg := provider.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	tracker := health.NewTracker(health.Options{})
	fanout := NewFanout(reg, tracker, time.Second)
	eng, err := New(fanout, ledger, alerter, ScoringConfig{})
	require.NoError(t, err)
	return eng
}

func TestAnalyzeBullishSignal(t *testing.T) {
	ledger := &memLedger{}
	alerter := &memAlerter{}
	eng := newTestEngine(t, ledger, alerter, bullishAdapters()...)

	sig, err := eng.Analyze(context.Background(), "btc/usdt", types.AllPhases, Options{})
	require.NoError(t, err)

	assert.Equal(t, "BTC/USDT", sig.Symbol)
	assert.NotEmpty(t, sig.ID)
	assert.False(t, sig.GeneratedAt.IsZero())
	assert.Equal(t, types.DirectionLong, sig.Direction)
	assert.Equal(t, types.ConfidenceHigh, sig.Confidence)
	assert.Greater(t, sig.Score, 65.0)
	assert.Len(t, sig.PhaseScores, 3)
	assert.NotEmpty(t, sig.Reasons)
	assert.Greater(t, sig.EntryPrice, 0.0)

	recorded := ledger.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, sig.ID, recorded[0].ID)
}

func TestAnalyzeInvalidSymbol(t *testing.T) {
	eng := newTestEngine(t, &memLedger{}, &memAlerter{})
	_, err := eng.Analyze(context.Background(), "not a symbol", nil, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}

func TestAnalyzeAllProvidersFailing(t *testing.T) {
	ledger := &memLedger{}
	eng := newTestEngine(t, ledger, &memAlerter{},
		&stubAdapter{id: provider.IDBinanceFutures, result: provider.Result{Status: provider.StatusError, Err: "down"}},
		&stubAdapter{id: provider.IDCoinGecko, result: provider.Result{Status: provider.StatusError, Err: "down"}},
		&stubAdapter{id: provider.IDAlternativeMe, result: provider.Result{Status: provider.StatusError, Err: "down"}},
		&stubAdapter{id: provider.IDCoinglass, result: provider.Result{Status: provider.StatusUnavailable, Err: "no key"}},
	)

	sig, err := eng.Analyze(context.Background(), "ETH/USDT", types.AllPhases, Options{})
	require.NoError(t, err, "degraded answers beat errors")

	assert.Equal(t, 50.0, sig.Score)
	assert.Equal(t, types.DirectionNeutral, sig.Direction)
	assert.Equal(t, types.ConfidenceLow, sig.Confidence)
	assert.Len(t, ledger.recorded(), 1, "even an all-neutral signal is recorded")
}

func TestAnalyzeAlertsOnGoldTier(t *testing.T) {
	alerter := &memAlerter{}
	eng := newTestEngine(t, &memLedger{}, alerter, bullishAdapters()...)
	eng.SetAlertThresholds(types.TierGold, types.ConfidenceMedium)

	_, err := eng.Analyze(context.Background(), "BTC/USDT", types.AllPhases, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, alerter.count())
}

func TestAnalyzeNoAlertBelowTier(t *testing.T) {
	alerter := &memAlerter{}
	eng := newTestEngine(t, &memLedger{}, alerter,
		&stubAdapter{id: provider.IDAlternativeMe, result: provider.Result{
			Status:  provider.StatusOK,
			Payload: provider.Payload{Sentiment: &provider.SentimentIndex{Value: 52}},
		}},
	)
	_, err := eng.Analyze(context.Background(), "BTC/USDT", []types.Phase{types.PhaseSocial}, Options{})
	require.NoError(t, err)
	assert.Zero(t, alerter.count())
}

func TestAnalyzeMinConfidenceSuppressesDirection(t *testing.T) {
	// Only social data: confidence low. Requesting medium forces NEUTRAL.
	eng := newTestEngine(t, &memLedger{}, &memAlerter{},
		&stubAdapter{id: provider.IDAlternativeMe, result: provider.Result{
			Status:  provider.StatusOK,
			Payload: provider.Payload{Sentiment: &provider.SentimentIndex{Value: 95}},
		}},
	)

	sig, err := eng.Analyze(context.Background(), "BTC/USDT", []types.Phase{types.PhaseSocial}, Options{MinConfidence: types.ConfidenceMedium})
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, sig.Direction)
	assert.Contains(t, sig.Reasons[len(sig.Reasons)-1], "confidence")
}

func TestAnalyzeMaxAgeSuppressesOldListings(t *testing.T) {
	adapters := bullishAdapters()
	eng := newTestEngine(t, &memLedger{}, &memAlerter{}, adapters...)

	// bullishAdapters has no ListedAt; set one far in the past.
	old := adapters[1].(*stubAdapter)
	old.result.Payload.Market.ListedAt = time.Now().Add(-90 * 24 * time.Hour)

	sig, err := eng.Analyze(context.Background(), "BTC/USDT", types.AllPhases, Options{MaxAgeHours: 48})
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, sig.Direction)
}

func TestAnalyzeLedgerFailureDoesNotFailRequest(t *testing.T) {
	ledger := &memLedger{err: context.DeadlineExceeded}
	eng := newTestEngine(t, ledger, &memAlerter{}, bullishAdapters()...)

	sig, err := eng.Analyze(context.Background(), "BTC/USDT", types.AllPhases, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, sig.ID)
}

func TestAnalyzeDefaultPhases(t *testing.T) {
	eng := newTestEngine(t, &memLedger{}, &memAlerter{}, bullishAdapters()...)

	sig, err := eng.Analyze(context.Background(), "BTC/USDT", nil, Options{})
	require.NoError(t, err)
	assert.Len(t, sig.PhaseScores, 2, "institutional only joins on request")

	sig, err = eng.Analyze(context.Background(), "BTC/USDT", nil, Options{IncludeInstitutional: true})
	require.NoError(t, err)
	assert.Len(t, sig.PhaseScores, 3)
}
