package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigfuse/internal/config"
	"sigfuse/internal/engine"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{LogLevel: "warn"},
		Providers: config.ProvidersConfig{
			TimeoutSeconds: 2,
			Binance:        config.BinanceConfig{Enabled: true, RESTBaseURL: "https://fapi.binance.com"},
			CoinGecko:      config.CoinGeckoConfig{Enabled: true},
			AlternativeMe:  config.AlternativeMeConfig{Enabled: true},
			Coinglass:      config.CoinglassConfig{Enabled: true},
		},
		Health:    config.HealthConfig{FailureThreshold: 3, CooldownSeconds: 60},
		Watchlist: config.WatchlistConfig{Symbols: []string{"BTC/USDT"}, IntervalSeconds: 900},
		Ledger:    config.LedgerConfig{Path: filepath.Join(t.TempDir(), "signals.db")},
	}
}

func TestNewAppWiresEverything(t *testing.T) {
	app, err := NewApp(baseConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, app.Engine())
	assert.NotNil(t, app.Ledger())
	assert.Nil(t, app.dispatcher, "telegram disabled means no dispatcher")
	assert.Nil(t, app.evaluator, "evaluator disabled")
}

func TestNewAppRejectsInvalidScoring(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Scoring.Weights = config.WeightsConfig{Discovery: 0.5, Social: 0.5, Institutional: 0.5}

	_, err := NewApp(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrCompositionInvariant)
}

func TestNewAppEvaluatorNeedsBinance(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Providers.Binance.Enabled = false
	cfg.Evaluator = config.EvaluatorConfig{Enabled: true, HorizonHours: 24, PollSeconds: 300}

	_, err := NewApp(cfg)
	assert.Error(t, err)
}

func TestNewAppNilConfig(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
}

func TestApplyConfigRejectsInvalidScoringButKeepsRunning(t *testing.T) {
	app, err := NewApp(baseConfig(t))
	require.NoError(t, err)

	bad := baseConfig(t)
	bad.Scoring.Weights = config.WeightsConfig{Discovery: 1, Social: 1, Institutional: 1}
	app.ApplyConfig(bad)

	// The engine still composes with the previous, valid config.
	assert.NotNil(t, app.Engine())
}

func TestApplyConfigSwapsWatchlist(t *testing.T) {
	app, err := NewApp(baseConfig(t))
	require.NoError(t, err)

	next := baseConfig(t)
	next.Watchlist.Symbols = []string{"ETH/USDT", "SOL/USDT"}
	app.ApplyConfig(next)

	app.mu.RLock()
	defer app.mu.RUnlock()
	assert.Equal(t, []string{"ETH/USDT", "SOL/USDT"}, app.watchlist.Symbols)
}
