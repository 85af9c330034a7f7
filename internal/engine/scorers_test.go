package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigfuse/internal/provider"
	"sigfuse/internal/types"
)

func trendingCandles(n int, start, step, volume float64) []provider.Candle {
	out := make([]provider.Candle, n)
	price := start
	for i := range out {
		out[i] = provider.Candle{
			OpenTime: int64(i) * 3600_000,
			Open:     price,
			High:     price * 1.01,
			Low:      price * 0.99,
			Close:    price + step,
			Volume:   volume,
		}
		price += step
	}
	return out
}

func binanceResult(status provider.Status, payload provider.Payload) provider.Result {
	return provider.Result{Provider: provider.IDBinanceFutures, Symbol: "BTC/USDT", Status: status, Payload: payload}
}

func TestScoreDiscoveryUptrend(t *testing.T) {
	results := map[string]provider.Result{
		provider.IDBinanceFutures: binanceResult(provider.StatusOK, provider.Payload{
			Candles: trendingCandles(60, 100, 1, 500),
			OpenInterest: []provider.OpenInterestPoint{
				{Value: 100, Timestamp: 1}, {Value: 120, Timestamp: 2}, {Value: 150, Timestamp: 3},
			},
		}),
		provider.IDCoinGecko: {
			Provider: provider.IDCoinGecko, Status: provider.StatusOK,
			Payload: provider.Payload{Market: &provider.MarketStats{Price: 160, Volume24h: 1e9, PriceChange24h: 5}},
		},
	}

	score := ScoreDiscovery(results, DiscoveryConfig{})

	assert.Equal(t, types.PhaseDiscovery, score.Phase)
	assert.ElementsMatch(t, []string{provider.IDBinanceFutures, provider.IDCoinGecko}, score.InputsUsed)
	assert.Empty(t, score.InputsMissing)
	assert.Greater(t, score.Value, 50.0, "a steady uptrend must score bullish")
	assert.LessOrEqual(t, score.Value, 100.0)
}

func TestScoreDiscoveryDeterministic(t *testing.T) {
	results := map[string]provider.Result{
		provider.IDBinanceFutures: binanceResult(provider.StatusOK, provider.Payload{
			Candles: trendingCandles(60, 100, -0.5, 300),
		}),
	}
	first := ScoreDiscovery(results, DiscoveryConfig{})
	second := ScoreDiscovery(results, DiscoveryConfig{})
	assert.Equal(t, first, second)
}

func TestScoreDiscoveryOmitsVolumeWhenMissing(t *testing.T) {
	// Volume missing must drop the sub-factor, not score it as zero: scoring
	// it zero would read as maximally bearish.
	withVolume := map[string]provider.Result{
		provider.IDBinanceFutures: binanceResult(provider.StatusOK, provider.Payload{
			Candles: trendingCandles(60, 100, 1, 500),
		}),
	}
	withoutVolume := map[string]provider.Result{
		provider.IDBinanceFutures: binanceResult(provider.StatusOK, provider.Payload{
			Candles: trendingCandles(60, 100, 1, 0),
		}),
	}

	scored := ScoreDiscovery(withoutVolume, DiscoveryConfig{})
	for _, f := range scored.Factors {
		assert.NotEqual(t, "volume_surge", f.Name)
	}

	ref := ScoreDiscovery(withVolume, DiscoveryConfig{})
	// Same flat-volume uptrend: omitting the factor must not drag the value
	// below the with-volume reading by more than the factor could explain.
	assert.InDelta(t, ref.Value, scored.Value, 20)
	assert.Greater(t, scored.Value, 50.0)
}

func TestScoreDiscoveryNoData(t *testing.T) {
	score := ScoreDiscovery(map[string]provider.Result{}, DiscoveryConfig{})
	assert.Equal(t, types.NeutralScore, score.Value)
	assert.Empty(t, score.InputsUsed)
	assert.ElementsMatch(t, []string{provider.IDBinanceFutures, provider.IDCoinGecko}, score.InputsMissing)
}

func TestScoreSocial(t *testing.T) {
	results := map[string]provider.Result{
		provider.IDAlternativeMe: {
			Provider: provider.IDAlternativeMe, Status: provider.StatusOK,
			Payload: provider.Payload{Sentiment: &provider.SentimentIndex{Value: 72, Classification: "Greed", Timestamp: time.Now()}},
		},
	}
	score := ScoreSocial(results)

	assert.Equal(t, 72.0, score.Value)
	assert.Equal(t, []string{provider.IDAlternativeMe}, score.InputsUsed)
	require.Len(t, score.Factors, 1)
	assert.Equal(t, "crowd_sentiment", score.Factors[0].Name)
	assert.Equal(t, 22.0, score.Factors[0].Contribution)
}

func TestScoreSocialNeutralDefault(t *testing.T) {
	score := ScoreSocial(map[string]provider.Result{
		provider.IDAlternativeMe: {Provider: provider.IDAlternativeMe, Status: provider.StatusError, Err: "timeout"},
	})
	assert.Equal(t, types.NeutralScore, score.Value)
	assert.Empty(t, score.InputsUsed)
	assert.Equal(t, []string{provider.IDAlternativeMe}, score.InputsMissing)
	assert.Empty(t, score.Factors)
}

func TestScoreInstitutionalFullData(t *testing.T) {
	results := map[string]provider.Result{
		provider.IDBinanceFutures: binanceResult(provider.StatusOK, provider.Payload{
			Funding: &provider.FundingInfo{Rate: -0.01},
			TopTraderRatio: []provider.LongShortRatioPoint{
				{Ratio: 1.8, Timestamp: 1}, {Ratio: 1.9, Timestamp: 2},
			},
		}),
		provider.IDCoinglass: {
			Provider: provider.IDCoinglass, Status: provider.StatusOK,
			Payload: provider.Payload{Liquidations: &provider.LiquidationStats{LongNotional: 1e6, ShortNotional: 4e6}},
		},
	}

	score := ScoreInstitutional(results, InstitutionalConfig{MinDataPoints: 2})

	assert.ElementsMatch(t, []string{provider.IDBinanceFutures, provider.IDCoinglass}, score.InputsUsed)
	assert.False(t, score.LowReliability)
	// Shorts paying funding, whales long, shorts being liquidated: bullish.
	assert.Greater(t, score.Value, 65.0)
}

func TestScoreInstitutionalMinDataPointsFlag(t *testing.T) {
	results := map[string]provider.Result{
		provider.IDBinanceFutures: binanceResult(provider.StatusOK, provider.Payload{
			Funding: &provider.FundingInfo{Rate: 0.0001},
		}),
	}
	score := ScoreInstitutional(results, InstitutionalConfig{MinDataPoints: 2})
	assert.True(t, score.LowReliability, "one data point is below the configured minimum")
	assert.True(t, score.Populated())
}

func TestScoreInstitutionalDegradedCountsHalf(t *testing.T) {
	results := map[string]provider.Result{
		provider.IDBinanceFutures: binanceResult(provider.StatusDegraded, provider.Payload{
			Funding:        &provider.FundingInfo{Rate: 0.0001},
			TopTraderRatio: []provider.LongShortRatioPoint{{Ratio: 1.2, Timestamp: 1}},
		}),
	}
	score := ScoreInstitutional(results, InstitutionalConfig{MinDataPoints: 2})
	// Two data points from a degraded source count as one: still flagged.
	assert.True(t, score.LowReliability)
}

func TestScoreInstitutionalNoData(t *testing.T) {
	score := ScoreInstitutional(map[string]provider.Result{}, InstitutionalConfig{})
	assert.Equal(t, types.NeutralScore, score.Value)
	assert.False(t, score.Populated())
	assert.False(t, score.LowReliability)
}
