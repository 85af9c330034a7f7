package engine

import (
	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"sigfuse/internal/provider"
	"sigfuse/internal/types"
)

// DiscoveryConfig tunes the technical phase. Zero values fall back to the
// documented defaults.
type DiscoveryConfig struct {
	EMAFast   int
	EMASlow   int
	RSIPeriod int
}

func (c DiscoveryConfig) withDefaults() DiscoveryConfig {
	if c.EMAFast <= 0 {
		c.EMAFast = 12
	}
	if c.EMASlow <= 0 {
		c.EMASlow = 26
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	return c
}

// discoveryProviders is the input set this phase expects; used to fill
// inputs_used / inputs_missing on the resulting PhaseScore.
var discoveryProviders = []string{provider.IDBinanceFutures, provider.IDCoinGecko}

type subFactor struct {
	name   string
	weight decimal.Decimal
	score  decimal.Decimal
}

// ScoreDiscovery derives trend and momentum from candles, open interest and
// 24h market stats. Pure: identical inputs always yield an identical score.
// A missing sub-factor (no volume, no OI history) is omitted and the remaining
// weights renormalized, never defaulted to zero, because zero would read as a
// maximally bearish reading instead of "unknown".
func ScoreDiscovery(results map[string]provider.Result, cfg DiscoveryConfig) types.PhaseScore {
	cfg = cfg.withDefaults()
	score := types.PhaseScore{Phase: types.PhaseDiscovery}

	binance := results[provider.IDBinanceFutures]
	gecko := results[provider.IDCoinGecko]

	var factors []subFactor

	if binance.Usable() && len(binance.Payload.Candles) > 0 {
		candles := binance.Payload.Candles
		closes := make([]float64, len(candles))
		volumes := make([]float64, len(candles))
		hasVolume := false
		for i, c := range candles {
			closes[i] = c.Close
			volumes[i] = c.Volume
			if c.Volume > 0 {
				hasVolume = true
			}
		}

		if f, ok := emaTrendFactor(closes, cfg); ok {
			factors = append(factors, subFactor{name: "ema_trend", weight: dec("0.25"), score: f})
		}
		if f, ok := rsiFactor(closes, cfg); ok {
			factors = append(factors, subFactor{name: "rsi_momentum", weight: dec("0.20"), score: f})
		}
		if f, ok := recentMomentumFactor(closes); ok {
			factors = append(factors, subFactor{name: "recent_momentum", weight: dec("0.15"), score: f})
		}
		if hasVolume {
			if f, ok := volumeSurgeFactor(volumes); ok {
				factors = append(factors, subFactor{name: "volume_surge", weight: dec("0.15"), score: f})
			}
		}
		if f, ok := oiTrendFactor(binance.Payload.OpenInterest); ok {
			factors = append(factors, subFactor{name: "oi_trend", weight: dec("0.15"), score: f})
		}
		score.InputsUsed = append(score.InputsUsed, provider.IDBinanceFutures)
	} else {
		score.InputsMissing = append(score.InputsMissing, provider.IDBinanceFutures)
	}

	if gecko.Usable() && gecko.Payload.Market != nil {
		chg := decF(gecko.Payload.Market.PriceChange24h)
		factors = append(factors, subFactor{
			name:   "chg_24h",
			weight: dec("0.10"),
			score:  normalize(chg, dec("-10"), dec("10")),
		})
		score.InputsUsed = append(score.InputsUsed, provider.IDCoinGecko)
	} else {
		score.InputsMissing = append(score.InputsMissing, provider.IDCoinGecko)
	}

	return finishPhase(score, factors)
}

// finishPhase renormalizes the surviving sub-factor weights, folds them into a
// 0-100 value and records each factor's signed contribution in score points.
func finishPhase(score types.PhaseScore, factors []subFactor) types.PhaseScore {
	if len(factors) == 0 || len(score.InputsUsed) == 0 {
		score.Value = types.NeutralScore
		return score
	}
	totalWeight := decimal.Zero
	for _, f := range factors {
		totalWeight = totalWeight.Add(f.weight)
	}
	if totalWeight.IsZero() {
		score.Value = types.NeutralScore
		return score
	}

	half := dec("0.5")
	hundred := dec("100")
	weighted := decimal.Zero
	for _, f := range factors {
		w := f.weight.Div(totalWeight)
		weighted = weighted.Add(w.Mul(f.score))
		contribution, _ := w.Mul(f.score.Sub(half)).Mul(hundred).Round(2).Float64()
		score.Factors = append(score.Factors, types.Factor{Name: f.name, Contribution: contribution})
	}
	score.Value = scoreFloat(weighted.Mul(hundred))
	return score
}

func emaTrendFactor(closes []float64, cfg DiscoveryConfig) (decimal.Decimal, bool) {
	if len(closes) < cfg.EMASlow+1 {
		return decimal.Zero, false
	}
	fast := talib.Ema(closes, cfg.EMAFast)
	slow := talib.Ema(closes, cfg.EMASlow)
	lastFast := fast[len(fast)-1]
	lastSlow := slow[len(slow)-1]
	if lastSlow == 0 {
		return decimal.Zero, false
	}
	spread := decF(lastFast).Sub(decF(lastSlow)).Div(decF(lastSlow))
	return normalize(spread, dec("-0.05"), dec("0.05")), true
}

func rsiFactor(closes []float64, cfg DiscoveryConfig) (decimal.Decimal, bool) {
	if len(closes) < cfg.RSIPeriod+1 {
		return decimal.Zero, false
	}
	rsi := talib.Rsi(closes, cfg.RSIPeriod)
	latest := rsi[len(rsi)-1]
	if latest <= 0 {
		return decimal.Zero, false
	}
	return normalize(decF(latest), decimal.Zero, dec("100")), true
}

// recentMomentumFactor is a weighted rate-of-change over the last bars, with
// linearly increasing weights so the newest bar counts most.
func recentMomentumFactor(closes []float64) (decimal.Decimal, bool) {
	const window = 10
	if len(closes) < window+1 {
		return decimal.Zero, false
	}
	tail := closes[len(closes)-window-1:]
	sum := decimal.Zero
	weightTotal := decimal.Zero
	for i := 1; i < len(tail); i++ {
		if tail[i-1] == 0 {
			continue
		}
		ret := decF(tail[i]).Sub(decF(tail[i-1])).Div(decF(tail[i-1]))
		w := decimal.NewFromInt(int64(i))
		sum = sum.Add(w.Mul(ret))
		weightTotal = weightTotal.Add(w)
	}
	if weightTotal.IsZero() {
		return decimal.Zero, false
	}
	return normalize(sum.Div(weightTotal), dec("-0.02"), dec("0.02")), true
}

func volumeSurgeFactor(volumes []float64) (decimal.Decimal, bool) {
	if len(volumes) < 2 {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, v := range volumes[:len(volumes)-1] {
		sum = sum.Add(decF(v))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(volumes) - 1)))
	if avg.IsZero() {
		return decimal.Zero, false
	}
	ratio := decF(volumes[len(volumes)-1]).Div(avg)
	return normalize(ratio, dec("0.5"), dec("3.0")), true
}

func oiTrendFactor(points []provider.OpenInterestPoint) (decimal.Decimal, bool) {
	if len(points) < 2 {
		return decimal.Zero, false
	}
	minV := decF(points[0].Value)
	maxV := minV
	for _, p := range points[1:] {
		v := decF(p.Value)
		if v.LessThan(minV) {
			minV = v
		}
		if v.GreaterThan(maxV) {
			maxV = v
		}
	}
	cur := decF(points[len(points)-1].Value)
	return normalize(cur, minV, maxV), true
}
