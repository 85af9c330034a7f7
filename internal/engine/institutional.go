package engine

import (
	"github.com/shopspring/decimal"

	"sigfuse/internal/provider"
	"sigfuse/internal/types"
)

// InstitutionalConfig tunes the whale-flow phase. MinDataPoints is the number
// of usable data points below which the phase flags itself low-reliability;
// data from a degraded source counts half a point.
type InstitutionalConfig struct {
	MinDataPoints float64
}

func (c InstitutionalConfig) withDefaults() InstitutionalConfig {
	if c.MinDataPoints <= 0 {
		c.MinDataPoints = 2
	}
	return c
}

var institutionalProviders = []string{provider.IDBinanceFutures, provider.IDCoinglass}

// ScoreInstitutional derives accumulation/distribution intensity from funding,
// top-trader positioning and forced-liquidation flow. Internally the phase
// works on a 0-10 sub-score that is rescaled to 0-100 for composition.
func ScoreInstitutional(results map[string]provider.Result, cfg InstitutionalConfig) types.PhaseScore {
	cfg = cfg.withDefaults()
	score := types.PhaseScore{Phase: types.PhaseInstitutional}

	binance := results[provider.IDBinanceFutures]
	coinglass := results[provider.IDCoinglass]

	var factors []subFactor
	points := 0.0

	trust := func(res provider.Result) float64 {
		if res.Status == provider.StatusDegraded {
			return 0.5
		}
		return 1.0
	}

	binanceUsed := false
	if binance.Usable() {
		if f := binance.Payload.Funding; f != nil {
			// Negative funding means shorts pay longs: crowded shorts, squeeze
			// fuel to the upside.
			factors = append(factors, subFactor{
				name:   "funding_squeeze",
				weight: dec("0.35"),
				score:  normalizeInverse(decF(f.Rate), dec("-0.02"), dec("0.02")),
			})
			points += trust(binance)
			binanceUsed = true
		}
		if ratios := binance.Payload.TopTraderRatio; len(ratios) > 0 {
			factors = append(factors, subFactor{
				name:   "whale_positioning",
				weight: dec("0.35"),
				score:  normalize(avgRatio(ratios), dec("0.9"), dec("2.0")),
			})
			points += trust(binance)
			binanceUsed = true
		}
	}
	if binanceUsed {
		score.InputsUsed = append(score.InputsUsed, provider.IDBinanceFutures)
	} else {
		score.InputsMissing = append(score.InputsMissing, provider.IDBinanceFutures)
	}

	if coinglass.Usable() && coinglass.Payload.Liquidations != nil {
		liq := coinglass.Payload.Liquidations
		total := decF(liq.LongNotional).Add(decF(liq.ShortNotional))
		if total.GreaterThan(decimal.Zero) {
			// Shorts getting liquidated is forced buying; an imbalance toward
			// short liquidations reads bullish.
			factors = append(factors, subFactor{
				name:   "liquidation_imbalance",
				weight: dec("0.30"),
				score:  decF(liq.ShortNotional).Div(total),
			})
			points += trust(coinglass)
			score.InputsUsed = append(score.InputsUsed, provider.IDCoinglass)
		} else {
			score.InputsMissing = append(score.InputsMissing, provider.IDCoinglass)
		}
	} else {
		score.InputsMissing = append(score.InputsMissing, provider.IDCoinglass)
	}

	score = finishPhase(score, factors)
	if score.Populated() && points < cfg.MinDataPoints {
		score.LowReliability = true
	}
	return score
}

func avgRatio(points []provider.LongShortRatioPoint) decimal.Decimal {
	if len(points) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(decF(p.Ratio))
	}
	return sum.Div(decimal.NewFromInt(int64(len(points))))
}
