package engine

import "github.com/shopspring/decimal"

func dec(value string) decimal.Decimal {
	out, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return out
}

func decF(val float64) decimal.Decimal {
	return decimal.NewFromFloat(val)
}

var decOne = decimal.NewFromInt(1)

// normalize maps value into [0,1] across [minV,maxV], clamping at the edges.
func normalize(value, minV, maxV decimal.Decimal) decimal.Decimal {
	if maxV.Equal(minV) {
		return dec("0.5")
	}
	val := value.Sub(minV).Div(maxV.Sub(minV))
	if val.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if val.GreaterThan(decOne) {
		return decOne
	}
	return val
}

// normalizeInverse maps value into [0,1] with the scale flipped: minV -> 1.
func normalizeInverse(value, minV, maxV decimal.Decimal) decimal.Decimal {
	if maxV.Equal(minV) {
		return dec("0.5")
	}
	val := maxV.Sub(value).Div(maxV.Sub(minV))
	if val.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if val.GreaterThan(decOne) {
		return decOne
	}
	return val
}

func clampScore(v decimal.Decimal) decimal.Decimal {
	hundred := dec("100")
	if v.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if v.GreaterThan(hundred) {
		return hundred
	}
	return v
}

func scoreFloat(v decimal.Decimal) float64 {
	f, _ := clampScore(v).Round(2).Float64()
	return f
}
