package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"sigfuse/internal/types"
)

// ErrCompositionInvariant marks a configuration-level invariant violation:
// weights not summing to 1, inverted thresholds and the like. Detected at
// startup, never at request time.
var ErrCompositionInvariant = errors.New("composition invariant violation")

// ErrInvalidSymbol is returned by Analyze for symbols that cannot be
// normalized to a BASE/QUOTE pair.
var ErrInvalidSymbol = errors.New("invalid symbol")

// Weights are the fixed phase weights applied by the composer. They are a
// configuration surface; the defaults are 40/20/40.
type Weights struct {
	Discovery     float64
	Social        float64
	Institutional float64
}

func (w Weights) forPhase(p types.Phase) decimal.Decimal {
	switch p {
	case types.PhaseDiscovery:
		return decF(w.Discovery)
	case types.PhaseSocial:
		return decF(w.Social)
	case types.PhaseInstitutional:
		return decF(w.Institutional)
	default:
		return decimal.Zero
	}
}

type ComposerConfig struct {
	Weights        Weights
	LongThreshold  float64
	ShortThreshold float64
	BronzeMin      float64
	SilverMin      float64
	GoldMin        float64
}

func (c ComposerConfig) withDefaults() ComposerConfig {
	if c.Weights == (Weights{}) {
		c.Weights = Weights{Discovery: 0.4, Social: 0.2, Institutional: 0.4}
	}
	if c.LongThreshold == 0 {
		c.LongThreshold = 58
	}
	if c.ShortThreshold == 0 {
		c.ShortThreshold = 42
	}
	if c.BronzeMin == 0 {
		c.BronzeMin = 52
	}
	if c.SilverMin == 0 {
		c.SilverMin = 58
	}
	if c.GoldMin == 0 {
		c.GoldMin = 65
	}
	return c
}

// Validate fails fast on invariant violations so a bad deployment never
// reaches request time.
func (c ComposerConfig) Validate() error {
	sum := c.Weights.Discovery + c.Weights.Social + c.Weights.Institutional
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%w: phase weights sum to %.6f, want 1", ErrCompositionInvariant, sum)
	}
	if c.Weights.Discovery < 0 || c.Weights.Social < 0 || c.Weights.Institutional < 0 {
		return fmt.Errorf("%w: negative phase weight", ErrCompositionInvariant)
	}
	if c.LongThreshold <= c.ShortThreshold {
		return fmt.Errorf("%w: long threshold %.1f must exceed short threshold %.1f",
			ErrCompositionInvariant, c.LongThreshold, c.ShortThreshold)
	}
	if !(c.BronzeMin <= c.SilverMin && c.SilverMin <= c.GoldMin) {
		return fmt.Errorf("%w: tier thresholds must be ordered bronze <= silver <= gold", ErrCompositionInvariant)
	}
	return nil
}

// Composer merges phase scores into a final signal. Stateless and pure;
// identical phase scores always produce an identical composition.
type Composer struct {
	cfg ComposerConfig
}

func NewComposer(cfg ComposerConfig) (*Composer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Composer{cfg: cfg}, nil
}

type phaseContribution struct {
	score     types.PhaseScore
	effWeight decimal.Decimal
	moved     decimal.Decimal // signed distance the phase pulled the score
}

// priority breaks contribution ties: discovery, institutional, social.
func phasePriority(p types.Phase) int {
	switch p {
	case types.PhaseDiscovery:
		return 0
	case types.PhaseInstitutional:
		return 1
	case types.PhaseSocial:
		return 2
	default:
		return 3
	}
}

// Compose applies the dilution rule (effective weight = base weight x fraction
// of populated inputs, renormalized) and derives direction, confidence, tier
// and reasons. The returned Signal has no id, symbol or timestamp; the engine
// stamps those so composition itself stays deterministic and testable.
func (c *Composer) Compose(scores []types.PhaseScore) types.Signal {
	ordered := orderScores(scores)

	neutral := decF(types.NeutralScore)
	contribs := make([]phaseContribution, 0, len(ordered))
	totalEff := decimal.Zero
	for _, ps := range ordered {
		eff := c.cfg.Weights.forPhase(ps.Phase).Mul(decF(ps.InputFraction()))
		contribs = append(contribs, phaseContribution{score: ps, effWeight: eff})
		totalEff = totalEff.Add(eff)
	}

	final := decF(types.NeutralScore)
	if totalEff.GreaterThan(decimal.Zero) {
		weighted := decimal.Zero
		for i := range contribs {
			norm := contribs[i].effWeight.Div(totalEff)
			weighted = weighted.Add(norm.Mul(decF(contribs[i].score.Value)))
			contribs[i].moved = norm.Mul(decF(contribs[i].score.Value).Sub(neutral))
		}
		final = clampScore(weighted)
	}
	score := scoreFloat(final)

	populated := 0
	lowReliability := false
	for _, ps := range ordered {
		if ps.Populated() {
			populated++
			if ps.LowReliability {
				lowReliability = true
			}
		}
	}

	sig := types.Signal{
		Direction:   c.direction(score, populated),
		Score:       score,
		Confidence:  confidenceFor(populated, lowReliability),
		Tier:        c.tier(score),
		PhaseScores: ordered,
		Reasons:     reasons(contribs),
	}
	return sig
}

// orderScores returns the phase scores in canonical phase order, so that both
// the stored signal and the reason tie-breaking are stable.
func orderScores(scores []types.PhaseScore) []types.PhaseScore {
	out := make([]types.PhaseScore, 0, len(scores))
	for _, phase := range types.AllPhases {
		for _, ps := range scores {
			if ps.Phase == phase {
				out = append(out, ps)
				break
			}
		}
	}
	return out
}

func (c *Composer) direction(score float64, populated int) types.Direction {
	if populated == 0 {
		return types.DirectionNeutral
	}
	switch {
	case score >= c.cfg.LongThreshold:
		return types.DirectionLong
	case score <= c.cfg.ShortThreshold:
		return types.DirectionShort
	default:
		return types.DirectionNeutral
	}
}

func confidenceFor(populated int, lowReliability bool) types.Confidence {
	var conf types.Confidence
	switch {
	case populated >= 3:
		conf = types.ConfidenceHigh
	case populated == 2:
		conf = types.ConfidenceMedium
	default:
		conf = types.ConfidenceLow
	}
	// A flagged phase (too few institutional data points) caps confidence one
	// level down: thin data should never read as a high-conviction call.
	if lowReliability && conf == types.ConfidenceHigh {
		conf = types.ConfidenceMedium
	}
	return conf
}

func (c *Composer) tier(score float64) types.Tier {
	switch {
	case score >= c.cfg.GoldMin:
		return types.TierGold
	case score >= c.cfg.SilverMin:
		return types.TierSilver
	case score >= c.cfg.BronzeMin:
		return types.TierBronze
	default:
		return types.TierNone
	}
}

// reasons lists, per phase with non-zero effective weight, the dominant
// sub-factor, in descending order of how far the phase moved the final score.
func reasons(contribs []phaseContribution) []string {
	kept := make([]phaseContribution, 0, len(contribs))
	for _, pc := range contribs {
		if pc.effWeight.GreaterThan(decimal.Zero) {
			kept = append(kept, pc)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		ai, aj := kept[i].moved.Abs(), kept[j].moved.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return phasePriority(kept[i].score.Phase) < phasePriority(kept[j].score.Phase)
	})

	out := make([]string, 0, len(kept))
	for _, pc := range kept {
		out = append(out, phaseReason(pc))
	}
	return out
}

func phaseReason(pc phaseContribution) string {
	dominant := types.Factor{Name: "neutral_baseline"}
	found := false
	for _, f := range pc.score.Factors {
		if !found || math.Abs(f.Contribution) > math.Abs(dominant.Contribution) {
			dominant = f
			found = true
		}
	}
	moved, _ := pc.moved.Round(2).Float64()
	if !found {
		return fmt.Sprintf("%s: neutral baseline (%+.2f)", pc.score.Phase, moved)
	}
	return fmt.Sprintf("%s: %s %+.2f (phase %+.2f)", pc.score.Phase, dominant.Name, dominant.Contribution, moved)
}
