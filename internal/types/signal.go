package types

import "time"

// NeutralScore is the documented fallback used whenever a phase has no usable input.
const NeutralScore = 50.0

type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ConfidenceRank maps confidence to an ordinal so callers can compare levels.
func ConfidenceRank(c Confidence) int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

type Tier string

const (
	TierNone   Tier = "none"
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// TierRank maps tiers to an ordinal for alert-threshold comparisons.
func TierRank(t Tier) int {
	switch t {
	case TierGold:
		return 3
	case TierSilver:
		return 2
	case TierBronze:
		return 1
	default:
		return 0
	}
}

type Phase string

const (
	PhaseDiscovery     Phase = "discovery"
	PhaseSocial        Phase = "social"
	PhaseInstitutional Phase = "institutional"
)

// AllPhases is the canonical phase ordering used everywhere a stable order matters.
var AllPhases = []Phase{PhaseDiscovery, PhaseSocial, PhaseInstitutional}

// Factor is a single sub-signal inside a phase. Contribution is signed and
// expressed in score points relative to the neutral midpoint, so the composer
// can rank factors by how far they moved the phase.
type Factor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

// PhaseScore is the immutable output of one phase scorer for one request.
type PhaseScore struct {
	Phase          Phase    `json:"phase"`
	Value          float64  `json:"value"`
	InputsUsed     []string `json:"inputs_used,omitempty"`
	InputsMissing  []string `json:"inputs_missing,omitempty"`
	Factors        []Factor `json:"factors,omitempty"`
	LowReliability bool     `json:"low_reliability,omitempty"`
}

// Populated reports whether the phase saw at least one usable provider.
func (p PhaseScore) Populated() bool {
	return len(p.InputsUsed) > 0
}

// InputFraction is the share of expected providers that actually delivered data.
// Used by the composer to dilute the phase weight.
func (p PhaseScore) InputFraction() float64 {
	total := len(p.InputsUsed) + len(p.InputsMissing)
	if total == 0 {
		return 0
	}
	return float64(len(p.InputsUsed)) / float64(total)
}

// Signal is the final directional recommendation for one symbol. Immutable once
// recorded; the ledger owns it after creation.
type Signal struct {
	ID          string       `json:"id"`
	Symbol      string       `json:"symbol"`
	GeneratedAt time.Time    `json:"generated_at"`
	Direction   Direction    `json:"direction"`
	Score       float64      `json:"score"`
	Confidence  Confidence   `json:"confidence"`
	Tier        Tier         `json:"tier"`
	EntryPrice  float64      `json:"entry_price,omitempty"`
	PhaseScores []PhaseScore `json:"phase_scores"`
	Reasons     []string     `json:"reasons"`
}

type OutcomeResult string

const (
	OutcomeWin     OutcomeResult = "win"
	OutcomeLoss    OutcomeResult = "loss"
	OutcomePending OutcomeResult = "pending"
)

// Outcome is the realized result attached to a signal after the evaluation
// horizon. It references the signal by id only; discarding an outcome never
// invalidates the signal.
type Outcome struct {
	SignalID       string        `json:"signal_id"`
	EvaluatedAt    time.Time     `json:"evaluated_at"`
	RealizedPnlPct float64       `json:"realized_pnl_pct"`
	Result         OutcomeResult `json:"result"`
}
