package ledger

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"sigfuse/internal/types"
)

type signalModel struct {
	ID              int64          `gorm:"column:id;primaryKey;autoIncrement"`
	SignalID        string         `gorm:"column:signal_id;uniqueIndex"`
	Symbol          string         `gorm:"column:symbol;index"`
	Direction       string         `gorm:"column:direction;index"`
	Score           float64        `gorm:"column:score"`
	Confidence      string         `gorm:"column:confidence"`
	Tier            string         `gorm:"column:tier;index"`
	EntryPrice      float64        `gorm:"column:entry_price"`
	PhaseScores     datatypes.JSON `gorm:"column:phase_scores"`
	Reasons         datatypes.JSON `gorm:"column:reasons"`
	GeneratedAtUnix int64          `gorm:"column:generated_at;index"`
	CreatedAtUnix   int64          `gorm:"column:created_at"`
}

func (signalModel) TableName() string { return "signals" }

type outcomeModel struct {
	ID              int64   `gorm:"column:id;primaryKey;autoIncrement"`
	SignalID        string  `gorm:"column:signal_id;uniqueIndex"`
	RealizedPnlPct  float64 `gorm:"column:realized_pnl_pct"`
	Result          string  `gorm:"column:result"`
	EvaluatedAtUnix int64   `gorm:"column:evaluated_at"`
}

func (outcomeModel) TableName() string { return "outcomes" }

func newSignalModel(sig types.Signal, now time.Time) signalModel {
	phaseJSON, _ := json.Marshal(sig.PhaseScores)
	reasonsJSON, _ := json.Marshal(sig.Reasons)
	return signalModel{
		SignalID:        strings.TrimSpace(sig.ID),
		Symbol:          strings.ToUpper(strings.TrimSpace(sig.Symbol)),
		Direction:       string(sig.Direction),
		Score:           sig.Score,
		Confidence:      string(sig.Confidence),
		Tier:            string(sig.Tier),
		EntryPrice:      sig.EntryPrice,
		PhaseScores:     datatypes.JSON(phaseJSON),
		Reasons:         datatypes.JSON(reasonsJSON),
		GeneratedAtUnix: sig.GeneratedAt.UnixMilli(),
		CreatedAtUnix:   now.UnixMilli(),
	}
}

func signalModelToRecord(m signalModel) types.Signal {
	sig := types.Signal{
		ID:          m.SignalID,
		Symbol:      m.Symbol,
		Direction:   types.Direction(m.Direction),
		Score:       m.Score,
		Confidence:  types.Confidence(m.Confidence),
		Tier:        types.Tier(m.Tier),
		EntryPrice:  m.EntryPrice,
		GeneratedAt: time.UnixMilli(m.GeneratedAtUnix).UTC(),
	}
	if len(m.PhaseScores) > 0 {
		_ = json.Unmarshal(m.PhaseScores, &sig.PhaseScores)
	}
	if len(m.Reasons) > 0 {
		_ = json.Unmarshal(m.Reasons, &sig.Reasons)
	}
	return sig
}

func newOutcomeModel(out types.Outcome) outcomeModel {
	return outcomeModel{
		SignalID:        strings.TrimSpace(out.SignalID),
		RealizedPnlPct:  out.RealizedPnlPct,
		Result:          string(out.Result),
		EvaluatedAtUnix: out.EvaluatedAt.UnixMilli(),
	}
}

func outcomeModelToRecord(m outcomeModel) types.Outcome {
	return types.Outcome{
		SignalID:       m.SignalID,
		RealizedPnlPct: m.RealizedPnlPct,
		Result:         types.OutcomeResult(m.Result),
		EvaluatedAt:    time.UnixMilli(m.EvaluatedAtUnix).UTC(),
	}
}
