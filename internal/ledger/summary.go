package ledger

import (
	"context"
	"fmt"

	"sigfuse/internal/types"
)

// Summary aggregates signal performance over the signals matching a filter.
type Summary struct {
	Signals   int64
	Evaluated int64
	Wins      int64
	Losses    int64
	Pending   int64
	WinRate   float64
	AvgPnlPct float64
	ByTier    map[types.Tier]TierStats
}

type TierStats struct {
	Signals   int64
	Wins      int64
	AvgPnlPct float64
}

// Summarize walks the matching signals and folds attached outcomes into win
// rate and average realized pnl, broken down by tier. Signals without an
// outcome count as pending.
func (s *Store) Summarize(ctx context.Context, filter QueryFilter) (Summary, error) {
	if s == nil || s.db == nil {
		return Summary{}, fmt.Errorf("ledger not initialized")
	}

	type row struct {
		Tier           string
		Result         *string
		RealizedPnlPct *float64
	}
	var rows []row
	q := s.db.WithContext(ctx).Model(&signalModel{}).
		Select("signals.tier AS tier, outcomes.result AS result, outcomes.realized_pnl_pct AS realized_pnl_pct").
		Joins("LEFT JOIN outcomes ON outcomes.signal_id = signals.signal_id")
	q = applyFilter(q, filter)
	if err := q.Scan(&rows).Error; err != nil {
		return Summary{}, err
	}

	sum := Summary{ByTier: make(map[types.Tier]TierStats)}
	tierPnl := make(map[types.Tier]float64)
	tierEval := make(map[types.Tier]int64)
	var totalPnl float64
	for _, r := range rows {
		sum.Signals++
		tier := types.Tier(r.Tier)
		stats := sum.ByTier[tier]
		stats.Signals++
		if r.Result == nil {
			sum.Pending++
			sum.ByTier[tier] = stats
			continue
		}
		sum.Evaluated++
		tierEval[tier]++
		if r.RealizedPnlPct != nil {
			totalPnl += *r.RealizedPnlPct
			tierPnl[tier] += *r.RealizedPnlPct
		}
		switch types.OutcomeResult(*r.Result) {
		case types.OutcomeWin:
			sum.Wins++
			stats.Wins++
		case types.OutcomeLoss:
			sum.Losses++
		}
		sum.ByTier[tier] = stats
	}
	if sum.Evaluated > 0 {
		sum.WinRate = float64(sum.Wins) / float64(sum.Evaluated)
		sum.AvgPnlPct = totalPnl / float64(sum.Evaluated)
	}
	for tier, n := range tierEval {
		stats := sum.ByTier[tier]
		stats.AvgPnlPct = tierPnl[tier] / float64(n)
		sum.ByTier[tier] = stats
	}
	return sum, nil
}
