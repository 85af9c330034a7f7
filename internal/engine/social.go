package engine

import (
	"sigfuse/internal/provider"
	"sigfuse/internal/types"
)

var socialProviders = []string{provider.IDAlternativeMe}

// ScoreSocial normalizes the crowd-sentiment index onto the 0-100 phase
// scale. The index already lives on that scale, so the work here is the
// missing-data policy: no usable provider means the documented neutral
// default, with the omission recorded so the composer can dilute the phase.
func ScoreSocial(results map[string]provider.Result) types.PhaseScore {
	score := types.PhaseScore{Phase: types.PhaseSocial}

	alt := results[provider.IDAlternativeMe]
	if !alt.Usable() || alt.Payload.Sentiment == nil {
		score.InputsMissing = append(score.InputsMissing, provider.IDAlternativeMe)
		score.Value = types.NeutralScore
		return score
	}

	idx := alt.Payload.Sentiment
	value := scoreFloat(decF(float64(idx.Value)))
	score.InputsUsed = append(score.InputsUsed, provider.IDAlternativeMe)
	score.Value = value
	score.Factors = append(score.Factors, types.Factor{
		Name:         "crowd_sentiment",
		Contribution: value - types.NeutralScore,
	})
	return score
}
