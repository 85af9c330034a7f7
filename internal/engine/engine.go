package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sigfuse/internal/logger"
	"sigfuse/internal/pkg/symbol"
	"sigfuse/internal/provider"
	"sigfuse/internal/types"
)

// Ledger is the slice of the signal ledger the engine needs: persist the
// signal before handing it back to the caller.
type Ledger interface {
	Record(ctx context.Context, sig types.Signal) error
}

// Alerter is the fire-and-forget notification boundary. Enqueue must never
// block and its failures never reach the analysis path.
type Alerter interface {
	Enqueue(sig types.Signal)
}

// Options mirror the analyze entry-point options. IncludeInstitutional only
// matters when no explicit phase list is given.
type Options struct {
	IncludeInstitutional bool
	MinConfidence        types.Confidence
	MaxAgeHours          int
}

type ScoringConfig struct {
	Discovery     DiscoveryConfig
	Institutional InstitutionalConfig
	Composer      ComposerConfig
}

// Engine is the signal aggregation core: fan out to providers, score phases,
// compose, persist, alert.
type Engine struct {
	fanout  *Fanout
	ledger  Ledger
	alerter Alerter
	clock   func() time.Time

	mu           sync.RWMutex
	composer     *Composer
	discoveryCfg DiscoveryConfig
	instCfg      InstitutionalConfig
	alertMinTier types.Tier
	alertMinConf types.Confidence
}

func New(fanout *Fanout, ledger Ledger, alerter Alerter, scoring ScoringConfig) (*Engine, error) {
	composer, err := NewComposer(scoring.Composer)
	if err != nil {
		return nil, err
	}
	return &Engine{
		fanout:       fanout,
		ledger:       ledger,
		alerter:      alerter,
		clock:        time.Now,
		composer:     composer,
		discoveryCfg: scoring.Discovery,
		instCfg:      scoring.Institutional,
		alertMinTier: types.TierGold,
		alertMinConf: types.ConfidenceMedium,
	}, nil
}

// SetClock injects a clock for tests.
func (e *Engine) SetClock(clock func() time.Time) {
	if clock != nil {
		e.clock = clock
	}
}

// SetAlertThresholds configures when a composed signal is pushed to the
// notification boundary.
func (e *Engine) SetAlertThresholds(minTier types.Tier, minConf types.Confidence) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if minTier != "" {
		e.alertMinTier = minTier
	}
	if minConf != "" {
		e.alertMinConf = minConf
	}
}

// Reconfigure swaps the scoring configuration atomically; used by the config
// hot-reload path. Invalid configs are rejected and the old one stays live.
func (e *Engine) Reconfigure(scoring ScoringConfig) error {
	composer, err := NewComposer(scoring.Composer)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.composer = composer
	e.discoveryCfg = scoring.Discovery
	e.instCfg = scoring.Institutional
	e.mu.Unlock()
	return nil
}

// phaseProviders maps each phase to the providers it consumes.
var phaseProviders = map[types.Phase][]string{
	types.PhaseDiscovery:     discoveryProviders,
	types.PhaseSocial:        socialProviders,
	types.PhaseInstitutional: institutionalProviders,
}

// Analyze is the sole entry point for signal generation. It always produces a
// Signal, however degraded, unless the symbol itself is malformed: provider
// failures become neutral defaults and lower confidence, never errors.
func (e *Engine) Analyze(ctx context.Context, rawSymbol string, phases []types.Phase, opts Options) (types.Signal, error) {
	sym := symbol.Normalize(rawSymbol)
	if sym == "" {
		return types.Signal{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, rawSymbol)
	}
	phases = resolvePhases(phases, opts)

	providerIDs := providersFor(phases)
	results := e.fanout.Gather(ctx, sym, providerIDs)

	e.mu.RLock()
	composer := e.composer
	discoveryCfg := e.discoveryCfg
	instCfg := e.instCfg
	minTier := e.alertMinTier
	minConf := e.alertMinConf
	e.mu.RUnlock()

	scores := make([]types.PhaseScore, 0, len(phases))
	for _, phase := range phases {
		switch phase {
		case types.PhaseDiscovery:
			scores = append(scores, ScoreDiscovery(subset(results, discoveryProviders), discoveryCfg))
		case types.PhaseSocial:
			scores = append(scores, ScoreSocial(subset(results, socialProviders)))
		case types.PhaseInstitutional:
			scores = append(scores, ScoreInstitutional(subset(results, institutionalProviders), instCfg))
		}
	}

	sig := composer.Compose(scores)
	sig.ID = uuid.NewString()
	sig.Symbol = sym
	sig.GeneratedAt = e.clock().UTC()
	sig.EntryPrice = entryPrice(results)

	applyOptionConstraints(&sig, results, opts)

	if e.ledger != nil {
		if err := e.ledger.Record(ctx, sig); err != nil {
			// A broken ledger should not turn a usable signal into an error
			// for the caller, but it must be loud in the logs.
			logger.Errorf("recording signal %s for %s failed: %v", sig.ID, sym, err)
		}
	}

	if e.alerter != nil &&
		types.TierRank(sig.Tier) >= types.TierRank(minTier) &&
		types.ConfidenceRank(sig.Confidence) >= types.ConfidenceRank(minConf) &&
		sig.Direction != types.DirectionNeutral {
		e.alerter.Enqueue(sig)
	}

	return sig, nil
}

func resolvePhases(phases []types.Phase, opts Options) []types.Phase {
	if len(phases) > 0 {
		return orderPhases(phases)
	}
	out := []types.Phase{types.PhaseDiscovery, types.PhaseSocial}
	if opts.IncludeInstitutional {
		out = append(out, types.PhaseInstitutional)
	}
	return out
}

func orderPhases(phases []types.Phase) []types.Phase {
	out := make([]types.Phase, 0, len(phases))
	for _, canonical := range types.AllPhases {
		for _, p := range phases {
			if p == canonical {
				out = append(out, canonical)
				break
			}
		}
	}
	return out
}

func providersFor(phases []types.Phase) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, phase := range phases {
		for _, id := range phaseProviders[phase] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func subset(results map[string]provider.Result, ids []string) map[string]provider.Result {
	out := make(map[string]provider.Result, len(ids))
	for _, id := range ids {
		if res, ok := results[id]; ok {
			out[id] = res
		}
	}
	return out
}

func entryPrice(results map[string]provider.Result) float64 {
	if res, ok := results[provider.IDBinanceFutures]; ok && res.Usable() && len(res.Payload.Candles) > 0 {
		return res.Payload.Candles[len(res.Payload.Candles)-1].Close
	}
	if res, ok := results[provider.IDCoinGecko]; ok && res.Usable() && res.Payload.Market != nil {
		return res.Payload.Market.Price
	}
	return 0
}

// applyOptionConstraints neutralizes the direction (never the record) when the
// caller asked for a confidence floor or a listing-age window the result does
// not satisfy.
func applyOptionConstraints(sig *types.Signal, results map[string]provider.Result, opts Options) {
	if opts.MinConfidence != "" &&
		types.ConfidenceRank(sig.Confidence) < types.ConfidenceRank(opts.MinConfidence) &&
		sig.Direction != types.DirectionNeutral {
		sig.Direction = types.DirectionNeutral
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("direction suppressed: confidence %s below requested %s", sig.Confidence, opts.MinConfidence))
	}
	if opts.MaxAgeHours > 0 {
		if res, ok := results[provider.IDCoinGecko]; ok && res.Usable() && res.Payload.Market != nil && !res.Payload.Market.ListedAt.IsZero() {
			age := sig.GeneratedAt.Sub(res.Payload.Market.ListedAt)
			if age > time.Duration(opts.MaxAgeHours)*time.Hour && sig.Direction != types.DirectionNeutral {
				sig.Direction = types.DirectionNeutral
				sig.Reasons = append(sig.Reasons, fmt.Sprintf("direction suppressed: listing age %.0fh exceeds %dh window", age.Hours(), opts.MaxAgeHours))
			}
		}
	}
}
