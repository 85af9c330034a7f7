package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sigfuse/internal/config"
	"sigfuse/internal/engine"
	"sigfuse/internal/evaluator"
	"sigfuse/internal/health"
	"sigfuse/internal/ledger"
	"sigfuse/internal/logger"
	"sigfuse/internal/notifier"
	"sigfuse/internal/pkg/symbol"
	"sigfuse/internal/provider"
	"sigfuse/internal/scheduler"
	"sigfuse/internal/types"
)

// App wires the provider registry, health tracker, scoring engine, ledger,
// evaluator and alert dispatcher, and drives the watchlist sweep loop.
type App struct {
	registry   *provider.Registry
	tracker    *health.Tracker
	engine     *engine.Engine
	store      *ledger.Store
	dispatcher *notifier.Dispatcher
	evaluator  *evaluator.Evaluator

	mu        sync.RWMutex
	watchlist config.WatchlistConfig
}

// NewApp builds the application from config without starting anything.
// An invalid scoring composition is rejected here, before any request runs.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	timeout := time.Duration(cfg.Providers.TimeoutSeconds) * time.Second

	registry := provider.NewRegistry()
	var binance *provider.BinanceFutures
	if cfg.Providers.Binance.Enabled {
		binance = provider.NewBinanceFutures("", "", timeout)
		binance.SetBaseURL(cfg.Providers.Binance.RESTBaseURL)
		registry.Register(binance)
	}
	if cfg.Providers.CoinGecko.Enabled {
		registry.Register(provider.NewCoinGecko(cfg.Providers.CoinGecko.BaseURL, timeout, cfg.Providers.CoinGecko.IDOverrides))
	}
	if cfg.Providers.AlternativeMe.Enabled {
		registry.Register(provider.NewAlternativeMe(cfg.Providers.AlternativeMe.BaseURL, timeout))
	}
	if cfg.Providers.Coinglass.Enabled {
		// Without an api key the adapter reports itself unavailable; that is a
		// degradation, not a startup failure.
		registry.Register(provider.NewCoinglass(cfg.Providers.Coinglass.BaseURL, cfg.Providers.Coinglass.APIKey, timeout))
	}

	tracker := health.NewTracker(health.Options{
		FailureThreshold: cfg.Health.FailureThreshold,
		Cooldown:         time.Duration(cfg.Health.CooldownSeconds) * time.Second,
	})
	fanout := engine.NewFanout(registry, tracker, timeout)

	store, err := ledger.NewStore(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("opening signal ledger: %w", err)
	}

	var dispatcher *notifier.Dispatcher
	var alerter engine.Alerter
	if cfg.Notify.Telegram.Enabled {
		tg := notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		dispatcher = notifier.NewDispatcher(tg, cfg.Notify.QueueSize)
		alerter = dispatcher
	}

	eng, err := engine.New(fanout, store, alerter, engineScoring(cfg.Scoring))
	if err != nil {
		return nil, err
	}
	eng.SetAlertThresholds(types.Tier(strings.ToLower(cfg.Notify.MinTier)), types.Confidence(strings.ToLower(cfg.Notify.MinConfidence)))

	var eval *evaluator.Evaluator
	if cfg.Evaluator.Enabled {
		if binance == nil {
			return nil, fmt.Errorf("evaluator requires the binance provider for reference prices")
		}
		eval = evaluator.New(store, binance, evaluator.Options{
			Horizon:      time.Duration(cfg.Evaluator.HorizonHours) * time.Hour,
			PollInterval: time.Duration(cfg.Evaluator.PollSeconds) * time.Second,
			BatchSize:    cfg.Evaluator.BatchSize,
		})
	}

	return &App{
		registry:   registry,
		tracker:    tracker,
		engine:     eng,
		store:      store,
		dispatcher: dispatcher,
		evaluator:  eval,
		watchlist:  cfg.Watchlist,
	}, nil
}

// Engine exposes the scoring engine for ad-hoc analysis callers.
func (a *App) Engine() *engine.Engine { return a.engine }

// Ledger exposes the signal ledger for query and summary callers.
func (a *App) Ledger() *ledger.Store { return a.store }

// ApplyConfig swaps the hot-reloadable parts of the config: scoring, alert
// thresholds and the watchlist. An invalid scoring config is rejected and the
// running one stays live.
func (a *App) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if err := a.engine.Reconfigure(engineScoring(cfg.Scoring)); err != nil {
		logger.Errorf("rejecting reloaded scoring config: %v", err)
	} else {
		logger.Infof("scoring config reloaded")
	}
	a.engine.SetAlertThresholds(types.Tier(strings.ToLower(cfg.Notify.MinTier)), types.Confidence(strings.ToLower(cfg.Notify.MinConfidence)))

	a.mu.Lock()
	a.watchlist = cfg.Watchlist
	a.mu.Unlock()
}

// Run starts the watchlist sweep loop, the outcome evaluator and the alert
// dispatcher, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.engine == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.dispatcher != nil {
		a.dispatcher.Start()
		defer a.dispatcher.Stop()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a.runWatchlist(ctx)
		return nil
	})
	if a.evaluator != nil {
		group.Go(func() error {
			a.evaluator.Run(ctx)
			return nil
		})
	}

	err := group.Wait()
	if closeErr := a.store.Close(); closeErr != nil {
		logger.Warnf("closing ledger: %v", closeErr)
	}
	return err
}

func (a *App) runWatchlist(ctx context.Context) {
	a.mu.RLock()
	interval := time.Duration(a.watchlist.IntervalSeconds) * time.Second
	a.mu.RUnlock()

	sched := scheduler.NewAlignedScheduler(ctx, interval, 0)
	sched.RunImmediately = true
	sched.Start(func() { a.Sweep(ctx) })
}

// Sweep analyzes every watchlist symbol once. Per-symbol failures are logged
// and do not stop the sweep.
func (a *App) Sweep(ctx context.Context) {
	a.mu.RLock()
	wl := a.watchlist
	a.mu.RUnlock()

	symbols := symbol.NormalizeList(wl.Symbols)
	if len(symbols) == 0 {
		logger.Warnf("watchlist is empty, nothing to sweep")
		return
	}

	opts := engine.Options{
		IncludeInstitutional: wl.IncludeInstitutional,
		MinConfidence:        types.Confidence(strings.ToLower(strings.TrimSpace(wl.MinConfidence))),
		MaxAgeHours:          wl.MaxAgeHours,
	}

	start := time.Now()
	for _, sym := range symbols {
		if ctx.Err() != nil {
			return
		}
		sig, err := a.engine.Analyze(ctx, sym, nil, opts)
		if err != nil {
			logger.Warnf("analyzing %s failed: %v", sym, err)
			continue
		}
		logger.Infof("%s: score=%.2f direction=%s tier=%s confidence=%s",
			sig.Symbol, sig.Score, sig.Direction, sig.Tier, sig.Confidence)
	}
	logger.Infof("watchlist sweep finished: %d symbols in %s", len(symbols), time.Since(start).Truncate(time.Millisecond))

	for _, h := range a.tracker.Snapshot() {
		if h.State != health.StateHealthy {
			logger.Warnf("provider %s is %s (failures=%d)", h.Provider, h.State, h.ConsecutiveFailures)
		}
	}
}

func engineScoring(cfg config.ScoringConfig) engine.ScoringConfig {
	return engine.ScoringConfig{
		Discovery: engine.DiscoveryConfig{
			EMAFast:   cfg.Discovery.EMAFast,
			EMASlow:   cfg.Discovery.EMASlow,
			RSIPeriod: cfg.Discovery.RSIPeriod,
		},
		Institutional: engine.InstitutionalConfig{
			MinDataPoints: float64(cfg.Institutional.MinDataPoints),
		},
		Composer: engine.ComposerConfig{
			Weights: engine.Weights{
				Discovery:     cfg.Weights.Discovery,
				Social:        cfg.Weights.Social,
				Institutional: cfg.Weights.Institutional,
			},
			LongThreshold:  cfg.LongThreshold,
			ShortThreshold: cfg.ShortThreshold,
			BronzeMin:      cfg.BronzeMin,
			SilverMin:      cfg.SilverMin,
			GoldMin:        cfg.GoldMin,
		},
	}
}
