package config

import "strings"

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultProviderTimeout = 4
	defaultBinanceREST     = "https://fapi.binance.com"
	defaultCoinGeckoURL    = "https://api.coingecko.com/api/v3"
	defaultAlternativeURL  = "https://api.alternative.me"
	defaultCoinglassURL    = "https://open-api.coinglass.com/public/v2"
	defaultFailureLimit    = 3
	defaultCooldownSeconds = 300
	defaultWatchInterval   = 900
	defaultLedgerPath      = "data/signals.db"
	defaultHorizonHours    = 24
	defaultEvalPollSeconds = 300
	defaultEvalBatchSize   = 50
	defaultAlertQueueSize  = 64
	defaultAlertMinTier    = "gold"
	defaultAlertMinConf    = "medium"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Providers.applyDefaults(keys)
	c.Health.applyDefaults(keys)
	c.Scoring.applyDefaults(keys)
	c.Watchlist.applyDefaults(keys)
	c.Ledger.applyDefaults(keys)
	c.Evaluator.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
	)
}

func (p *ProvidersConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("providers.timeout_seconds", &p.TimeoutSeconds, defaultProviderTimeout),
		boolFieldDefault("providers.binance.enabled", &p.Binance.Enabled, true),
		stringFieldDefault("providers.binance.rest_base_url", &p.Binance.RESTBaseURL, defaultBinanceREST),
		boolFieldDefault("providers.coingecko.enabled", &p.CoinGecko.Enabled, true),
		stringFieldDefault("providers.coingecko.base_url", &p.CoinGecko.BaseURL, defaultCoinGeckoURL),
		boolFieldDefault("providers.alternative_me.enabled", &p.AlternativeMe.Enabled, true),
		stringFieldDefault("providers.alternative_me.base_url", &p.AlternativeMe.BaseURL, defaultAlternativeURL),
		boolFieldDefault("providers.coinglass.enabled", &p.Coinglass.Enabled, true),
		stringFieldDefault("providers.coinglass.base_url", &p.Coinglass.BaseURL, defaultCoinglassURL),
	)
}

func (h *HealthConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("health.failure_threshold", &h.FailureThreshold, defaultFailureLimit),
		intFieldDefault("health.cooldown_seconds", &h.CooldownSeconds, defaultCooldownSeconds),
	)
}

func (s *ScoringConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	// The zero value means "use engine defaults": the scoring engine fills in
	// its documented weights and thresholds when these stay zero.
}

func (w *WatchlistConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("watchlist.interval_seconds", &w.IntervalSeconds, defaultWatchInterval),
	)
}

func (l *LedgerConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ledger.path", &l.Path, defaultLedgerPath),
	)
}

func (e *EvaluatorConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("evaluator.horizon_hours", &e.HorizonHours, defaultHorizonHours),
		intFieldDefault("evaluator.poll_seconds", &e.PollSeconds, defaultEvalPollSeconds),
		intFieldDefault("evaluator.batch_size", &e.BatchSize, defaultEvalBatchSize),
	)
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("notify.queue_size", &n.QueueSize, defaultAlertQueueSize),
		stringFieldDefault("notify.min_tier", &n.MinTier, defaultAlertMinTier),
		stringFieldDefault("notify.min_confidence", &n.MinConfidence, defaultAlertMinConf),
	)
}

// Helper functions

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
