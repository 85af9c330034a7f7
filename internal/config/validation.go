package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Providers.validate(); err != nil {
		return err
	}
	if err := c.Health.validate(); err != nil {
		return err
	}
	if err := c.Scoring.validate(); err != nil {
		return err
	}
	if err := c.Watchlist.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (p *ProvidersConfig) validate() error {
	if p.TimeoutSeconds <= 0 {
		return fmt.Errorf("providers.timeout_seconds must be > 0")
	}
	enabled := 0
	for _, on := range []bool{p.Binance.Enabled, p.CoinGecko.Enabled, p.AlternativeMe.Enabled, p.Coinglass.Enabled} {
		if on {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("providers requires at least one enabled source")
	}
	if p.Binance.Enabled && strings.TrimSpace(p.Binance.RESTBaseURL) == "" {
		return fmt.Errorf("providers.binance.rest_base_url cannot be empty")
	}
	return nil
}

func (h *HealthConfig) validate() error {
	if h.FailureThreshold < 1 {
		return fmt.Errorf("health.failure_threshold must be >= 1")
	}
	if h.CooldownSeconds < 1 {
		return fmt.Errorf("health.cooldown_seconds must be >= 1")
	}
	return nil
}

// validate only sanity-checks ranges here. The scoring engine re-validates
// the full composition invariant (weight sum, threshold ordering) at startup
// and rejects the config with a hard error.
func (s *ScoringConfig) validate() error {
	for key, w := range map[string]float64{
		"scoring.weights.discovery":     s.Weights.Discovery,
		"scoring.weights.social":        s.Weights.Social,
		"scoring.weights.institutional": s.Weights.Institutional,
	} {
		if w < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	if s.Discovery.EMAFast < 0 || s.Discovery.EMASlow < 0 || s.Discovery.RSIPeriod < 0 {
		return fmt.Errorf("scoring.discovery periods must be >= 0")
	}
	if s.Discovery.EMAFast > 0 && s.Discovery.EMASlow > 0 && s.Discovery.EMAFast >= s.Discovery.EMASlow {
		return fmt.Errorf("scoring.discovery.ema_fast must be < ema_slow")
	}
	if s.Institutional.MinDataPoints < 0 {
		return fmt.Errorf("scoring.institutional.min_data_points must be >= 0")
	}
	return nil
}

func (w *WatchlistConfig) validate() error {
	if w.IntervalSeconds < 10 {
		return fmt.Errorf("watchlist.interval_seconds must be >= 10")
	}
	switch strings.ToLower(strings.TrimSpace(w.MinConfidence)) {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("watchlist.min_confidence must be one of low/medium/high")
	}
	if w.MaxAgeHours < 0 {
		return fmt.Errorf("watchlist.max_age_hours must be >= 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	switch strings.ToLower(strings.TrimSpace(n.MinTier)) {
	case "", "none", "bronze", "silver", "gold":
	default:
		return fmt.Errorf("notify.min_tier must be one of none/bronze/silver/gold")
	}
	switch strings.ToLower(strings.TrimSpace(n.MinConfidence)) {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("notify.min_confidence must be one of low/medium/high")
	}
	return nil
}
