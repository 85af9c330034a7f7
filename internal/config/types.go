package config

import "strings"

// Config is the root configuration tree.
type Config struct {
	App       AppConfig       `toml:"app"`
	Providers ProvidersConfig `toml:"providers"`
	Health    HealthConfig    `toml:"health"`
	Scoring   ScoringConfig   `toml:"scoring"`
	Watchlist WatchlistConfig `toml:"watchlist"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Evaluator EvaluatorConfig `toml:"evaluator"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

type ProvidersConfig struct {
	TimeoutSeconds int                 `toml:"timeout_seconds"`
	Binance        BinanceConfig       `toml:"binance"`
	CoinGecko      CoinGeckoConfig     `toml:"coingecko"`
	AlternativeMe  AlternativeMeConfig `toml:"alternative_me"`
	Coinglass      CoinglassConfig     `toml:"coinglass"`
}

type BinanceConfig struct {
	Enabled     bool   `toml:"enabled"`
	RESTBaseURL string `toml:"rest_base_url"`
}

type CoinGeckoConfig struct {
	Enabled     bool              `toml:"enabled"`
	BaseURL     string            `toml:"base_url"`
	IDOverrides map[string]string `toml:"id_overrides"`
}

type AlternativeMeConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
}

type CoinglassConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type HealthConfig struct {
	FailureThreshold int `toml:"failure_threshold"`
	CooldownSeconds  int `toml:"cooldown_seconds"`
}

type ScoringConfig struct {
	Weights        WeightsConfig       `toml:"weights"`
	LongThreshold  float64             `toml:"long_threshold"`
	ShortThreshold float64             `toml:"short_threshold"`
	BronzeMin      float64             `toml:"bronze_min"`
	SilverMin      float64             `toml:"silver_min"`
	GoldMin        float64             `toml:"gold_min"`
	Discovery      DiscoveryConfig     `toml:"discovery"`
	Institutional  InstitutionalConfig `toml:"institutional"`
}

type WeightsConfig struct {
	Discovery     float64 `toml:"discovery"`
	Social        float64 `toml:"social"`
	Institutional float64 `toml:"institutional"`
}

type DiscoveryConfig struct {
	EMAFast   int `toml:"ema_fast"`
	EMASlow   int `toml:"ema_slow"`
	RSIPeriod int `toml:"rsi_period"`
}

type InstitutionalConfig struct {
	MinDataPoints int `toml:"min_data_points"`
}

type WatchlistConfig struct {
	Symbols              []string `toml:"symbols"`
	IntervalSeconds      int      `toml:"interval_seconds"`
	IncludeInstitutional bool     `toml:"include_institutional"`
	MinConfidence        string   `toml:"min_confidence"`
	MaxAgeHours          int      `toml:"max_age_hours"`
}

type LedgerConfig struct {
	Path string `toml:"path"`
}

type EvaluatorConfig struct {
	Enabled      bool `toml:"enabled"`
	HorizonHours int  `toml:"horizon_hours"`
	PollSeconds  int  `toml:"poll_seconds"`
	BatchSize    int  `toml:"batch_size"`
}

type NotifyConfig struct {
	Telegram      TelegramConfig `toml:"telegram"`
	QueueSize     int            `toml:"queue_size"`
	MinTier       string         `toml:"min_tier"`
	MinConfidence string         `toml:"min_confidence"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet tracks which field paths were explicitly set in the config file, so
// defaults only fill values the operator left out.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}
