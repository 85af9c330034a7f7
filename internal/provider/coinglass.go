package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"sigfuse/internal/pkg/symbol"
)

const (
	defaultCoinglassBaseURL = "https://open-api.coinglass.com/public/v2"
	coinglassWindow         = 4 * time.Hour
)

// Coinglass serves aggregated forced-liquidation flow. The public tier
// requires an API key; when the key is absent the adapter reports itself
// unavailable instead of failing startup, so the institutional scorer simply
// sees one less input.
type Coinglass struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCoinglass(baseURL, apiKey string, timeout time.Duration) *Coinglass {
	if baseURL == "" {
		baseURL = defaultCoinglassBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Coinglass{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Coinglass) ID() string { return IDCoinglass }

func (c *Coinglass) Fetch(ctx context.Context, sym string) Result {
	if c.apiKey == "" {
		return unavailableResult(c.ID(), sym, "api key not configured")
	}
	parsed := symbol.Parse(sym)
	if parsed.Base == "" {
		return errorResult(c.ID(), sym, fmt.Errorf("invalid symbol: %s", sym))
	}
	endpoint := fmt.Sprintf("%s/liquidation_info?symbol=%s&time_type=h4", c.baseURL, url.QueryEscape(parsed.Base))

	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errorResult(c.ID(), sym, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("coinglassSecret", c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return errorResult(c.ID(), sym, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return unavailableResult(c.ID(), sym, "api key rejected")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorResult(c.ID(), sym, fmt.Errorf("unexpected status %s", resp.Status))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errorResult(c.ID(), sym, err)
	}

	if success := gjson.GetBytes(body, "success"); success.Exists() && !success.Bool() {
		return errorResult(c.ID(), sym, fmt.Errorf("api error: %s", gjson.GetBytes(body, "msg").String()))
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return errorResult(c.ID(), sym, fmt.Errorf("data missing in response"))
	}

	stats := &LiquidationStats{
		LongNotional:  data.Get("buyVolUsd").Float(),
		ShortNotional: data.Get("sellVolUsd").Float(),
		Events:        int(data.Get("orderCount").Int()),
		Window:        coinglassWindow,
	}
	if stats.LongNotional <= 0 && stats.ShortNotional <= 0 {
		return degradedResult(c.ID(), sym, Payload{Liquidations: stats}, "no liquidation flow in window")
	}
	return okResult(c.ID(), sym, Payload{Liquidations: stats})
}
