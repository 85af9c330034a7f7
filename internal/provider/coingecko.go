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

const defaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko serves spot market stats (price, 24h volume/change) and the
// listing date used for new-listing scoped analysis. No API key required for
// the public tier; responses are parsed tolerantly with gjson because the
// schema drifts between endpoints.
type CoinGecko struct {
	baseURL     string
	client      *http.Client
	idOverrides map[string]string
}

// NewCoinGecko builds the adapter. idOverrides maps a base asset (upper case)
// to a CoinGecko coin id for assets whose id is not simply the lowercase base.
func NewCoinGecko(baseURL string, timeout time.Duration, idOverrides map[string]string) *CoinGecko {
	if baseURL == "" {
		baseURL = defaultCoinGeckoBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CoinGecko{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: timeout},
		idOverrides: idOverrides,
	}
}

func (c *CoinGecko) ID() string { return IDCoinGecko }

var coinIDDefaults = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"ADA":  "cardano",
}

func (c *CoinGecko) coinID(base string) string {
	if id, ok := c.idOverrides[base]; ok {
		return id
	}
	if id, ok := coinIDDefaults[base]; ok {
		return id
	}
	return symbol.Symbol{Base: base, Quote: "USD"}.BaseLower()
}

func (c *CoinGecko) Fetch(ctx context.Context, sym string) Result {
	parsed := symbol.Parse(sym)
	if parsed.Base == "" {
		return errorResult(c.ID(), sym, fmt.Errorf("invalid symbol: %s", sym))
	}
	endpoint := fmt.Sprintf("%s/coins/%s?localization=false&tickers=false&community_data=false&developer_data=false",
		c.baseURL, url.PathEscape(c.coinID(parsed.Base)))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return errorResult(c.ID(), sym, err)
	}

	price := gjson.GetBytes(body, "market_data.current_price.usd")
	if !price.Exists() {
		return errorResult(c.ID(), sym, fmt.Errorf("price missing in response"))
	}
	stats := &MarketStats{
		Price:          price.Float(),
		Volume24h:      gjson.GetBytes(body, "market_data.total_volume.usd").Float(),
		PriceChange24h: gjson.GetBytes(body, "market_data.price_change_percentage_24h").Float(),
	}
	if genesis := gjson.GetBytes(body, "genesis_date"); genesis.Exists() && genesis.String() != "" {
		if ts, err := time.Parse("2006-01-02", genesis.String()); err == nil {
			stats.ListedAt = ts
		}
	}

	payload := Payload{Market: stats}
	if stats.Volume24h <= 0 {
		return degradedResult(c.ID(), sym, payload, "volume missing")
	}
	return okResult(c.ID(), sym, payload)
}

func (c *CoinGecko) get(ctx context.Context, endpoint string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
