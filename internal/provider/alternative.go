package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultAlternativeMeBaseURL = "https://api.alternative.me"

// AlternativeMe serves the crypto Fear & Greed index, the social/sentiment
// phase's primary input. The index is market-wide, not per-symbol; the scorer
// treats it as the crowd-mood baseline for every request.
type AlternativeMe struct {
	baseURL string
	client  *http.Client
}

func NewAlternativeMe(baseURL string, timeout time.Duration) *AlternativeMe {
	if baseURL == "" {
		baseURL = defaultAlternativeMeBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AlternativeMe{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *AlternativeMe) ID() string { return IDAlternativeMe }

func (a *AlternativeMe) Fetch(ctx context.Context, sym string) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/fng/?limit=1", nil)
	if err != nil {
		return errorResult(a.ID(), sym, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return errorResult(a.ID(), sym, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorResult(a.ID(), sym, fmt.Errorf("unexpected status %s", resp.Status))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errorResult(a.ID(), sym, err)
	}

	if apiErr := gjson.GetBytes(body, "metadata.error"); apiErr.Exists() && apiErr.Type != gjson.Null {
		return errorResult(a.ID(), sym, fmt.Errorf("api error: %s", apiErr.String()))
	}
	entry := gjson.GetBytes(body, "data.0")
	if !entry.Exists() {
		return errorResult(a.ID(), sym, fmt.Errorf("api data empty"))
	}
	value := int(entry.Get("value").Int())
	if value < 0 || value > 100 {
		return errorResult(a.ID(), sym, fmt.Errorf("index out of range: %d", value))
	}

	idx := &SentimentIndex{
		Value:          value,
		Classification: strings.TrimSpace(entry.Get("value_classification").String()),
	}
	if ts := entry.Get("timestamp").Int(); ts > 0 {
		idx.Timestamp = time.Unix(ts, 0).UTC()
	}
	return okResult(a.ID(), sym, Payload{Sentiment: idx})
}
